package util

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// IsUtilityStmt - For each statement in the query text, whether it is a utility
// statement (DDL, SET, VACUUM, ...) as opposed to plannable DML
func IsUtilityStmt(query string) ([]bool, error) {
	tree, err := pg_query.Parse(query)
	if err != nil {
		return nil, err
	}

	result := make([]bool, len(tree.Stmts))
	for idx, rawStmt := range tree.Stmts {
		result[idx] = !isPlannable(rawStmt.Stmt)
	}
	return result, nil
}

func isPlannable(node *pg_query.Node) bool {
	switch node.GetNode().(type) {
	case *pg_query.Node_SelectStmt, *pg_query.Node_InsertStmt, *pg_query.Node_UpdateStmt,
		*pg_query.Node_DeleteStmt, *pg_query.Node_MergeStmt:
		return true
	}
	return false
}
