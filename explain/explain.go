package explain

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"regexp"

	"github.com/pkg/errors"

	"github.com/pgtelemetry/collector/util"
)

// PlanNode - One node of an EXPLAIN (FORMAT JSON) plan tree
type PlanNode struct {
	NodeType     string     `json:"Node Type"`
	JoinType     string     `json:"Join Type,omitempty"`
	IndexName    string     `json:"Index Name,omitempty"`
	RelationName string     `json:"Relation Name,omitempty"`
	StartupCost  float64    `json:"Startup Cost"`
	TotalCost    float64    `json:"Total Cost"`
	PlanRows     float64    `json:"Plan Rows"`
	Plans        []PlanNode `json:"Plans,omitempty"`
}

// Output - Top-level EXPLAIN result, ANALYZE fields are only set when requested
type Output struct {
	Plan          PlanNode `json:"Plan"`
	PlanningTime  *float64 `json:"Planning Time,omitempty"`
	ExecutionTime *float64 `json:"Execution Time,omitempty"`
}

// Parse reads the output of EXPLAIN (FORMAT JSON), which is an array holding
// a single result object.
func Parse(explainOutput []byte) (Output, error) {
	var outputs []Output

	err := json.Unmarshal(explainOutput, &outputs)
	if err != nil {
		return Output{}, errors.Wrap(err, "invalid EXPLAIN output")
	}
	if len(outputs) != 1 {
		return Output{}, fmt.Errorf("expected one EXPLAIN result, got %d", len(outputs))
	}
	if outputs[0].Plan.NodeType == "" {
		return Output{}, errors.New("EXPLAIN result is missing the plan")
	}

	return outputs[0], nil
}

// Fingerprint hashes the shape of the plan: node types, join types and index
// names, depth first. Costs and row estimates are left out so estimate drift
// alone does not change the fingerprint.
func Fingerprint(node PlanNode) string {
	h := md5.New()
	hashPlanNode(h, node)
	return fmt.Sprintf("%x", h.Sum(nil))
}

func hashPlanNode(h hash.Hash, node PlanNode) {
	// Fields are NUL terminated and children are bracketed, so sibling and
	// nested layouts of the same node types hash differently.
	io.WriteString(h, node.NodeType)
	io.WriteString(h, "\x00")
	io.WriteString(h, node.JoinType)
	io.WriteString(h, "\x00")
	io.WriteString(h, node.IndexName)
	io.WriteString(h, "\x00(")
	for _, child := range node.Plans {
		hashPlanNode(h, child)
	}
	io.WriteString(h, ")")
}

var parameterRefRegexp = regexp.MustCompile(`\$\d+`)

// HasParameterRefs reports whether the query references bind parameters ($1, $2, ...)
func HasParameterRefs(query string) bool {
	return parameterRefRegexp.MatchString(query)
}

// IsSafeToExplain returns an error when the query text must not be passed to
// EXPLAIN: texts that don't parse, multiple statements (which could lead to
// accidental execution), utility statements, and our own queries.
func IsSafeToExplain(query string, ownMarker string) error {
	if ownMarker != "" && len(query) >= len(ownMarker) && query[:len(ownMarker)] == ownMarker {
		return errors.New("query was issued by the collector")
	}

	isUtil, err := util.IsUtilityStmt(query)
	if err != nil {
		return errors.Wrap(err, "query could not be parsed")
	}
	if len(isUtil) != 1 {
		return fmt.Errorf("query text contains %d statements", len(isUtil))
	}
	if isUtil[0] {
		return errors.New("utility statements can't be explained")
	}

	return nil
}
