package explain_test

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"

	"github.com/pgtelemetry/collector/explain"
)

const nestedLoopPlan = `[
  {
    "Plan": {
      "Node Type": "Nested Loop",
      "Join Type": "Inner",
      "Startup Cost": 0.29,
      "Total Cost": 16.34,
      "Plan Rows": 1,
      "Plans": [
        {"Node Type": "Seq Scan", "Relation Name": "users", "Startup Cost": 0.00, "Total Cost": 8.01, "Plan Rows": 1},
        {"Node Type": "Index Scan", "Index Name": "orders_user_id_idx", "Relation Name": "orders", "Startup Cost": 0.29, "Total Cost": 8.31, "Plan Rows": 1}
      ]
    },
    "Planning Time": 0.12
  }
]`

func TestParse(t *testing.T) {
	output, err := explain.Parse([]byte(nestedLoopPlan))
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	if output.Plan.NodeType != "Nested Loop" || len(output.Plan.Plans) != 2 {
		t.Errorf("Unexpected plan: %s", pretty.Sprint(output.Plan))
	}
	if output.Plan.TotalCost != 16.34 {
		t.Errorf("Expected total cost 16.34, got %f", output.Plan.TotalCost)
	}
	if output.PlanningTime == nil || *output.PlanningTime != 0.12 {
		t.Errorf("Expected planning time 0.12, got %v", output.PlanningTime)
	}
	if output.ExecutionTime != nil {
		t.Errorf("Expected no execution time, got %v", *output.ExecutionTime)
	}
}

var parseErrorTests = []string{
	``,
	`{}`,
	`[]`,
	`[{"Plan": {}}]`,
	`[{"Plan": {"Node Type": "Result"}}, {"Plan": {"Node Type": "Result"}}]`,
}

func TestParseErrors(t *testing.T) {
	for _, input := range parseErrorTests {
		_, err := explain.Parse([]byte(input))
		if err == nil {
			t.Errorf("Parse(%q): expected error", input)
		}
	}
}

func TestFingerprintIgnoresCosts(t *testing.T) {
	a := explain.PlanNode{
		NodeType: "Hash Join", JoinType: "Inner", TotalCost: 100,
		Plans: []explain.PlanNode{{NodeType: "Index Scan", IndexName: "a_idx", TotalCost: 10, PlanRows: 5}},
	}
	b := explain.PlanNode{
		NodeType: "Hash Join", JoinType: "Inner", TotalCost: 9000,
		Plans: []explain.PlanNode{{NodeType: "Index Scan", IndexName: "a_idx", TotalCost: 4000, PlanRows: 50000}},
	}

	if explain.Fingerprint(a) != explain.Fingerprint(b) {
		t.Errorf("Expected equal fingerprints for plans that only differ in cost")
	}
}

func TestFingerprintStructure(t *testing.T) {
	base := explain.PlanNode{
		NodeType: "Hash Join", JoinType: "Inner",
		Plans: []explain.PlanNode{{NodeType: "Index Scan", IndexName: "a_idx"}},
	}
	changes := []explain.PlanNode{
		{NodeType: "Merge Join", JoinType: "Inner", Plans: []explain.PlanNode{{NodeType: "Index Scan", IndexName: "a_idx"}}},
		{NodeType: "Hash Join", JoinType: "Left", Plans: []explain.PlanNode{{NodeType: "Index Scan", IndexName: "a_idx"}}},
		{NodeType: "Hash Join", JoinType: "Inner", Plans: []explain.PlanNode{{NodeType: "Index Scan", IndexName: "b_idx"}}},
		{NodeType: "Hash Join", JoinType: "Inner", Plans: []explain.PlanNode{{NodeType: "Seq Scan"}}},
		{NodeType: "Hash Join", JoinType: "Inner"},
	}

	baseHash := explain.Fingerprint(base)
	if len(baseHash) != 32 {
		t.Errorf("Expected hex encoded md5, got %q", baseHash)
	}
	for i, changed := range changes {
		if explain.Fingerprint(changed) == baseHash {
			t.Errorf("Change %d: expected a different fingerprint", i)
		}
	}
}

func TestFingerprintDistinguishesSiblingsFromChildren(t *testing.T) {
	siblings := explain.PlanNode{
		NodeType: "Hash Join", JoinType: "Inner",
		Plans: []explain.PlanNode{
			{NodeType: "Seq Scan"},
			{NodeType: "Hash", Plans: []explain.PlanNode{{NodeType: "Seq Scan"}}},
		},
	}
	nested := explain.PlanNode{
		NodeType: "Hash Join", JoinType: "Inner",
		Plans: []explain.PlanNode{
			{NodeType: "Seq Scan", Plans: []explain.PlanNode{{NodeType: "Hash"}, {NodeType: "Seq Scan"}}},
		},
	}
	if explain.Fingerprint(siblings) == explain.Fingerprint(nested) {
		t.Errorf("Expected sibling and nested layouts to have different fingerprints")
	}

	joinAsIndex := explain.PlanNode{NodeType: "Index Scan", IndexName: "Inner"}
	joinAsJoin := explain.PlanNode{NodeType: "Index Scan", JoinType: "Inner"}
	if explain.Fingerprint(joinAsIndex) == explain.Fingerprint(joinAsJoin) {
		t.Errorf("Expected join type and index name to be hashed as separate fields")
	}
}

var safeToExplainTests = []struct {
	query string
	safe  bool
}{
	{"SELECT * FROM users WHERE id = 1", true},
	{"UPDATE users SET name = 'x' WHERE id = $1", true},
	{"SELECT 1; DROP TABLE users", false},
	{"VACUUM users", false},
	{"ALTER ROLE app PASSWORD 'secret'", false},
	{"SELEC broken", false},
	{"/* pgtelemetry */ SELECT 1", false},
}

func TestIsSafeToExplain(t *testing.T) {
	for _, test := range safeToExplainTests {
		err := explain.IsSafeToExplain(test.query, "/* pgtelemetry */ ")
		if (err == nil) != test.safe {
			t.Errorf("IsSafeToExplain(%q): expected safe=%t, got error %v", test.query, test.safe, err)
		}
	}
}

func TestHasParameterRefs(t *testing.T) {
	if !explain.HasParameterRefs("SELECT * FROM t WHERE a = $1") {
		t.Errorf("Expected parameter reference to be detected")
	}
	if explain.HasParameterRefs("SELECT '$' FROM t WHERE a = 1") {
		t.Errorf("Expected no parameter reference")
	}
}
