package tokenbudget

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestCharEstimatorRoundsUp(t *testing.T) {
	estimator := CharEstimator{CharsPerToken: 3}
	cases := []struct {
		text string
		want int
	}{
		{text: "", want: 0},
		{text: "a", want: 1},
		{text: "abc", want: 1},
		{text: "abcd", want: 2},
		{text: "故障分析报告", want: 2},
	}
	for _, tc := range cases {
		if got := estimator.Estimate(tc.text); got != tc.want {
			t.Fatalf("Estimate(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestEnforceReturnsPayloadWithinBudget(t *testing.T) {
	enforcer := NewEnforcer(10, CharEstimator{CharsPerToken: 3})
	payload := `[{"a": 1}]`
	if got := enforcer.Enforce(payload, "query_parquet_files"); got != payload {
		t.Fatalf("Enforce() = %q, want unchanged payload", got)
	}
}

func TestEnforceReplacesOversizedArrayWithReport(t *testing.T) {
	rows := make([]map[string]any, 0, 200)
	for i := 0; i < 200; i++ {
		rows = append(rows, map[string]any{"id": i, "message": strings.Repeat("x", 40)})
	}
	payload, err := MarshalIndent(rows)
	if err != nil {
		t.Fatalf("MarshalIndent() error = %v", err)
	}

	var exceededContext string
	enforcer := NewEnforcer(500, CharEstimator{CharsPerToken: 3})
	enforcer.OnExceeded = func(context string, _ int) { exceededContext = context }

	got := enforcer.Enforce(payload, "query_parquet_files")
	var report Report
	if err := json.Unmarshal([]byte(got), &report); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if report.Error != ExceededMessage || report.Context != "query_parquet_files" {
		t.Fatalf("report = %#v", report)
	}
	if report.EstimatedTokens <= report.TokenLimit || report.TokenLimit != 500 {
		t.Fatalf("estimated = %d, limit = %d", report.EstimatedTokens, report.TokenLimit)
	}
	if report.RowsReturned == nil || *report.RowsReturned != 200 {
		t.Fatalf("rows_returned = %v", report.RowsReturned)
	}
	if report.SuggestedLimit == nil || *report.SuggestedLimit < 1 || *report.SuggestedLimit >= 200 {
		t.Fatalf("suggested_limit = %v", report.SuggestedLimit)
	}
	want := fmt.Sprintf("  • Reduce the LIMIT value (try LIMIT %d)", *report.SuggestedLimit)
	if !strings.Contains(report.Suggestion, want) {
		t.Fatalf("suggestion = %q", report.Suggestion)
	}
	if exceededContext != "query_parquet_files" {
		t.Fatalf("OnExceeded context = %q", exceededContext)
	}
	if !strings.Contains(got, "\n  \"context\"") {
		t.Fatalf("report is not indented: %q", got)
	}
}

func TestEnforceLeavesRowFieldsNullForObjects(t *testing.T) {
	enforcer := NewEnforcer(5, CharEstimator{CharsPerToken: 3})
	got := enforcer.Enforce(`{"file": "metrics.parquet", "row_count": 1000, "columns": []}`, "get_schema")
	if !strings.Contains(got, `"rows_returned": null`) || !strings.Contains(got, `"suggested_limit": null`) {
		t.Fatalf("Enforce() = %s", got)
	}
	if !strings.Contains(got, "  • Reduce the LIMIT value\\n") {
		t.Fatalf("suggestion should not include a limit hint: %s", got)
	}
}

func TestEnforceEmptyArrayHasNoSuggestedLimit(t *testing.T) {
	enforcer := NewEnforcer(1, EstimatorFunc(func(string) int { return 100 }))
	var report Report
	if err := json.Unmarshal([]byte(enforcer.Enforce("[]", "query_parquet_files")), &report); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if report.RowsReturned == nil || *report.RowsReturned != 0 {
		t.Fatalf("rows_returned = %v", report.RowsReturned)
	}
	if report.SuggestedLimit != nil {
		t.Fatalf("suggested_limit = %v, want nil", *report.SuggestedLimit)
	}
}

func TestSuggestLimitFloorsAtOne(t *testing.T) {
	if got := SuggestLimit(3, 1, 10000); got != 1 {
		t.Fatalf("SuggestLimit() = %d, want 1", got)
	}
	if got := SuggestLimit(100, 5000, 10000); got != 40 {
		t.Fatalf("SuggestLimit() = %d, want 40", got)
	}
}

func TestMarshalIndentKeepsNonASCII(t *testing.T) {
	got, err := MarshalIndent(map[string]string{"msg": "延迟 <p99>"})
	if err != nil {
		t.Fatalf("MarshalIndent() error = %v", err)
	}
	if got != "{\n  \"msg\": \"延迟 <p99>\"\n}" {
		t.Fatalf("MarshalIndent() = %q", got)
	}
}

func TestTiktokenEstimatorCountsTokens(t *testing.T) {
	estimator, err := NewTiktokenEstimator("")
	if err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}
	if got := estimator.Estimate("hello world"); got != 2 {
		t.Fatalf("Estimate() = %d, want 2", got)
	}
}
