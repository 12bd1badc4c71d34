package tokenbudget

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

const (
	DefaultBudget = 5000
	// SafetyMargin scales the proportional row suggestion down so the
	// retried result lands under the budget.
	SafetyMargin = 0.8

	ExceededMessage = "Result exceeds token budget"
)

// Report replaces a payload whose estimate exceeds the budget.
// RowsReturned and SuggestedLimit are null unless the payload was an array.
type Report struct {
	Error           string `json:"error"`
	Context         string `json:"context"`
	EstimatedTokens int    `json:"estimated_tokens"`
	TokenLimit      int    `json:"token_limit"`
	RowsReturned    *int   `json:"rows_returned"`
	SuggestedLimit  *int   `json:"suggested_limit"`
	Suggestion      string `json:"suggestion"`
}

type Enforcer struct {
	Budget    int
	Estimator Estimator
	// OnExceeded is called with the context label whenever a payload is replaced.
	OnExceeded func(context string, estimated int)
}

func NewEnforcer(budget int, estimator Estimator) *Enforcer {
	return &Enforcer{Budget: budget, Estimator: estimator}
}

// Enforce returns payload unchanged when it fits the budget and a
// pretty-printed Report otherwise.
func (e *Enforcer) Enforce(payload, context string) string {
	budget := e.budget()
	estimated := e.estimator().Estimate(payload)
	if estimated <= budget {
		return payload
	}
	if e.OnExceeded != nil {
		e.OnExceeded(context, estimated)
	}

	report := Report{
		Error:           ExceededMessage,
		Context:         context,
		EstimatedTokens: estimated,
		TokenLimit:      budget,
	}
	if size, ok := arrayLength(payload); ok {
		report.RowsReturned = &size
		if size > 0 {
			suggested := SuggestLimit(size, budget, estimated)
			report.SuggestedLimit = &suggested
		}
	}
	report.Suggestion = suggestionText(report.SuggestedLimit)

	encoded, err := MarshalIndent(report)
	if err != nil {
		return `{"error": "` + ExceededMessage + `"}`
	}
	return encoded
}

// SuggestLimit scales size by budget/estimated and the safety margin,
// never going below one row.
func SuggestLimit(size, budget, estimated int) int {
	if estimated <= 0 {
		return size
	}
	ratio := float64(budget) / float64(estimated)
	suggested := int(float64(size) * ratio * SafetyMargin)
	if suggested < 1 {
		return 1
	}
	return suggested
}

// MarshalIndent encodes value as two-space indented JSON without escaping
// HTML or non-ASCII characters.
func MarshalIndent(value any) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func (e *Enforcer) budget() int {
	if e.Budget <= 0 {
		return DefaultBudget
	}
	return e.Budget
}

func (e *Enforcer) estimator() Estimator {
	if e.Estimator == nil {
		return CharEstimator{CharsPerToken: DefaultCharsPerToken}
	}
	return e.Estimator
}

func arrayLength(payload string) (int, bool) {
	if !strings.HasPrefix(payload, "[") {
		return 0, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return 0, false
	}
	return len(items), true
}

func suggestionText(suggested *int) string {
	reduce := "  • Reduce the LIMIT value"
	if suggested != nil {
		reduce += " (try LIMIT " + strconv.Itoa(*suggested) + ")"
	}
	return strings.Join([]string{
		"The query result is too large. Please adjust your query:",
		reduce,
		"  • Filter rows with WHERE clauses to reduce result size",
		"  • Select only necessary columns instead of SELECT *",
		"  • Use aggregation (COUNT, SUM, AVG) instead of retrieving raw rows",
	}, "\n")
}
