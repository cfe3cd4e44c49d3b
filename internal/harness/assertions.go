package harness

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/ueah/internal/canonical"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v -> %v\n", event.Seq, event.Action, event.Args, event.Result)
		}
	}
	return buf.String()
}

// assertTraceContains checks for a step with the given action whose args
// contain the expected ones.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Action == assertion.Action && len(subsetMismatches(event.Args, assertion.Args)) == 0 {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s with args %v", assertion.Action, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that actions first appear in the given order.
// Intervening steps are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Action]; !seen {
			positions[event.Action] = i + 1
		}
	}

	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Actions); i++ {
		prev, curr := assertion.Actions[i-1], assertion.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Action == assertion.Action {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks a state table. For favourites with a where
// clause, the single item with the given key is checked instead of the
// table summary.
func assertFinalState(state map[string]any, assertion Assertion) error {
	table, ok := state[assertion.Table].(map[string]any)
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("table %s", assertion.Table),
			Actual:   "table not captured",
		}
	}

	target := table
	if len(assertion.Where) > 0 {
		row, err := selectRow(table, assertion)
		if err != nil {
			return err
		}
		target = row
	}

	if diffs := subsetMismatches(target, assertion.Expect); len(diffs) > 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s where %s matches %v", assertion.Table, formatWhereClause(assertion.Where), assertion.Expect),
			Actual:   strings.Join(diffs, "; "),
		}
	}
	return nil
}

func selectRow(table map[string]any, assertion Assertion) (map[string]any, error) {
	items, _ := table["items"].([]any)
	var matches []map[string]any
	for _, it := range items {
		row, ok := it.(map[string]any)
		if ok && len(subsetMismatches(row, assertion.Where)) == 0 {
			matches = append(matches, row)
		}
	}

	whereDesc := formatWhereClause(assertion.Where)
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, whereDesc),
			Actual:   "row not found",
		}
	default:
		return nil, &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, whereDesc),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}
}

// formatWhereClause creates a human-readable description of where
// conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// matchExpect compares a step result against its expect clause.
func matchExpect(result, expect map[string]any) []string {
	return subsetMismatches(result, expect)
}

// subsetMismatches reports every expected key that is missing from actual
// or holds a different value. Extra keys in actual are ignored.
func subsetMismatches(actual, expected map[string]any) []string {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var diffs []string
	for _, key := range keys {
		got, exists := actual[key]
		if !exists {
			diffs = append(diffs, fmt.Sprintf("%s missing", key))
			continue
		}
		if !valuesEqual(got, expected[key]) {
			diffs = append(diffs, fmt.Sprintf("%s = %v, want %v", key, got, expected[key]))
		}
	}
	return diffs
}

// valuesEqual compares through canonical JSON so that YAML integers,
// decoded JSON numbers and floats with the same value are equal.
func valuesEqual(actual, expected any) bool {
	a, err := canonical.Marshal(actual)
	if err != nil {
		return false
	}
	e, err := canonical.Marshal(expected)
	if err != nil {
		return false
	}
	return bytes.Equal(a, e)
}

// EvaluateAssertions evaluates every assertion and returns the failure
// messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.State, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
