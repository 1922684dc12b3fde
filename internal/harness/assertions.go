package harness

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/littleponywork/IPMES/internal/match"
	"github.com/littleponywork/IPMES/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
// This prevents SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string            // Assertion type for categorization
	Expected string            // Human-readable expected outcome
	Actual   string            // Human-readable actual outcome
	Matches  []match.FullMatch // Reported matches for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Matches) > 0 {
		fmt.Fprintf(&buf, "\nReported matches:\n")
		for i, m := range e.Matches {
			fmt.Fprintf(&buf, "  [%d] %d-%d %s\n", i+1, m.StartTime, m.EndTime, m)
		}
	}

	return buf.String()
}

// findMatch returns the index of the match with data edge ids, or -1.
func findMatch(matches []match.FullMatch, ids []int64) int {
	return slices.IndexFunc(matches, func(m match.FullMatch) bool {
		return slices.Equal(m.DataIDs, ids)
	})
}

// assertMatchContains checks that a full match with the given ids was
// reported, and that its time span agrees with Start and End when set.
func assertMatchContains(matches []match.FullMatch, assertion Assertion) error {
	want := match.FullMatch{DataIDs: assertion.IDs}
	i := findMatch(matches, assertion.IDs)
	if i < 0 {
		return &AssertionError{
			Type:     AssertMatchContains,
			Expected: fmt.Sprintf("match %s", want),
			Actual:   "not reported",
			Matches:  matches,
		}
	}

	got := matches[i]
	if (assertion.Start != nil && *assertion.Start != got.StartTime) ||
		(assertion.End != nil && *assertion.End != got.EndTime) {
		return &AssertionError{
			Type:     AssertMatchContains,
			Expected: fmt.Sprintf("match %s spanning %s-%s", want, optional(assertion.Start), optional(assertion.End)),
			Actual:   fmt.Sprintf("spans %d-%d", got.StartTime, got.EndTime),
			Matches:  matches,
		}
	}
	return nil
}

func optional(v *int64) string {
	if v == nil {
		return "*"
	}
	return fmt.Sprint(*v)
}

// assertMatchOrder checks that the listed matches were all reported, in
// order. Other matches may be reported in between.
func assertMatchOrder(matches []match.FullMatch, assertion Assertion) error {
	prev, prevPos := match.FullMatch{}, -1
	for _, ids := range assertion.Matches {
		cur := match.FullMatch{DataIDs: ids}
		pos := findMatch(matches, ids)
		if pos < 0 {
			return &AssertionError{
				Type:     AssertMatchOrder,
				Expected: fmt.Sprintf("all matches present: %v", assertion.Matches),
				Actual:   fmt.Sprintf("missing match: %s", cur),
				Matches:  matches,
			}
		}
		if pos <= prevPos {
			return &AssertionError{
				Type:     AssertMatchOrder,
				Expected: fmt.Sprintf("matches in order: %v", assertion.Matches),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, prevPos+1, cur, pos+1),
				Matches: matches,
			}
		}
		prev, prevPos = cur, pos
	}
	return nil
}

// assertMatchCount checks that exactly Count full matches were reported.
func assertMatchCount(matches []match.FullMatch, assertion Assertion) error {
	if len(matches) != assertion.Count {
		return &AssertionError{
			Type:     AssertMatchCount,
			Expected: fmt.Sprintf("%d matches", assertion.Count),
			Actual:   fmt.Sprintf("%d matches", len(matches)),
			Matches:  matches,
		}
	}
	return nil
}

// assertFinalState checks if the store table contains expected values.
// Queries the table with parameterized SQL and validates expected values
// using subset semantics.
//
// Security: Table and column names are validated against a whitelist pattern
// to prevent SQL injection via identifier interpolation.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	if assertion.Table == "" {
		return fmt.Errorf("final_state assertion requires table name")
	}

	// Identifiers can't be parameterized
	if !validIdentifier.MatchString(assertion.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", assertion.Table, validIdentifier.String())
	}

	whereSQL, whereArgs, err := buildWhereClause(assertion.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT * FROM %s", assertion.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	rows, err := st.Query(ctx, query, whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "row not found",
		}
	}

	values := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := rows.Scan(valuePtrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	// Multiple matching rows would make the assertion ambiguous
	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actualRow := make(map[string]interface{})
	for i, col := range columns {
		actualRow[col] = values[i]
	}

	// Subset semantics - only check fields in Expect. Sorted for stable errors.
	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expectedValue := assertion.Expect[key]
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}

		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}

	return nil
}

// buildWhereClause constructs parameterized WHERE clause from assertion.Where.
// Returns SQL fragment, arguments slice, and error. Keys are sorted for determinism.
func buildWhereClause(where map[string]interface{}) (string, []interface{}, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys))

	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, toSQLValue(where[key]))
	}

	return strings.Join(clauses, " AND "), args, nil
}

// toSQLValue converts a YAML-decoded value to a SQL-compatible value.
func toSQLValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string, int, int64, bool:
		return val
	case float64:
		if val == float64(int64(val)) {
			return int64(val)
		}
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]interface{}) string {
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

// stateValuesEqual compares expected and actual values from store tables.
// Handles type coercion for SQLite values which may be returned as different types.
func stateValuesEqual(expected, actual interface{}) bool {
	if expected == nil && actual == nil {
		return true
	}
	if expected == nil || actual == nil {
		return false
	}

	// TEXT columns may come back as []byte
	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}

	switch exp := expected.(type) {
	case string:
		if actualStr, ok := actual.(string); ok {
			return exp == actualStr
		}
		return false
	case int:
		if actualInt, ok := actual.(int64); ok {
			return int64(exp) == actualInt
		}
		if actualInt, ok := actual.(int); ok {
			return exp == actualInt
		}
		return false
	case int64:
		if actualInt, ok := actual.(int64); ok {
			return exp == actualInt
		}
		return false
	case bool:
		if actualBool, ok := actual.(bool); ok {
			return exp == actualBool
		}
		// SQLite stores booleans as integers
		if actualInt, ok := actual.(int64); ok {
			return exp == (actualInt != 0)
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string
	matches := result.Report.MatchResults

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertMatchContains:
			err = assertMatchContains(matches, assertion)
		case AssertMatchOrder:
			err = assertMatchOrder(matches, assertion)
		case AssertMatchCount:
			err = assertMatchCount(matches, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
