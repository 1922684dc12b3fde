package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/littleponywork/IPMES/internal/engine"
)

// Scenario defines a conformance test scenario: a pattern, a data graph,
// and what matching one against the other must report.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Pattern is the path to the pattern file (JSON, YAML or CUE).
	Pattern string `yaml:"pattern"`

	// Data is the path to a data graph CSV. Exactly one of Data and Rows
	// must be set.
	Data string `yaml:"data,omitempty"`

	// Rows is an inline data graph, one CSV row per entry.
	Rows []string `yaml:"rows,omitempty"`

	// WindowMS overrides the engine's time window, in milliseconds.
	WindowMS *int64 `yaml:"window_ms,omitempty"`

	// Joins lists the join strategies to run. Empty means all of them.
	Joins []engine.JoinStrategy `yaml:"joins,omitempty"`

	// Assertions validate the report and the stored state.
	// Supported types: match_contains, match_order, match_count, final_state
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run id.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// Assertion validates the report or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "match_contains": Check a full match with IDs was reported
	// - "match_order": Check Matches were reported in order
	// - "match_count": Check exactly Count full matches were reported
	// - "final_state": Query table and verify expected values
	Type string `yaml:"type"`

	// IDs are the data edge ids of a match, indexed by pattern edge id
	// (used by match_contains).
	IDs []int64 `yaml:"ids,omitempty"`

	// Start and End optionally pin the match's time span (used by match_contains).
	Start *int64 `yaml:"start,omitempty"`
	End   *int64 `yaml:"end,omitempty"`

	// Matches is the expected match order (used by match_order).
	Matches [][]int64 `yaml:"matches,omitempty"`

	// Count is the expected number of matches (used by match_count).
	Count int `yaml:"count,omitempty"`

	// Table is the store table name (used by final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (used by final_state).
	// All fields must match exactly.
	Where map[string]interface{} `yaml:"where,omitempty"`

	// Expect contains expected field values (used by final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertMatchContains = "match_contains"
	AssertMatchOrder    = "match_order"
	AssertMatchCount    = "match_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file, resolving the pattern
// and data paths relative to the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving pattern and data paths relative to basePath.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve paths BEFORE validation so existence checks see the real files
	scenario.Pattern = resolvePath(scenario.Pattern, basePath)
	scenario.Data = resolvePath(scenario.Data, basePath)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func resolvePath(path, basePath string) string {
	if path == "" || filepath.IsAbs(path) || basePath == "" {
		return path
	}
	return filepath.Join(basePath, path)
}

// strategies returns the join strategies the scenario runs with.
func (s *Scenario) strategies() []engine.JoinStrategy {
	if len(s.Joins) == 0 {
		return []engine.JoinStrategy{engine.JoinPriority, engine.JoinNaive}
	}
	return s.Joins
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Pattern == "" {
		return fmt.Errorf("pattern is required")
	}
	if _, err := os.Stat(s.Pattern); os.IsNotExist(err) {
		return fmt.Errorf("pattern file not found: %s", s.Pattern)
	}

	switch {
	case s.Data != "" && len(s.Rows) > 0:
		return fmt.Errorf("data and rows are mutually exclusive")
	case s.Data == "" && len(s.Rows) == 0:
		return fmt.Errorf("one of data or rows is required")
	case s.Data != "":
		if _, err := os.Stat(s.Data); os.IsNotExist(err) {
			return fmt.Errorf("data file not found: %s", s.Data)
		}
	}

	if s.WindowMS != nil && *s.WindowMS < 0 {
		return fmt.Errorf("window_ms must be non-negative")
	}

	for i, j := range s.Joins {
		if j != engine.JoinPriority && j != engine.JoinNaive {
			return fmt.Errorf("joins[%d]: unknown join strategy %q", i, j)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertMatchContains:
		if len(a.IDs) == 0 {
			return fmt.Errorf("assertions[%d]: ids is required for match_contains", index)
		}
	case AssertMatchOrder:
		if len(a.Matches) == 0 {
			return fmt.Errorf("assertions[%d]: matches list is required for match_order", index)
		}
	case AssertMatchCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for match_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
