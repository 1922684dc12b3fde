package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/littleponywork/IPMES/internal/match"
)

// ReportSnapshot captures the join-independent part of a run report. Every
// join strategy must produce the same snapshot for a scenario.
type ReportSnapshot struct {
	ScenarioName  string            `json:"scenario_name"`
	NumResults    int               `json:"num_results"`
	TriggerCounts [][]int           `json:"trigger_counts"`
	UsageCounts   []int             `json:"usage_counts"`
	Matches       []match.FullMatch `json:"matches"`
}

// Snapshot serializes the result's report for golden comparison: indented
// JSON with a trailing newline.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := ReportSnapshot{
		ScenarioName:  scenarioName,
		NumResults:    result.Report.NumResults,
		TriggerCounts: result.Report.TriggerCounts,
		UsageCounts:   result.Report.UsageCounts,
		Matches:       result.Report.MatchResults,
	}
	if snapshot.Matches == nil {
		snapshot.Matches = []match.FullMatch{}
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario under each of its join strategies and
// compares every report against one golden file,
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if a report doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	results, err := RunAll(scenario)
	if err != nil {
		return err
	}

	for _, result := range results {
		if err := AssertGolden(t, scenario.Name, result); err != nil {
			return err
		}
	}
	return nil
}

// AssertGolden compares the given result's report against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}

// GoldenPath returns the golden file for a scenario file: golden/{name}.golden
// next to it.
func GoldenPath(scenarioFile, scenarioName string) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", scenarioName+".golden")
}

// CompareGolden reports whether data equals the golden file at path. A
// missing golden file is reported as os.ErrNotExist.
func CompareGolden(path string, data []byte) (bool, error) {
	golden, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return bytes.Equal(golden, data), nil
}

// UpdateGolden writes data as the golden file at path.
func UpdateGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}
