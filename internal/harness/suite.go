package harness

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// SuiteOptions controls RunSuite.
type SuiteOptions struct {
	// Filter is a glob matched against scenario file names without extension.
	Filter string
	// Update rewrites golden files instead of comparing against them.
	Update bool
}

// SuiteResult summarizes a suite run. Each scenario counts once; it passes
// only if every join strategy passes.
type SuiteResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Total     int              `json:"total"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

func (r *ScenarioResult) fail(format string, args ...any) {
	r.Pass = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// FindScenarios lists the YAML scenario files under dir, skipping golden
// directories. filter, if set, is a glob matched against file names
// without extension.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(d.Name(), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// RunSuite loads and runs every scenario under dir. Scenarios with a golden
// file must also match it under every join strategy.
func RunSuite(dir string, opts SuiteOptions) (*SuiteResult, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("scenarios directory: %w", err)
	}

	files, err := FindScenarios(dir, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find scenarios: %w", err)
	}

	result := &SuiteResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		sr := runScenarioFile(file, opts)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
	}
	return result, nil
}

func runScenarioFile(file string, opts SuiteOptions) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), Path: file, Pass: true}

	scenario, err := LoadScenario(file)
	if err != nil {
		sr.fail("failed to load scenario: %v", err)
		return sr
	}
	sr.Name = scenario.Name

	results, err := RunAll(scenario)
	if err != nil {
		sr.fail("execution failed: %v", err)
		return sr
	}

	goldenPath := GoldenPath(file, scenario.Name)
	for _, r := range results {
		for _, e := range r.Errors {
			sr.fail("[%s] %s", r.Join, e)
		}

		data, err := Snapshot(scenario.Name, r)
		if err != nil {
			sr.fail("[%s] %v", r.Join, err)
			continue
		}

		if opts.Update {
			if err := UpdateGolden(goldenPath, data); err != nil {
				sr.fail("[%s] %v", r.Join, err)
			}
			continue
		}

		same, err := CompareGolden(goldenPath, data)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// No golden file - assertions only
		case err != nil:
			sr.fail("[%s] golden comparison failed: %v", r.Join, err)
		case !same:
			sr.fail("[%s] report does not match golden file (run with --update to regenerate)", r.Join)
		}
	}
	return sr
}
