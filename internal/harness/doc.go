// Package harness provides conformance testing for IPMES patterns.
//
// The harness loads a pattern and a data graph, runs the matching engine
// under each join strategy, and checks the report and the stored matches
// against the scenario's assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	pattern: patterns/fork_exec.json
//	window_ms: 1000
//	joins: [priority, naive]
//	rows:
//	  - "0,0,fork,10,1,2"
//	  - "0.1,0.1,execve,11,2,3"
//	assertions:
//	  - type: match_contains
//	    ids: [10, 11]
//	  - type: match_count
//	    count: 1
//	  - type: final_state
//	    table: runs
//	    expect: { num_results: 1 }
//
// The data graph is given inline as rows or as a CSV file with data:.
// Paths are relative to the scenario file. Without joins:, every join
// strategy runs; without window_ms:, the engine default applies.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - match_contains: A full match with the given data edge ids was reported
//   - match_order: The listed matches were reported in this order
//   - match_count: Exactly N full matches were reported
//   - final_state: Queries a store table and verifies expected values
//
// # Deterministic Testing
//
// Every run uses a fixed run id and a fresh in-memory SQLite database, so
// the same scenario produces the same report and the same stored rows. The
// report is compared against testdata/golden/{name}.golden; every join
// strategy must produce the same snapshot.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/fork_exec.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	results, err := harness.RunAll(scenario)
//	for _, r := range results {
//	    if !r.Pass {
//	        log.Println(r.Join, r.Errors)
//	    }
//	}
package harness
