// Package harness runs scripted conformance scenarios against the
// dispatcher and a seeded development backend.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: search_narrows
//	description: "A formula search narrows the species listing"
//	fixture: fixtures/basic.yaml
//	steps:
//	  - dispatch: GET_SPECIES
//	  - dispatch: GET_SPECIES
//	    payload: { formula: H2O }
//	  - parallel:
//	      - dispatch: POST_SUBMISSION
//	        payload: { smiles: CC }
//	      - dispatch: POST_SUBMISSION
//	        payload: { smiles: N }
//	  - fault: { path: /api/species/connectivity, query: formula=CH4, delay: 1h }
//	  - dispatch: GET_SPECIES
//	    payload: { formula: CH4 }
//	    async: true
//	  - clear_faults: true
//	assertions:
//	  - type: state
//	    slice: species
//	    expect: [{ formula: H2O }]
//	  - type: trace_contains
//	    op: GET_SPECIES
//	    payload: { formula: H2O }
//	    status: ok
//
// Payloads are encoded with ir.Encode, so a step is exactly what the CLI
// shell would dispatch.
//
// # Assertion Types
//
//   - trace_contains: an intent with the op, a payload superset and optionally an outcome status
//   - trace_order: the first intents of the listed ops appear in order
//   - trace_count: exactly N intents of the op
//   - state: a slice of the final snapshot matches expect, has count entries, or is empty
//   - alerts: exactly N authentication alerts were raised
//
// # Deterministic Runs
//
// Every run starts from a freshly seeded backend, an in-memory journal and
// a logical clock at zero. Flow tokens are "<name>-1", "<name>-2" and so on
// unless the scenario lists flow_tokens. Sequential steps therefore produce
// byte-identical traces, which RunWithGolden compares against
// testdata/golden/<name>.golden. Parallel blocks interleave freely and
// belong in scenarios without golden files.
package harness
