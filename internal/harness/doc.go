// Package harness provides scenario-driven conformance testing for the
// compile pipeline.
//
// The harness loads a scenario, feeds its scene revisions through the full
// pipeline (lower, assemble, load), renders probe frames, and validates
// assertions against the resulting event trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	fps: 30
//	revisions:
//	  - scenes:
//	      - id: intro
//	        name: Intro
//	        duration_frames: 100
//	        source: |
//	          scene: { ... }
//	    audio:
//	      url: track.mp3
//	      volume: 0.8
//	probes:
//	  - frame: 50
//	assertions:
//	  - type: event_count
//	    event: repair-requested
//	    count: 1
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - event_count: Verifies an event type appears exactly N times
//   - event_order: Verifies event types appear in the given order
//   - module: Verifies the assembled module's mode and total frames
//   - boundary: Verifies one scene's resolved timeline position
//   - frame: Verifies a probe's active scene, element kind, and fault flag
//   - unit_parity: Verifies the unit count equals the scene count
//
// # Deterministic Testing
//
// Scenario execution is fully deterministic: entry names derive from scene
// identity, offsets from durations, and the trace deliberately omits
// evaluator error text (which may vary across CUE releases). This keeps
// traces byte-identical across runs for golden file comparison.
package harness
