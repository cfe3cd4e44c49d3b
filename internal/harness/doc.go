// Package harness replays navigation scenarios against a fully assembled
// application and checks the resulting trace and final state.
//
// Every scenario runs against fresh in-memory storage with sequential
// navigation ids, so a trace is reproducible byte for byte and can be
// compared against a golden file.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	location: https://someone.github.io/ueah/
//	hosting: { domain_suffix: github.io, base_path: /ueah }
//	tier: fallback
//	setup:
//	  - action: profile_set
//	    args: { field: name, value: Ada }
//	flow:
//	  - invoke: navigate
//	    args: { path: /resources/8-10 }
//	    expect: { view: resources-age }
//	  - invoke: click
//	    args: { tag: a, attrs: { href: /ueah/tests, data-link: "" } }
//	    expect: { handled: true, view: tests }
//	assertions:
//	  - type: trace_contains
//	    action: click
//	  - type: final_state
//	    table: favourites
//	    expect: { count: 0 }
//
// The application renders the initial location before setup runs. Setup
// steps are not traced.
//
// # Actions
//
//   - navigate: programmatic navigation to args.path
//   - click: a click on an element built from args.tag and args.attrs,
//     optionally nested under args.parent; args.ctrl, meta, shift, alt and
//     button set modifiers
//   - back, forward: history moves
//   - refresh: re-render the current location
//   - import: a sync document from args.document (an object) or args.text,
//     in args.mode
//   - export: a sync export
//   - profile_set, profile_remove: profile field edits
//
// # Assertion Types
//
//   - trace_contains: an action appears in the trace with matching args
//   - trace_order: actions appear in the given order
//   - trace_count: an action appears exactly N times
//   - final_state: page, location, favourites or profile state matches
package harness
