// Package harness provides conformance testing for computation documents.
//
// # Scenario Format
//
// Scenarios are YAML files naming a CUE document, one computation in it,
// the shape that computation must have and the static checks it must pass
// or fail:
//
//	name: sum_total
//	description: "A plain federated sum passes secure aggregation"
//	spec: ../specs/aggregation.cue
//	computation: total
//	expect:
//	  type: "({int32}@CLIENTS -> int32@SERVER)"
//	  strategy: federated
//	  intrinsics: [federated_sum]
//	  node_count: 3
//	checks:
//	  - forbidden: [federated_reduce]
//	    pass: true
//	  - policy: ../policies/secure.yaml
//	    pass: true
//
// Paths are relative to the scenario file. Unknown fields are rejected.
//
// # Golden Files
//
// RunWithGolden snapshots the compiled computation as canonical JSON in
// testdata/golden/{name}.golden. The snapshot is byte-stable, so any
// change to the compiler, the IR encoding or the document shows up as a
// diff. Regenerate with:
//
//	go test ./internal/harness -update
package harness
