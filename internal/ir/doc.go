// Package ir provides the building-block intermediate representation of
// traced computations.
//
// The node set is closed: Reference, Lambda, Call, Block, Selection, Struct,
// Intrinsic, CompiledPayload, Placement and Data. Nodes are built only
// through their constructors, which check that the payload is consistent
// with the types involved, and are immutable afterwards. Code that switches
// over node kinds panics on an unknown kind.
//
// ir imports only internal/types. Every other internal package builds on it.
//
// Key design constraints:
//   - Serialization goes through the sealed IRValue model and RFC 8785
//     canonical JSON; there are no floats and no nulls
//   - Struct elements and block locals keep their order on the wire
//   - Content-addressed IDs are domain separated (DomainComputation)
package ir
