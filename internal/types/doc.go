// Package types provides the computation type system consumed by the IR.
//
// The grammar is closed: Tensor, Sequence, Struct, Function, Placement and
// Federated. Types are plain immutable values; nothing in this package
// mutates a type after construction.
//
// Two operations act as the oracle for the rest of the module:
//   - Equal: structural equality, recursive over the grammar
//   - IsAssignable: whether a value of one type may be bound where another is expected
//
// The compact notation produced by String and accepted by Parse:
//
//	int32              scalar tensor
//	float32[2,?]       tensor with one unknown dimension
//	int32[*]           tensor of unknown rank
//	int32*             sequence of int32
//	<a=int32,bool>     struct, optionally named fields
//	(int32 -> bool)    function; ( -> int32) has no parameter
//	placement          placement literal type
//	int32@SERVER       federated, all-equal
//	{int32}@CLIENTS    federated, not all-equal
package types
