// Package compiler turns CUE computation documents into IR computations.
//
// Each node is a struct with exactly one key naming its kind (reference,
// data, intrinsic, placement, struct, selection, call, lambda, block,
// payload, computation). Types are compact strings understood by
// types.Parse. Validate then checks the compiled tree against the rules of
// its strategy and reports every problem with its path.
package compiler
