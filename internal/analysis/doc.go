// Package analysis provides read-only traversals over building-block trees
// and the static assertions built on them.
//
// Every traversal goes through Walk, which visits each node once in
// pre-order and threads the names in scope. Nothing here executes or
// changes a tree, so the functions are safe on shared computations.
package analysis
