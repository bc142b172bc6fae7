// Package policy checks computations against declarative policies.
//
// A policy names forbidden intrinsics and may add Mangle Datalog rules. The
// computation is exported as facts, the prelude derives violation(Uri, Id)
// for every forbidden intrinsic, and user rules may derive more:
//
//	name: no-payloads-under-lambdas
//	rules: |
//	  violation("compiled_payload", Id) :-
//	    node(Id, _, /compiled_payload, _), node(L, _, /lambda, _), ancestor(L, Id).
//
// Besides node/4, node_type/2, local/3 and computation/2 the prelude
// provides reachable/1, ancestor/2 and uses_intrinsic/2.
package policy
