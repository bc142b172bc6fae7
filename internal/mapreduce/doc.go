// Package mapreduce validates the canonical form of a round of federated
// processing: nine local computations that a MapReduce-like backend can run
// without understanding federated intrinsics.
//
// A round proceeds as
//
//	client_input := broadcast(prepare(state))
//	updates, client_out := map(work, <data, client_input>)
//	aggregate := aggregate(updates, zero, accumulate, merge, report)
//	state, server_out := update(<state, <aggregate, secure part>>)
//
// with initialize producing the first state and bitwidth sizing secure sums.
package mapreduce
