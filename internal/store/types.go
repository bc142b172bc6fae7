package store

import "github.com/roach88/fedcomp/internal/ir"

// Record is the catalog row of a stored computation.
type Record struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Strategy ir.Strategy `json:"strategy"`
	Type     string      `json:"type"`
	Nodes    int         `json:"node_count"`
	Seq      int64       `json:"seq"`
}

// Check is the stored outcome of one policy evaluation. Violations holds
// rendered violations such as "federated_sum at /0/0".
type Check struct {
	ID            int64    `json:"id"`
	ComputationID string   `json:"computation_id"`
	Policy        string   `json:"policy"`
	PolicyHash    string   `json:"policy_hash"`
	Violations    []string `json:"violations"`
	Seq           int64    `json:"seq"`
}

// Passed reports whether the check found no violations.
func (c Check) Passed() bool { return len(c.Violations) == 0 }
