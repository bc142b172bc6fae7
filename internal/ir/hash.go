package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix
// leaves room for a future encoding change.
const (
	DomainComputation = "fedcomp/computation/v1"
	DomainNode        = "fedcomp/node/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ComputationID returns the content address of c: the domain-separated
// hash of its canonical JSON. Structurally equal computations share an ID.
func ComputationID(c *Computation) (string, error) {
	data, err := MarshalComputation(c)
	if err != nil {
		return "", fmt.Errorf("ComputationID: %w", err)
	}
	return hashWithDomain(DomainComputation, data), nil
}

// NodeHash returns the content address of a single tree.
func NodeHash(b BuildingBlock) (string, error) {
	v, err := EncodeNode(b)
	if err != nil {
		return "", fmt.Errorf("NodeHash: %w", err)
	}
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("NodeHash: %w", err)
	}
	return hashWithDomain(DomainNode, data), nil
}

// MustComputationID is like ComputationID but panics on error.
// Use only in tests or when the computation is known to be valid.
func MustComputationID(c *Computation) string {
	id, err := ComputationID(c)
	if err != nil {
		panic(err)
	}
	return id
}
