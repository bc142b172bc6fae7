package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/fedcomp/internal/ir"
)

// ReadComputation decodes the stored computation with the given id and
// checks that it still hashes to id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadComputation(ctx context.Context, id string) (*ir.Computation, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT ir FROM computations WHERE id = ?`, id).Scan(&data)
	if err != nil {
		return nil, err
	}
	c, err := ir.UnmarshalComputation([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("read computation %s: %w", id, err)
	}
	got, err := ir.ComputationID(c)
	if err != nil {
		return nil, fmt.Errorf("read computation %s: %w", id, err)
	}
	if got != id {
		return nil, fmt.Errorf("read computation %s: content hashes to %s", id, got)
	}
	return c, nil
}

// ReadRecord returns the catalog row for id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRecord(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, strategy, type, node_count, seq
		FROM computations
		WHERE id = ?
	`, id)
	var r Record
	var strategy string
	if err := row.Scan(&r.ID, &r.Name, &strategy, &r.Type, &r.Nodes, &r.Seq); err != nil {
		return Record{}, err
	}
	r.Strategy = ir.Strategy(strategy)
	return r, nil
}

// ListComputations returns every stored computation.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the store is empty.
func (s *Store) ListComputations(ctx context.Context) ([]Record, error) {
	return s.queryRecords(ctx, "list computations", `
		SELECT id, name, strategy, type, node_count, seq
		FROM computations
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// FindByName returns the stored computations with the given name, oldest
// first.
func (s *Store) FindByName(ctx context.Context, name string) ([]Record, error) {
	return s.queryRecords(ctx, "find by name", `
		SELECT id, name, strategy, type, node_count, seq
		FROM computations
		WHERE name = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, name)
}

// FindByIntrinsic returns the stored computations whose body reaches uri.
func (s *Store) FindByIntrinsic(ctx context.Context, uri string) ([]Record, error) {
	return s.queryRecords(ctx, "find by intrinsic", `
		SELECT c.id, c.name, c.strategy, c.type, c.node_count, c.seq
		FROM computations c
		JOIN computation_intrinsics ci ON ci.computation_id = c.id
		WHERE ci.uri = ?
		ORDER BY c.seq ASC, c.id COLLATE BINARY ASC
	`, uri)
}

func (s *Store) queryRecords(ctx context.Context, op, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		var strategy string
		if err := rows.Scan(&r.ID, &r.Name, &strategy, &r.Type, &r.Nodes, &r.Seq); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		r.Strategy = ir.Strategy(strategy)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return records, nil
}

// ReadIntrinsics returns the indexed intrinsic URIs of a computation in
// binary order.
func (s *Store) ReadIntrinsics(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uri FROM computation_intrinsics
		WHERE computation_id = ?
		ORDER BY uri COLLATE BINARY ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("read intrinsics: %w", err)
	}
	defer rows.Close()

	uris := []string{}
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, fmt.Errorf("read intrinsics: scan: %w", err)
		}
		uris = append(uris, uri)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read intrinsics: iterate: %w", err)
	}
	return uris, nil
}

// ReadChecks returns the policy checks recorded for a computation, in the
// order they were written.
func (s *Store) ReadChecks(ctx context.Context, computationID string) ([]Check, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, computation_id, policy, policy_hash, violations, seq
		FROM policy_checks
		WHERE computation_id = ?
		ORDER BY seq ASC, id ASC
	`, computationID)
	if err != nil {
		return nil, fmt.Errorf("read checks: %w", err)
	}
	defer rows.Close()

	checks := []Check{}
	for rows.Next() {
		var c Check
		var violations string
		if err := rows.Scan(&c.ID, &c.ComputationID, &c.Policy, &c.PolicyHash, &violations, &c.Seq); err != nil {
			return nil, fmt.Errorf("read checks: scan: %w", err)
		}
		if c.Violations, err = unmarshalViolations(violations); err != nil {
			return nil, fmt.Errorf("read checks: %w", err)
		}
		checks = append(checks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read checks: iterate: %w", err)
	}
	return checks, nil
}

// GetLastSeq returns the highest computation seq, or 0 for an empty store.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM computations`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq.Int64, nil
}
