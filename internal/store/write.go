package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/fedcomp/internal/analysis"
	"github.com/roach88/fedcomp/internal/ir"
)

// WriteComputation stores c under its ComputationID together with the
// distinct intrinsic URIs its body reaches.
//
// Writes are idempotent: storing a structurally equal computation again
// returns the existing id with inserted=false and keeps the original seq.
// New rows take the next logical seq.
func (s *Store) WriteComputation(ctx context.Context, c *ir.Computation) (id string, inserted bool, err error) {
	id, err = ir.ComputationID(c)
	if err != nil {
		return "", false, fmt.Errorf("write computation: %w", err)
	}
	data, err := ir.MarshalComputation(c)
	if err != nil {
		return "", false, fmt.Errorf("write computation: %w", err)
	}
	uris := analysis.CollectIntrinsicURIs(c.Body())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("write computation: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// The WHERE clause disambiguates ON CONFLICT after INSERT ... SELECT.
	result, err := tx.ExecContext(ctx, `
		INSERT INTO computations
		(id, name, strategy, type, node_count, ir, seq)
		SELECT ?, ?, ?, ?, ?, ?, COALESCE(MAX(seq), 0) + 1 FROM computations WHERE true
		ON CONFLICT(id) DO NOTHING
	`,
		id,
		c.Name(),
		string(c.Strategy()),
		c.Type().String(),
		ir.Size(c.Body()),
		string(data),
	)
	if err != nil {
		return "", false, fmt.Errorf("write computation: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("write computation: rows affected: %w", err)
	}
	inserted = rowsAffected > 0

	if inserted {
		for _, uri := range uris {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO computation_intrinsics (computation_id, uri)
				VALUES (?, ?)
				ON CONFLICT DO NOTHING
			`, id, uri)
			if err != nil {
				return "", false, fmt.Errorf("write computation: index %q: %w", uri, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("write computation: commit: %w", err)
	}

	Logger().Debug("computation stored",
		zap.String("id", id),
		zap.String("name", c.Name()),
		zap.Bool("inserted", inserted),
		zap.Strings("intrinsics", uris))
	return id, inserted, nil
}

// WriteCheck records the outcome of checking a stored computation against
// a policy. Returns the check ID and whether a new record was inserted.
//
// Uses ON CONFLICT(computation_id, policy_hash) DO NOTHING: re-checking the
// same computation with an unchanged policy returns the existing ID and
// inserted=false.
//
// Note: The computation referenced by ComputationID must exist (foreign key constraint).
func (s *Store) WriteCheck(ctx context.Context, check Check) (id int64, inserted bool, err error) {
	violationsJSON, err := marshalViolations(check.Violations)
	if err != nil {
		return 0, false, fmt.Errorf("write check: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("write check: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO policy_checks
		(computation_id, policy, policy_hash, violations, seq)
		SELECT ?, ?, ?, ?, COALESCE(MAX(seq), 0) + 1 FROM policy_checks WHERE true
		ON CONFLICT(computation_id, policy_hash) DO NOTHING
	`,
		check.ComputationID,
		check.Policy,
		check.PolicyHash,
		violationsJSON,
	)
	if err != nil {
		return 0, false, fmt.Errorf("write check: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("write check: rows affected: %w", err)
	}

	if rowsAffected > 0 {
		id, err = result.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("write check: last insert id: %w", err)
		}
		inserted = true
	} else {
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM policy_checks
			WHERE computation_id = ? AND policy_hash = ?
		`, check.ComputationID, check.PolicyHash).Scan(&id)
		if err != nil {
			return 0, false, fmt.Errorf("write check: select existing: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("write check: commit: %w", err)
	}

	return id, inserted, nil
}
