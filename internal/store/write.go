package store

import (
	"context"
	"fmt"
)

// WritePass stores a pass with its executions and errors in one
// transaction. Uses ON CONFLICT(trigger_id) DO NOTHING for idempotency:
// writing the same pass twice is silently ignored.
func (s *Store) WritePass(ctx context.Context, rec PassRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write pass: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO passes
		(trigger_id, seq, blueprint, blueprint_hash, trigger_node, trigger_name, payload, aborted, cause)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(trigger_id) DO NOTHING
	`,
		rec.TriggerID,
		rec.Seq,
		rec.Blueprint,
		rec.BlueprintHash,
		int64(rec.TriggerNode),
		rec.TriggerName,
		rec.Payload,
		rec.Aborted,
		rec.Cause,
	)
	if err != nil {
		return fmt.Errorf("write pass: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}

	for i, ex := range rec.Executions {
		output := ex.Output
		if output == "" {
			output = "null"
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO executions
			(trigger_id, position, seq, node_id, node_name, input, output, produced, failed, reentry)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			rec.TriggerID,
			i,
			ex.Seq,
			int64(ex.NodeID),
			ex.NodeName,
			ex.Input,
			output,
			ex.Produced,
			ex.Failed,
			ex.Reentry,
		)
		if err != nil {
			return fmt.Errorf("write pass: execution %d: %w", i, err)
		}
	}

	for i, e := range rec.Errors {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO errors
			(trigger_id, position, code, phase, node_id, node_name, step, message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			rec.TriggerID,
			i,
			e.Code,
			e.Phase,
			int64(e.NodeID),
			e.NodeName,
			e.Step,
			e.Message,
		)
		if err != nil {
			return fmt.Errorf("write pass: error %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write pass: commit: %w", err)
	}
	return nil
}
