package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/graphite/internal/graph"
)

// ErrPassNotFound is returned by ReadPass for an unknown trigger id.
var ErrPassNotFound = errors.New("pass not found")

// ReadPass returns a stored pass with its executions (in execution order)
// and errors (in report order).
func (s *Store) ReadPass(ctx context.Context, triggerID string) (PassRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT trigger_id, seq, blueprint, blueprint_hash, trigger_node, trigger_name, payload, aborted, cause
		FROM passes
		WHERE trigger_id = ?
	`, triggerID)

	rec, err := scanPass(row)
	if errors.Is(err, sql.ErrNoRows) {
		return PassRecord{}, fmt.Errorf("%w: %s", ErrPassNotFound, triggerID)
	}
	if err != nil {
		return PassRecord{}, err
	}

	if rec.Executions, err = s.readExecutions(ctx, `WHERE trigger_id = ? ORDER BY position ASC`, triggerID); err != nil {
		return PassRecord{}, err
	}
	if rec.Errors, err = s.readErrors(ctx, triggerID); err != nil {
		return PassRecord{}, err
	}
	return rec, nil
}

// ListOptions filters ListPasses.
type ListOptions struct {
	// Blueprint restricts the result to passes of one blueprint.
	Blueprint string

	// Limit caps the number of passes returned (the most recent ones).
	// Zero means no limit.
	Limit int
}

// ListPasses returns stored passes without their executions, ordered by
// seq ASC, trigger_id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListPasses(ctx context.Context, opts ListOptions) ([]PassRecord, error) {
	query := `
		SELECT trigger_id, seq, blueprint, blueprint_hash, trigger_node, trigger_name, payload, aborted, cause
		FROM passes
		WHERE (? = '' OR blueprint = ?)
		ORDER BY seq DESC, trigger_id COLLATE BINARY DESC
	`
	args := []any{opts.Blueprint, opts.Blueprint}
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	passes := []PassRecord{}
	for rows.Next() {
		rec, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		passes = append(passes, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passes: %w", err)
	}

	// Newest first was only needed for LIMIT.
	for i, j := 0, len(passes)-1; i < j; i, j = i+1, j-1 {
		passes[i], passes[j] = passes[j], passes[i]
	}
	return passes, nil
}

// NodeExecutions returns every stored execution of the node called name,
// across passes, ordered by seq.
func (s *Store) NodeExecutions(ctx context.Context, name string) ([]ExecutionRecord, error) {
	return s.readExecutions(ctx, `WHERE node_name = ? ORDER BY seq ASC, trigger_id COLLATE BINARY ASC, position ASC`, name)
}

// MaxSeq returns the highest stored seq, or 0 for an empty store.
// Pass it to engine.NewClockAt to continue the sequence.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(
			COALESCE((SELECT MAX(seq) FROM passes), 0),
			COALESCE((SELECT MAX(seq) FROM executions), 0)
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query max seq: %w", err)
	}
	return seq, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPass(row scanner) (PassRecord, error) {
	var (
		rec     PassRecord
		trigger int64
	)
	err := row.Scan(
		&rec.TriggerID,
		&rec.Seq,
		&rec.Blueprint,
		&rec.BlueprintHash,
		&trigger,
		&rec.TriggerName,
		&rec.Payload,
		&rec.Aborted,
		&rec.Cause,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return PassRecord{}, err
	}
	if err != nil {
		return PassRecord{}, fmt.Errorf("scan pass: %w", err)
	}
	rec.TriggerNode = graph.NodeID(trigger)
	return rec, nil
}

func (s *Store) readExecutions(ctx context.Context, where string, arg any) ([]ExecutionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trigger_id, seq, node_id, node_name, input, output, produced, failed, reentry
		FROM executions
		`+where, arg)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	out := []ExecutionRecord{}
	for rows.Next() {
		var (
			ex   ExecutionRecord
			node int64
		)
		if err := rows.Scan(&ex.TriggerID, &ex.Seq, &node, &ex.NodeName, &ex.Input, &ex.Output,
			&ex.Produced, &ex.Failed, &ex.Reentry); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		ex.NodeID = graph.NodeID(node)
		if !ex.Produced {
			ex.Output = ""
		}
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return out, nil
}

func (s *Store) readErrors(ctx context.Context, triggerID string) ([]ErrorRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, phase, node_id, node_name, step, message
		FROM errors
		WHERE trigger_id = ?
		ORDER BY position ASC
	`, triggerID)
	if err != nil {
		return nil, fmt.Errorf("query errors: %w", err)
	}
	defer rows.Close()

	out := []ErrorRecord{}
	for rows.Next() {
		var (
			e    ErrorRecord
			node int64
		)
		if err := rows.Scan(&e.Code, &e.Phase, &node, &e.NodeName, &e.Step, &e.Message); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		e.NodeID = graph.NodeID(node)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate errors: %w", err)
	}
	return out, nil
}
