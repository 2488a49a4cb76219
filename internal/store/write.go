package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRenderNotFound is returned when finishing a render that was never
// written.
var ErrRenderNotFound = errors.New("render not found")

// WriteRender inserts a render session in the open state.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteRender(ctx context.Context, r Render) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO renders (id, component, tag, started_at, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		r.ID,
		r.Component,
		r.Tag,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		string(StatusOpen),
	)
	if err != nil {
		return fmt.Errorf("write render: %w", err)
	}
	return nil
}

// FinishRender closes a render session with its final HTML. A non-empty
// errMsg marks the session failed.
func (s *Store) FinishRender(ctx context.Context, id, html, errMsg string) error {
	status := StatusDone
	if errMsg != "" {
		status = StatusFailed
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE renders SET status = ?, html = ?, error = ?
		WHERE id = ?
	`, string(status), html, errMsg, id)
	if err != nil {
		return fmt.Errorf("finish render: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish render: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish render %s: %w", id, ErrRenderNotFound)
	}
	return nil
}

// WritePatch inserts a patch record. Returns whether a new row was
// inserted; a patch with an existing (render_id, seq) is ignored.
//
// Note: The render referenced by RenderID must exist (foreign key constraint).
func (s *Store) WritePatch(ctx context.Context, p Patch) (inserted bool, err error) {
	return writePatch(ctx, s.db, p)
}

// WritePatches inserts patches in a single transaction.
func (s *Store) WritePatches(ctx context.Context, patches []Patch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write patches: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, p := range patches {
		if _, err := writePatch(ctx, tx, p); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write patches: commit: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writePatch(ctx context.Context, db execer, p Patch) (bool, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO patches
		(render_id, seq, op, directive, expr, path, value, value_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(render_id, seq) DO NOTHING
	`,
		p.RenderID,
		p.Seq,
		p.Op,
		p.Directive,
		p.Expr,
		p.Path,
		p.Value,
		p.ValueHash,
	)
	if err != nil {
		return false, fmt.Errorf("write patch %s/%d: %w", p.RenderID, p.Seq, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write patch %s/%d: %w", p.RenderID, p.Seq, err)
	}
	return n > 0, nil
}
