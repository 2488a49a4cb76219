package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const renderColumns = `seq, id, component, tag, started_at, status, html, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanRender(row scanner) (Render, error) {
	var (
		r       Render
		started string
		status  string
	)
	if err := row.Scan(&r.Seq, &r.ID, &r.Component, &r.Tag, &started, &status, &r.HTML, &r.Error); err != nil {
		return Render{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return Render{}, fmt.Errorf("render %s: started_at: %w", r.ID, err)
	}
	r.StartedAt = t
	r.Status = RenderStatus(status)
	return r, nil
}

// ReadRender retrieves a single render by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRender(ctx context.Context, id string) (Render, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+renderColumns+` FROM renders WHERE id = ?`, id)
	return scanRender(row)
}

// ReadRenders returns renders in insertion order, optionally filtered by
// component name. An empty component returns every render.
//
// Returns an empty slice (not nil) if no records exist.
func (s *Store) ReadRenders(ctx context.Context, component string) ([]Render, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if component == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+renderColumns+` FROM renders
			ORDER BY seq ASC, id COLLATE BINARY ASC
		`)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+renderColumns+` FROM renders
			WHERE component = ?
			ORDER BY seq ASC, id COLLATE BINARY ASC
		`, component)
	}
	if err != nil {
		return nil, fmt.Errorf("query renders: %w", err)
	}
	defer rows.Close()

	renders := []Render{}
	for rows.Next() {
		r, err := scanRender(rows)
		if err != nil {
			return nil, fmt.Errorf("scan render: %w", err)
		}
		renders = append(renders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate renders: %w", err)
	}
	return renders, nil
}

// ReadPatches returns the patches of a render in seq order.
//
// Returns an empty slice (not nil) if no records exist.
func (s *Store) ReadPatches(ctx context.Context, renderID string) ([]Patch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT render_id, seq, op, directive, expr, path, value, value_hash
		FROM patches
		WHERE render_id = ?
		ORDER BY seq ASC
	`, renderID)
	if err != nil {
		return nil, fmt.Errorf("query patches: %w", err)
	}
	defer rows.Close()

	patches := []Patch{}
	for rows.Next() {
		var p Patch
		if err := rows.Scan(&p.RenderID, &p.Seq, &p.Op, &p.Directive, &p.Expr, &p.Path, &p.Value, &p.ValueHash); err != nil {
			return nil, fmt.Errorf("scan patch: %w", err)
		}
		patches = append(patches, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patches: %w", err)
	}
	return patches, nil
}

// CountPatchesByOp returns how many patches of each op a render recorded.
func (s *Store) CountPatchesByOp(ctx context.Context, renderID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT op, COUNT(*) FROM patches
		WHERE render_id = ?
		GROUP BY op
		ORDER BY op COLLATE BINARY ASC
	`, renderID)
	if err != nil {
		return nil, fmt.Errorf("count patches: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			op string
			n  int
		)
		if err := rows.Scan(&op, &n); err != nil {
			return nil, fmt.Errorf("scan patch count: %w", err)
		}
		counts[op] = n
	}
	return counts, rows.Err()
}
