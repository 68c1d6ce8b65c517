package guide

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/relocate/dbopen"
	"github.com/hazyhaar/relocate/idgen"
)

// Store persists guides in SQLite.
type Store struct {
	DB  *sql.DB
	now func() time.Time
}

// OpenStore opens (or creates) the guide database at path.
func OpenStore(path string, opts ...dbopen.Option) (*Store, error) {
	opts = append([]dbopen.Option{dbopen.WithMkdirAll(), dbopen.WithSchema(Schema)}, opts...)
	db, err := dbopen.Open(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("guide: open store: %w", err)
	}
	return NewStore(db), nil
}

// NewStore wraps an open database. The schema must already be applied.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, now: time.Now}
}

// Close closes the database.
func (s *Store) Close() error { return s.DB.Close() }

// Save inserts g, or replaces every field and step of the guide with the
// same ID. Missing guide IDs are generated. Step IDs are kept when replacing
// a guide and regenerated when inserting one or when another guide owns
// them. g is updated in place only when the save commits.
func (s *Store) Save(ctx context.Context, g *Guide) error {
	if err := g.normalize(); err != nil {
		return err
	}
	now := s.now().UnixMilli()
	id := g.ID
	if id == "" {
		id = idgen.Guide()
	}
	stepIDs := make([]string, len(g.Steps))
	var created int64

	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT created_at FROM guides WHERE id = ?`, id).Scan(&created)
		insert := errors.Is(err, sql.ErrNoRows)
		switch {
		case insert:
			created = g.CreatedAt
			if created == 0 {
				created = now
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO guides (id, title, start_url, created_at, updated_at)
				VALUES (?,?,?,?,?)`,
				id, g.Title, g.StartURL, created, now)
		case err == nil:
			_, err = tx.ExecContext(ctx, `
				UPDATE guides SET title = ?, start_url = ?, updated_at = ? WHERE id = ?`,
				g.Title, g.StartURL, now, id)
			if err == nil {
				_, err = tx.ExecContext(ctx, `DELETE FROM steps WHERE guide_id = ?`, id)
			}
		}
		if err != nil {
			return fmt.Errorf("guide: save %s: %w", id, err)
		}

		for i, st := range g.Steps {
			stepIDs[i] = st.ID
			if insert || st.ID == "" {
				stepIDs[i] = idgen.Step()
				continue
			}
			var owner string
			err := tx.QueryRowContext(ctx, `SELECT guide_id FROM steps WHERE id = ?`, st.ID).Scan(&owner)
			switch {
			case errors.Is(err, sql.ErrNoRows):
			case err != nil:
				return fmt.Errorf("guide: step %d owner: %w", i, err)
			default:
				stepIDs[i] = idgen.Step()
			}
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO steps (id, guide_id, position, instruction, action, value, selector, target, screenshot)
			VALUES (?,?,?,?,?,?,?,?,?)`)
		if err != nil {
			return fmt.Errorf("guide: prepare steps: %w", err)
		}
		defer stmt.Close()
		for i, st := range g.Steps {
			target, err := json.Marshal(st.Target)
			if err != nil {
				return fmt.Errorf("guide: step %d target: %w", i, err)
			}
			if _, err := stmt.ExecContext(ctx, stepIDs[i], id, i, st.Instruction, st.Action,
				st.Value, st.Selector, string(target), st.Screenshot); err != nil {
				return fmt.Errorf("guide: insert step %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	g.ID = id
	g.CreatedAt = created
	g.UpdatedAt = now
	for i := range g.Steps {
		g.Steps[i].ID = stepIDs[i]
	}
	return nil
}

// Get returns the guide with its steps in order.
func (s *Store) Get(ctx context.Context, id string) (*Guide, error) {
	g := &Guide{}
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, title, start_url, created_at, updated_at FROM guides WHERE id = ?`, id).Scan(
		&g.ID, &g.Title, &g.StartURL, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: guide %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("guide: get %s: %w", id, err)
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, instruction, action, value, selector, target, screenshot
		FROM steps WHERE guide_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("guide: steps of %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var st Step
		var target string
		if err := rows.Scan(&st.ID, &st.Instruction, &st.Action, &st.Value, &st.Selector, &target, &st.Screenshot); err != nil {
			return nil, fmt.Errorf("guide: scan step: %w", err)
		}
		if err := json.Unmarshal([]byte(target), &st.Target); err != nil {
			return nil, fmt.Errorf("guide: step %s target: %w", st.ID, err)
		}
		g.Steps = append(g.Steps, st)
	}
	return g, rows.Err()
}

// List returns guide summaries, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT g.id, g.title, g.start_url, g.updated_at, COUNT(st.id)
		FROM guides g LEFT JOIN steps st ON st.guide_id = g.id
		GROUP BY g.id
		ORDER BY g.updated_at DESC, g.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("guide: list: %w", err)
	}
	defer rows.Close()
	out := []Summary{}
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.StartURL, &sum.UpdatedAt, &sum.StepCount); err != nil {
			return nil, fmt.Errorf("guide: scan summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Delete removes a guide and its steps.
func (s *Store) Delete(ctx context.Context, id string) error {
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM steps WHERE guide_id = ?`, id); err != nil {
			return fmt.Errorf("guide: delete steps of %s: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM guides WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("guide: delete %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: guide %s", ErrNotFound, id)
		}
		return nil
	})
}
