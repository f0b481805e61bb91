package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/criteria/internal/criteria"
	"github.com/roach88/criteria/internal/parser"
)

// ErrNotFound is returned when a saved criteria name is unknown.
var ErrNotFound = errors.New("saved criteria not found")

// SavedCriteria is one row of the saved_criteria table.
type SavedCriteria struct {
	Name        string `json:"name"`
	Source      string `json:"source,omitempty"`
	Filter      string `json:"filter"`
	Description string `json:"description,omitempty"`
	// Hash is the structural hash of the tree as saved, in hex.
	Hash string `json:"hash"`
	Seq  int64  `json:"seq"`
}

// SaveCriteria stores n under name, replacing any previous definition.
// The tree is stored as its canonical text.
func (s *Store) SaveCriteria(ctx context.Context, saved SavedCriteria, n *criteria.Node) error {
	ctx, span := s.startSpan(ctx, "store.save_criteria",
		trace.WithAttributes(attribute.String("criteria.name", saved.Name)), filterAttr(n))
	defer span.End()

	if saved.Name == "" {
		return fail(span, fmt.Errorf("save criteria: name is required"))
	}
	if n == nil {
		return fail(span, fmt.Errorf("save criteria %q: nil tree", saved.Name))
	}

	filter := n.String()
	hash := strconv.FormatUint(n.Hash(), 16)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_criteria (name, source, filter, description, hash, seq)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM saved_criteria))
		ON CONFLICT(name) DO UPDATE SET
			source = excluded.source,
			filter = excluded.filter,
			description = excluded.description,
			hash = excluded.hash,
			seq = excluded.seq
	`, saved.Name, saved.Source, filter, saved.Description, hash)
	if err != nil {
		return fail(span, fmt.Errorf("failed to save criteria %q: %w", saved.Name, err))
	}

	s.logger.DebugContext(ctx, "saved criteria", "name", saved.Name, "filter", filter)
	return nil
}

// LoadCriteria reads the criteria saved under name and parses it back into
// a tree. Returns ErrNotFound when nothing is saved under name.
func (s *Store) LoadCriteria(ctx context.Context, name string) (*criteria.Node, SavedCriteria, error) {
	ctx, span := s.startSpan(ctx, "store.load_criteria",
		trace.WithAttributes(attribute.String("criteria.name", name)))
	defer span.End()

	var saved SavedCriteria
	err := s.db.QueryRowContext(ctx, `
		SELECT name, source, filter, description, hash, seq
		FROM saved_criteria
		WHERE name = ?
	`, name).Scan(&saved.Name, &saved.Source, &saved.Filter, &saved.Description, &saved.Hash, &saved.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, SavedCriteria{}, fail(span, fmt.Errorf("%w: %q", ErrNotFound, name))
	}
	if err != nil {
		return nil, SavedCriteria{}, fail(span, fmt.Errorf("failed to load criteria %q: %w", name, err))
	}

	n, err := parser.Parse(saved.Filter)
	if err != nil {
		return nil, SavedCriteria{}, fail(span, fmt.Errorf("saved criteria %q: %w", name, err))
	}
	return n, saved, nil
}

// ListCriteria returns every saved criteria ordered by name.
func (s *Store) ListCriteria(ctx context.Context) ([]SavedCriteria, error) {
	ctx, span := s.startSpan(ctx, "store.list_criteria")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, source, filter, description, hash, seq
		FROM saved_criteria
		ORDER BY name ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to list criteria: %w", err))
	}
	defer rows.Close()

	var result []SavedCriteria
	for rows.Next() {
		var saved SavedCriteria
		if err := rows.Scan(&saved.Name, &saved.Source, &saved.Filter, &saved.Description, &saved.Hash, &saved.Seq); err != nil {
			return nil, fail(span, fmt.Errorf("failed to scan saved criteria: %w", err))
		}
		result = append(result, saved)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("failed to iterate saved criteria: %w", err))
	}
	return result, nil
}

// DeleteCriteria removes the criteria saved under name.
func (s *Store) DeleteCriteria(ctx context.Context, name string) error {
	ctx, span := s.startSpan(ctx, "store.delete_criteria",
		trace.WithAttributes(attribute.String("criteria.name", name)))
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_criteria WHERE name = ?`, name)
	if err != nil {
		return fail(span, fmt.Errorf("failed to delete criteria %q: %w", name, err))
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fail(span, fmt.Errorf("%w: %q", ErrNotFound, name))
	}
	return nil
}
