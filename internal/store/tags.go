package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/starford/docket/internal/apperr"
	"github.com/starford/docket/internal/tagforest"
)

// InsertTag saves a new tag and links it into the forest. n.ID is assigned.
func (s *Store) InsertTag(ctx context.Context, n *tagforest.Node) error {
	if n.ID != 0 {
		return fmt.Errorf("store: insert tag: %w", apperr.Validation("tag %d is already saved", n.ID))
	}
	if strings.TrimSpace(n.Name) == "" {
		return fmt.Errorf("store: insert tag: %w", apperr.Validation("tag name is required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ParentID != 0 {
		if _, ok := s.forest.Find(n.ParentID); !ok {
			return fmt.Errorf("store: insert tag: %w", apperr.Validation("parent tag %d does not exist", n.ParentID))
		}
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO tags (name, base) VALUES (?, ?)`, n.Name, n.ParentID)
	if err != nil {
		return ioErr("insert tag", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ioErr("insert tag", err)
	}
	node := &tagforest.Node{ID: id, Name: n.Name, ParentID: n.ParentID}
	if err := s.forest.Add(node); err != nil {
		return fmt.Errorf("store: insert tag: %w", err)
	}
	n.ID = id
	s.log.Debug("store: tag inserted", slog.Int64("id", id), slog.String("name", n.Name))
	return nil
}

// RenameTag changes a tag's name.
func (s *Store) RenameTag(ctx context.Context, id int64, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("store: rename tag: %w", apperr.Validation("tag name is required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.forest.Find(id)
	if !ok {
		return fmt.Errorf("store: rename tag %d: %w", id, apperr.ErrNotFound)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE tags SET name = ? WHERE id = ?`, name, id); err != nil {
		return ioErr("rename tag", err)
	}
	n.Name = name
	return nil
}

// MoveTag reparents a tag. Moving a tag under itself or one of its
// descendants is rejected before anything is written.
func (s *Store) MoveTag(ctx context.Context, id, newParent int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.forest.Find(id)
	if !ok {
		return fmt.Errorf("store: move tag %d: %w", id, apperr.ErrNotFound)
	}
	if newParent != 0 {
		if _, ok := s.forest.Find(newParent); !ok {
			return fmt.Errorf("store: move tag %d: %w", id, apperr.Validation("parent tag %d does not exist", newParent))
		}
		if s.forest.IsDescendant(newParent, id) {
			return fmt.Errorf("store: move tag %d: %w", id, apperr.Validation("cannot move a tag under itself or its descendant %d", newParent))
		}
	}
	if n.ParentID == newParent {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE tags SET base = ? WHERE id = ?`, newParent, id); err != nil {
		return ioErr("move tag", err)
	}
	if err := s.forest.Reparent(id, newParent); err != nil {
		return fmt.Errorf("store: move tag %d: %w", id, err)
	}
	return nil
}

// DeleteTag removes a tag and its whole subtree, leaves first, in one
// transaction. It returns the deleted ids in pre-order. Documents keep their
// references; callers check usage beforehand.
func (s *Store) DeleteTag(ctx context.Context, id int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.forest.Find(id); !ok {
		return nil, fmt.Errorf("store: delete tag %d: %w", id, apperr.ErrNotFound)
	}
	ids := s.forest.Descendants(id)
	bottomUp := slices.Clone(ids)
	slices.Reverse(bottomUp)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, ioErr("delete tag", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, tid := range bottomUp {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, tid); err != nil {
			return nil, ioErr(fmt.Sprintf("delete tag %d", tid), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, ioErr("delete tag", err)
	}
	for _, tid := range bottomUp {
		s.forest.Delete(tid)
	}
	s.log.Debug("store: tags deleted", slog.Int64("root", id), slog.Int("count", len(ids)))
	return ids, nil
}
