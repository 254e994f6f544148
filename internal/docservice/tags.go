package docservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/docket/internal/apperr"
	"github.com/starford/docket/internal/tagforest"
)

// TagItem is one tag in a flattened listing.
type TagItem struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID int64  `json:"parent_id"`
	Depth    int    `json:"depth"`
	Path     string `json:"path"`
}

// Tags lists every tag in pre-order with its depth and slash-joined path.
func (s *Service) Tags(_ context.Context) []TagItem {
	f := s.st.Forest()
	items := []TagItem{}
	var stack []string
	f.Walk(func(n *tagforest.Node, depth int) bool {
		stack = append(stack[:depth], n.Name)
		items = append(items, TagItem{
			ID:       n.ID,
			Name:     n.Name,
			ParentID: n.ParentID,
			Depth:    depth,
			Path:     strings.Join(stack, "/"),
		})
		return true
	})
	return items
}

// CreateTag adds a tag under parent (0 for a root).
func (s *Service) CreateTag(ctx context.Context, name string, parent int64) (TagItem, error) {
	n := &tagforest.Node{Name: name, ParentID: parent}
	if err := s.st.InsertTag(ctx, n); err != nil {
		return TagItem{}, err
	}
	s.log.Info("tag created", slog.Int64("id", n.ID), slog.String("name", name))
	s.publishTags()
	return s.tagItem(n.ID)
}

// RenameTag renames a tag.
func (s *Service) RenameTag(ctx context.Context, id int64, name string) (TagItem, error) {
	if err := s.st.RenameTag(ctx, id, name); err != nil {
		return TagItem{}, err
	}
	s.publishTags()
	return s.tagItem(id)
}

// MoveTag reparents a tag.
func (s *Service) MoveTag(ctx context.Context, id, parent int64) (TagItem, error) {
	if err := s.st.MoveTag(ctx, id, parent); err != nil {
		return TagItem{}, err
	}
	s.publishTags()
	return s.tagItem(id)
}

// TagUsage counts documents tagged with id or one of its descendants.
func (s *Service) TagUsage(ctx context.Context, id int64) (int, error) {
	return s.st.CheckUsage(ctx, id)
}

// DeleteTag removes a tag subtree that no document uses.
func (s *Service) DeleteTag(ctx context.Context, id int64) ([]int64, error) {
	n, err := s.st.CheckUsage(ctx, id)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, fmt.Errorf("docservice: delete tag %d: %w", id, apperr.Validation("tag is used by %d document(s)", n))
	}
	ids, err := s.st.DeleteTag(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("tags deleted", slog.Int64("root", id), slog.Int("count", len(ids)))
	s.publishTags()
	return ids, nil
}

// ResolveTags maps tag names to ids. Names may be slash-separated paths
// ("work/reports"); a bare name matches the first tag with that name.
// Unknown names are returned separately.
func (s *Service) ResolveTags(names []string) (ids []int64, unknown []string) {
	f := s.st.Forest()
	for _, name := range names {
		if id, ok := resolve(f, name); ok {
			ids = append(ids, id)
		} else {
			unknown = append(unknown, name)
		}
	}
	return ids, unknown
}

func resolve(f *tagforest.Forest, name string) (int64, bool) {
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" {
		return 0, false
	}
	parts := strings.Split(name, "/")
	if len(parts) == 1 {
		n, ok := f.FindByName(name)
		if !ok {
			return 0, false
		}
		return n.ID, true
	}
	level := f.Roots()
	var id int64
	for _, part := range parts {
		found := false
		for _, c := range level {
			n, _ := f.Find(c)
			if n.Name == part {
				id, level, found = n.ID, n.Children, true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return id, true
}

func (s *Service) tagItem(id int64) (TagItem, error) {
	for _, it := range s.Tags(context.Background()) {
		if it.ID == id {
			return it, nil
		}
	}
	return TagItem{}, fmt.Errorf("docservice: tag %d: %w", id, apperr.ErrNotFound)
}

func (s *Service) publishTags() {
	if s.events != nil {
		s.events.PublishTagEvent()
	}
}
