package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bobg/sqlutil"

	"github.com/starford/docket/internal/apperr"
	"github.com/starford/docket/internal/compress"
	"github.com/starford/docket/internal/models"
)

// Order selects the sort column of a query.
type Order string

const (
	OrderNone     Order = ""
	OrderID       Order = "id"
	OrderCreated  Order = "created"
	OrderModified Order = "modified"
)

var orderColumns = map[Order]string{
	OrderID:       "id",
	OrderCreated:  "date",
	OrderModified: "date2",
}

// Conditions is a sparse conjunction of filters. Zero-valued members impose
// no constraint.
type Conditions struct {
	// TitleWords must each occur in the title (case-insensitive for ASCII).
	TitleWords []string
	// Inclusive calendar-date bounds.
	CreatedFrom, CreatedTo   time.Time
	ModifiedFrom, ModifiedTo time.Time
	// Inclusive id bounds.
	Lower, Upper int64
	// Words must each occur in the decompressed text, as judged by the
	// store's WordFinder.
	Words []string
	// Tags keeps documents carrying at least one tag from the subtree of any
	// of these tags.
	Tags []int64

	OrderBy Order
	Desc    bool
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// where renders the SQL-side filters. Every user value is bound.
func (c Conditions) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	for _, w := range c.TitleWords {
		if w = strings.TrimSpace(w); w == "" {
			continue
		}
		clauses = append(clauses, `title LIKE ? ESCAPE '\'`)
		args = append(args, "%"+likeEscaper.Replace(w)+"%")
	}
	dateBound := func(col, op string, t time.Time) {
		if t.IsZero() {
			return
		}
		clauses = append(clauses, col+" "+op+" ?")
		args = append(args, t.Format(models.DateLayout))
	}
	dateBound("date", ">=", c.CreatedFrom)
	dateBound("date", "<=", c.CreatedTo)
	dateBound("date2", ">=", c.ModifiedFrom)
	dateBound("date2", "<=", c.ModifiedTo)
	if c.Lower > 0 {
		clauses = append(clauses, "id >= ?")
		args = append(args, c.Lower)
	}
	if c.Upper > 0 {
		clauses = append(clauses, "id <= ?")
		args = append(args, c.Upper)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (c Conditions) orderBy() (string, error) {
	if c.OrderBy == OrderNone {
		return "", nil
	}
	col, ok := orderColumns[c.OrderBy]
	if !ok {
		return "", apperr.Validation("unknown order %q", c.OrderBy)
	}
	dir := ""
	if c.Desc {
		dir = " DESC"
	}
	if col == "id" {
		return " ORDER BY id" + dir, nil
	}
	return " ORDER BY " + col + dir + ", id" + dir, nil
}

// Query returns summaries of the documents satisfying every condition.
func (s *Store) Query(ctx context.Context, c Conditions) ([]models.Summary, error) {
	order, err := c.orderBy()
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	where, args := c.where()

	textCol := "NULL"
	if hasWords(c.Words) {
		textCol = "text"
	}
	q := `SELECT id, title, tags, date, date2, ` + sizeExpr + `, ` +
		textCol + ` FROM docs` + where + order

	s.mu.Lock()
	defer s.mu.Unlock()

	var subtree map[int64]struct{}
	if len(c.Tags) > 0 {
		subtree = s.forest.Subtree(c.Tags...)
	}

	var out []models.Summary
	args = append(args, func(id int64, title string, tags sql.NullString, created, modified sql.NullTime, size int64, text []byte) error {
		ids := splitTags(tags.String)
		if len(c.Tags) > 0 && !intersects(ids, subtree) {
			return nil
		}
		if textCol != "NULL" {
			body, err := compress.Untext(text)
			if err != nil {
				s.log.Warn("store: query skipped undecodable document", slog.Int64("id", id), slog.String("error", err.Error()))
				return nil
			}
			if !s.find(body, c.Words) {
				return nil
			}
		}
		out = append(out, models.Summary{
			SN:       id,
			Title:    title,
			Tags:     ids,
			Created:  dateOf(created),
			Modified: dateOf(modified),
			Size:     size,
		})
		return nil
	})
	if err := sqlutil.ForQueryRows(ctx, s.db, q, args...); err != nil {
		return nil, ioErr("query", err)
	}
	return out, nil
}

func hasWords(words []string) bool {
	for _, w := range words {
		if strings.TrimSpace(w) != "" {
			return true
		}
	}
	return false
}

func intersects(ids []int64, set map[int64]struct{}) bool {
	for _, id := range ids {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

// CheckUsage counts documents tagged with tagID or any of its descendants.
// An id missing from the forest counts documents still referencing it.
func (s *Store) CheckUsage(ctx context.Context, tagID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subtree := map[int64]struct{}{tagID: {}}
	if _, ok := s.forest.Find(tagID); ok {
		subtree = s.forest.Subtree(tagID)
	}
	n := 0
	err := sqlutil.ForQueryRows(ctx, s.db, `SELECT tags FROM docs WHERE tags IS NOT NULL AND tags != ''`, func(tags string) {
		if intersects(splitTags(tags), subtree) {
			n++
		}
	})
	if err != nil {
		return 0, ioErr("check usage", err)
	}
	return n, nil
}
