package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/bobg/sqlutil"

	"github.com/starford/docket/internal/apperr"
)

type copiedRow struct {
	title            string
	text, bulk       []byte
	created, changed sql.NullString
}

// idFilter picks a BETWEEN range when ids are contiguous and an IN list
// otherwise. ids must be sorted and unique.
func idFilter(ids []int64) (string, []any) {
	if ids[len(ids)-1]-ids[0]+1 == int64(len(ids)) {
		return "id BETWEEN ? AND ?", []any{ids[0], ids[len(ids)-1]}
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return "id IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ") + ")", args
}

// CopyRecords copies the given documents into dst and returns how many were
// copied. Tag ids belong to the source store's forest, so copies carry no
// tags. Missing ids are skipped.
func (s *Store) CopyRecords(ctx context.Context, ids []int64, dst *Store) (int, error) {
	if dst == s {
		return 0, fmt.Errorf("store: copy: %w", apperr.Validation("source and destination are the same store"))
	}
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	rows, err := s.copySource(ctx, ids)
	if err != nil {
		return 0, err
	}

	dst.mu.Lock()
	defer dst.mu.Unlock()

	tx, err := dst.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, ioErr("copy", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO docs (title, text, bulk, tags, date, date2) VALUES (?, ?, ?, '', ?, ?)`)
	if err != nil {
		return 0, ioErr("copy", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.title, r.text, r.bulk, r.created, r.changed); err != nil {
			return 0, ioErr("copy", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, ioErr("copy", err)
	}
	s.log.Info("store: copied documents", slog.Int("count", len(rows)), slog.String("dst", dst.path))
	return len(rows), nil
}

func (s *Store) copySource(ctx context.Context, ids []int64) ([]copiedRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	filter, args := idFilter(ids)
	var rows []copiedRow
	args = append(args, func(title string, text, bulk []byte, created, changed sql.NullString) {
		rows = append(rows, copiedRow{title: title, text: text, bulk: bulk, created: created, changed: changed})
	})
	q := `SELECT title, text, bulk, strftime('%Y-%m-%d', date), strftime('%Y-%m-%d', date2) FROM docs WHERE ` + filter + ` ORDER BY id`
	if err := sqlutil.ForQueryRows(ctx, s.db, q, args...); err != nil {
		return nil, ioErr("copy", err)
	}
	return rows, nil
}
