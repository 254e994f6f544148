package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/bobg/sqlutil"
	"github.com/mattn/go-sqlite3"

	"github.com/starford/docket/internal/apperr"
)

const schemaSQL = `
CREATE TABLE docs (
	id    INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	text  BLOB,
	bulk  BLOB,
	tags  TEXT,
	date  DATE,
	date2 DATE
);

CREATE TABLE tags (
	id   INTEGER PRIMARY KEY,
	name TEXT,
	base INTEGER DEFAULT 0
);
`

// Column layouts a store file must have, in order.
var (
	docsColumns = []string{"id", "title", "text", "bulk", "tags", "date", "date2"}
	tagsColumns = []string{"id", "name", "base"}
)

func tableColumns(ctx context.Context, q sqlutil.QueryerContext, table string) ([]string, error) {
	var cols []string
	err := sqlutil.ForQueryRows(ctx, q, "SELECT name FROM pragma_table_info(?) ORDER BY cid", table, func(name string) {
		cols = append(cols, name)
	})
	return cols, err
}

func checkSchema(ctx context.Context, q sqlutil.QueryerContext) error {
	for table, want := range map[string][]string{"docs": docsColumns, "tags": tagsColumns} {
		got, err := tableColumns(ctx, q, table)
		var serr sqlite3.Error
		if errors.As(err, &serr) && (serr.Code == sqlite3.ErrNotADB || serr.Code == sqlite3.ErrCorrupt) {
			return fmt.Errorf("store: inspect %s: %w", table, apperr.ErrInvalidStore)
		}
		if err != nil {
			return fmt.Errorf("store: inspect %s: %w: %w", table, apperr.ErrStoreIO, err)
		}
		if !slices.Equal(got, want) {
			return fmt.Errorf("store: table %s has columns %v: %w", table, got, apperr.ErrInvalidStore)
		}
	}
	return nil
}

// Validate reports whether path is an existing store file with the expected
// tables. A readable file with the wrong layout yields false and no error.
func Validate(ctx context.Context, path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		return false, fmt.Errorf("store: validate: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return false, fmt.Errorf("store: validate: %w: %w", apperr.ErrStoreIO, err)
	}
	defer db.Close()

	err = checkSchema(ctx, db)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperr.ErrInvalidStore):
		return false, nil
	default:
		return false, err
	}
}
