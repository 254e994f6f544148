package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/starford/docket/internal/apperr"
	"github.com/starford/docket/internal/compress"
	"github.com/starford/docket/internal/models"
)

// Insert saves a new document and assigns its serial number.
func (s *Store) Insert(ctx context.Context, d *models.Document) error {
	if !d.Fragile() {
		return fmt.Errorf("store: insert: %w", apperr.Validation("document %d is already saved", d.SN))
	}
	if err := d.Validate(); err != nil {
		return fmt.Errorf("store: insert: %w", apperr.Validation("%v", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO docs (title, text, bulk, tags, date, date2) VALUES (?, ?, ?, ?, ?, ?)`,
		d.Title, compress.Text(d.Script), d.Bulk, joinTags(d.Tags), dateValue(d.Created), dateValue(d.Modified))
	if err != nil {
		return ioErr("insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ioErr("insert", err)
	}
	d.SN = id
	d.Size = int64(len(compress.Text(d.Script)) + len(d.Bulk))
	d.InitDigest(models.FieldScript, []byte(d.Script))
	d.InitDigest(models.FieldBulk, d.Bulk)
	d.AfterSaving()
	s.log.Debug("store: inserted", slog.Int64("id", id))
	return nil
}

// sizeExpr is the stored byte size of a docs row's payload columns.
const sizeExpr = `length(ifnull(text, x'')) + length(ifnull(bulk, x''))`

// Update writes the document's dirty fields back in one statement. The dirty
// set is cleared and payloads released whether or not the write succeeds.
func (s *Store) Update(ctx context.Context, d *models.Document) error {
	if d.Fragile() {
		return fmt.Errorf("store: update: %w", apperr.Validation("document has not been inserted"))
	}
	if d.IsDirty(models.FieldTitle) {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("store: update %d: %w", d.SN, apperr.Validation("%v", err))
		}
	}
	defer d.AfterSaving()

	fields := d.UnsavedFields()
	if len(fields) == 0 {
		return nil
	}
	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	for _, f := range fields {
		sets = append(sets, f.Column()+" = ?")
		args = append(args, columnValue(d, f))
	}
	args = append(args, d.SN)

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE docs SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return ioErr(fmt.Sprintf("update %d", d.SN), err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("store: update %d: %w", d.SN, apperr.ErrNotFound)
	}
	if d.IsDirty(models.FieldScript) || d.IsDirty(models.FieldBulk) {
		if err := s.db.QueryRowContext(ctx, "SELECT "+sizeExpr+" FROM docs WHERE id = ?", d.SN).Scan(&d.Size); err != nil {
			return ioErr(fmt.Sprintf("update %d: size", d.SN), err)
		}
	}
	s.log.Debug("store: updated", slog.Int64("id", d.SN), slog.Int("fields", len(fields)))
	return nil
}

func columnValue(d *models.Document, f models.Field) any {
	switch f {
	case models.FieldTitle:
		return d.Title
	case models.FieldScript:
		return compress.Text(d.Script)
	case models.FieldBulk:
		return d.Bulk
	case models.FieldTags:
		return joinTags(d.Tags)
	case models.FieldCreated:
		return dateValue(d.Created)
	case models.FieldModified:
		return dateValue(d.Modified)
	}
	panic(fmt.Sprintf("store: unknown field %d", f))
}

// Delete removes a document. A missing id is not an error.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM docs WHERE id = ?`, id)
	if err != nil {
		return false, ioErr(fmt.Sprintf("delete %d", id), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, ioErr(fmt.Sprintf("delete %d", id), err)
	}
	if n == 0 {
		s.log.Debug("store: delete of missing document", slog.Int64("id", id))
		return false, nil
	}
	return true, nil
}

// Read returns the decompressed payload of a document.
func (s *Store) Read(ctx context.Context, id int64) (models.Payload, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var text, bulk []byte
	err := s.db.QueryRowContext(ctx, `SELECT text, bulk FROM docs WHERE id = ?`, id).Scan(&text, &bulk)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Payload{}, false, nil
	}
	if err != nil {
		return models.Payload{}, false, ioErr(fmt.Sprintf("read %d", id), err)
	}
	script, err := compress.Untext(text)
	if err != nil {
		return models.Payload{}, true, fmt.Errorf("store: read %d: %w", id, err)
	}
	return models.Payload{Script: script, Bulk: bulk}, true, nil
}

// Load returns the full document with content digests seeded, so setting the
// same content again leaves it clean.
func (s *Store) Load(ctx context.Context, id int64) (*models.Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		title             string
		text, bulk        []byte
		tags              sql.NullString
		created, modified sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT title, text, bulk, tags, date, date2 FROM docs WHERE id = ?`, id).
		Scan(&title, &text, &bulk, &tags, &created, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ioErr(fmt.Sprintf("load %d", id), err)
	}
	script, err := compress.Untext(text)
	if err != nil {
		return nil, true, fmt.Errorf("store: load %d: %w", id, err)
	}
	d := &models.Document{
		SN:       id,
		Title:    title,
		Script:   script,
		Bulk:     bulk,
		Tags:     splitTags(tags.String),
		Created:  dateOf(created),
		Modified: dateOf(modified),
		Size:     int64(len(text) + len(bulk)),
	}
	d.InitDigest(models.FieldScript, []byte(script))
	d.InitDigest(models.FieldBulk, bulk)
	return d, true, nil
}

// ReadPlain returns at most limit characters of a document's text. A limit
// of zero or less returns the whole text.
func (s *Store) ReadPlain(ctx context.Context, id int64, limit int) (string, bool, error) {
	p, ok, err := s.Read(ctx, id)
	if err != nil || !ok {
		return "", ok, err
	}
	return truncate(p.Script, limit), true, nil
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// joinTags renders tag ids as the comma-joined column value.
func joinTags(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// splitTags parses the tags column. Unparseable entries are skipped.
func splitTags(s string) []int64 {
	if s == "" {
		return nil
	}
	var out []int64
	for _, p := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

func dateValue(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(models.DateLayout)
}

func dateOf(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return models.Day(t.Time)
}
