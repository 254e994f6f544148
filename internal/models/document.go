// Package models defines the domain types for docket.
package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/docket/internal/digest"
)

// DateLayout is the calendar-date format used at rest and on the wire.
const DateLayout = "2006-01-02"

// Field enumerates the persisted, user-editable document fields.
type Field int

const (
	FieldTitle Field = iota
	FieldScript
	FieldBulk
	FieldTags
	FieldCreated
	FieldModified

	numFields
)

// Fields lists every field in declaration order.
var Fields = []Field{FieldTitle, FieldScript, FieldBulk, FieldTags, FieldCreated, FieldModified}

var columns = [numFields]string{"title", "text", "bulk", "tags", "date", "date2"}

var fieldNames = [numFields]string{"title", "script", "bulk", "tags", "created", "modified"}

// Column is the docs table column backing f.
func (f Field) Column() string { return columns[f] }

func (f Field) String() string { return fieldNames[f] }

// IsContent reports whether f is a large payload tracked by digest rather
// than by value.
func (f Field) IsContent() bool { return f == FieldScript || f == FieldBulk }

// Document is a titled, tagged, dated record with a text body and an optional
// binary blob. Setters record which fields differ from what was last saved or
// loaded.
type Document struct {
	SN       int64
	Title    string
	Script   string
	Bulk     []byte
	Tags     []int64
	Created  time.Time
	Modified time.Time
	// Size is the stored byte length of text plus bulk. Set by the store.
	Size int64

	dirty   [numFields]bool
	digests map[Field]digest.Digest
}

// NewDocument returns an unsaved document dated today.
func NewDocument(title string) *Document {
	today := Today()
	d := &Document{}
	d.SetTitle(title)
	d.SetCreated(today)
	d.SetModified(today)
	return d
}

// Today returns the current local date at midnight.
func Today() time.Time {
	return Day(time.Now())
}

// Day truncates t to its calendar date.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// Fragile reports whether the document has never been saved.
func (d *Document) Fragile() bool { return d.SN == 0 }

// SetTitle sets the title, marking it dirty when it changes.
func (d *Document) SetTitle(s string) {
	if s != d.Title {
		d.Title = s
		d.dirty[FieldTitle] = true
	}
}

// SetScript sets the text body. Equal content (by digest) is a no-op.
func (d *Document) SetScript(s string) {
	if d.setContent(FieldScript, []byte(s)) {
		d.Script = s
	}
}

// SetBulk sets the binary blob. Equal content (by digest) is a no-op.
func (d *Document) SetBulk(b []byte) {
	if d.setContent(FieldBulk, b) {
		d.Bulk = b
	}
}

// setContent records the new digest of f and reports whether it changed.
func (d *Document) setContent(f Field, raw []byte) bool {
	sum := digest.Sum(raw)
	if old, ok := d.digests[f]; ok && old == sum {
		return false
	}
	d.initDigests()
	d.digests[f] = sum
	d.dirty[f] = true
	return true
}

// SetTags replaces the tag list. Order and duplicates are ignored when
// deciding whether anything changed.
func (d *Document) SetTags(ids []int64) {
	changed := !SameTags(d.Tags, ids)
	d.Tags = append([]int64(nil), ids...)
	if changed {
		d.dirty[FieldTags] = true
	}
}

// SetCreated sets the creation date.
func (d *Document) SetCreated(t time.Time) {
	t = Day(t)
	if !t.Equal(d.Created) {
		d.Created = t
		d.dirty[FieldCreated] = true
	}
}

// SetModified sets the modification date.
func (d *Document) SetModified(t time.Time) {
	t = Day(t)
	if !t.Equal(d.Modified) {
		d.Modified = t
		d.dirty[FieldModified] = true
	}
}

// InitDigest seeds the digest of a content field from bytes just read, without
// marking it dirty.
func (d *Document) InitDigest(f Field, raw []byte) {
	if !f.IsContent() {
		return
	}
	d.initDigests()
	d.digests[f] = digest.Sum(raw)
}

// Digest returns the last known digest of a content field.
func (d *Document) Digest(f Field) (digest.Digest, bool) {
	sum, ok := d.digests[f]
	return sum, ok
}

// IsDirty reports whether f changed since the last save or load.
func (d *Document) IsDirty(f Field) bool { return d.dirty[f] }

// UnsavedFields returns the dirty fields in declaration order.
func (d *Document) UnsavedFields() []Field {
	var out []Field
	for _, f := range Fields {
		if d.dirty[f] {
			out = append(out, f)
		}
	}
	return out
}

// AfterSaving clears the dirty set and drops the payloads. Digests are kept
// so a later Set with identical content stays clean.
func (d *Document) AfterSaving() {
	d.dirty = [numFields]bool{}
	d.Script = ""
	d.Bulk = nil
}

// ClearDirty resets the dirty set while keeping the field values, as after a
// load.
func (d *Document) ClearDirty() {
	d.dirty = [numFields]bool{}
}

func (d *Document) initDigests() {
	if d.digests == nil {
		d.digests = make(map[Field]digest.Digest, 2)
	}
}

// Validate checks the fields required for saving.
func (d *Document) Validate() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.Title, validation.Required.Error("title is required")),
	)
}

// SameTags reports whether a and b hold the same set of ids.
func SameTags(a, b []int64) bool {
	as := make(map[int64]struct{}, len(a))
	for _, v := range a {
		as[v] = struct{}{}
	}
	bs := make(map[int64]struct{}, len(b))
	for _, v := range b {
		bs[v] = struct{}{}
		if _, ok := as[v]; !ok {
			return false
		}
	}
	return len(as) == len(bs)
}

// Payload is the decompressed content of a stored document.
type Payload struct {
	Script string
	Bulk   []byte
}

// Summary is the lightweight row returned by queries.
type Summary struct {
	SN       int64     `json:"id"`
	Title    string    `json:"title"`
	Tags     []int64   `json:"tags"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
	Size     int64     `json:"size"`
}
