package docservice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/docket/internal/apperr"
	"github.com/starford/docket/internal/filepile"
)

// Attachment describes one sub-file bundled in a document's blob.
type Attachment struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func attachmentNames(bulk []byte) []string {
	if len(bulk) == 0 {
		return nil
	}
	r, err := filepile.NewReader(bytes.NewReader(bulk), int64(len(bulk)))
	if err != nil {
		return nil
	}
	return r.Names()
}

func (s *Service) pile(ctx context.Context, id int64) (*filepile.Reader, error) {
	p, ok, err := s.st.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("docservice: document %d: %w", id, apperr.ErrNotFound)
	}
	if len(p.Bulk) == 0 {
		p.Bulk = filepile.Magic
	}
	r, err := filepile.NewReader(bytes.NewReader(p.Bulk), int64(len(p.Bulk)))
	if err != nil {
		return nil, fmt.Errorf("docservice: attachments of %d: %w", id, err)
	}
	return r, nil
}

// Attachments lists the sub-files bundled in a document.
func (s *Service) Attachments(ctx context.Context, id int64) ([]Attachment, error) {
	r, err := s.pile(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]Attachment, 0, r.Len())
	for _, name := range r.Names() {
		size, _ := r.Size(name)
		out = append(out, Attachment{Name: name, Size: size})
	}
	return out, nil
}

// Attachment returns the bytes of one bundled sub-file.
func (s *Service) Attachment(ctx context.Context, id int64, name string) ([]byte, error) {
	r, err := s.pile(ctx, id)
	if err != nil {
		return nil, err
	}
	sr, err := r.Open(name)
	if err != nil {
		return nil, fmt.Errorf("docservice: attachment %q of %d: %w", name, id, apperr.ErrNotFound)
	}
	return io.ReadAll(sr)
}

// AddAttachment bundles data under name into the document's blob, replacing
// any sub-file with the same name.
func (s *Service) AddAttachment(ctx context.Context, id int64, name string, data []byte) (*DocDetail, error) {
	name = strings.TrimSpace(name)
	if name == "" || name != path.Base(name) || strings.Contains(name, "..") {
		return nil, apperr.Validation("invalid attachment name %q", name)
	}
	d, ok, err := s.st.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("docservice: document %d: %w", id, apperr.ErrNotFound)
	}

	var entries []filepile.Entry
	if len(d.Bulk) > 0 {
		entries, err = filepile.Unpack(d.Bulk)
		if err != nil {
			return nil, fmt.Errorf("docservice: attachments of %d: %w", id, err)
		}
	}
	replaced := false
	for i := range entries {
		if entries[i].Name == name {
			entries[i].Data = data
			replaced = true
		}
	}
	if !replaced {
		entries = append(entries, filepile.Entry{Name: name, Data: data})
	}
	blob, err := filepile.Pack(entries)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	d.SetBulk(blob)
	s.log.Debug("attachment stored", slog.Int64("id", id), slog.String("name", name), slog.Int("bytes", len(data)))
	return s.save(ctx, d)
}
