// Package docservice implements the document workflows shared by the HTTP
// API, the MCP server, the inbox importer and the CLI.
package docservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/starford/docket/internal/apperr"
	"github.com/starford/docket/internal/models"
	"github.com/starford/docket/internal/store"
)

// Events receives change notifications. *sse.Broker implements it.
type Events interface {
	PublishDocEvent(kind string, id int64)
	PublishTagEvent()
}

// DocDetail is the full representation of a document.
type DocDetail struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Tags        []int64   `json:"tags"`
	TagNames    []string  `json:"tag_names"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
	Size        int64     `json:"size"`
	Digest      string    `json:"digest"`
	Attachments []string  `json:"attachments"`
}

// DocInput describes a new document.
type DocInput struct {
	Title   string
	Content string
	Tags    []int64
	// Created defaults to today.
	Created time.Time
}

// DocPatch lists the fields to change; nil members are left alone.
type DocPatch struct {
	Title   *string
	Content *string
	Tags    *[]int64
	Created *time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithEvents sets the change notification sink.
func WithEvents(e Events) Option {
	return func(s *Service) { s.events = e }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithPreview sizes the preview cache and the preview length in characters.
func WithPreview(cacheSize, chars int) Option {
	return func(s *Service) {
		s.cacheSize = cacheSize
		s.previewChars = chars
	}
}

// Service coordinates store operations.
type Service struct {
	st           *store.Store
	events       Events
	log          *slog.Logger
	previews     *lru.Cache
	cacheSize    int
	previewChars int
}

// NewService creates a new document service.
func NewService(st *store.Store, opts ...Option) (*Service, error) {
	s := &Service{
		st:           st,
		log:          slog.Default(),
		cacheSize:    256,
		previewChars: 200,
	}
	for _, o := range opts {
		o(s)
	}
	c, err := lru.New(s.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("docservice: preview cache: %w", err)
	}
	s.previews = c
	return s, nil
}

// Store returns the underlying store.
func (s *Service) Store() *store.Store { return s.st }

// Get loads a document.
func (s *Service) Get(ctx context.Context, id int64) (*DocDetail, error) {
	d, ok, err := s.st.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("docservice: document %d: %w", id, apperr.ErrNotFound)
	}
	return s.detail(d), nil
}

// Create inserts a new document.
func (s *Service) Create(ctx context.Context, in DocInput) (*DocDetail, error) {
	if err := s.checkTags(in.Tags); err != nil {
		return nil, err
	}
	d := models.NewDocument(in.Title)
	d.SetScript(in.Content)
	d.SetTags(in.Tags)
	if !in.Created.IsZero() {
		d.SetCreated(in.Created)
	}
	if err := s.st.Insert(ctx, d); err != nil {
		return nil, err
	}
	s.log.Info("document created", slog.Int64("id", d.SN), slog.String("title", in.Title))
	s.publish("created", d.SN)
	return s.Get(ctx, d.SN)
}

// Update applies patch to a stored document. A non-empty ifMatch must equal
// the current content digest, otherwise apperr.ErrConflict is returned.
func (s *Service) Update(ctx context.Context, id int64, patch DocPatch, ifMatch string) (*DocDetail, error) {
	d, ok, err := s.st.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("docservice: document %d: %w", id, apperr.ErrNotFound)
	}
	if ifMatch != "" && ifMatch != etag(d) {
		return nil, fmt.Errorf("docservice: document %d: %w", id, apperr.ErrConflict)
	}
	if patch.Tags != nil {
		if err := s.checkTags(*patch.Tags); err != nil {
			return nil, err
		}
		d.SetTags(*patch.Tags)
	}
	if patch.Title != nil {
		d.SetTitle(*patch.Title)
	}
	if patch.Content != nil {
		d.SetScript(*patch.Content)
	}
	if patch.Created != nil {
		d.SetCreated(*patch.Created)
	}
	return s.save(ctx, d)
}

// save touches the modification date when anything changed and writes the
// dirty fields.
func (s *Service) save(ctx context.Context, d *models.Document) (*DocDetail, error) {
	if len(d.UnsavedFields()) == 0 {
		return s.Get(ctx, d.SN)
	}
	d.SetModified(models.Today())
	if err := s.st.Update(ctx, d); err != nil {
		return nil, err
	}
	s.previews.Remove(d.SN)
	s.publish("updated", d.SN)
	return s.Get(ctx, d.SN)
}

// Delete removes a document.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ok, err := s.st.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("docservice: document %d: %w", id, apperr.ErrNotFound)
	}
	s.previews.Remove(id)
	s.publish("deleted", id)
	return nil
}

// ListParams filters and pages a listing.
type ListParams struct {
	store.Conditions
	Limit  int
	Offset int
}

// List returns one page of matching summaries and the total match count.
func (s *Service) List(ctx context.Context, p ListParams) ([]models.Summary, int, error) {
	all, err := s.st.Query(ctx, p.Conditions)
	if err != nil {
		return nil, 0, err
	}
	total := len(all)
	if p.Offset > 0 {
		if p.Offset >= total {
			return []models.Summary{}, total, nil
		}
		all = all[p.Offset:]
	}
	if p.Limit > 0 && p.Limit < len(all) {
		all = all[:p.Limit]
	}
	return nonNilSlice(all), total, nil
}

// Preview returns the first characters of a document's text.
func (s *Service) Preview(ctx context.Context, id int64) (string, error) {
	if v, ok := s.previews.Get(id); ok {
		return v.(string), nil
	}
	text, ok, err := s.st.ReadPlain(ctx, id, s.previewChars)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("docservice: document %d: %w", id, apperr.ErrNotFound)
	}
	s.previews.Add(id, text)
	return text, nil
}

// Copy copies documents into the store file at dstPath, creating it when
// missing.
func (s *Service) Copy(ctx context.Context, ids []int64, dstPath string) (int, error) {
	dst, err := store.Open(ctx, dstPath, store.WithLogger(s.log))
	if errors.Is(err, os.ErrNotExist) {
		dst, err = store.Create(ctx, dstPath, store.WithLogger(s.log))
	}
	if err != nil {
		return 0, err
	}
	defer dst.Close()
	return s.st.CopyRecords(ctx, ids, dst)
}

func (s *Service) checkTags(ids []int64) error {
	f := s.st.Forest()
	for _, id := range ids {
		if _, ok := f.Find(id); !ok {
			return apperr.Validation("unknown tag %d", id)
		}
	}
	return nil
}

func (s *Service) detail(d *models.Document) *DocDetail {
	f := s.st.Forest()
	names := make([]string, 0, len(d.Tags))
	for _, id := range d.Tags {
		if n, ok := f.Find(id); ok {
			names = append(names, n.Name)
		}
	}
	return &DocDetail{
		ID:          d.SN,
		Title:       d.Title,
		Content:     d.Script,
		Tags:        nonNilSlice(d.Tags),
		TagNames:    names,
		Created:     d.Created,
		Modified:    d.Modified,
		Size:        d.Size,
		Digest:      etag(d),
		Attachments: nonNilSlice(attachmentNames(d.Bulk)),
	}
}

// etag is the content digest clients echo back in If-Match.
func etag(d *models.Document) string {
	sum, ok := d.Digest(models.FieldScript)
	if !ok {
		return ""
	}
	return sum.String()
}

func (s *Service) publish(kind string, id int64) {
	if s.events != nil {
		s.events.PublishDocEvent(kind, id)
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
