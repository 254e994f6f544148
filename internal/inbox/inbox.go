// Package inbox imports text files dropped into a directory as documents.
//
// Each importable file (see storage.Importable) is parsed for YAML front
// matter, stored through the document service and then moved into the
// archive directory, or removed when no archive is configured. Files that
// fail to import stay where they are, get a hidden ".<name>.error" note
// beside them and are retried on the next pass.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/docket/internal/docservice"
	"github.com/starford/docket/internal/parser"
	"github.com/starford/docket/internal/storage"
)

// Importer moves inbox files into the document store.
type Importer struct {
	svc     *docservice.Service
	files   storage.Provider
	archive string
	log     *slog.Logger
}

// New creates an importer. archive is relative to the provider root; an
// empty archive deletes imported files.
func New(svc *docservice.Service, files storage.Provider, archive string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		svc:     svc,
		files:   files,
		archive: strings.Trim(path.Clean("/"+archive), "/"),
		log:     logger,
	}
}

// Sync imports every file currently in the inbox and returns the number of
// documents created.
func (im *Importer) Sync(ctx context.Context) (int, error) {
	files, err := im.files.List("", im.archive)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if _, err := im.Import(ctx, f.Path); err != nil {
			im.fail(f.Path, err)
			continue
		}
		n++
	}
	return n, nil
}

// Import stores the file at rel as a new document and archives it.
func (im *Importer) Import(ctx context.Context, rel string) (*docservice.DocDetail, error) {
	data, err := im.files.Read(rel)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}

	title := res.Title
	if title == "" {
		base := path.Base(rel)
		title = strings.TrimSuffix(base, path.Ext(base))
	}
	ids, unknown := im.svc.ResolveTags(res.Tags)
	if len(unknown) > 0 {
		im.log.Warn("inbox: unknown tags dropped",
			slog.String("path", rel),
			slog.String("tags", strings.Join(unknown, ",")))
	}

	doc, err := im.svc.Create(ctx, docservice.DocInput{
		Title:   title,
		Content: res.Body,
		Tags:    ids,
		Created: res.Created,
	})
	if err != nil {
		return nil, fmt.Errorf("inbox: create from %s: %w", rel, err)
	}

	if err := im.archiveFile(rel); err != nil {
		// The document exists; a failed move would import it twice.
		im.log.Error("inbox: archive failed, removing", slog.String("path", rel), slog.String("error", err.Error()))
		if delErr := im.files.Delete(rel); delErr != nil {
			return doc, fmt.Errorf("inbox: remove %s: %w", rel, delErr)
		}
	}
	if err := im.files.Delete(FailureMarker(rel)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		im.log.Warn("inbox: remove failure note", slog.String("path", rel), slog.String("error", err.Error()))
	}
	im.log.Info("inbox: imported", slog.String("path", rel), slog.Int64("id", doc.ID))
	return doc, nil
}

// FailureMarker names the hidden note written next to rel when its import
// fails. Listings skip it; a later successful import removes it.
func FailureMarker(rel string) string {
	dir, base := path.Split(rel)
	return path.Join(dir, "."+base+".error")
}

// fail logs err and records it in rel's failure note.
func (im *Importer) fail(rel string, err error) {
	im.log.Warn("inbox: import failed", slog.String("path", rel), slog.String("error", err.Error()))
	note := fmt.Sprintf("%s\t%s\n", time.Now().Format(time.RFC3339), err)
	if werr := im.files.Write(FailureMarker(rel), []byte(note)); werr != nil {
		im.log.Warn("inbox: write failure note", slog.String("path", rel), slog.String("error", werr.Error()))
	}
}

func (im *Importer) archiveFile(rel string) error {
	if im.archive == "" {
		return im.files.Delete(rel)
	}
	dst := path.Join(im.archive, rel)
	if _, err := im.files.Read(dst); err == nil {
		ext := path.Ext(rel)
		dst = path.Join(im.archive, fmt.Sprintf("%s-%d%s", strings.TrimSuffix(rel, ext), time.Now().UnixNano(), ext))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return im.files.Move(rel, dst)
}

// inArchive reports whether rel lies inside the archive directory.
func (im *Importer) inArchive(rel string) bool {
	return im.archive != "" && (rel == im.archive || strings.HasPrefix(rel, im.archive+"/"))
}
