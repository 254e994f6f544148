package inbox

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/docket/internal/storage"
)

// settle is how long a file must stay quiet before it is imported.
var settle = 300 * time.Millisecond

// Watch runs a Sync pass, then starts an fsnotify watcher on root and
// imports files as they appear until ctx is cancelled. root must be the
// directory the importer's provider is rooted at.
//
// Create and Write events only mark a file as pending; pending files are
// imported once no further events arrived for the settle period, so a file
// still being written is not imported half-finished.
func (im *Importer) Watch(ctx context.Context, root string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := im.addDirsRecursive(w, root, root); err != nil {
		return err
	}

	im.log.Info("inbox: watching", slog.String("root", root), slog.String("archive", im.archive))

	if n, err := im.Sync(ctx); err != nil {
		im.log.Warn("inbox: initial sync failed", slog.String("error", err.Error()))
	} else if n > 0 {
		im.log.Info("inbox: initial sync", slog.Int("imported", n))
	}

	pending := make(map[string]struct{})
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	schedule := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(settle)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			im.log.Info("inbox: watcher stopped")
			return nil

		case <-settleCh:
			im.flush(ctx, pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if im.inArchive(rel) || hidden(rel) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := im.addDirsRecursive(w, root, ev.Name); addErr != nil {
						im.log.Warn("inbox: add new dir failed",
							slog.String("path", rel),
							slog.String("error", addErr.Error()))
					}
					im.markDir(root, ev.Name, pending)
					schedule()
					continue
				}
			}

			if !storage.Importable(ev.Name) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				pending[rel] = struct{}{}
				schedule()
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(pending, rel)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			im.log.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// flush imports and clears every pending file, in path order.
func (im *Importer) flush(ctx context.Context, pending map[string]struct{}) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		delete(pending, p)
		if _, err := im.Import(ctx, p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			im.fail(p, err)
		}
	}
}

// markDir queues the importable files already inside a new directory.
func (im *Importer) markDir(root, dir string, pending map[string]struct{}) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !storage.Importable(p) {
			return nil
		}
		if rel, relErr := filepath.Rel(root, p); relErr == nil {
			rel = filepath.ToSlash(rel)
			if !hidden(rel) && !im.inArchive(rel) {
				pending[rel] = struct{}{}
			}
		}
		return nil
	})
}

// addDirsRecursive adds dir and its subdirectories to the watcher, leaving
// out the archive and hidden directories.
func (im *Importer) addDirsRecursive(w *fsnotify.Watcher, root, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, relErr := filepath.Rel(root, p); relErr == nil && rel != "." {
			rel = filepath.ToSlash(rel)
			if hidden(rel) || im.inArchive(rel) {
				return filepath.SkipDir
			}
		}
		return w.Add(p)
	})
}

func hidden(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
