package inbox

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/docket/internal/docservice"
	"github.com/starford/docket/internal/models"
	"github.com/starford/docket/internal/store"
	"github.com/starford/docket/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testImporter(t *testing.T, archive string) (*Importer, *docservice.Service, string) {
	t.Helper()
	svc := testutil.TestService(t)
	dir, files := testutil.TestInbox(t)
	return New(svc, files, archive, quietLogger()), svc, dir
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func exists(dir, rel string) bool {
	_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
	return err == nil
}

func listAll(t *testing.T, svc *docservice.Service) []models.Summary {
	t.Helper()
	docs, _, err := svc.List(context.Background(), docservice.ListParams{
		Conditions: store.Conditions{OrderBy: store.OrderID},
	})
	if err != nil {
		t.Fatal(err)
	}
	return docs
}

func TestImportWithFrontMatter(t *testing.T) {
	im, svc, dir := testImporter(t, "archive")
	ctx := context.Background()
	work, err := svc.CreateTag(ctx, "work", 0)
	if err != nil {
		t.Fatal(err)
	}

	writeFile(t, dir, "standup.md", "---\ntitle: Standup\ntags: [work, missing]\ncreated: 2023-11-02\n---\nNotes here.\n")

	doc, err := im.Import(ctx, "standup.md")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if doc.Title != "Standup" || doc.Content != "Notes here.\n" {
		t.Errorf("doc = %+v", doc)
	}
	if diff := cmp.Diff([]int64{work.ID}, doc.Tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}
	if got := doc.Created.Format(models.DateLayout); got != "2023-11-02" {
		t.Errorf("created = %s", got)
	}
	if exists(dir, "standup.md") || !exists(dir, "archive/standup.md") {
		t.Error("file was not moved to the archive")
	}
}

func TestImportTitleFromFileName(t *testing.T) {
	im, _, dir := testImporter(t, "")
	writeFile(t, dir, "sub/empty-title.txt", "")

	doc, err := im.Import(context.Background(), "sub/empty-title.txt")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if doc.Title != "empty-title" {
		t.Errorf("title = %q", doc.Title)
	}
	if exists(dir, "sub/empty-title.txt") {
		t.Error("file should be deleted without an archive")
	}
}

func TestArchiveNameCollision(t *testing.T) {
	im, _, dir := testImporter(t, "done")
	writeFile(t, dir, "a.md", "first")
	writeFile(t, dir, "done/a.md", "older")

	if _, err := im.Import(context.Background(), "a.md"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "done", "a.md"))
	if err != nil || string(data) != "older" {
		t.Errorf("existing archive entry overwritten: %q, %v", data, err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "done", "a-*.md"))
	if len(matches) != 1 {
		t.Errorf("renamed archive entries = %v", matches)
	}
}

func TestSync(t *testing.T) {
	im, svc, dir := testImporter(t, "archive")
	writeFile(t, dir, "one.md", "# One\nbody")
	writeFile(t, dir, "nested/two.txt", "Two\nbody")
	writeFile(t, dir, "bad.md", "---\ncreated: someday\n---\nx")
	writeFile(t, dir, "image.png", "not text")
	writeFile(t, dir, "archive/old.md", "already imported")

	n, err := im.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if n != 2 {
		t.Errorf("imported = %d, want 2", n)
	}
	var titles []string
	for _, d := range listAll(t, svc) {
		titles = append(titles, d.Title)
	}
	if diff := cmp.Diff([]string{"Two", "One"}, titles); diff != "" {
		t.Errorf("titles (-want +got):\n%s", diff)
	}
	if !exists(dir, "bad.md") {
		t.Error("failed import should stay in the inbox")
	}
	note, err := os.ReadFile(filepath.Join(dir, ".bad.md.error"))
	if err != nil || !strings.Contains(string(note), "created") {
		t.Errorf("failure note = %q, %v", note, err)
	}

	// Fixing the file lets the next pass import it and drop the note.
	writeFile(t, dir, "bad.md", "---\ncreated: 2024-01-02\n---\nfixed")
	if n, err := im.Sync(context.Background()); err != nil || n != 1 {
		t.Fatalf("second Sync = %d, %v", n, err)
	}
	if exists(dir, ".bad.md.error") {
		t.Error("failure note left after successful import")
	}
	if !exists(dir, "image.png") {
		t.Error("non-importable file should be left alone")
	}
}

func TestFailureMarker(t *testing.T) {
	for rel, want := range map[string]string{
		"a.md":          ".a.md.error",
		"sub/deep/b.md": "sub/deep/.b.md.error",
	} {
		if got := FailureMarker(rel); got != want {
			t.Errorf("FailureMarker(%q) = %q, want %q", rel, got, want)
		}
	}
}

func TestWatchImportsNewFiles(t *testing.T) {
	old := settle
	settle = 50 * time.Millisecond
	t.Cleanup(func() { settle = old })

	im, svc, dir := testImporter(t, "archive")
	writeFile(t, dir, "before.md", "Before")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- im.Watch(ctx, dir) }()

	eventually(t, 5*time.Second, func() bool { return len(listAll(t, svc)) == 1 }, "initial sync did not import")

	writeFile(t, dir, "after.md", "After")
	writeFile(t, dir, "newdir/deep.md", "Deep")

	eventually(t, 5*time.Second, func() bool { return len(listAll(t, svc)) == 3 }, "watcher did not import new files")
	eventually(t, 2*time.Second, func() bool { return exists(dir, "archive/after.md") }, "watcher did not archive")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("watcher did not stop")
	}
}

// eventually polls fn until it returns true or timeout elapses.
func eventually(t *testing.T, timeout time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal(msg)
}
