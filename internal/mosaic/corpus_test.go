package mosaic

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/ironsheep/mosaicr/internal/imaging"
)

func newIndexer(exts ...string) *Indexer {
	return &Indexer{Extensions: exts, Workers: 4}
}

func TestIndexer_SkipsUnusableFiles(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "a.jpg"), solidImage(20, 20, red))
	writeImage(t, filepath.Join(dir, "b.jpg"), solidImage(20, 20, blue))
	if err := os.WriteFile(filepath.Join(dir, "corrupt.jpg"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "empty.jpg"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	corpus, err := newIndexer(".jpg").Index(context.Background(), dir)
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if corpus.Len() != 2 {
		t.Fatalf("corpus: got %d images, want 2", corpus.Len())
	}
	if corpus.Images[0].Path != filepath.Join(dir, "a.jpg") || corpus.Images[1].Path != filepath.Join(dir, "b.jpg") {
		t.Errorf("corpus paths: got %s, %s", corpus.Images[0].Path, corpus.Images[1].Path)
	}
	// JPEG is lossy, so compare loosely.
	if d := imaging.EuclideanDistance(corpus.Images[0].Lab, labOf(red)); d > 5 {
		t.Errorf("a.jpg color %+v is %.2f away from red", corpus.Images[0].Lab, d)
	}
}

func TestIndexer_EmptyCorpus(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
	}{
		{"empty folder", func(t *testing.T, dir string) {}},
		{"only corrupt files", func(t *testing.T, dir string) {
			if err := os.WriteFile(filepath.Join(dir, "x.jpg"), []byte("junk"), 0o644); err != nil {
				t.Fatal(err)
			}
		}},
		{"only other extensions", func(t *testing.T, dir string) {
			writeImage(t, filepath.Join(dir, "x.png"), solidImage(4, 4, red))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, dir)
			_, err := newIndexer(".jpg").Index(context.Background(), dir)
			if !errors.Is(err, ErrEmptyCorpus) {
				t.Errorf("got %v, want ErrEmptyCorpus", err)
			}
		})
	}
}

func TestIndexer_MissingFolder(t *testing.T) {
	_, err := newIndexer(".jpg").Index(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrEmptyCorpus) {
		t.Errorf("got %v, want ErrEmptyCorpus", err)
	}
}

func TestIndexer_CaseSensitiveExtensions(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "lower.jpg"), solidImage(8, 8, red))
	writeImage(t, filepath.Join(dir, "upper.JPG"), solidImage(8, 8, blue))

	corpus, err := newIndexer(".jpg").Index(context.Background(), dir)
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if corpus.Len() != 1 || filepath.Base(corpus.Images[0].Path) != "lower.jpg" {
		t.Errorf("corpus: got %+v, want only lower.jpg", corpus.Images)
	}

	corpus, err = newIndexer(".jpg", ".JPG").Index(context.Background(), dir)
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if corpus.Len() != 2 {
		t.Errorf("corpus with both extensions: got %d images, want 2", corpus.Len())
	}
}

func TestIndexer_RecursiveLexicalOrder(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "b", "deep"), 0o755); err != nil {
		t.Fatal(err)
	}
	files := []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "b", "deep", "d.png"),
		filepath.Join(dir, "b", "e.png"),
		filepath.Join(dir, "c.png"),
	}
	// Written in reverse so creation order cannot explain the result.
	for i := len(files) - 1; i >= 0; i-- {
		writeImage(t, files[i], solidImage(4, 4, gray))
	}

	for _, workers := range []int{1, 8} {
		ix := newIndexer(".png")
		ix.Workers = workers
		corpus, err := ix.Index(context.Background(), dir)
		if err != nil {
			t.Fatalf("Index failed: %v", err)
		}
		if corpus.Len() != len(files) {
			t.Fatalf("workers %d: got %d images, want %d", workers, corpus.Len(), len(files))
		}
		for i, want := range files {
			if corpus.Images[i].Path != want {
				t.Errorf("workers %d: image %d is %s, want %s", workers, i, corpus.Images[i].Path, want)
			}
		}
	}
}

func TestIndexer_Progress(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		writeImage(t, filepath.Join(dir, name), solidImage(4, 4, gray))
	}

	var calls, lastTotal int64
	ix := newIndexer(".png")
	ix.Progress = func(done, total int) {
		atomic.AddInt64(&calls, 1)
		atomic.StoreInt64(&lastTotal, int64(total))
	}
	if _, err := ix.Index(context.Background(), dir); err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if calls != 3 || lastTotal != 3 {
		t.Errorf("progress: %d calls with total %d, want 3 and 3", calls, lastTotal)
	}
}

func TestIndexer_UsesCache(t *testing.T) {
	dir := t.TempDir()
	path := writeImage(t, filepath.Join(dir, "a.png"), solidImage(4, 4, red))
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	cache, err := OpenIndexCache(filepath.Join(dir, "cache", "index.zst"))
	if err != nil {
		t.Fatalf("OpenIndexCache failed: %v", err)
	}
	cached := imaging.Lab{L: 12.5, A: 1, B: -1}
	cache.Store(path, info, cached)

	ix := newIndexer(".png")
	ix.Cache = cache
	corpus, err := ix.Index(context.Background(), dir)
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if corpus.Images[0].Lab != cached {
		t.Errorf("expected cached color %+v, got %+v", cached, corpus.Images[0].Lab)
	}
}

func TestIndexer_FillsCache(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "a.png"), solidImage(4, 4, red))
	writeImage(t, filepath.Join(dir, "b.png"), solidImage(4, 4, blue))

	cache, err := OpenIndexCache(filepath.Join(t.TempDir(), "index.zst"))
	if err != nil {
		t.Fatalf("OpenIndexCache failed: %v", err)
	}
	ix := newIndexer(".png")
	ix.Cache = cache
	if _, err := ix.Index(context.Background(), dir); err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if cache.Len() != 2 {
		t.Errorf("cache entries: got %d, want 2", cache.Len())
	}
}
