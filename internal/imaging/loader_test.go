package imaging

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// createTestImage writes a uniform PNG into dir and returns its path.
func createTestImage(t *testing.T, dir string, width, height int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	f, err := os.CreateTemp(dir, "test-image-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return f.Name()
}

func TestOpen(t *testing.T) {
	path := createTestImage(t, t.TempDir(), 30, 20, color.RGBA{1, 2, 3, 255})

	img, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if img.Bounds().Dx() != 30 || img.Bounds().Dy() != 20 {
		t.Errorf("dimensions: got %dx%d, want 30x20", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.jpg")
	if err := os.WriteFile(corrupt, []byte("definitely not a jpeg"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	empty := filepath.Join(dir, "empty.jpg")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "missing.png")},
		{"corrupt", corrupt},
		{"empty file", empty},
		{"directory", dir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(tt.path); err == nil {
				t.Error("Open should fail")
			}
		})
	}
}

func TestNewImageCache(t *testing.T) {
	cache := NewImageCache()
	if cache == nil {
		t.Fatal("NewImageCache returned nil")
	}
	if cache.images == nil {
		t.Fatal("NewImageCache did not initialize images map")
	}
}

func TestImageCache_Load(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, t.TempDir(), 100, 100, color.RGBA{255, 0, 0, 255})

	img1, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	img2, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if img1 != img2 {
		t.Error("second Load did not return cached image")
	}

	cache.Evict(imgPath)
	if _, ok := cache.images[imgPath]; ok {
		t.Error("Evict did not remove the image")
	}

	if _, err := cache.Load(imgPath); err != nil {
		t.Fatalf("Load after Evict failed: %v", err)
	}
	cache.Clear()
	if len(cache.images) != 0 {
		t.Errorf("Clear left %d images", len(cache.images))
	}
}

func TestImageCache_ReloadsChangedFile(t *testing.T) {
	cache := NewImageCache()
	dir := t.TempDir()
	imgPath := createTestImage(t, dir, 40, 40, color.RGBA{255, 0, 0, 255})

	if _, err := cache.Load(imgPath); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Replace the file with a different image and move its mtime forward so
	// the change is visible even on coarse-grained filesystems.
	replacement := createTestImage(t, dir, 60, 30, color.RGBA{0, 0, 255, 255})
	if err := os.Rename(replacement, imgPath); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(imgPath, later, later); err != nil {
		t.Fatal(err)
	}

	img, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("Load after change failed: %v", err)
	}
	if img.Bounds().Dx() != 60 || img.Bounds().Dy() != 30 {
		t.Errorf("stale image returned: got %v, want 60x30", img.Bounds())
	}
}

func TestImageCache_RemovedFile(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, t.TempDir(), 10, 10, color.RGBA{0, 255, 0, 255})

	if _, err := cache.Load(imgPath); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := os.Remove(imgPath); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Load(imgPath); err == nil {
		t.Error("Load of a removed file should fail")
	}
	if _, ok := cache.images[imgPath]; ok {
		t.Error("removed file still cached")
	}
}

func TestImageCache_ConcurrentLoad(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, t.TempDir(), 20, 20, color.RGBA{0, 0, 255, 255})

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(imgPath); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Load failed: %v", err)
	}
}

func TestGetDimensions(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, t.TempDir(), 64, 48, color.RGBA{0, 255, 0, 255})

	dims, err := GetDimensions(cache, imgPath)
	if err != nil {
		t.Fatalf("GetDimensions failed: %v", err)
	}
	if dims.Width != 64 || dims.Height != 48 {
		t.Errorf("dimensions: got %dx%d, want 64x48", dims.Width, dims.Height)
	}
}
