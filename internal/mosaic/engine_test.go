package mosaic

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ironsheep/mosaicr/internal/imaging"
)

// setupRun writes a red/blue reference and a two-image corpus into a temp dir.
func setupRun(t *testing.T) (reference, sources string) {
	t.Helper()
	dir := t.TempDir()
	reference = writeImage(t, filepath.Join(dir, "reference.png"), halvesImage(100, 50, red, blue))
	sources = filepath.Join(dir, "sources")
	if err := os.Mkdir(sources, 0o755); err != nil {
		t.Fatal(err)
	}
	writeImage(t, filepath.Join(sources, "blue.jpg"), solidImage(60, 40, blue))
	writeImage(t, filepath.Join(sources, "red.jpg"), solidImage(40, 60, red))
	return reference, sources
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TilesHorizontal = 2
	cfg.TilesVertical = 1
	cfg.Workers = 2
	return cfg
}

func TestEngine_Generate(t *testing.T) {
	reference, sources := setupRun(t)
	engine, err := NewEngine(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	result, err := engine.Generate(context.Background(), reference, sources)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if result.Image.Bounds().Dx() != 100 || result.Image.Bounds().Dy() != 50 {
		t.Errorf("mosaic size: got %v, want 100x50", result.Image.Bounds())
	}
	if len(result.Pairs) != 2 {
		t.Fatalf("pairs: got %d, want 2", len(result.Pairs))
	}
	if got := filepath.Base(result.Pairs[0].Source.Path); got != "red.jpg" {
		t.Errorf("left tile: got %s, want red.jpg", got)
	}
	if got := filepath.Base(result.Pairs[1].Source.Path); got != "blue.jpg" {
		t.Errorf("right tile: got %s, want blue.jpg", got)
	}
	if result.DistinctSources() != 2 {
		t.Errorf("distinct sources: got %d, want 2", result.DistinctSources())
	}
	if !closeColor(result.Image.NRGBAAt(25, 25), red, 12) {
		t.Errorf("left half: got %v, want about red", result.Image.NRGBAAt(25, 25))
	}
	if !closeColor(result.Image.NRGBAAt(75, 25), blue, 12) {
		t.Errorf("right half: got %v, want about blue", result.Image.NRGBAAt(75, 25))
	}
}

func TestEngine_GenerateReportsStages(t *testing.T) {
	reference, sources := setupRun(t)
	engine, err := NewEngine(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	var mu sync.Mutex
	var stages []Stage
	engine.Progress = func(stage Stage, done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if len(stages) == 0 || stages[len(stages)-1] != stage {
			stages = append(stages, stage)
		}
	}
	if _, err := engine.Generate(context.Background(), reference, sources); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	want := []Stage{StageReference, StageCorpus, StageCompose}
	if len(stages) != len(want) {
		t.Fatalf("stages: got %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("stage %d: got %v, want %v", i, stages[i], want[i])
		}
	}
}

func TestEngine_IndexedBeforeCompose(t *testing.T) {
	reference, sources := setupRun(t)
	if err := os.WriteFile(filepath.Join(sources, "corrupt.jpg"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	engine, err := NewEngine(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	var mu sync.Mutex
	var events []string
	engine.Progress = func(stage Stage, done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if done == 0 && total == 0 {
			events = append(events, stage.String())
		}
	}
	indexed := -1
	engine.Indexed = func(c *Corpus) {
		mu.Lock()
		defer mu.Unlock()
		indexed = c.Len()
		events = append(events, "indexed")
	}

	if _, err := engine.Generate(context.Background(), reference, sources); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if indexed != 2 {
		t.Errorf("indexed corpus: got %d, want 2", indexed)
	}
	want := []string{StageReference.String(), StageCorpus.String(), "indexed", StageCompose.String()}
	if strings.Join(events, "|") != strings.Join(want, "|") {
		t.Errorf("events: got %v, want %v", events, want)
	}
}

func TestEngine_Errors(t *testing.T) {
	reference, sources := setupRun(t)
	emptyDir := t.TempDir()
	tiny := writeImage(t, filepath.Join(t.TempDir(), "tiny.png"), solidImage(1, 1, red))

	tests := []struct {
		name      string
		reference string
		sources   string
		wantIs    error
		wantText  string
	}{
		{"missing reference", filepath.Join(emptyDir, "nope.png"), sources, nil, "reference image"},
		{"reference too small", tiny, sources, nil, "too small"},
		{"empty corpus", reference, emptyDir, ErrEmptyCorpus, ""},
	}

	engine, err := NewEngine(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Generate(context.Background(), tt.reference, tt.sources)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("got %v, want %v", err, tt.wantIs)
			}
			if tt.wantText != "" && !strings.Contains(err.Error(), tt.wantText) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantText)
			}
		})
	}
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Quality = 150
	if _, err := NewEngine(cfg, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("got %v, want ErrInvalidConfig", err)
	}
}

func TestEngine_WriteFile(t *testing.T) {
	reference, sources := setupRun(t)
	engine, err := NewEngine(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	result, err := engine.Generate(context.Background(), reference, sources)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	outDir := t.TempDir()
	for _, name := range []string{"mosaic.jpg", "mosaic.png"} {
		path := filepath.Join(outDir, name)
		if err := engine.WriteFile(result, path); err != nil {
			t.Fatalf("WriteFile(%s) failed: %v", name, err)
		}
		img, err := imaging.Open(path)
		if err != nil {
			t.Fatalf("reading back %s: %v", name, err)
		}
		if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
			t.Errorf("%s: got %v, want 100x50", name, img.Bounds())
		}
	}

	if err := engine.WriteFile(result, filepath.Join(outDir, "missing", "mosaic.jpg")); err == nil {
		t.Error("expected error writing into a missing directory")
	}
}

func TestEngine_WriteFileEncodeFailure(t *testing.T) {
	reference, sources := setupRun(t)
	engine, err := NewEngine(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	result, err := engine.Generate(context.Background(), reference, sources)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	outDir := t.TempDir()
	path := filepath.Join(outDir, "mosaic.jpg")
	if err := os.WriteFile(path, []byte("previous mosaic"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Quality is validated up front; force an encoder failure past validation.
	engine.cfg.Quality = 150
	if err := engine.WriteFile(result, path); err == nil {
		t.Fatal("expected encode error")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("existing output removed: %v", err)
	}
	if string(data) != "previous mosaic" {
		t.Errorf("existing output overwritten by a failed encode: %q", data)
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("leftover files after failed write: %d entries", len(entries))
	}
}

func TestEngine_WriteFileNoPartialOutput(t *testing.T) {
	reference, sources := setupRun(t)
	engine, err := NewEngine(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	result, err := engine.Generate(context.Background(), reference, sources)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	engine.cfg.Quality = -1
	path := filepath.Join(t.TempDir(), "mosaic.jpg")
	if err := engine.WriteFile(result, path); err == nil {
		t.Fatal("expected encode error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("output should not exist after a failed encode, stat: %v", err)
	}
}

func TestEngine_IndexCache(t *testing.T) {
	reference, sources := setupRun(t)
	cfg := testConfig()
	cfg.IndexCachePath = filepath.Join(t.TempDir(), "index.zst")
	engine, err := NewEngine(cfg, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if _, err := engine.Generate(context.Background(), reference, sources); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	cache, err := OpenIndexCache(cfg.IndexCachePath)
	if err != nil {
		t.Fatalf("cache not readable: %v", err)
	}
	if cache.Len() != 2 {
		t.Errorf("cache entries: got %d, want 2", cache.Len())
	}
}

func TestEngine_GenerateFromImage(t *testing.T) {
	_, sources := setupRun(t)
	cfg := testConfig()
	cfg.TilesHorizontal = 4
	cfg.TilesVertical = 4
	engine, err := NewEngine(cfg, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	result, err := engine.GenerateFromImage(context.Background(), solidImage(64, 48, color.RGBA{240, 20, 20, 255}), sources)
	if err != nil {
		t.Fatalf("GenerateFromImage failed: %v", err)
	}
	if len(result.Pairs) != 16 {
		t.Errorf("pairs: got %d, want 16", len(result.Pairs))
	}
	if result.DistinctSources() != 1 {
		t.Errorf("distinct sources: got %d, want 1", result.DistinctSources())
	}
}

func TestStage_String(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageValidate, "Validating files"},
		{StageReference, "Processing reference image"},
		{StageCorpus, "Analysing source images"},
		{StageCompose, "Processing mosaic"},
		{Stage(9), "Stage(9)"},
	}
	for _, tt := range tests {
		if got := tt.stage.String(); got != tt.want {
			t.Errorf("Stage(%d).String() = %q, want %q", int(tt.stage), got, tt.want)
		}
	}
}
