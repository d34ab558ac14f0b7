package mosaic

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/mosaicr/internal/imaging"
)

// Stage identifies a step of a mosaic run for progress reporting.
type Stage int

const (
	StageValidate Stage = iota + 1
	StageReference
	StageCorpus
	StageCompose
)

// StageCount is the number of stages reported by the engine.
const StageCount = 4

func (s Stage) String() string {
	switch s {
	case StageValidate:
		return "Validating files"
	case StageReference:
		return "Processing reference image"
	case StageCorpus:
		return "Analysing source images"
	case StageCompose:
		return "Processing mosaic"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// ProgressFunc receives progress updates. done and total count items within
// the stage (files for StageCorpus, tiles for StageCompose); both are zero
// when a stage starts. It may be called from several goroutines at once.
type ProgressFunc func(stage Stage, done, total int)

// Engine runs the full mosaic pipeline: partition the reference, index the
// source corpus, match tiles to sources and composite the result.
type Engine struct {
	cfg       Config
	resampler imaging.Resampler
	log       logrus.FieldLogger

	// Progress, when set, receives stage and item progress.
	Progress ProgressFunc

	// Indexed, when set, is called once the corpus is built and before
	// matching starts.
	Indexed func(corpus *Corpus)
}

// Result is a finished mosaic together with the intermediate data that
// produced it.
type Result struct {
	Image     *image.NRGBA
	Partition *Partition
	Corpus    *Corpus
	Pairs     []Pair
}

// DistinctSources returns how many different source images the mosaic uses.
func (r *Result) DistinctSources() int {
	seen := make(map[string]struct{}, len(r.Pairs))
	for _, p := range r.Pairs {
		seen[p.Source.Path] = struct{}{}
	}
	return len(seen)
}

// Encode writes the mosaic to w.
func (r *Result) Encode(w io.Writer, format imaging.Format, quality int) error {
	return imaging.Encode(w, r.Image, format, quality)
}

// Bytes returns the encoded mosaic.
func (r *Result) Bytes(format imaging.Format, quality int) ([]byte, error) {
	return imaging.EncodeBytes(r.Image, format, quality)
}

// NewEngine validates cfg and returns an engine. A nil log uses the logrus
// standard logger.
func NewEngine(cfg Config, log logrus.FieldLogger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rs, err := imaging.ResamplerByName(cfg.Resampler)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{cfg: cfg, resampler: rs, log: log}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Generate builds a mosaic of the image at referencePath from the images
// under sourceDir.
//
// # Errors
//
// All errors are fatal for the run:
//   - the reference image cannot be decoded or is too small for the grid
//   - the corpus is empty (ErrEmptyCorpus)
//   - a matched source image cannot be decoded while compositing
//   - ctx is cancelled
func (e *Engine) Generate(ctx context.Context, referencePath, sourceDir string) (*Result, error) {
	ref, err := imaging.Open(referencePath)
	if err != nil {
		return nil, fmt.Errorf("reference image %q: %w", referencePath, err)
	}
	return e.GenerateFromImage(ctx, ref, sourceDir)
}

// GenerateFromImage is Generate with an already decoded reference image.
func (e *Engine) GenerateFromImage(ctx context.Context, ref image.Image, sourceDir string) (*Result, error) {
	e.report(StageReference, 0, 0)
	part, err := e.Partition(ref)
	if err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{
		"tiles":       len(part.Tiles),
		"tile_width":  part.TileWidth,
		"tile_height": part.TileHeight,
		"scale":       part.Scale,
	}).Info("reference partitioned")

	e.report(StageCorpus, 0, 0)
	corpus, err := e.Index(ctx, sourceDir)
	if err != nil {
		return nil, err
	}
	if e.Indexed != nil {
		e.Indexed(corpus)
	}

	e.report(StageCompose, 0, 0)
	finder, err := NewFinder(corpus, e.cfg.Metric, e.cfg.Index)
	if err != nil {
		return nil, err
	}
	pairs, err := Match(ctx, part.Tiles, corpus, finder, e.cfg.Workers)
	if err != nil {
		return nil, err
	}

	comp := &Compositor{
		Resampler: e.resampler,
		Workers:   e.cfg.Workers,
		Cache:     NewTileCache(DefaultTileCacheSize),
		Log:       e.log,
		Progress: func(done, total int) {
			e.report(StageCompose, done, total)
		},
	}
	canvas, err := comp.Compose(ctx, part.Layout, pairs)
	if err != nil {
		return nil, err
	}

	return &Result{Image: canvas, Partition: part, Corpus: corpus, Pairs: pairs}, nil
}

// Partition slices ref into the configured tile grid.
func (e *Engine) Partition(ref image.Image) (*Partition, error) {
	part, err := PartitionImage(ref, e.cfg.TilesHorizontal, e.cfg.TilesVertical, e.cfg.MaxTileSize, e.resampler)
	if err != nil {
		return nil, fmt.Errorf("failed to partition reference image: %w", err)
	}
	return part, nil
}

// Index builds the source corpus, using and refreshing the index cache when
// one is configured. Cache problems are logged and never fail the run.
func (e *Engine) Index(ctx context.Context, sourceDir string) (*Corpus, error) {
	ix := &Indexer{
		Extensions: e.cfg.Extensions,
		Workers:    e.cfg.Workers,
		Log:        e.log,
		Progress: func(done, total int) {
			e.report(StageCorpus, done, total)
		},
	}

	if e.cfg.IndexCachePath != "" {
		cache, err := OpenIndexCache(e.cfg.IndexCachePath)
		if err != nil {
			e.log.WithError(err).WithField("path", e.cfg.IndexCachePath).Warn("ignoring index cache")
		}
		ix.Cache = cache
	}

	corpus, err := ix.Index(ctx, sourceDir)
	if ix.Cache != nil {
		if saveErr := ix.Cache.Save(); saveErr != nil {
			e.log.WithError(saveErr).Warn("failed to save index cache")
		}
	}
	if err != nil {
		return nil, err
	}
	return corpus, nil
}

// WriteFile encodes the result into path, choosing the format from the file
// extension. The mosaic is written to a temporary file in the same folder and
// renamed into place, so a failed encode never leaves a partial file at path.
func (e *Engine) WriteFile(r *Result, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".mosaic-*")
	if err != nil {
		return fmt.Errorf("cannot write output %q: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := r.Encode(tmp, imaging.FormatFromPath(path), e.cfg.Quality); err != nil {
		tmp.Close()
		return fmt.Errorf("cannot encode output %q: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("cannot write output %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cannot write output %q: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("cannot write output %q: %w", path, err)
	}
	e.log.WithField("path", path).Info("mosaic written")
	return nil
}

func (e *Engine) report(stage Stage, done, total int) {
	if e.Progress != nil {
		e.Progress(stage, done, total)
	}
}
