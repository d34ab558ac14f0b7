package mosaic

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/ironsheep/mosaicr/internal/imaging"
)

// Metric names accepted by Config.Metric.
const (
	MetricEuclidean = "euclidean"
	MetricCIEDE2000 = "ciede2000"
)

// Index names accepted by Config.Index.
const (
	IndexAuto   = "auto"
	IndexLinear = "linear"
	IndexKDTree = "kdtree"
)

// Config holds all the parameters of a mosaic run.
type Config struct {
	ReferencePath   string
	SourceDir       string
	OutputPath      string
	TilesHorizontal int
	TilesVertical   int
	Quality         int

	// Extensions lists the file extensions scanned in SourceDir, compared
	// case-sensitively (".jpg" does not match "photo.JPG").
	Extensions []string

	Workers        int
	Resampler      string
	Metric         string
	Index          string
	IndexCachePath string

	// MaxTileSize is the tile edge, in pixels, above which the reference is
	// downscaled before tile colors are measured.
	MaxTileSize int
}

// DefaultConfig returns the configuration used when no flags are given.
func DefaultConfig() Config {
	return Config{
		TilesHorizontal: 20,
		TilesVertical:   20,
		Quality:         75,
		Extensions:      []string{".jpg"},
		Workers:         runtime.NumCPU(),
		Resampler:       imaging.DefaultResampler,
		Metric:          MetricEuclidean,
		Index:           IndexAuto,
		MaxTileSize:     100,
	}
}

// Validate checks the numeric and named options. It does not touch the
// filesystem; existence checks belong to the caller.
//
// All problems are reported together, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	var problems []string

	if c.TilesHorizontal <= 0 {
		problems = append(problems, "horizontal tile count must be a positive integer")
	}
	if c.TilesVertical <= 0 {
		problems = append(problems, "vertical tile count must be a positive integer")
	}
	if c.Quality < 0 || c.Quality > 100 {
		problems = append(problems, fmt.Sprintf("quality %d outside range 0-100", c.Quality))
	}
	if c.Workers <= 0 {
		problems = append(problems, "workers must be a positive integer")
	}
	if c.MaxTileSize <= 0 {
		problems = append(problems, "max tile size must be a positive integer")
	}
	if len(c.Extensions) == 0 {
		problems = append(problems, "at least one source extension is required")
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			problems = append(problems, fmt.Sprintf("invalid extension %q (expected e.g. \".jpg\")", ext))
		}
	}
	if _, err := imaging.ResamplerByName(c.Resampler); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.Metric {
	case MetricEuclidean, MetricCIEDE2000:
	default:
		problems = append(problems, fmt.Sprintf("unknown metric %q (supported: %s, %s)", c.Metric, MetricEuclidean, MetricCIEDE2000))
	}
	switch c.Index {
	case IndexAuto, IndexLinear, IndexKDTree:
	default:
		problems = append(problems, fmt.Sprintf("unknown index %q (supported: %s, %s, %s)", c.Index, IndexAuto, IndexLinear, IndexKDTree))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// ParseExtensions splits a comma separated extension list, adding the
// leading dot where it is missing. Case is preserved.
func ParseExtensions(list string) []string {
	var exts []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		exts = append(exts, part)
	}
	return exts
}

// Sentinel errors returned by the engine.
var (
	// ErrEmptyCorpus means indexing found no usable source image.
	ErrEmptyCorpus = errors.New("source corpus is empty")

	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid configuration")
)
