package mosaic

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/mosaicr/internal/imaging"
)

// SourceImage is a candidate image of the corpus and its mean color.
type SourceImage struct {
	Path string      `json:"path"`
	Lab  imaging.Lab `json:"lab"`
}

// Corpus is the ordered, read-only set of usable source images.
//
// The order is the lexical order of the directory walk, which makes the
// first-match tie-break of the match engine reproducible across runs and
// independent of how indexing was parallelized.
type Corpus struct {
	Root   string        `json:"root"`
	Images []SourceImage `json:"images"`
}

// Len returns the number of images in the corpus.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Images)
}

// Labs returns the corpus colors in corpus order.
func (c *Corpus) Labs() []imaging.Lab {
	labs := make([]imaging.Lab, c.Len())
	for i, img := range c.Images {
		labs[i] = img.Lab
	}
	return labs
}

// Indexer scans a folder tree and measures the mean color of every image.
type Indexer struct {
	// Extensions are matched case-sensitively against file names.
	Extensions []string

	// Workers bounds the number of images decoded concurrently.
	Workers int

	// Cache, when set, supplies colors of unchanged files and receives the
	// colors of newly indexed ones.
	Cache *IndexCache

	// Progress, when set, is called after every file with the number of files
	// processed so far and the total number of candidate files.
	Progress func(done, total int)

	Log logrus.FieldLogger
}

// Index walks root recursively and returns the corpus of decodable images.
//
// Files that cannot be read or decoded, or that have no pixels, are skipped
// and logged at debug level. Directories that cannot be read are skipped and
// logged as warnings; the scan continues with the rest of the tree.
//
// # Errors
//
//   - ErrEmptyCorpus (wrapped with root and the extensions) when no usable
//     image was found
//   - ctx.Err() when the context is cancelled
func (ix *Indexer) Index(ctx context.Context, root string) (*Corpus, error) {
	log := ix.logger().WithField("root", root)

	paths := ix.scan(root, log)
	log.WithField("candidates", len(paths)).Debug("source folder scanned")

	labs := make([]imaging.Lab, len(paths))
	valid := make([]bool, len(paths))
	var done int64

	workers := ix.Workers
	if workers <= 0 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			labs[i], valid[i] = ix.measure(path, log)
			if ix.Progress != nil {
				ix.Progress(int(atomic.AddInt64(&done, 1)), len(paths))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	corpus := &Corpus{Root: root}
	for i, path := range paths {
		if valid[i] {
			corpus.Images = append(corpus.Images, SourceImage{Path: path, Lab: labs[i]})
		}
	}

	if corpus.Len() == 0 {
		return nil, fmt.Errorf("%w: no usable images (%s) found in source folder %q",
			ErrEmptyCorpus, strings.Join(ix.Extensions, ", "), root)
	}
	log.WithFields(logrus.Fields{
		"corpus":  corpus.Len(),
		"skipped": len(paths) - corpus.Len(),
	}).Info("source corpus indexed")
	return corpus, nil
}

// scan lists candidate files under root in lexical walk order.
func (ix *Indexer) scan(root string, log logrus.FieldLogger) []string {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("cannot read directory entry, skipping")
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if ix.matches(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Warn("source folder scan stopped early")
	}
	return paths
}

func (ix *Indexer) matches(name string) bool {
	for _, ext := range ix.Extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// measure returns the mean Lab color of the image at path, consulting the
// cache first. ok is false when the file is unusable.
func (ix *Indexer) measure(path string, log logrus.FieldLogger) (imaging.Lab, bool) {
	var info os.FileInfo
	if ix.Cache != nil {
		if fi, err := os.Stat(path); err == nil {
			info = fi
			if lab, ok := ix.Cache.Lookup(path, fi); ok {
				return lab, true
			}
		}
	}

	img, err := imaging.Open(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Debug("skipping source image")
		return imaging.Lab{}, false
	}
	lab, ok := imaging.ImageLab(img)
	if !ok {
		log.WithField("path", path).Debug("skipping source image without pixels")
		return imaging.Lab{}, false
	}

	if ix.Cache != nil && info != nil {
		ix.Cache.Store(path, info, lab)
	}
	return lab, true
}

func (ix *Indexer) logger() logrus.FieldLogger {
	if ix.Log != nil {
		return ix.Log
	}
	return logrus.StandardLogger()
}
