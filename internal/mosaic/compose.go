package mosaic

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/mosaicr/internal/imaging"
)

// DefaultTileCacheSize is the number of prepared tiles kept by a Compositor.
const DefaultTileCacheSize = 64

// TileCache keeps source images that were already cropped and scaled to a
// tile size. The same source is often chosen for many tiles of a mosaic,
// and decoding plus resampling a full-resolution photo dominates the
// compositing cost.
//
// When full, the oldest entry is evicted. TileCache is safe for concurrent use.
type TileCache struct {
	mu          sync.Mutex
	size        int
	content     map[tileKey]image.Image
	insertOrder []tileKey
}

type tileKey struct {
	path          string
	width, height int
}

// NewTileCache returns an empty cache holding at most size tiles (at least 1).
func NewTileCache(size int) *TileCache {
	if size <= 0 {
		size = 1
	}
	return &TileCache{
		size:        size,
		content:     make(map[tileKey]image.Image, size),
		insertOrder: make([]tileKey, 0, size),
	}
}

// Get returns the prepared tile, or nil if it is not cached.
func (c *TileCache) Get(path string, width, height int) image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content[tileKey{path, width, height}]
}

// Put adds a prepared tile, evicting the oldest entry when the cache is full.
func (c *TileCache) Put(path string, width, height int, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := tileKey{path, width, height}
	if _, ok := c.content[key]; ok {
		return
	}
	if len(c.insertOrder) >= c.size {
		oldest := c.insertOrder[0]
		c.insertOrder = c.insertOrder[1:]
		delete(c.content, oldest)
	}
	c.insertOrder = append(c.insertOrder, key)
	c.content[key] = img
}

// Len returns the number of cached tiles.
func (c *TileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.content)
}

// Compositor draws matched source images into the output canvas.
type Compositor struct {
	Resampler imaging.Resampler
	Workers   int
	Cache     *TileCache

	// Open loads a source image. It defaults to imaging.Open.
	Open func(path string) (image.Image, error)

	// Progress, when set, is called after every drawn tile.
	Progress func(done, total int)

	Log logrus.FieldLogger
}

// Compose renders the mosaic.
//
// The canvas is exactly layout.Width x layout.Height. Every pair's source is
// decoded at full resolution, aspect-fill cropped to the nominal tile size
// and drawn at its tile's position, clipped to the tile's bounds. Tiles are
// disjoint, so workers draw concurrently without locking.
//
// # Errors
//
//   - a source image that can no longer be decoded aborts the run
//   - ctx.Err() when the context is cancelled
func (c *Compositor) Compose(ctx context.Context, layout Layout, pairs []Pair) (*image.NRGBA, error) {
	if c.Resampler == nil {
		return nil, fmt.Errorf("compositor has no resampler")
	}
	open := c.Open
	if open == nil {
		open = imaging.Open
	}
	cache := c.Cache
	if cache == nil {
		cache = NewTileCache(DefaultTileCacheSize)
	}
	workers := c.Workers
	if workers <= 0 {
		workers = 1
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, layout.Width, layout.Height))
	var done int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, pair := range pairs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tile, err := c.prepare(pair.Source.Path, layout.TileWidth, layout.TileHeight, open, cache)
			if err != nil {
				return fmt.Errorf("tile (%d,%d): %w", pair.Tile.Column, pair.Tile.Row, err)
			}
			dst := pair.Tile.Bounds.Intersect(canvas.Bounds())
			draw.Draw(canvas, dst, tile, tile.Bounds().Min, draw.Src)
			if c.Progress != nil {
				c.Progress(int(atomic.AddInt64(&done, 1)), len(pairs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return canvas, nil
}

func (c *Compositor) prepare(path string, width, height int, open func(string) (image.Image, error), cache *TileCache) (image.Image, error) {
	if tile := cache.Get(path, width, height); tile != nil {
		return tile, nil
	}
	src, err := open(path)
	if err != nil {
		return nil, err
	}
	tile := imaging.AspectFill(src, width, height, c.Resampler)
	cache.Put(path, width, height, tile)
	c.logger().WithField("path", path).Debug("source prepared")
	return tile, nil
}

func (c *Compositor) logger() logrus.FieldLogger {
	if c.Log != nil {
		return c.Log
	}
	return logrus.StandardLogger()
}
