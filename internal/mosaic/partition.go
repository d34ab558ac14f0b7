package mosaic

import (
	"fmt"
	"image"
	"math"

	"github.com/ironsheep/mosaicr/internal/imaging"
)

// Layout describes the tile grid of a reference image at full resolution.
type Layout struct {
	Width  int `json:"width"`  // reference width in pixels
	Height int `json:"height"` // reference height in pixels

	Columns int `json:"columns"`
	Rows    int `json:"rows"`

	// TileWidth and TileHeight are the nominal tile size:
	// ceil(Width/Columns) x ceil(Height/Rows). Source images are cropped to
	// this size before they are drawn.
	TileWidth  int `json:"tile_width"`
	TileHeight int `json:"tile_height"`
}

// Tile is one cell of the reference grid.
type Tile struct {
	Column int `json:"column"`
	Row    int `json:"row"`

	// Bounds is the rectangle the tile covers in the full-resolution
	// reference, with the origin at the reference's top-left pixel. The last
	// column and row may be smaller than the nominal tile size.
	Bounds image.Rectangle `json:"bounds"`

	Lab imaging.Lab `json:"lab"`
}

// Partition is the result of slicing a reference image into tiles.
//
// Tiles are ordered column-major: all rows of column 0, then all rows of
// column 1, and so on. Tiles[c*Rows+r] is the tile at column c, row r.
type Partition struct {
	Layout

	// Scale is the factor applied to the reference before tile colors were
	// measured (1 when no downscaling happened).
	Scale float64 `json:"scale"`

	Tiles []Tile `json:"tiles"`
}

// TileAt returns the tile at column c, row r.
func (p *Partition) TileAt(c, r int) Tile {
	return p.Tiles[c*p.Rows+r]
}

// Rects returns the full-resolution rectangles of all tiles in tile order.
func (p *Partition) Rects() []image.Rectangle {
	rects := make([]image.Rectangle, len(p.Tiles))
	for i, t := range p.Tiles {
		rects[i] = t.Bounds
	}
	return rects
}

// PartitionImage slices ref into columns x rows tiles and measures the mean
// Lab color of each.
//
// # Algorithm
//
//  1. Nominal tile size is ceil(W/columns) x ceil(H/rows) at full resolution.
//  2. If both nominal dimensions exceed maxTileSize, the reference is
//     downscaled uniformly so that the longer nominal dimension becomes
//     maxTileSize. Otherwise the reference is used as is.
//  3. The tile size is re-derived in the downscaled space:
//     ceil(TileWidth*scale) x ceil(TileHeight*scale).
//  4. The grid is walked column-major; cells are clamped at the image border
//     so the last column and row absorb the remainder.
//
// Tile bounds always partition the reference exactly. When the nominal grid
// would leave trailing tiles without pixels (for example 10 pixels in 6
// columns), that dimension is split evenly instead so every tile keeps at
// least one pixel.
//
// # Errors
//
//   - columns or rows is not positive
//   - the reference has fewer pixels than tiles in either dimension
func PartitionImage(ref image.Image, columns, rows, maxTileSize int, rs imaging.Resampler) (*Partition, error) {
	if columns <= 0 || rows <= 0 {
		return nil, fmt.Errorf("tile counts must be positive, got %dx%d", columns, rows)
	}
	bounds := ref.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < columns || height < rows {
		return nil, fmt.Errorf("reference image %dx%d is too small for %dx%d tiles", width, height, columns, rows)
	}

	layout := Layout{
		Width:      width,
		Height:     height,
		Columns:    columns,
		Rows:       rows,
		TileWidth:  ceilDiv(width, columns),
		TileHeight: ceilDiv(height, rows),
	}

	scale := downscaleFactor(layout.TileWidth, layout.TileHeight, maxTileSize)
	small := ref
	if scale < 1 {
		small = rs.Resize(ref,
			maxInt(1, int(float64(width)*scale)),
			maxInt(1, int(float64(height)*scale)))
	}
	smallBounds := small.Bounds()

	xs, xEven := spans(width, columns, layout.TileWidth)
	ys, yEven := spans(height, rows, layout.TileHeight)

	tileWidthSmall := int(math.Ceil(float64(layout.TileWidth) * scale))
	tileHeightSmall := int(math.Ceil(float64(layout.TileHeight) * scale))
	xsSmall := cells(xs, xEven, tileWidthSmall, smallBounds.Dx(), scale)
	ysSmall := cells(ys, yEven, tileHeightSmall, smallBounds.Dy(), scale)

	tiles := make([]Tile, 0, columns*rows)
	for c := 0; c < columns; c++ {
		for r := 0; r < rows; r++ {
			cell := image.Rect(xsSmall[c].start, ysSmall[r].start, xsSmall[c].end, ysSmall[r].end).
				Add(smallBounds.Min)
			lab, ok := imaging.MeanLab(small, cell)
			if !ok {
				return nil, fmt.Errorf("tile (%d,%d) has no pixels in the measured reference", c, r)
			}
			tiles = append(tiles, Tile{
				Column: c,
				Row:    r,
				Bounds: image.Rect(xs[c].start, ys[r].start, xs[c].end, ys[r].end),
				Lab:    lab,
			})
		}
	}

	return &Partition{Layout: layout, Scale: scale, Tiles: tiles}, nil
}

// downscaleFactor returns the factor that maps the longer nominal tile edge
// to maxTileSize, or 1 when either edge is already within the limit.
func downscaleFactor(tileWidth, tileHeight, maxTileSize int) float64 {
	if tileWidth <= maxTileSize || tileHeight <= maxTileSize {
		return 1
	}
	if tileWidth > tileHeight {
		return float64(maxTileSize) / float64(tileWidth)
	}
	return float64(maxTileSize) / float64(tileHeight)
}

type span struct {
	start, end int
}

// spans splits total pixels into count consecutive non-empty ranges of the
// nominal size, the last one absorbing the remainder. If the nominal grid
// would run out of pixels early, the ranges are distributed evenly instead
// and even is true.
func spans(total, count, nominal int) (out []span, even bool) {
	out = make([]span, count)
	if (count-1)*nominal < total {
		for i := range out {
			start := i * nominal
			out[i] = span{start, minInt(start+nominal, total)}
		}
		return out, false
	}
	for i := range out {
		out[i] = span{i * total / count, (i + 1) * total / count}
	}
	return out, true
}

// cells maps full-resolution spans into the downscaled image. Cells follow
// the downscaled nominal grid, clamped at the border. Evenly split spans,
// and cells that fall outside the downscaled image, use the scaled
// full-resolution span instead.
func cells(full []span, even bool, nominal, total int, scale float64) []span {
	out := make([]span, len(full))
	for i, s := range full {
		start := i * nominal
		end := minInt(start+nominal, total)
		if even || start >= end {
			start = minInt(int(float64(s.start)*scale), total-1)
			end = minInt(maxInt(int(math.Ceil(float64(s.end)*scale)), start+1), total)
		}
		out[i] = span{start, end}
	}
	return out
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
