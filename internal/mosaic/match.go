package mosaic

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/ironsheep/mosaicr/internal/imaging"
)

// kdTreeThreshold is the corpus size from which IndexAuto uses the kd-tree.
const kdTreeThreshold = 256

// DistanceFunc measures the difference between two Lab colors.
type DistanceFunc func(a, b imaging.Lab) float64

// DistanceByName returns the distance function for a metric name.
func DistanceByName(metric string) (DistanceFunc, error) {
	switch metric {
	case "", MetricEuclidean:
		return imaging.EuclideanDistance, nil
	case MetricCIEDE2000:
		return imaging.CIEDE2000Distance, nil
	default:
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
}

// Finder locates the corpus entry closest to a color.
//
// Nearest returns the index of the first corpus entry (in corpus order)
// whose distance is minimal, together with that distance. Implementations
// must agree exactly with a brute-force scan using a strict "<" comparison.
type Finder interface {
	Nearest(lab imaging.Lab) (index int, distance float64)
}

// LinearFinder scans the whole corpus for every query.
type LinearFinder struct {
	labs     []imaging.Lab
	distance DistanceFunc
}

// NewLinearFinder returns a brute-force finder over corpus.
func NewLinearFinder(corpus *Corpus, distance DistanceFunc) *LinearFinder {
	if distance == nil {
		distance = imaging.EuclideanDistance
	}
	return &LinearFinder{labs: corpus.Labs(), distance: distance}
}

// Nearest implements Finder. It returns -1 for an empty corpus.
func (f *LinearFinder) Nearest(lab imaging.Lab) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	for i, candidate := range f.labs {
		if d := f.distance(lab, candidate); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

// KDTreeFinder answers Euclidean queries with a kd-tree over the corpus
// colors.
//
// The tree narrows the search to the entries within the nearest distance;
// the winner among them is chosen with the same first-index rule as
// LinearFinder, so both finders always select the same entry.
type KDTreeFinder struct {
	tree *kdtree.Tree
	labs []imaging.Lab
}

// NewKDTreeFinder builds a kd-tree over the corpus colors.
func NewKDTreeFinder(corpus *Corpus) *KDTreeFinder {
	labs := corpus.Labs()
	points := make(labPoints, len(labs))
	for i, lab := range labs {
		points[i] = labPoint{lab: lab, index: i}
	}
	f := &KDTreeFinder{labs: labs}
	if len(points) > 0 {
		f.tree = kdtree.New(points, false)
	}
	return f
}

// Nearest implements Finder. It returns -1 for an empty corpus.
func (f *KDTreeFinder) Nearest(lab imaging.Lab) (int, float64) {
	if f.tree == nil {
		return -1, math.Inf(1)
	}
	q := labPoint{lab: lab, index: -1}
	_, sq := f.tree.Nearest(q)

	// Widen the radius slightly so rounding in the squared distance cannot
	// drop an entry that the brute-force scan considers equal.
	keeper := kdtree.NewDistKeeper(sq*(1+1e-9) + 1e-12)
	f.tree.NearestSet(keeper, q)

	best, bestDist := -1, math.Inf(1)
	for _, c := range keeper.Heap {
		p, ok := c.Comparable.(labPoint)
		if !ok {
			continue
		}
		d := imaging.EuclideanDistance(lab, f.labs[p.index])
		if d < bestDist || (d == bestDist && p.index < best) {
			best, bestDist = p.index, d
		}
	}
	return best, bestDist
}

// NewFinder picks a finder for the configured metric and index strategy.
//
// Non-Euclidean metrics always use the linear scan. IndexAuto uses the
// kd-tree once the corpus reaches kdTreeThreshold entries.
func NewFinder(corpus *Corpus, metric, index string) (Finder, error) {
	distance, err := DistanceByName(metric)
	if err != nil {
		return nil, err
	}
	euclidean := metric == "" || metric == MetricEuclidean

	switch index {
	case IndexLinear:
		return NewLinearFinder(corpus, distance), nil
	case IndexKDTree:
		if !euclidean {
			return nil, fmt.Errorf("index %q requires the %s metric", IndexKDTree, MetricEuclidean)
		}
		return NewKDTreeFinder(corpus), nil
	case "", IndexAuto:
		if euclidean && corpus.Len() >= kdTreeThreshold {
			return NewKDTreeFinder(corpus), nil
		}
		return NewLinearFinder(corpus, distance), nil
	default:
		return nil, fmt.Errorf("unknown index %q", index)
	}
}

// Pair is a tile together with the source image chosen for it.
type Pair struct {
	Tile     Tile        `json:"tile"`
	Source   SourceImage `json:"source"`
	Distance float64     `json:"distance"`
}

// Match selects the nearest corpus image for every tile.
//
// Tiles are matched independently (a source image may be used any number of
// times) on up to workers goroutines. The result has one Pair per tile, in
// tile order. An empty corpus returns ErrEmptyCorpus before any tile is
// matched.
func Match(ctx context.Context, tiles []Tile, corpus *Corpus, finder Finder, workers int) ([]Pair, error) {
	if corpus == nil || corpus.Len() == 0 {
		return nil, ErrEmptyCorpus
	}
	if workers <= 0 {
		workers = 1
	}

	pairs := make([]Pair, len(tiles))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range tiles {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			idx, dist := finder.Nearest(tiles[i].Lab)
			if idx < 0 || idx >= corpus.Len() {
				return fmt.Errorf("no match for tile (%d,%d)", tiles[i].Column, tiles[i].Row)
			}
			pairs[i] = Pair{Tile: tiles[i], Source: corpus.Images[idx], Distance: dist}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pairs, nil
}

// labPoint is a corpus color stored in the kd-tree. index refers back to the
// corpus position.
type labPoint struct {
	lab   imaging.Lab
	index int
}

func (p labPoint) component(d kdtree.Dim) float64 {
	switch d {
	case 0:
		return p.lab.L
	case 1:
		return p.lab.A
	default:
		return p.lab.B
	}
}

// Compare implements kdtree.Comparable.
func (p labPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.component(d) - c.(labPoint).component(d)
}

// Dims implements kdtree.Comparable.
func (p labPoint) Dims() int { return 3 }

// Distance implements kdtree.Comparable. It returns the squared Euclidean
// distance, as the kd-tree expects.
func (p labPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(labPoint)
	dl := p.lab.L - q.lab.L
	da := p.lab.A - q.lab.A
	db := p.lab.B - q.lab.B
	return dl*dl + da*da + db*db
}

type labPoints []labPoint

func (p labPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p labPoints) Len() int                      { return len(p) }
func (p labPoints) Pivot(d kdtree.Dim) int        { return labPlane{labPoints: p, Dim: d}.Pivot() }
func (p labPoints) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}

// labPlane sorts labPoints along one dimension for pivot selection.
type labPlane struct {
	kdtree.Dim
	labPoints
}

func (p labPlane) Less(i, j int) bool {
	return p.labPoints[i].component(p.Dim) < p.labPoints[j].component(p.Dim)
}
func (p labPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p labPlane) Slice(start, end int) kdtree.SortSlicer {
	p.labPoints = p.labPoints[start:end]
	return p
}
func (p labPlane) Swap(i, j int) {
	p.labPoints[i], p.labPoints[j] = p.labPoints[j], p.labPoints[i]
}
