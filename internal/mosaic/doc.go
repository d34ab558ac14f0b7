// Package mosaic implements the photo-mosaic composition engine.
//
// A run has four parts:
//
//   - PartitionImage slices the reference image into a grid of tiles and
//     measures each tile's mean CIE-L*a*b* color, on a downscaled copy when
//     tiles are large.
//   - Indexer walks the source folder and measures the mean color of every
//     decodable image, skipping unusable files.
//   - Match picks, for every tile, the corpus image with the smallest color
//     distance. Ties go to the first image in corpus order.
//   - Compositor crops each chosen image to the tile size (aspect fill) and
//     draws it into a canvas the size of the reference.
//
// Engine wires the parts together from a Config.
//
// # Ordering
//
// Tiles are always ordered column-major. The corpus keeps the lexical order
// of the directory walk, regardless of how many workers decoded it, so runs
// over the same inputs produce the same pairings.
//
// # Concurrency
//
// Indexing, matching and compositing fan out over an errgroup bounded by
// Config.Workers. Results are written into pre-sized slices by index, and
// compositing workers draw into disjoint tile rectangles of the canvas.
package mosaic
