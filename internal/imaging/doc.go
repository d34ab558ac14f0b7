// Package imaging provides the pixel-level building blocks of the mosaic
// engine.
//
// This package implements color conversion to CIE-L*a*b*, region color
// averaging, image decoding and encoding, resampling, aspect-fill cropping and
// a tile grid preview. All operations work with standard Go image.Image types
// and use a coordinate system where (0,0) is at the top-left corner, X
// increases rightward, and Y increases downward.
//
// # Coordinate System
//
// Regions are image.Rectangle values: Min is inclusive, Max is exclusive.
// Regions passed to MeanColor are intersected with the image bounds first.
//
// # Color Representation
//
//   - RGBColor: 8-bit sRGB components (0-255)
//   - Lab: CIE-L*a*b* under D65/2°, components rounded to 4 decimal places
//
// # Resampling
//
// Resampler hides the scaling library. Four backends are available by name:
// disintegration/imaging (default), bild, nfnt/resize and x/image/draw.
// All of them return exactly the requested size.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. All other functions are
// stateless and can be called concurrently on different images.
package imaging
