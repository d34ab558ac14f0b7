package imaging

import (
	"image"

	"github.com/disintegration/imaging"
)

// FillGeometry computes how a srcW x srcH image is scaled and cropped so that
// it covers a dstW x dstH target without letterboxing.
//
// The source is first scaled to the target height, keeping its aspect ratio.
// If the scaled width is smaller than the target width it is scaled to the
// target width instead. The dimension that overflows the target is offset by
// half of the overflow; the other dimension equals the target exactly.
//
// Returns:
//   - size: the scaled source dimensions (always >= the target in both axes)
//   - offset: the top-left corner of the dstW x dstH crop within the scaled source
//
// All arithmetic is integer arithmetic; non-positive inputs are treated as 1.
func FillGeometry(srcW, srcH, dstW, dstH int) (size, offset image.Point) {
	srcW, srcH = atLeastOne(srcW), atLeastOne(srcH)
	dstW, dstH = atLeastOne(dstW), atLeastOne(dstH)

	newH := dstH
	newW := srcW * dstH / srcH
	if newW < dstW {
		newW = dstW
		newH = srcH * dstW / srcW
	}

	return image.Pt(newW, newH), image.Pt((newW-dstW)/2, (newH-dstH)/2)
}

// AspectFill scales img so that it covers width x height, then center-crops
// the excess. The result is always exactly width x height with the source's
// aspect ratio preserved in the retained region (crop, never squash).
func AspectFill(img image.Image, width, height int, rs Resampler) *image.NRGBA {
	width, height = atLeastOne(width), atLeastOne(height)
	b := img.Bounds()
	size, off := FillGeometry(b.Dx(), b.Dy(), width, height)

	scaled := rs.Resize(img, size.X, size.Y)
	sb := scaled.Bounds()
	crop := image.Rect(off.X, off.Y, off.X+width, off.Y+height).Add(sb.Min)

	return imaging.Crop(scaled, crop)
}
