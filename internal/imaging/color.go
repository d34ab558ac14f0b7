package imaging

import (
	"image"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// RGBColor represents an RGB color with 8-bit components.
//
// Each component ranges from 0 to 255, where:
//   - 0 represents no intensity (black for all components)
//   - 255 represents full intensity (white for all components)
type RGBColor struct {
	R uint8 `json:"r"` // Red component (0-255)
	G uint8 `json:"g"` // Green component (0-255)
	B uint8 `json:"b"` // Blue component (0-255)
}

// Lab represents a color in CIE-L*a*b* space under illuminant D65 and the
// 2° standard observer.
//
// Lab values are produced once by ToLab and never mutated afterwards. The
// Euclidean distance between two Lab values approximates the perceived
// difference between the colors.
type Lab struct {
	L float64 `json:"l"` // Lightness: 0 (black) to 100 (white)
	A float64 `json:"a"` // Green (negative) to red (positive)
	B float64 `json:"b"` // Blue (negative) to yellow (positive)
}

// Reference white for D65/2°, in the 0-100 XYZ scale.
const (
	whiteX = 95.047
	whiteY = 100.0
	whiteZ = 108.883
)

// ToLab converts an 8-bit sRGB triplet to CIE-L*a*b*.
//
// # Algorithm
//
//  1. Normalize each channel to 0-1 and undo the sRGB gamma:
//     v > 0.04045 ? ((v+0.055)/1.055)^2.4 : v/12.92, then scale by 100.
//  2. Linear sRGB -> XYZ using the D65 matrix, each component rounded to
//     4 decimal places.
//  3. Divide by the reference white (95.047, 100.0, 108.883).
//  4. CIE nonlinearity: v > 0.008856 ? v^(1/3) : 7.787*v + 16/116.
//  5. L = 116*Y - 16, a = 500*(X - Y), b = 200*(Y - Z), each rounded to
//     4 decimal places.
//
// Rounding is half-to-even. The function is pure and has no error conditions.
func ToLab(r, g, b uint8) Lab {
	lr := linearize(r)
	lg := linearize(g)
	lb := linearize(b)

	x := round4(lr*0.4124 + lg*0.3576 + lb*0.1805)
	y := round4(lr*0.2126 + lg*0.7152 + lb*0.0722)
	z := round4(lr*0.0193 + lg*0.1192 + lb*0.9505)

	fx := labF(x / whiteX)
	fy := labF(y / whiteY)
	fz := labF(z / whiteZ)

	return Lab{
		L: round4(116*fy - 16),
		A: round4(500 * (fx - fy)),
		B: round4(200 * (fy - fz)),
	}
}

// ToLab converts the color to CIE-L*a*b*.
func (c RGBColor) ToLab() Lab {
	return ToLab(c.R, c.G, c.B)
}

func linearize(c uint8) float64 {
	v := float64(c) / 255
	if v > 0.04045 {
		v = math.Pow((v+0.055)/1.055, 2.4)
	} else {
		v /= 12.92
	}
	return v * 100
}

func labF(v float64) float64 {
	if v > 0.008856 {
		return math.Pow(v, 1.0/3.0)
	}
	return 7.787*v + 16.0/116.0
}

func round4(v float64) float64 {
	return math.RoundToEven(v*10000) / 10000
}

// EuclideanDistance returns the straight-line distance between two colors in
// Lab space (the CIE76 color difference).
func EuclideanDistance(a, b Lab) float64 {
	dl := a.L - b.L
	da := a.A - b.A
	db := a.B - b.B
	return math.Sqrt(dl*dl + da*da + db*db)
}

// CIEDE2000Distance returns the CIEDE2000 color difference between two colors.
//
// go-colorful stores Lab scaled by 1/100, so the components are rescaled on
// the way in and the result is scaled back to the usual Delta E range.
func CIEDE2000Distance(a, b Lab) float64 {
	ca := colorful.Lab(a.L/100, a.A/100, a.B/100)
	cb := colorful.Lab(b.L/100, b.A/100, b.B/100)
	return ca.DistanceCIEDE2000(cb) * 100
}

// MeanColor computes the arithmetic mean of the red, green and blue channels
// over every pixel of rect.
//
// Parameters:
//   - img: The source image.
//   - rect: The region to average. It is intersected with the image bounds.
//
// Returns the mean color and true, or a zero color and false when the region
// contains no pixels. Callers must treat false as "no color", never as black.
//
// Channels are read as 8-bit values (16-bit samples are shifted down) and the
// sums are divided with integer division, so a uniform region always yields
// exactly its color. Alpha is ignored.
func MeanColor(img image.Image, rect image.Rectangle) (RGBColor, bool) {
	if img == nil {
		return RGBColor{}, false
	}
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return RGBColor{}, false
	}

	var sumR, sumG, sumB uint64
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			sumR += uint64(r >> 8)
			sumG += uint64(g >> 8)
			sumB += uint64(b >> 8)
		}
	}

	n := uint64(rect.Dx()) * uint64(rect.Dy())
	return RGBColor{
		R: uint8(sumR / n),
		G: uint8(sumG / n),
		B: uint8(sumB / n),
	}, true
}

// MeanLab is MeanColor followed by ToLab.
func MeanLab(img image.Image, rect image.Rectangle) (Lab, bool) {
	c, ok := MeanColor(img, rect)
	if !ok {
		return Lab{}, false
	}
	return c.ToLab(), true
}

// ImageLab returns the mean Lab color of the whole image.
func ImageLab(img image.Image) (Lab, bool) {
	if img == nil {
		return Lab{}, false
	}
	return MeanLab(img, img.Bounds())
}
