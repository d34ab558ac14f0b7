package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"

	"github.com/disintegration/imaging"
)

// GridOverlayResult contains an image with tile outlines drawn on top.
type GridOverlayResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	Tiles       int    `json:"tiles"`
}

// TileGridOverlay outlines every rectangle in rects on a copy of img and
// returns the result as a base64 PNG. rects are in img's coordinate space;
// the returned image starts at the origin. An invalid color falls back to
// semi-transparent red.
func TileGridOverlay(img image.Image, rects []image.Rectangle, gridColorHex string) (*GridOverlayResult, error) {
	bounds := img.Bounds()

	gridColor, err := parseHexColor(gridColorHex)
	if err != nil {
		gridColor = color.RGBA{255, 0, 0, 128}
	}

	result := imaging.Clone(img)

	for _, r := range rects {
		r = r.Intersect(bounds).Sub(bounds.Min)
		if r.Empty() {
			continue
		}
		for x := r.Min.X; x < r.Max.X; x++ {
			result.Set(x, r.Min.Y, gridColor)
			result.Set(x, r.Max.Y-1, gridColor)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			result.Set(r.Min.X, y, gridColor)
			result.Set(r.Max.X-1, y, gridColor)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, result); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &GridOverlayResult{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
		Tiles:       len(rects),
	}, nil
}

// parseHexColor parses a hex color string like "#FF0000" or "#FF000080"
func parseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b, a uint8 = 0, 0, 0, 255

	switch len(hex) {
	case 6:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 16)
		g = uint8(val >> 8)
		b = uint8(val)
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 24)
		g = uint8(val >> 16)
		b = uint8(val >> 8)
		a = uint8(val)
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}

	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}
