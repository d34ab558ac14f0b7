package imaging

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// Format identifies an output encoding.
type Format = imaging.Format

// Output formats supported by Encode.
const (
	JPEG = imaging.JPEG
	PNG  = imaging.PNG
)

// FormatFromPath picks the output format from the destination file extension.
// Unknown or unsupported extensions fall back to JPEG.
func FormatFromPath(path string) Format {
	f, err := imaging.FormatFromFilename(path)
	if err != nil || (f != imaging.JPEG && f != imaging.PNG) {
		return imaging.JPEG
	}
	return f
}

// Encode writes img to w in the given format.
//
// quality applies to JPEG only and must be within 0-100; values outside
// that range are rejected instead of being passed to the encoder.
func Encode(w io.Writer, img image.Image, format Format, quality int) error {
	if quality < 0 || quality > 100 {
		return fmt.Errorf("quality %d outside range 0-100", quality)
	}

	var err error
	switch format {
	case imaging.PNG:
		err = imaging.Encode(w, img, imaging.PNG)
	default:
		err = imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	}
	if err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return nil
}

// EncodeBytes is Encode into a byte slice.
func EncodeBytes(img image.Image, format Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
