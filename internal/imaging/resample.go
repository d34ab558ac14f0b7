package imaging

import (
	"fmt"
	"image"
	"sort"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	xdraw "golang.org/x/image/draw"
)

// Resampler scales an image to exactly width x height pixels.
//
// Implementations ignore the aspect ratio of the input; callers decide the
// target size (see AspectFill). Width and height must be at least 1.
type Resampler interface {
	Resize(img image.Image, width, height int) image.Image
	Name() string
}

// DefaultResampler is the name of the resampler used when none is configured.
const DefaultResampler = "imaging"

var resamplers = map[string]Resampler{
	"imaging": imagingResampler{},
	"bild":    bildResampler{},
	"nfnt":    nfntResampler{},
	"xdraw":   xdrawResampler{},
}

// ResamplerByName returns the named resampler.
//
// Supported names:
//   - "imaging": disintegration/imaging with the Catmull-Rom filter (default)
//   - "bild": anthonynsimon/bild with the Catmull-Rom filter
//   - "nfnt": nfnt/resize with bicubic interpolation
//   - "xdraw": golang.org/x/image/draw Catmull-Rom scaler
func ResamplerByName(name string) (Resampler, error) {
	if name == "" {
		name = DefaultResampler
	}
	r, ok := resamplers[name]
	if !ok {
		return nil, fmt.Errorf("unknown resampler %q (supported: %v)", name, ResamplerNames())
	}
	return r, nil
}

// ResamplerNames lists the supported resampler names in sorted order.
func ResamplerNames() []string {
	names := make([]string, 0, len(resamplers))
	for name := range resamplers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type imagingResampler struct{}

func (imagingResampler) Name() string { return "imaging" }

func (imagingResampler) Resize(img image.Image, width, height int) image.Image {
	return imaging.Resize(img, atLeastOne(width), atLeastOne(height), imaging.CatmullRom)
}

type bildResampler struct{}

func (bildResampler) Name() string { return "bild" }

func (bildResampler) Resize(img image.Image, width, height int) image.Image {
	return transform.Resize(img, atLeastOne(width), atLeastOne(height), transform.CatmullRom)
}

type nfntResampler struct{}

func (nfntResampler) Name() string { return "nfnt" }

func (nfntResampler) Resize(img image.Image, width, height int) image.Image {
	return resize.Resize(uint(atLeastOne(width)), uint(atLeastOne(height)), img, resize.Bicubic)
}

type xdrawResampler struct{}

func (xdrawResampler) Name() string { return "xdraw" }

func (xdrawResampler) Resize(img image.Image, width, height int) image.Image {
	dst := image.NewNRGBA(image.Rect(0, 0, atLeastOne(width), atLeastOne(height)))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
