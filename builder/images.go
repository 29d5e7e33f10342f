package builder

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/wudi/pdfoverlay/ir/raw"
)

// Image is an 8-bit DeviceRGB raster ready to embed as an image XObject.
// Alpha is nil when every pixel is opaque.
type Image struct {
	Width, Height int
	Pixels        []byte
	Alpha         []byte
}

// FromImage converts src to RGB samples plus an optional soft mask. Images
// above maxPixels are resampled down, keeping their aspect ratio; the page
// stretches them to the target rectangle anyway.
func FromImage(src image.Image, maxPixels int) *Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxPixels > 0 && w*h > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(w*h))
		w = max(1, int(float64(w)*scale))
		h = max(1, int(float64(h)*scale))
	}

	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == bounds.Dx() && h == bounds.Dy() {
		draw.Draw(nrgba, nrgba.Bounds(), src, bounds.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(nrgba, nrgba.Bounds(), src, bounds, draw.Src, nil)
	}

	img := &Image{Width: w, Height: h, Pixels: make([]byte, 0, w*h*3)}
	alpha := make([]byte, 0, w*h)
	hasAlpha := false
	for i := 0; i < w*h; i++ {
		px := nrgba.Pix[i*4 : i*4+4]
		img.Pixels = append(img.Pixels, px[0], px[1], px[2])
		alpha = append(alpha, px[3])
		if px[3] < 255 {
			hasAlpha = true
		}
	}
	if hasAlpha {
		img.Alpha = alpha
	}
	return img
}

func (img *Image) dict(colorSpace string) *raw.DictObj {
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("XObject"))
	d.Set("Subtype", raw.NameLiteral("Image"))
	d.Set("Width", raw.NumberInt(int64(img.Width)))
	d.Set("Height", raw.NumberInt(int64(img.Height)))
	d.Set("ColorSpace", raw.NameLiteral(colorSpace))
	d.Set("BitsPerComponent", raw.NumberInt(8))
	return d
}

// stream builds the image XObject. smask, when non-nil, references the
// soft mask built by maskStream.
func (img *Image) stream(smask raw.Object) (*raw.StreamObj, error) {
	d := img.dict("DeviceRGB")
	if smask != nil {
		d.Set("SMask", smask)
	}
	return compressed(d, img.Pixels)
}

func (img *Image) maskStream() (*raw.StreamObj, error) {
	return compressed(img.dict("DeviceGray"), img.Alpha)
}
