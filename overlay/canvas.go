package overlay

import (
	"fmt"
	"image"

	"github.com/wudi/pdfoverlay/builder"
)

// Canvas is the drawing surface the renderer drives. builder.Page is the PDF
// implementation; Recorder captures calls without producing a document.
type Canvas interface {
	DrawText(text string, x, y float64, style builder.TextStyle) error
	DrawEllipse(cx, cy, rx, ry float64, style builder.EllipseStyle) error
	DrawImage(img image.Image, x, y, w, h float64) error
}

type CallKind int

const (
	CallText CallKind = iota
	CallEllipse
	CallImage
)

func (k CallKind) String() string {
	switch k {
	case CallText:
		return "text"
	case CallEllipse:
		return "ellipse"
	case CallImage:
		return "image"
	}
	return "unknown"
}

// Call is one recorded drawing primitive. For ellipses X,Y is the centre
// and W,H the radii; for images X,Y,W,H is the target box.
type Call struct {
	Kind    CallKind
	X, Y    float64
	W, H    float64
	Text    string
	Size    float64
	Opacity float64
	// ImageSize is the source image's pixel dimensions.
	ImageSize image.Point
}

func (c Call) String() string {
	switch c.Kind {
	case CallText:
		return fmt.Sprintf("text %q at (%g,%g) size %g", c.Text, c.X, c.Y, c.Size)
	case CallEllipse:
		return fmt.Sprintf("ellipse at (%g,%g) radii %gx%g", c.X, c.Y, c.W, c.H)
	case CallImage:
		return fmt.Sprintf("image %dx%d into (%g,%g) %gx%g", c.ImageSize.X, c.ImageSize.Y, c.X, c.Y, c.W, c.H)
	}
	return "unknown call"
}

// Recorder is a Canvas that keeps every call in order.
type Recorder struct {
	Calls []Call
}

func (r *Recorder) DrawText(text string, x, y float64, style builder.TextStyle) error {
	r.Calls = append(r.Calls, Call{Kind: CallText, Text: text, X: x, Y: y, Size: style.Size})
	return nil
}

func (r *Recorder) DrawEllipse(cx, cy, rx, ry float64, style builder.EllipseStyle) error {
	r.Calls = append(r.Calls, Call{Kind: CallEllipse, X: cx, Y: cy, W: rx, H: ry, Opacity: style.Opacity})
	return nil
}

func (r *Recorder) DrawImage(img image.Image, x, y, w, h float64) error {
	r.Calls = append(r.Calls, Call{Kind: CallImage, X: x, Y: y, W: w, H: h, ImageSize: img.Bounds().Size()})
	return nil
}

// Count returns how many recorded calls have kind k.
func (r *Recorder) Count(k CallKind) int {
	n := 0
	for _, c := range r.Calls {
		if c.Kind == k {
			n++
		}
	}
	return n
}
