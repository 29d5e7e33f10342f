package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/wudi/pdfoverlay/contentstream"
	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/filters"
	"github.com/wudi/pdfoverlay/fonts"
	"github.com/wudi/pdfoverlay/ir/raw"
	"github.com/wudi/pdfoverlay/observability"
	"github.com/wudi/pdfoverlay/parser"
	"github.com/wudi/pdfoverlay/resources"
	"github.com/wudi/pdfoverlay/writer"
)

// kappa places the control points of a cubic Bézier quarter ellipse.
const kappa = 0.5522847498

var (
	ErrNoPage          = errors.New("builder: document has no page")
	ErrUnsupportedFont = errors.New("builder: unsupported font")
	ErrEmptyShape      = errors.New("builder: shape has no area")
)

// Color is an RGB colour with components in [0,1].
type Color struct{ R, G, B float64 }

func RGB(c [3]float64) Color { return Color{R: c[0], G: c[1], B: c[2]} }

// TextStyle configures DrawText.
type TextStyle struct {
	Font  string
	Size  float64
	Color Color
}

// EllipseStyle configures DrawEllipse. The ellipse is stroked, never filled.
type EllipseStyle struct {
	BorderWidth float64
	BorderColor Color
	// Opacity applies to the stroke. Values outside (0,1) are drawn opaque.
	Opacity float64
}

// Option configures a Page.
type Option func(*Page)

// WithMaxImagePixels downscales embedded images above n pixels. Zero keeps
// the source resolution.
func WithMaxImagePixels(n int) Option { return func(p *Page) { p.maxPixels = n } }

func WithWriter(w writer.Writer) Option { return func(p *Page) { p.writer = w } }

func WithLogger(l observability.Logger) Option { return func(p *Page) { p.log = l } }

// Page draws on the first page of a loaded template. Drawing only records
// content operators and new objects; Bytes writes them as an incremental
// update, so the template's own objects are copied byte for byte.
type Page struct {
	doc *parser.Document
	res *resources.Allocator

	ops     []contentstream.Operation
	objects map[raw.ObjectRef]raw.Object
	next    int

	fonts   map[string]string
	gstates map[float64]string

	maxPixels int
	writer    writer.Writer
	log       observability.Logger

	out []byte
}

// NewPage prepares page 1 of doc for drawing.
func NewPage(doc *parser.Document, opts ...Option) (*Page, error) {
	if doc == nil || doc.Page == nil {
		return nil, ErrNoPage
	}
	p := &Page{
		doc:     doc,
		res:     resources.NewAllocator(doc, doc.Page.Resources),
		objects: make(map[raw.ObjectRef]raw.Object),
		next:    doc.Table.Size(),
		fonts:   make(map[string]string),
		gstates: make(map[float64]string),
		writer:  writer.New(),
		log:     observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Size returns the width and height of the page's media box.
func (p *Page) Size() (float64, float64) {
	mb := p.doc.Page.MediaBox
	return mb[2] - mb[0], mb[3] - mb[1]
}

// Operations returns the overlay operators recorded so far.
func (p *Page) Operations() []contentstream.Operation {
	out := make([]contentstream.Operation, len(p.ops))
	copy(out, p.ops)
	return out
}

// DrawText draws a single line of text with its baseline starting at (x,y).
// Empty text draws nothing.
func (p *Page) DrawText(text string, x, y float64, style TextStyle) error {
	font, ok := fonts.Standard(style.Font)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedFont, style.Font)
	}
	if text == "" {
		return nil
	}
	name := p.fontResource(font)
	p.ops = append(p.ops,
		contentstream.Op("q"),
		contentstream.Op("BT"),
		contentstream.Op("Tf", contentstream.Name(name), contentstream.Num(style.Size)),
		contentstream.Op("Tm", contentstream.Num(1), contentstream.Num(0), contentstream.Num(0), contentstream.Num(1), contentstream.Num(x), contentstream.Num(y)),
		colorOp("rg", style.Color),
		contentstream.Op("Tj", contentstream.Str(font.Encode(text))),
		contentstream.Op("ET"),
		contentstream.Op("Q"),
	)
	return nil
}

// DrawEllipse strokes an ellipse centred on (cx,cy).
func (p *Page) DrawEllipse(cx, cy, rx, ry float64, style EllipseStyle) error {
	if rx <= 0 || ry <= 0 {
		return fmt.Errorf("%w: radii %v,%v", ErrEmptyShape, rx, ry)
	}
	p.ops = append(p.ops, contentstream.Op("q"))
	if style.Opacity > 0 && style.Opacity < 1 {
		p.ops = append(p.ops, contentstream.Op("gs", contentstream.Name(p.gstateResource(style.Opacity))))
	}
	p.ops = append(p.ops,
		contentstream.Op("w", contentstream.Num(style.BorderWidth)),
		colorOp("RG", style.BorderColor),
	)
	p.ops = append(p.ops, Ellipse(cx, cy, rx, ry).Operations()...)
	p.ops = append(p.ops, contentstream.Op("S"), contentstream.Op("Q"))
	return nil
}

// DrawImage embeds img and stretches it over the w×h box whose lower left
// corner is (x,y). The aspect ratio is not preserved.
func (p *Page) DrawImage(img image.Image, x, y, w, h float64) error {
	r := coords.Rect{X: x, Y: y, W: w, H: h}
	if r.W <= 0 || r.H <= 0 {
		return fmt.Errorf("%w: image rect %vx%v", ErrEmptyShape, r.W, r.H)
	}
	name, err := p.imageResource(img)
	if err != nil {
		return err
	}
	m := r.Placement()
	p.ops = append(p.ops,
		contentstream.Op("q"),
		contentstream.Op("cm", contentstream.Num(m[0]), contentstream.Num(m[1]), contentstream.Num(m[2]), contentstream.Num(m[3]), contentstream.Num(m[4]), contentstream.Num(m[5])),
		contentstream.Op("Do", contentstream.Name(name)),
		contentstream.Op("Q"),
	)
	return nil
}

// Ellipse approximates an ellipse with four cubic Bézier curves, starting
// and ending at the rightmost point and running counter-clockwise.
func Ellipse(cx, cy, rx, ry float64) contentstream.Path {
	kx, ky := rx*kappa, ry*kappa
	curve := func(c1x, c1y, c2x, c2y, x, y float64) contentstream.PathPoint {
		return contentstream.PathPoint{Type: contentstream.PathCurveTo, Control1X: c1x, Control1Y: c1y, Control2X: c2x, Control2Y: c2y, X: x, Y: y}
	}
	return contentstream.Path{Subpaths: []contentstream.Subpath{{
		Points: []contentstream.PathPoint{
			{Type: contentstream.PathMoveTo, X: cx + rx, Y: cy},
			curve(cx+rx, cy+ky, cx+kx, cy+ry, cx, cy+ry),
			curve(cx-kx, cy+ry, cx-rx, cy+ky, cx-rx, cy),
			curve(cx-rx, cy-ky, cx-kx, cy-ry, cx, cy-ry),
			curve(cx+kx, cy-ry, cx+rx, cy-ky, cx+rx, cy),
		},
		Closed: true,
	}}}
}

func colorOp(op string, c Color) contentstream.Operation {
	return contentstream.Op(op, contentstream.Num(c.R), contentstream.Num(c.G), contentstream.Num(c.B))
}

func (p *Page) add(obj raw.Object) raw.RefObj {
	ref := raw.Ref(p.next, 0)
	p.objects[ref.R] = obj
	p.next++
	return ref
}

func (p *Page) fontResource(f *fonts.Font) string {
	if name, ok := p.fonts[f.BaseFont]; ok {
		return name
	}
	name := p.res.Add(resources.CategoryFont, "F", p.add(f.Dict()))
	p.fonts[f.BaseFont] = name
	return name
}

func (p *Page) gstateResource(opacity float64) string {
	opacity = math.Round(opacity*1000) / 1000
	if name, ok := p.gstates[opacity]; ok {
		return name
	}
	gs := raw.Dict()
	gs.Set("Type", raw.NameLiteral("ExtGState"))
	gs.Set("CA", raw.NumberFloat(opacity))
	gs.Set("ca", raw.NumberFloat(opacity))
	name := p.res.Add(resources.CategoryExtGState, "GS", p.add(gs))
	p.gstates[opacity] = name
	return name
}

func (p *Page) imageResource(src image.Image) (string, error) {
	img := FromImage(src, p.maxPixels)
	var smask raw.Object
	if img.Alpha != nil {
		s, err := img.maskStream()
		if err != nil {
			return "", err
		}
		smask = p.add(s)
	}
	s, err := img.stream(smask)
	if err != nil {
		return "", err
	}
	return p.res.Add(resources.CategoryXObject, "Im", p.add(s)), nil
}

func compressed(dict *raw.DictObj, data []byte) (*raw.StreamObj, error) {
	enc, err := filters.FlateEncode(data)
	if err != nil {
		return nil, err
	}
	dict.Set("Filter", raw.NameLiteral("FlateDecode"))
	return raw.NewStream(dict, enc), nil
}

// Bytes writes the template followed by one incremental update holding the
// overlay. The result is cached; drawing after Bytes has no effect on it.
// With nothing drawn the template is returned unchanged.
func (p *Page) Bytes(ctx context.Context) ([]byte, error) {
	if p.out != nil {
		return p.out, nil
	}
	if len(p.ops) == 0 {
		p.out = append([]byte(nil), p.doc.Data...)
		return p.out, nil
	}

	existing, err := p.contents()
	if err != nil {
		return nil, err
	}
	overlay := contentstream.Encode(p.ops)
	var contents []raw.Object
	if len(existing) > 0 {
		// isolate the template's graphics state from the overlay
		pre, err := compressed(raw.Dict(), []byte("q\n"))
		if err != nil {
			return nil, err
		}
		contents = append(contents, p.add(pre))
		contents = append(contents, existing...)
		overlay = append([]byte("Q\n"), overlay...)
	}
	post, err := compressed(raw.Dict(), overlay)
	if err != nil {
		return nil, err
	}
	contents = append(contents, p.add(post))

	page := p.doc.Page.Dict.Clone()
	page.Set("Contents", raw.NewArray(contents...))
	page.Set("Resources", p.res.Dict())
	p.objects[p.doc.Page.Ref] = page

	var buf bytes.Buffer
	if err := p.writer.WriteIncremental(ctx, writer.Update{
		Original: p.doc.Data,
		Table:    p.doc.Table,
		Objects:  p.objects,
	}, &buf); err != nil {
		return nil, fmt.Errorf("write overlay: %w", err)
	}
	p.log.Debug("overlay written",
		observability.Int("objects", len(p.objects)),
		observability.Int("operators", len(p.ops)),
		observability.Int("bytes", buf.Len()))
	p.out = buf.Bytes()
	return p.out, nil
}

// contents lists the page's existing content streams as they should appear
// in a Contents array.
func (p *Page) contents() ([]raw.Object, error) {
	v, ok := p.doc.Page.Dict.Get("Contents")
	if !ok {
		return nil, nil
	}
	switch c := v.(type) {
	case *raw.ArrayObj:
		return append([]raw.Object(nil), c.Items...), nil
	case raw.RefObj:
		obj, err := p.doc.Load(c.R)
		if err != nil {
			return nil, fmt.Errorf("load page contents: %w", err)
		}
		switch t := obj.(type) {
		case *raw.ArrayObj:
			return append([]raw.Object(nil), t.Items...), nil
		case raw.NullObj:
			return nil, nil
		}
		return []raw.Object{c}, nil
	case raw.NullObj:
		return nil, nil
	}
	return nil, fmt.Errorf("page contents: unexpected %s", v.Type())
}
