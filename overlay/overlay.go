// Package overlay draws a checklist submission onto its PDF template.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/wudi/pdfoverlay/builder"
	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/fonts"
	"github.com/wudi/pdfoverlay/format"
	"github.com/wudi/pdfoverlay/observability"
	"github.com/wudi/pdfoverlay/parser"
	"github.com/wudi/pdfoverlay/recovery"
	"github.com/wudi/pdfoverlay/schema"
	"github.com/wudi/pdfoverlay/submission"
)

var (
	strictOnce   sync.Once
	strictPolicy *bluemonday.Policy
)

// StrictSanitizer returns a shared policy that strips every tag from text
// values, for deployments that receive values from untrusted HTML forms.
// bluemonday policies are safe for concurrent use once built.
func StrictSanitizer() *bluemonday.Policy {
	strictOnce.Do(func() { strictPolicy = bluemonday.StrictPolicy() })
	return strictPolicy
}

// Renderer turns value maps into filled documents. It holds no per-render
// state and is safe for concurrent use.
type Renderer struct {
	log             observability.Logger
	tracer          observability.Tracer
	schema          *schema.Schema
	layout          *coords.Registry
	policy          recovery.Strategy
	sanitizer       *bluemonday.Policy
	maxPixels       int
	maxDecodePixels int
	parserCfg       parser.Config
}

type Option func(*Renderer)

func WithLogger(l observability.Logger) Option { return func(r *Renderer) { r.log = l } }

func WithTracer(t observability.Tracer) Option { return func(r *Renderer) { r.tracer = t } }

func WithSchema(s *schema.Schema) Option { return func(r *Renderer) { r.schema = s } }

// WithLayout replaces the coordinate table, for a template revision whose
// artwork moved.
func WithLayout(l *coords.Registry) Option { return func(r *Renderer) { r.layout = l } }

// WithSignaturePolicy decides what a signature that cannot be embedded does
// to the render: ActionFail aborts with *EmbeddedAssetError, any other
// action logs and leaves the slot empty. The default skips.
func WithSignaturePolicy(s recovery.Strategy) Option { return func(r *Renderer) { r.policy = s } }

// WithSanitizer strips markup from text values with p before drawing. By
// default values are drawn verbatim.
func WithSanitizer(p *bluemonday.Policy) Option { return func(r *Renderer) { r.sanitizer = p } }

// WithMaxSignaturePixels downscales signature images above n pixels.
func WithMaxSignaturePixels(n int) Option { return func(r *Renderer) { r.maxPixels = n } }

// WithMaxDecodePixels rejects signatures whose PNG header declares more than
// n pixels before any pixel data is decoded. The rejection goes through the
// signature policy like any other undecodable image.
func WithMaxDecodePixels(n int) Option { return func(r *Renderer) { r.maxDecodePixels = n } }

// WithParserConfig sets how templates are loaded.
func WithParserConfig(cfg parser.Config) Option { return func(r *Renderer) { r.parserCfg = cfg } }

func New(opts ...Option) *Renderer {
	r := &Renderer{
		log:             observability.NopLogger{},
		tracer:          observability.NopTracer(),
		policy:          recovery.NewSkipStrategy(),
		maxDecodePixels: submission.DefaultMaxDecodePixels,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = observability.NopLogger{}
	}
	if r.tracer == nil {
		r.tracer = observability.NopTracer()
	}
	if r.policy == nil {
		r.policy = recovery.NewSkipStrategy()
	}
	if r.schema == nil {
		r.schema = schema.Default()
	}
	if r.layout == nil {
		r.layout = coords.Default()
	}
	return r
}

func (r *Renderer) Schema() *schema.Schema   { return r.schema }
func (r *Renderer) Layout() *coords.Registry { return r.layout }

// Render loads template, draws values on its first page and returns the
// template followed by an incremental update holding the overlay.
func (r *Renderer) Render(ctx context.Context, template []byte, values submission.Values) ([]byte, error) {
	doc, err := parser.NewDocumentParser(r.parserCfg).Parse(ctx, template)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TemplateLoadError{Err: err}
	}
	page, err := builder.NewPage(doc,
		builder.WithMaxImagePixels(r.maxPixels),
		builder.WithLogger(r.log))
	if err != nil {
		return nil, &TemplateLoadError{Err: err}
	}
	if err := r.Draw(ctx, page, values); err != nil {
		return nil, err
	}
	return page.Bytes(ctx)
}

type pass struct {
	name string
	draw func(context.Context, Canvas, submission.Submission) (int, error)
}

// Draw runs the three passes against c in a fixed order: plain fields, then
// evaluation markers and observations, then signatures. Later passes paint
// over earlier ones. ctx is checked between passes.
func (r *Renderer) Draw(ctx context.Context, c Canvas, values submission.Values) error {
	sub := submission.FromValues(r.schema, values)
	passes := []pass{
		{"fields", r.drawFields},
		{"evaluations", r.drawEvaluations},
		{"signatures", r.drawSignatures},
	}
	for _, p := range passes {
		if err := ctx.Err(); err != nil {
			return err
		}
		spanCtx, span := r.tracer.StartSpan(ctx, "overlay."+p.name)
		n, err := p.draw(spanCtx, c, sub)
		span.SetTag("draws", n)
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
		if err != nil {
			return err
		}
		r.log.Debug("pass complete", observability.String("pass", p.name), observability.Int("draws", n))
	}
	return nil
}

func (r *Renderer) textStyle(size float64) builder.TextStyle {
	t := r.layout.Text()
	return builder.TextStyle{Font: t.Font, Size: size, Color: builder.RGB(t.Color)}
}

func (r *Renderer) sanitize(s string) string {
	if r.sanitizer == nil || s == "" {
		return s
	}
	return html.UnescapeString(r.sanitizer.Sanitize(s))
}

func (r *Renderer) fieldText(f submission.Field) string {
	out := format.Value(f.Kind, f.Value)
	if out == f.Value && (f.Kind == schema.KindDateTimeLocal || f.Kind == schema.KindDate) {
		r.log.Warn("value drawn unformatted",
			observability.String("field", f.Key),
			observability.String("value", f.Value))
	}
	return r.sanitize(out)
}

func (r *Renderer) drawFields(_ context.Context, c Canvas, sub submission.Submission) (int, error) {
	style := r.textStyle(r.layout.Text().Size)
	n := 0
	for _, f := range sub.Fields {
		pt, ok := r.layout.Point(f.Key)
		if !ok {
			r.log.Debug("no coordinates", observability.String("field", f.Key))
			continue
		}
		text := r.fieldText(f)
		if text == "" {
			continue
		}
		if err := c.DrawText(text, pt.X, pt.Y, style); err != nil {
			return n, fmt.Errorf("draw field %s: %w", f.Key, err)
		}
		n++
	}
	return n, nil
}

func (r *Renderer) drawEvaluations(_ context.Context, c Canvas, sub submission.Submission) (int, error) {
	cols := r.layout.Columns()
	m := r.layout.Markers()
	marker := builder.EllipseStyle{BorderWidth: m.BorderWidth, BorderColor: builder.RGB(m.Color), Opacity: m.Opacity}
	obsStyle := r.textStyle(r.layout.Text().ObservationSize)
	font, _ := fonts.Standard(obsStyle.Font)

	n := 0
	for _, ev := range sub.Evaluations {
		y, ok := r.layout.Row(ev.ItemID)
		if !ok {
			r.log.Debug("no row anchor", observability.String("item", ev.ItemID))
			continue
		}
		var err error
		switch ev.Condition {
		case submission.Pass:
			err = c.DrawEllipse(cols.PassX, y, m.Pass.RX, m.Pass.RY, marker)
			n++
		case submission.Fail:
			err = c.DrawEllipse(cols.FailX, y, m.Fail.RX, m.Fail.RY, marker)
			n++
		}
		if err != nil {
			return n, fmt.Errorf("draw marker %s: %w", ev.ItemID, err)
		}

		obs := r.sanitize(ev.Observation)
		if obs == "" {
			continue
		}
		if font != nil && cols.ObsWidth > 0 {
			obs = font.Truncate(obs, obsStyle.Size, cols.ObsWidth)
		}
		if err := c.DrawText(obs, cols.ObsX, y, obsStyle); err != nil {
			return n, fmt.Errorf("draw observation %s: %w", ev.ItemID, err)
		}
		n++
	}
	return n, nil
}

func (r *Renderer) drawSignatures(ctx context.Context, c Canvas, sub submission.Submission) (int, error) {
	n := 0
	for _, sig := range sub.Signatures {
		rect, ok := r.layout.Rect(sig.SlotID)
		if !ok {
			r.log.Debug("no signature rect", observability.String("slot", sig.SlotID))
			continue
		}
		img, err := submission.DecodePNG(sig.DataURL, r.maxDecodePixels)
		if err == nil {
			err = c.DrawImage(img, rect.X, rect.Y, rect.W, rect.H)
		}
		if err == nil {
			n++
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return n, err
		}
		assetErr := &EmbeddedAssetError{Slot: sig.SlotID, Err: err}
		loc := recovery.Location{Component: "overlay:signature", Field: sig.SlotID}
		if r.policy.OnError(ctx, assetErr, loc) == recovery.ActionFail {
			return n, assetErr
		}
		r.log.Warn("signature skipped", observability.String("slot", sig.SlotID), observability.Error("err", err))
	}
	return n, nil
}
