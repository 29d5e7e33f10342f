package builder

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfoverlay/contentstream"
	"github.com/wudi/pdfoverlay/internal/testpdf"
	"github.com/wudi/pdfoverlay/ir/raw"
	"github.com/wudi/pdfoverlay/parser"
)

func openTemplate(t *testing.T, data []byte, opts ...Option) *Page {
	t.Helper()
	doc, err := parser.Load(context.Background(), data)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	p, err := NewPage(doc, opts...)
	if err != nil {
		t.Fatalf("new page: %v", err)
	}
	return p
}

func reload(t *testing.T, data []byte) *parser.Document {
	t.Helper()
	doc, err := parser.Load(context.Background(), data)
	if err != nil {
		t.Fatalf("reparse output: %v", err)
	}
	return doc
}

func operators(ops []contentstream.Operation) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.Operator
	}
	return out
}

func TestDrawTextOperators(t *testing.T) {
	p := openTemplate(t, testpdf.Template())
	if err := p.DrawText("ACME", 75, 737, TextStyle{Size: 10, Color: Color{0, 0, 0.5}}); err != nil {
		t.Fatalf("DrawText: %v", err)
	}
	got := p.Operations()
	want := []string{"q", "BT", "Tf", "Tm", "rg", "Tj", "ET", "Q"}
	if diff := cmp.Diff(want, operators(got)); diff != "" {
		t.Fatalf("operators mismatch (-want +got):\n%s", diff)
	}
	// the template already uses F1
	if got[2].String() != "/F2 10 Tf" {
		t.Errorf("Tf = %q", got[2].String())
	}
	if got[3].String() != "1 0 0 1 75 737 Tm" {
		t.Errorf("Tm = %q", got[3].String())
	}
	if got[4].String() != "0 0 0.5 rg" {
		t.Errorf("rg = %q", got[4].String())
	}
}

func TestDrawTextReplacesUnencodableRunes(t *testing.T) {
	p := openTemplate(t, testpdf.Template())
	if err := p.DrawText("Añ€✓", 0, 0, TextStyle{Size: 8}); err != nil {
		t.Fatal(err)
	}
	tj := p.Operations()[5]
	s := tj.Operands[0].(contentstream.StringOperand)
	if want := []byte{'A', 0xF1, 0x80, '?'}; !bytes.Equal(s.Value, want) {
		t.Errorf("encoded = % x, want % x", s.Value, want)
	}
}

func TestDrawTextEmptyAndUnknownFont(t *testing.T) {
	p := openTemplate(t, testpdf.Template())
	if err := p.DrawText("", 0, 0, TextStyle{Size: 8}); err != nil {
		t.Fatalf("empty text: %v", err)
	}
	if n := len(p.Operations()); n != 0 {
		t.Errorf("empty text recorded %d ops", n)
	}
	err := p.DrawText("x", 0, 0, TextStyle{Font: "Comic-Sans", Size: 8})
	if !errors.Is(err, ErrUnsupportedFont) {
		t.Errorf("err = %v, want ErrUnsupportedFont", err)
	}
}

func TestEllipsePath(t *testing.T) {
	ops := Ellipse(100, 50, 20, 10).Operations()
	if diff := cmp.Diff([]string{"m", "c", "c", "c", "c", "h"}, operators(ops)); diff != "" {
		t.Fatalf("path operators (-want +got):\n%s", diff)
	}
	tests := []struct {
		idx  int
		want string
	}{
		{0, "120 50 m"},
		{1, "120 55.5228 111.0457 60 100 60 c"},
		{2, "88.9543 60 80 55.5228 80 50 c"},
		{3, "80 44.4772 88.9543 40 100 40 c"},
		{4, "111.0457 40 120 44.4772 120 50 c"},
	}
	for _, tt := range tests {
		if got := ops[tt.idx].String(); got != tt.want {
			t.Errorf("op %d = %q, want %q", tt.idx, got, tt.want)
		}
	}
}

func TestDrawEllipseOpacity(t *testing.T) {
	p := openTemplate(t, testpdf.Template())
	style := EllipseStyle{BorderWidth: 1.5, BorderColor: Color{1, 0, 0}, Opacity: 0.8}
	if err := p.DrawEllipse(10, 10, 5, 5, style); err != nil {
		t.Fatal(err)
	}
	if err := p.DrawEllipse(30, 10, 5, 5, style); err != nil {
		t.Fatal(err)
	}
	ops := p.Operations()
	want := []string{"q", "gs", "w", "RG", "m", "c", "c", "c", "c", "h", "S", "Q"}
	if diff := cmp.Diff(append(want, want...), operators(ops)); diff != "" {
		t.Fatalf("operators (-want +got):\n%s", diff)
	}
	if ops[1].String() != "/GS1 gs" || ops[13].String() != "/GS1 gs" {
		t.Errorf("graphics state not shared: %q %q", ops[1], ops[13])
	}
	if names := p.res.Names("ExtGState"); len(names) != 1 {
		t.Errorf("ExtGState names = %v", names)
	}

	opaque := openTemplate(t, testpdf.Template())
	if err := opaque.DrawEllipse(10, 10, 5, 5, EllipseStyle{BorderWidth: 1}); err != nil {
		t.Fatal(err)
	}
	if ops := opaque.Operations(); ops[1].Operator != "w" {
		t.Errorf("opaque ellipse should not set gs, got %q", ops[1])
	}
}

func TestDrawEllipseRejectsZeroRadius(t *testing.T) {
	p := openTemplate(t, testpdf.Template())
	if err := p.DrawEllipse(0, 0, 0, 4, EllipseStyle{}); !errors.Is(err, ErrEmptyShape) {
		t.Errorf("err = %v, want ErrEmptyShape", err)
	}
}

func TestDrawImagePlacement(t *testing.T) {
	p := openTemplate(t, testpdf.Template())
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	if err := p.DrawImage(img, 40, 80, 150, 50); err != nil {
		t.Fatal(err)
	}
	ops := p.Operations()
	if diff := cmp.Diff([]string{"q", "cm", "Do", "Q"}, operators(ops)); diff != "" {
		t.Fatalf("operators (-want +got):\n%s", diff)
	}
	if ops[1].String() != "150 0 0 50 40 80 cm" {
		t.Errorf("cm = %q", ops[1])
	}
	if ops[2].String() != "/Im1 Do" {
		t.Errorf("Do = %q", ops[2])
	}
	if err := p.DrawImage(img, 0, 0, 0, 10); !errors.Is(err, ErrEmptyShape) {
		t.Errorf("zero width: err = %v", err)
	}
}

func TestBytesWritesIncrementalUpdate(t *testing.T) {
	tmpl := testpdf.Template()
	p := openTemplate(t, tmpl)
	if err := p.DrawText("ACME", 75, 737, TextStyle{Size: 10}); err != nil {
		t.Fatal(err)
	}
	sig := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	sig.Set(1, 1, color.NRGBA{A: 255})
	if err := p.DrawImage(sig, 40, 80, 150, 50); err != nil {
		t.Fatal(err)
	}
	out, err := p.Bytes(context.Background())
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.HasPrefix(out, tmpl) {
		t.Fatal("template bytes were not preserved")
	}

	doc := reload(t, out)
	contents, ok := raw.ArrayValue(doc, doc.Page.Dict.KV["Contents"])
	if !ok || contents.Len() != 3 {
		t.Fatalf("Contents = %#v, want q/original/overlay array", doc.Page.Dict.KV["Contents"])
	}
	if contents.Items[1] != raw.Ref(4, 0) {
		t.Errorf("original content stream moved: %v", contents.Items[1])
	}

	data, err := doc.Contents()
	if err != nil {
		t.Fatalf("Contents: %v", err)
	}
	ops, err := contentstream.Parse(data)
	if err != nil {
		t.Fatalf("parse contents: %v", err)
	}
	names := operators(ops)
	if names[0] != "q" {
		t.Errorf("first operator = %q, want q", names[0])
	}
	joined := strings.Join(names, " ")
	if !strings.Contains(joined, "S BT Tf Td Tj ET Q q BT Tf Tm rg Tj ET Q q cm Do Q") {
		t.Errorf("unexpected operator sequence: %s", joined)
	}

	res := doc.Page.Resources
	fontsDict, _ := raw.DictValue(doc, res.KV["Font"])
	if diff := cmp.Diff([]string{"F1", "F2"}, fontsDict.Keys()); diff != "" {
		t.Errorf("fonts (-want +got):\n%s", diff)
	}
	f2, _ := raw.DictValue(doc, fontsDict.KV["F2"])
	if name, _ := raw.NameValue(doc, f2.KV["BaseFont"]); name != "Helvetica" {
		t.Errorf("F2 BaseFont = %q", name)
	}
	xobjects, _ := raw.DictValue(doc, res.KV["XObject"])
	imObj, err := doc.Resolve(xobjects.KV["Im1"])
	if err != nil {
		t.Fatal(err)
	}
	im, ok := imObj.(*raw.StreamObj)
	if !ok {
		t.Fatalf("Im1 is %T", imObj)
	}
	if _, ok := im.Dict.Get("SMask"); !ok {
		t.Error("transparent image has no SMask")
	}
	if w, _ := raw.IntValue(doc, im.Dict.KV["Width"]); w != 3 {
		t.Errorf("Width = %d", w)
	}
}

func TestBytesBlankPage(t *testing.T) {
	p := openTemplate(t, testpdf.Blank())
	if w, h := p.Size(); w != 200 || h != 100 {
		t.Errorf("Size = %v x %v", w, h)
	}
	if err := p.DrawEllipse(50, 50, 10, 5, EllipseStyle{BorderWidth: 1}); err != nil {
		t.Fatal(err)
	}
	out, err := p.Bytes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	doc := reload(t, out)
	contents, ok := raw.ArrayValue(doc, doc.Page.Dict.KV["Contents"])
	if !ok || contents.Len() != 1 {
		t.Fatalf("blank page should gain a single overlay stream, got %v", doc.Page.Dict.KV["Contents"])
	}
	data, err := doc.Contents()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("q\n1 w\n")) {
		t.Errorf("overlay should start with its own q, got %q", data)
	}
}

func TestBytesWithoutDrawingReturnsTemplate(t *testing.T) {
	tmpl := testpdf.Template()
	p := openTemplate(t, tmpl)
	out, err := p.Bytes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, tmpl) {
		t.Error("undrawn page should serialize to the template")
	}
}

func TestBytesDeterministic(t *testing.T) {
	render := func() []byte {
		p := openTemplate(t, testpdf.Template())
		_ = p.DrawText("09/06/24 - 09:30hs", 430, 760, TextStyle{Size: 10})
		_ = p.DrawEllipse(400, 600, 12, 7, EllipseStyle{BorderWidth: 1.5, Opacity: 0.8})
		_ = p.DrawImage(image.NewGray(image.Rect(0, 0, 2, 2)), 1, 2, 3, 4)
		out, err := p.Bytes(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		return out
	}
	if !bytes.Equal(render(), render()) {
		t.Error("identical drawings produced different bytes")
	}
}

func TestBytesCancelled(t *testing.T) {
	p := openTemplate(t, testpdf.Template())
	_ = p.DrawText("x", 0, 0, TextStyle{Size: 8})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Bytes(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
