package fonts

import (
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"

	"github.com/wudi/pdfoverlay/ir/raw"
)

// Font is a simple (single byte) standard font using WinAnsiEncoding.
type Font struct {
	BaseFont string

	widths    *[256]uint16
	missing   uint16
	ascent    float64
	descent   float64
	capHeight float64
}

// Ellipsis is appended by Truncate. WinAnsi has a single-glyph ellipsis.
const Ellipsis = "…"

// Replacement is drawn for runes outside WinAnsiEncoding.
const Replacement = '?'

// Encode converts s to WinAnsiEncoding bytes. Control characters become
// spaces and runes with no WinAnsi code become Replacement.
func (f *Font) Encode(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if unicode.IsControl(r) {
			out = append(out, ' ')
			continue
		}
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok || (f.widths[b] == 0 && b != ' ') {
			b = Replacement
		}
		out = append(out, b)
	}
	return out
}

// Width returns the advance width of s in points at the given size.
func (f *Font) Width(s string, size float64) float64 {
	return f.encodedWidth(f.Encode(s), size)
}

func (f *Font) encodedWidth(b []byte, size float64) float64 {
	var total float64
	for _, c := range b {
		w := f.widths[c]
		if w == 0 {
			w = f.missing
		}
		total += float64(w)
	}
	return total * size / 1000
}

// Truncate shortens s so that it fits in maxWidth points, appending
// Ellipsis when anything was cut. maxWidth <= 0 disables truncation.
func (f *Font) Truncate(s string, size, maxWidth float64) string {
	if maxWidth <= 0 || f.Width(s, size) <= maxWidth {
		return s
	}
	budget := maxWidth - f.Width(Ellipsis, size)
	var b strings.Builder
	used := 0.0
	for _, r := range s {
		w := f.Width(string(r), size)
		if used+w > budget {
			break
		}
		used += w
		b.WriteRune(r)
	}
	return strings.TrimRightFunc(b.String(), unicode.IsSpace) + Ellipsis
}

// Ascent is the height above the baseline in points at the given size.
func (f *Font) Ascent(size float64) float64 { return f.ascent * size / 1000 }

func (f *Font) Descent(size float64) float64 { return f.descent * size / 1000 }

func (f *Font) CapHeight(size float64) float64 { return f.capHeight * size / 1000 }

// Dict returns the font resource dictionary.
func (f *Font) Dict() *raw.DictObj {
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("Font"))
	d.Set("Subtype", raw.NameLiteral("Type1"))
	d.Set("BaseFont", raw.NameLiteral(f.BaseFont))
	d.Set("Encoding", raw.NameLiteral("WinAnsiEncoding"))
	return d
}

// Standard looks up a supported standard font by base name.
func Standard(name string) (*Font, bool) {
	switch name {
	case "", "Helvetica":
		return Helvetica, true
	}
	return nil, false
}
