// Package testpdf builds small PDF files and PNG images for tests.
package testpdf

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
)

// Builder writes numbered objects followed by a classic xref table.
type Builder struct {
	buf     bytes.Buffer
	offsets map[int]int
	max     int
}

func New(version string) *Builder {
	b := &Builder{offsets: make(map[int]int)}
	fmt.Fprintf(&b.buf, "%%PDF-%s\n", version)
	return b
}

func (b *Builder) Obj(num int, body string) {
	b.offsets[num] = b.buf.Len()
	if num > b.max {
		b.max = num
	}
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

// Stream writes an unfiltered stream object; /Length is filled in.
func (b *Builder) Stream(num int, dict string, data string) {
	b.Obj(num, fmt.Sprintf("<< /Length %d %s >>\nstream\n%s\nendstream", len(data), dict, data))
}

func (b *Builder) Finish(trailer string) []byte {
	xrefOff := b.buf.Len()
	fmt.Fprintf(&b.buf, "xref\n0 %d\n0000000000 65535 f \n", b.max+1)
	for i := 1; i <= b.max; i++ {
		if off, ok := b.offsets[i]; ok {
			fmt.Fprintf(&b.buf, "%010d 00000 n \n", off)
		} else {
			b.buf.WriteString("0000000000 00000 f \n")
		}
	}
	fmt.Fprintf(&b.buf, "trailer\n<< /Size %d %s >>\nstartxref\n%d\n%%%%EOF\n", b.max+1, trailer, xrefOff)
	return append([]byte(nil), b.buf.Bytes()...)
}

// Template is a single A4 page that already uses the font name F1 and
// draws a frame, like a scanned checklist form.
func Template() []byte {
	b := New("1.7")
	b.Obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.Obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 595.28 841.89] >>")
	b.Obj(3, "<< /Type /Page /Parent 2 0 R /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>")
	b.Stream(4, "", "1 w 20 20 555 800 re S BT /F1 14 Tf 40 800 Td (CHECKLIST) Tj ET")
	b.Obj(5, "<< /Type /Font /Subtype /Type1 /BaseFont /Times-Roman >>")
	return b.Finish("/Root 1 0 R /ID [<00112233445566778899aabbccddeeff> <00112233445566778899aabbccddeeff>]")
}

// Blank is a single page with no content stream and no resources.
func Blank() []byte {
	b := New("1.4")
	b.Obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.Obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.Obj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 100] >>")
	return b.Finish("/Root 1 0 R")
}

// PNG encodes a w×h image filled with c.
func PNG(w, h int, c color.Color) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// PNGHeader returns a well-formed PNG whose IHDR declares a w×h RGBA image
// while its image data holds two bytes. Decoding the pixels fails, but only
// after the decoder has sized its buffer from the header.
func PNGHeader(w, h int) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := func(typ string, data []byte) {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(data)))
		buf.Write(n[:])
		buf.WriteString(typ)
		buf.Write(data)
		crc := crc32.NewIEEE()
		crc.Write([]byte(typ))
		crc.Write(data)
		binary.BigEndian.PutUint32(n[:], crc.Sum32())
		buf.Write(n[:])
	}
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], uint32(w))
	binary.BigEndian.PutUint32(ihdr[4:], uint32(h))
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // truecolour with alpha
	chunk("IHDR", ihdr)
	chunk("IDAT", []byte{0x78, 0x9c})
	chunk("IEND", nil)
	return buf.Bytes()
}

// DataURL wraps data as a base64 image/png data URL.
func DataURL(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}
