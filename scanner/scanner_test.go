package scanner

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/wudi/pdfoverlay/ir/raw"
)

func newScanner(t *testing.T, data string, cfg Config) Scanner {
	t.Helper()
	return New([]byte(data), cfg)
}

func nextToken(t *testing.T, s Scanner) Token {
	t.Helper()
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tok
}

func TestScanner_BasicTokens(t *testing.T) {
	s := newScanner(t, "%PDF-1.7\n1 0 obj\n<< /Name /Value /Nums [1 2 3] /Flag true /Null null >>\nendobj", Config{})

	tok := nextToken(t, s)
	if tok.Type != TokenNumber || !tok.IsInt || tok.Int != 1 {
		t.Fatalf("expected first token number 1, got %+v", tok)
	}
	tok = nextToken(t, s)
	if tok.Type != TokenNumber || !tok.IsInt || tok.Int != 0 {
		t.Fatalf("expected generation number 0, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "obj" {
		t.Fatalf("expected obj keyword, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenDict {
		t.Fatalf("expected dict start, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Name" {
		t.Fatalf("expected Name key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Value" {
		t.Fatalf("expected Name value, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Nums" {
		t.Fatalf("expected Nums key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenArray {
		t.Fatalf("expected array start, got %+v", tok)
	}
	for i := int64(1); i <= 3; i++ {
		tok = nextToken(t, s)
		if tok.Type != TokenNumber || !tok.IsInt || tok.Int != i {
			t.Fatalf("expected array number %d, got %+v", i, tok)
		}
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "]" {
		t.Fatalf("expected array close, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Flag" {
		t.Fatalf("expected Flag key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenBoolean || !tok.Bool {
		t.Fatalf("expected true boolean, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Null" {
		t.Fatalf("expected Null key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenNull {
		t.Fatalf("expected null value, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != ">>" {
		t.Fatalf("expected dict close, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "endobj" {
		t.Fatalf("expected endobj, got %+v", tok)
	}
	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestScanner_NameHexEscapes(t *testing.T) {
	s := newScanner(t, "/Name#20With#23Hash", Config{})
	tok := nextToken(t, s)
	if tok.Type != TokenName || tok.Str != "Name With#Hash" {
		t.Fatalf("unexpected name decode: %+v", tok)
	}
}

func TestScanner_LiteralStringEscapes(t *testing.T) {
	s := newScanner(t, "(Hi\\n\\050\\051\\t (nested))", Config{})
	tok := nextToken(t, s)
	if tok.Type != TokenString {
		t.Fatalf("expected string, got %+v", tok)
	}
	if !bytes.Equal(tok.Bytes, []byte("Hi\n()\t (nested)")) {
		t.Fatalf("unexpected literal string: %q", tok.Bytes)
	}
}

func TestScanner_LiteralStringLineContinuation(t *testing.T) {
	s := newScanner(t, "(Line\\\r\ncontinued)", Config{})
	tok := nextToken(t, s)
	if got := string(tok.Bytes); got != "Linecontinued" {
		t.Fatalf("unexpected literal string with continuation: %q", got)
	}
}

func TestScanner_HexStringOddLength(t *testing.T) {
	s := newScanner(t, "<48656c6c6f3>", Config{})
	tok := nextToken(t, s)
	want := []byte("Hello0")
	if tok.Type != TokenString || !tok.Hex || !bytes.Equal(tok.Bytes, want) {
		t.Fatalf("expected padded hex string %q, got %+v", want, tok)
	}
}

func TestScanner_ReferenceDetection(t *testing.T) {
	s := newScanner(t, "12 5 R %comment\n", Config{})
	tok := nextToken(t, s)
	if tok.Type != TokenRef {
		t.Fatalf("expected ref, got %+v", tok)
	}
	if tok.Ref.Num != 12 || tok.Ref.Gen != 5 {
		t.Fatalf("unexpected ref value: %+v", tok)
	}
}

func TestScanner_NumbersAreNotReferences(t *testing.T) {
	s := newScanner(t, "0 0 595 842 RG", Config{})
	for _, want := range []int64{0, 0, 595, 842} {
		tok := nextToken(t, s)
		if tok.Type != TokenNumber || tok.Int != want {
			t.Fatalf("expected number %d, got %+v", want, tok)
		}
	}
	if tok := nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "RG" {
		t.Fatalf("expected RG keyword, got %+v", tok)
	}
}

func TestScanner_RealNumbers(t *testing.T) {
	s := newScanner(t, "-.5 3.25", Config{})
	if tok := nextToken(t, s); tok.IsInt || tok.Float != -0.5 {
		t.Fatalf("expected -0.5, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.IsInt || tok.Float != 3.25 {
		t.Fatalf("expected 3.25, got %+v", tok)
	}
}

func TestScanner_StreamWithLength(t *testing.T) {
	s := newScanner(t, "stream\r\nabcde\r\nendstream", Config{})
	s.SetNextStreamLength(5)
	tok := nextToken(t, s)
	if tok.Type != TokenStream || string(tok.Bytes) != "abcde" {
		t.Fatalf("unexpected stream token: %+v", tok)
	}
}

func TestScanner_StreamWrongLengthFallsBack(t *testing.T) {
	s := newScanner(t, "stream\nabcdef\nendstream", Config{})
	s.SetNextStreamLength(3)
	tok := nextToken(t, s)
	if got := string(tok.Bytes); got != "abcdef" {
		t.Fatalf("unexpected stream payload: %q", got)
	}
}

func TestScanner_StreamFallbackToEndstream(t *testing.T) {
	s := newScanner(t, "stream\nabc\r\nendstream\n", Config{})
	tok := nextToken(t, s)
	if got := string(tok.Bytes); got != "abc" {
		t.Fatalf("unexpected stream payload: %q", got)
	}
}

func TestScanner_StreamCRPrecedingEndstream(t *testing.T) {
	s := newScanner(t, "stream\rdata\rendstream\r", Config{})
	tok := nextToken(t, s)
	if got := string(tok.Bytes); got != "data" {
		t.Fatalf("unexpected stream payload: %q", got)
	}
}

func TestScanner_StreamMissingEndstream(t *testing.T) {
	s := newScanner(t, "stream\nabc", Config{})
	if _, err := s.Next(); err == nil {
		t.Fatalf("expected endstream error")
	}
}

func TestScanner_StringLimits(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "hex", data: "<000102>"},
		{name: "literal", data: "(abcdef)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newScanner(t, tc.data, Config{MaxStringLength: 2})
			if _, err := s.Next(); !errors.Is(err, ErrStringTooLong) {
				t.Fatalf("expected ErrStringTooLong, got %v", err)
			}
		})
	}
}

func TestScanner_UnterminatedStrings(t *testing.T) {
	for _, data := range []string{"(abc", "<4142"} {
		s := newScanner(t, data, Config{})
		if _, err := s.Next(); err == nil {
			t.Fatalf("expected error for %q", data)
		}
	}
}

func TestScanner_DepthLimits(t *testing.T) {
	s := newScanner(t, "[[[", Config{MaxArrayDepth: 2})
	nextToken(t, s)
	nextToken(t, s)
	if _, err := s.Next(); !errors.Is(err, ErrDepthExceeded) {
		t.Fatalf("expected depth error, got %v", err)
	}
}

func TestScanner_Seek(t *testing.T) {
	s := newScanner(t, "/A /B", Config{})
	if err := s.Seek(3); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if tok := nextToken(t, s); tok.Str != "B" {
		t.Fatalf("expected B after seek, got %+v", tok)
	}
	if err := s.Seek(99); err == nil {
		t.Fatalf("expected out of range seek to fail")
	}
}

func TestReader_ReadIndirectStream(t *testing.T) {
	data := "7 0 obj\n<< /Length 5 /Type /XObject /Skip null >>\nstream\nhello\nendstream\nendobj\n"
	r := NewReader(New([]byte(data), Config{}))
	ref, obj, err := r.ReadIndirect(func(d *raw.DictObj) int64 {
		if v, ok := d.Get("Length"); ok {
			return v.(raw.NumberObj).Int()
		}
		return -1
	})
	if err != nil {
		t.Fatalf("read indirect: %v", err)
	}
	if ref.Num != 7 || ref.Gen != 0 {
		t.Fatalf("unexpected ref %v", ref)
	}
	st, ok := obj.(*raw.StreamObj)
	if !ok {
		t.Fatalf("expected stream, got %T", obj)
	}
	if string(st.Data) != "hello" {
		t.Fatalf("unexpected stream data %q", st.Data)
	}
	if _, ok := st.Dict.Get("Skip"); ok {
		t.Fatalf("null entries should be dropped")
	}
}

func TestReader_ReadObjectNested(t *testing.T) {
	r := NewReader(New([]byte("<< /Kids [3 0 R 4 0 R] /Box [0 0 595.5 842] /S (x) >>"), Config{}))
	obj, err := r.ReadObject()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	d := obj.(*raw.DictObj)
	kids := d.KV["Kids"].(*raw.ArrayObj)
	if kids.Len() != 2 || kids.Items[1].(raw.RefObj).R.Num != 4 {
		t.Fatalf("unexpected kids %+v", kids)
	}
	box := d.KV["Box"].(*raw.ArrayObj)
	if box.Items[2].(raw.NumberObj).Float() != 595.5 {
		t.Fatalf("unexpected box %+v", box)
	}
}
