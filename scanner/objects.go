package scanner

import (
	"errors"
	"fmt"

	"github.com/wudi/pdfoverlay/ir/raw"
)

// Reader assembles raw objects from scanner tokens. It keeps a small pushback
// buffer so dictionary parsing can look ahead for a following stream.
type Reader struct {
	s   Scanner
	buf []Token
}

func NewReader(s Scanner) *Reader { return &Reader{s: s} }

func (r *Reader) Next() (Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *Reader) Unread(tok Token) { r.buf = append(r.buf, tok) }

// ReadObject parses one direct object (streams are only produced by
// ReadIndirect).
func (r *Reader) ReadObject() (raw.Object, error) {
	tok, err := r.Next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case TokenName:
		return raw.NameObj{Val: tok.Str}, nil
	case TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Float), nil
	case TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case TokenNull:
		return raw.NullObj{}, nil
	case TokenString:
		return raw.StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case TokenArray:
		return r.readArray()
	case TokenDict:
		return r.readDict()
	case TokenRef:
		return raw.RefObj{R: tok.Ref}, nil
	}
	return nil, fmt.Errorf("unexpected token %q at %d", tok.Str, tok.Pos)
}

func (r *Reader) readArray() (raw.Object, error) {
	arr := &raw.ArrayObj{}
	for {
		tok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenKeyword && tok.Str == "]" {
			return arr, nil
		}
		r.Unread(tok)
		item, err := r.ReadObject()
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func (r *Reader) readDict() (*raw.DictObj, error) {
	d := raw.Dict()
	for {
		tok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenKeyword && tok.Str == ">>" {
			return d, nil
		}
		if tok.Type != TokenName {
			return nil, fmt.Errorf("expected name in dict at %d", tok.Pos)
		}
		val, err := r.ReadObject()
		if err != nil {
			return nil, err
		}
		// null-valued entries are equivalent to absent ones
		if _, isNull := val.(raw.NullObj); isNull {
			continue
		}
		d.Set(tok.Str, val)
	}
}

// LengthFunc reports the declared /Length of a stream dictionary, or -1 when
// it is unknown.
type LengthFunc func(dict *raw.DictObj) int64

// ReadIndirect parses "N G obj <object> [stream] endobj" at the current
// position.
func (r *Reader) ReadIndirect(length LengthFunc) (raw.ObjectRef, raw.Object, error) {
	var ref raw.ObjectRef
	num, err := r.Next()
	if err != nil {
		return ref, nil, err
	}
	gen, err := r.Next()
	if err != nil {
		return ref, nil, err
	}
	kw, err := r.Next()
	if err != nil {
		return ref, nil, err
	}
	if num.Type != TokenNumber || gen.Type != TokenNumber || kw.Type != TokenKeyword || kw.Str != "obj" {
		return ref, nil, errors.New("indirect object header not found")
	}
	ref = raw.ObjectRef{Num: int(num.Int), Gen: int(gen.Int)}

	obj, err := r.ReadObject()
	if err != nil {
		return ref, nil, fmt.Errorf("object %v: %w", ref, err)
	}
	dict, isDict := obj.(*raw.DictObj)
	if !isDict {
		return ref, obj, nil
	}
	n := int64(-1)
	if length != nil {
		n = length(dict)
	}
	r.s.SetNextStreamLength(n)
	tok, err := r.Next()
	if err != nil {
		// a dictionary at the very end of the input is still usable
		return ref, dict, nil
	}
	if tok.Type == TokenStream {
		return ref, raw.NewStream(dict, tok.Bytes), nil
	}
	r.s.SetNextStreamLength(-1)
	r.Unread(tok)
	return ref, dict, nil
}
