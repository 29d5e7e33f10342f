package xref

import (
	"context"
	"errors"
	"io"

	"github.com/wudi/pdfoverlay/ir/raw"
	"github.com/wudi/pdfoverlay/scanner"
)

// repair scans the entire file to reconstruct the xref table.
// It looks for "<num> <gen> obj" patterns and "trailer" dictionaries.
func repair(ctx context.Context, data []byte) (*Table, error) {
	s := scanner.New(data, scanner.Config{})
	entries := make(map[int]Entry)
	var lastTrailer *raw.DictObj
	var window []scanner.Token

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// skip the offending byte and keep scanning
			_ = s.Seek(s.Position() + 1)
			window = window[:0]
			continue
		}

		if tok.Type == scanner.TokenKeyword && tok.Str == "obj" && len(window) == 2 &&
			window[0].Type == scanner.TokenNumber && window[1].Type == scanner.TokenNumber {
			// later definitions win, matching incremental update semantics
			entries[int(window[0].Int)] = Entry{Type: EntryInUse, Offset: window[0].Pos, Gen: int(window[1].Int)}
			window = window[:0]
			continue
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			if obj, err := scanner.NewReader(s).ReadObject(); err == nil {
				if dict, ok := obj.(*raw.DictObj); ok {
					lastTrailer = dict
				}
			}
			window = window[:0]
			continue
		}
		window = append(window, tok)
		if len(window) > 2 {
			window = window[1:]
		}
	}

	if len(entries) == 0 {
		return nil, errors.New("repair failed: no objects found")
	}
	if lastTrailer == nil {
		lastTrailer = raw.Dict()
	}
	return &Table{entries: entries, Trailer: lastTrailer, Repaired: true}, nil
}
