package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/wudi/pdfoverlay/filters"
	"github.com/wudi/pdfoverlay/ir/raw"
	"github.com/wudi/pdfoverlay/recovery"
	"github.com/wudi/pdfoverlay/scanner"
)

var (
	ErrStartXRefNotFound = errors.New("startxref not found")
	ErrXRefLoop          = errors.New("xref sections form a loop")
)

// EntryType classifies a cross-reference entry.
type EntryType int

const (
	EntryFree EntryType = iota
	EntryInUse
	EntryCompressed
)

// Entry locates one object. InUse entries carry a byte offset; Compressed
// entries name the object stream and the index inside it.
type Entry struct {
	Type   EntryType
	Offset int64
	Gen    int
	Stream int
	Index  int
}

// Table is the merged view of every xref section reachable from startxref.
// Newer sections shadow older ones.
type Table struct {
	entries map[int]Entry
	// Trailer is the newest trailer dictionary. For xref streams it is the
	// stream dictionary.
	Trailer *raw.DictObj
	// StartXRef is the offset the file's final startxref points at.
	StartXRef int64
	// Stream reports whether the newest section is a cross-reference stream.
	Stream bool
	// Repaired is set when the table was rebuilt by scanning the file.
	Repaired bool
}

func (t *Table) Lookup(objNum int) (Entry, bool) {
	e, ok := t.entries[objNum]
	if !ok || e.Type == EntryFree {
		return Entry{}, false
	}
	return e, true
}

func (t *Table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k, e := range t.entries {
		if e.Type != EntryFree {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

// Size is the value the next trailer's /Size must be at least: one more than
// the highest object number in use.
func (t *Table) Size() int {
	size := 0
	if t.Trailer != nil {
		if v, ok := t.Trailer.Get("Size"); ok {
			if n, ok := v.(raw.NumberObj); ok {
				size = int(n.Int())
			}
		}
	}
	for num := range t.entries {
		if num+1 > size {
			size = num + 1
		}
	}
	return size
}

type ResolverConfig struct {
	MaxXRefDepth int
	Recovery     recovery.Strategy
	Limits       filters.Limits
}

// Resolver locates and parses xref information in a PDF.
type Resolver struct {
	cfg ResolverConfig
}

func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 64
	}
	return &Resolver{cfg: cfg}
}

// Resolve follows startxref and every /Prev and /XRefStm link. When the
// chain is broken and the recovery strategy answers ActionFix, the table is
// rebuilt by scanning the whole file instead.
func (r *Resolver) Resolve(ctx context.Context, data []byte) (*Table, error) {
	t, err := r.resolveChain(ctx, data)
	if err == nil {
		return t, nil
	}
	if r.cfg.Recovery == nil {
		return nil, err
	}
	action := r.cfg.Recovery.OnError(ctx, err, recovery.Location{Component: "xref"})
	if action != recovery.ActionFix {
		return nil, err
	}
	return repair(ctx, data)
}

func (r *Resolver) resolveChain(ctx context.Context, data []byte) (*Table, error) {
	start, err := findStartXRef(data)
	if err != nil {
		return nil, err
	}
	t := &Table{entries: make(map[int]Entry), StartXRef: start}
	visited := make(map[int64]bool)
	queue := []section{{off: start}}
	first := true
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		off, hybrid := queue[0].off, queue[0].hybrid
		queue = queue[1:]
		if visited[off] {
			return nil, ErrXRefLoop
		}
		if len(visited) >= r.cfg.MaxXRefDepth {
			return nil, fmt.Errorf("xref chain deeper than %d sections", r.cfg.MaxXRefDepth)
		}
		visited[off] = true
		if off <= 0 || off >= int64(len(data)) {
			return nil, fmt.Errorf("xref offset out of range: %d", off)
		}

		var trailer *raw.DictObj
		isStream := false
		if bytes.HasPrefix(bytes.TrimLeft(data[off:], " \t\r\n\f\x00"), []byte("xref")) {
			trailer, err = parseTable(data, off, t.entries)
		} else {
			trailer, err = r.parseStream(ctx, data, off, t.entries, hybrid)
			isStream = true
		}
		if err != nil {
			return nil, fmt.Errorf("xref section at %d: %w", off, err)
		}
		if first {
			t.Trailer = trailer
			t.Stream = isStream
			first = false
		}
		// Hybrid files: the XRefStm section of a classic trailer takes
		// precedence over the /Prev chain.
		if v, ok := trailer.Get("XRefStm"); ok && !isStream {
			if n, ok := v.(raw.NumberObj); ok && !visited[n.Int()] {
				queue = append([]section{{off: n.Int(), hybrid: true}}, queue...)
			}
		}
		if v, ok := trailer.Get("Prev"); ok {
			if n, ok := v.(raw.NumberObj); ok {
				queue = append(queue, section{off: n.Int()})
			}
		}
	}
	if t.Trailer == nil {
		return nil, errors.New("trailer not found")
	}
	return t, nil
}

type section struct {
	off int64
	// hybrid marks an /XRefStm section whose entries may replace the free
	// placeholders of the classic table that referenced it.
	hybrid bool
}

func findStartXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, ErrStartXRefNotFound
	}
	rest := bytes.TrimLeft(data[idx+len("startxref"):], " \t\r\n\f\x00")
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	val, err := strconv.ParseInt(string(rest[:end]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse startxref: %w", err)
	}
	return val, nil
}

// parseTable reads a classic "xref ... trailer << >>" section into entries,
// keeping entries that a newer section already supplied.
func parseTable(data []byte, off int64, entries map[int]Entry) (*raw.DictObj, error) {
	s := scanner.New(data, scanner.Config{})
	if err := s.Seek(off); err != nil {
		return nil, err
	}
	if tok, err := s.Next(); err != nil || tok.Str != "xref" {
		return nil, errors.New("xref keyword not found at offset")
	}
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, errors.New("unexpected end of xref section")
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			break
		}
		countTok, err := s.Next()
		if err != nil || tok.Type != scanner.TokenNumber || countTok.Type != scanner.TokenNumber {
			return nil, fmt.Errorf("invalid xref subsection header at %d", tok.Pos)
		}
		startObj, count := int(tok.Int), int(countTok.Int)
		for i := 0; i < count; i++ {
			offTok, err1 := s.Next()
			genTok, err2 := s.Next()
			kindTok, err3 := s.Next()
			if err1 != nil || err2 != nil || err3 != nil {
				return nil, errors.New("unexpected end of xref section")
			}
			if offTok.Type != scanner.TokenNumber || genTok.Type != scanner.TokenNumber || kindTok.Type != scanner.TokenKeyword {
				return nil, fmt.Errorf("invalid xref entry at %d", offTok.Pos)
			}
			num := startObj + i
			if _, seen := entries[num]; seen {
				continue
			}
			e := Entry{Type: EntryFree, Offset: offTok.Int, Gen: int(genTok.Int)}
			if kindTok.Str == "n" {
				e.Type = EntryInUse
			}
			entries[num] = e
		}
	}
	obj, err := scanner.NewReader(s).ReadObject()
	if err != nil {
		return nil, fmt.Errorf("trailer: %w", err)
	}
	trailer, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, errors.New("trailer is not a dictionary")
	}
	return trailer, nil
}

// parseStream reads a cross-reference stream (PDF 7.5.8).
func (r *Resolver) parseStream(ctx context.Context, data []byte, off int64, entries map[int]Entry, hybrid bool) (*raw.DictObj, error) {
	s := scanner.New(data, scanner.Config{})
	if err := s.Seek(off); err != nil {
		return nil, err
	}
	_, obj, err := scanner.NewReader(s).ReadIndirect(directLength)
	if err != nil {
		return nil, err
	}
	st, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, errors.New("xref stream expected")
	}
	if name, _ := raw.NameValue(nil, st.Dict.KV["Type"]); name != "XRef" {
		return nil, errors.New("object at xref offset is not an XRef stream")
	}
	names, params := filters.ExtractFilters(st.Dict)
	payload, err := filters.NewDefaultPipeline(r.cfg.Limits).Decode(ctx, st.Data, names, params)
	if err != nil {
		return nil, err
	}

	wArr, ok := raw.ArrayValue(nil, st.Dict.KV["W"])
	if !ok || wArr.Len() != 3 {
		return nil, errors.New("xref stream /W must have three entries")
	}
	var w [3]int
	for i := range w {
		v, _ := raw.IntValue(nil, wArr.Items[i])
		if v < 0 || v > 8 {
			return nil, errors.New("xref stream /W entry out of range")
		}
		w[i] = int(v)
	}
	rowLen := w[0] + w[1] + w[2]
	if rowLen == 0 {
		return nil, errors.New("xref stream /W is empty")
	}

	size, _ := raw.IntValue(nil, st.Dict.KV["Size"])
	index := []int64{0, size}
	if idx, ok := raw.ArrayValue(nil, st.Dict.KV["Index"]); ok && idx.Len()%2 == 0 {
		index = index[:0]
		for _, it := range idx.Items {
			v, _ := raw.IntValue(nil, it)
			index = append(index, v)
		}
	}

	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		startObj, count := int(index[i]), int(index[i+1])
		for j := 0; j < count; j++ {
			if pos+rowLen > len(payload) {
				return st.Dict, nil
			}
			row := payload[pos : pos+rowLen]
			pos += rowLen
			typ := int64(1)
			if w[0] > 0 {
				typ = readField(row[:w[0]])
			}
			f2 := readField(row[w[0] : w[0]+w[1]])
			f3 := readField(row[w[0]+w[1]:])
			num := startObj + j
			if prev, seen := entries[num]; seen && !(hybrid && prev.Type == EntryFree) {
				continue
			}
			switch typ {
			case 0:
				entries[num] = Entry{Type: EntryFree, Gen: int(f3)}
			case 1:
				entries[num] = Entry{Type: EntryInUse, Offset: f2, Gen: int(f3)}
			case 2:
				entries[num] = Entry{Type: EntryCompressed, Stream: int(f2), Index: int(f3)}
			}
		}
	}
	return st.Dict, nil
}

func readField(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

func directLength(d *raw.DictObj) int64 {
	if n, ok := raw.IntValue(nil, d.KV["Length"]); ok {
		return n
	}
	return -1
}
