package parser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wudi/pdfoverlay/filters"
	"github.com/wudi/pdfoverlay/ir/raw"
	"github.com/wudi/pdfoverlay/scanner"
	"github.com/wudi/pdfoverlay/xref"
)

// ObjectLoader reads indirect objects on demand using a resolved xref table.
// Loaded objects are cached; callers that mutate an object must Clone it.
type ObjectLoader struct {
	data     []byte
	table    *xref.Table
	limits   filters.Limits
	scan     scanner.Config
	maxDepth int

	mu     sync.Mutex
	cache  map[raw.ObjectRef]raw.Object
	objstm map[int]map[int]raw.Object
}

func NewObjectLoader(data []byte, table *xref.Table, cfg Config) *ObjectLoader {
	depth := cfg.MaxIndirectDepth
	if depth <= 0 {
		depth = 32
	}
	return &ObjectLoader{
		data:     data,
		table:    table,
		limits:   cfg.Limits,
		scan:     scanner.Config{MaxStringLength: cfg.MaxStringLength, MaxArrayDepth: depth, MaxDictDepth: depth},
		maxDepth: depth,
		cache:    make(map[raw.ObjectRef]raw.Object),
		objstm:   make(map[int]map[int]raw.Object),
	}
}

func (o *ObjectLoader) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	return o.load(ctx, ref, 0)
}

func (o *ObjectLoader) load(ctx context.Context, ref raw.ObjectRef, depth int) (raw.Object, error) {
	if depth > o.maxDepth {
		return nil, errors.New("max indirect depth exceeded")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.mu.Lock()
	obj, ok := o.cache[ref]
	o.mu.Unlock()
	if ok {
		return obj, nil
	}

	entry, found := o.table.Lookup(ref.Num)
	if !found {
		// undefined references are treated as null (PDF 7.3.10)
		return raw.NullObj{}, nil
	}
	var err error
	switch entry.Type {
	case xref.EntryInUse:
		obj, err = o.loadAtOffset(ctx, ref, entry.Offset, depth)
	case xref.EntryCompressed:
		obj, err = o.loadFromObjectStream(ctx, ref, entry.Stream, depth)
	}
	if err != nil {
		return nil, fmt.Errorf("load object %v: %w", ref, err)
	}

	o.mu.Lock()
	o.cache[ref] = obj
	o.mu.Unlock()
	return obj, nil
}

// Resolver adapts the loader to raw.Resolver for the given context.
func (o *ObjectLoader) Resolver(ctx context.Context) raw.Resolver {
	return resolverFunc(func(obj raw.Object) (raw.Object, error) {
		ref, ok := obj.(raw.RefObj)
		if !ok {
			return obj, nil
		}
		return o.Load(ctx, ref.R)
	})
}

type resolverFunc func(raw.Object) (raw.Object, error)

func (f resolverFunc) Resolve(obj raw.Object) (raw.Object, error) { return f(obj) }

func (o *ObjectLoader) loadAtOffset(ctx context.Context, ref raw.ObjectRef, offset int64, depth int) (raw.Object, error) {
	s := scanner.New(o.data, o.scan)
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	got, obj, err := scanner.NewReader(s).ReadIndirect(func(d *raw.DictObj) int64 {
		return o.streamLength(ctx, d, depth)
	})
	if err != nil {
		return nil, err
	}
	if got.Num != ref.Num {
		return nil, fmt.Errorf("object header mismatch: found %v", got)
	}
	return obj, nil
}

// streamLength resolves /Length, which may itself be an indirect object.
func (o *ObjectLoader) streamLength(ctx context.Context, d *raw.DictObj, depth int) int64 {
	v, ok := d.Get("Length")
	if !ok {
		return -1
	}
	if ref, isRef := v.(raw.RefObj); isRef {
		loaded, err := o.load(ctx, ref.R, depth+1)
		if err != nil {
			return -1
		}
		v = loaded
	}
	if n, ok := raw.IntValue(nil, v); ok {
		return n
	}
	return -1
}

func (o *ObjectLoader) loadFromObjectStream(ctx context.Context, ref raw.ObjectRef, streamNum int, depth int) (raw.Object, error) {
	o.mu.Lock()
	objs, ok := o.objstm[streamNum]
	o.mu.Unlock()
	if !ok {
		var err error
		objs, err = o.expandObjectStream(ctx, streamNum, depth)
		if err != nil {
			return nil, err
		}
		o.mu.Lock()
		o.objstm[streamNum] = objs
		o.mu.Unlock()
	}
	obj, ok := objs[ref.Num]
	if !ok {
		return nil, errors.New("object not found in object stream")
	}
	return obj, nil
}

func (o *ObjectLoader) expandObjectStream(ctx context.Context, streamNum int, depth int) (map[int]raw.Object, error) {
	streamObj, err := o.load(ctx, raw.ObjectRef{Num: streamNum}, depth+1)
	if err != nil {
		return nil, err
	}
	st, ok := streamObj.(*raw.StreamObj)
	if !ok {
		return nil, errors.New("object stream is not a stream")
	}
	nObj, _ := raw.IntValue(nil, st.Dict.KV["N"])
	first, _ := raw.IntValue(nil, st.Dict.KV["First"])

	names, params := filters.ExtractFilters(st.Dict)
	data, err := filters.NewDefaultPipeline(o.limits).Decode(ctx, st.Data, names, params)
	if err != nil {
		return nil, fmt.Errorf("decode object stream %d: %w", streamNum, err)
	}
	if first < 0 || first > int64(len(data)) {
		return nil, errors.New("object stream First exceeds length")
	}

	header := scanner.New(data[:first], o.scan)
	pairs := make([]int64, 0, 2*nObj)
	for int64(len(pairs)) < 2*nObj {
		tok, err := header.Next()
		if err != nil {
			return nil, fmt.Errorf("object stream header: %w", err)
		}
		if tok.Type == scanner.TokenNumber && tok.IsInt {
			pairs = append(pairs, tok.Int)
		}
	}

	body := data[first:]
	objs := make(map[int]raw.Object, nObj)
	for i := 0; i+1 < len(pairs); i += 2 {
		num, off := int(pairs[i]), pairs[i+1]
		if off < 0 || off >= int64(len(body)) {
			return nil, fmt.Errorf("object %d offset outside object stream", num)
		}
		s := scanner.New(body, o.scan)
		if err := s.Seek(off); err != nil {
			return nil, err
		}
		obj, err := scanner.NewReader(s).ReadObject()
		if err != nil {
			return nil, fmt.Errorf("object %d in stream %d: %w", num, streamNum, err)
		}
		objs[num] = obj
	}
	return objs, nil
}
