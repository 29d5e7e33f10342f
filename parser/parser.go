package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/wudi/pdfoverlay/filters"
	"github.com/wudi/pdfoverlay/ir/raw"
	"github.com/wudi/pdfoverlay/recovery"
	"github.com/wudi/pdfoverlay/xref"
)

var (
	ErrNoPages   = errors.New("document has no pages")
	ErrEncrypted = errors.New("encrypted documents are not supported")
	ErrNotPDF    = errors.New("missing %PDF header")
)

// Config controls template loading.
type Config struct {
	Recovery         recovery.Strategy
	XRef             xref.ResolverConfig
	Limits           filters.Limits
	MaxIndirectDepth int
	MaxStringLength  int64
}

// Document is a loaded template: the original bytes, the merged xref table
// and the first page with its inherited attributes resolved.
type Document struct {
	Data    []byte
	Version string
	Table   *xref.Table
	Trailer *raw.DictObj
	Root    raw.ObjectRef
	Page    *Page

	loader *ObjectLoader
	ctx    context.Context
}

// Page is page 1 of the document. Dict is a private copy that callers may
// mutate before writing it back as an incremental update.
type Page struct {
	Ref      raw.ObjectRef
	Dict     *raw.DictObj
	MediaBox [4]float64
	// Resources is the page's effective resource dictionary, including one
	// inherited from an ancestor Pages node.
	Resources *raw.DictObj
}

func (d *Document) Load(ref raw.ObjectRef) (raw.Object, error) { return d.loader.Load(d.ctx, ref) }

// Resolve implements raw.Resolver.
func (d *Document) Resolve(obj raw.Object) (raw.Object, error) {
	return d.loader.Resolver(d.ctx).Resolve(obj)
}

type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	if cfg.XRef.Recovery == nil {
		cfg.XRef.Recovery = cfg.Recovery
	}
	if cfg.XRef.Limits == (filters.Limits{}) {
		cfg.XRef.Limits = cfg.Limits
	}
	return &DocumentParser{cfg: cfg}
}

// Parse loads data and locates the first page.
func (p *DocumentParser) Parse(ctx context.Context, data []byte) (*Document, error) {
	version, ok := detectHeaderVersion(data)
	if !ok {
		return nil, ErrNotPDF
	}
	table, err := xref.NewResolver(p.cfg.XRef).Resolve(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("resolve xref: %w", err)
	}
	if _, enc := table.Trailer.Get("Encrypt"); enc {
		return nil, ErrEncrypted
	}
	doc := &Document{
		Data:    data,
		Version: version,
		Table:   table,
		Trailer: table.Trailer,
		loader:  NewObjectLoader(data, table, p.cfg),
		ctx:     ctx,
	}

	rootObj, ok := table.Trailer.Get("Root")
	rootRef, isRef := rootObj.(raw.RefObj)
	if !ok || !isRef {
		return nil, errors.New("trailer has no /Root reference")
	}
	doc.Root = rootRef.R
	catalog, ok := raw.DictValue(doc, rootRef)
	if !ok {
		return nil, errors.New("catalog is not a dictionary")
	}
	pages, ok := catalog.Get("Pages")
	if !ok {
		return nil, ErrNoPages
	}
	page, err := doc.firstPage(pages, nil, 0)
	if err != nil {
		return nil, err
	}
	doc.Page = page
	return doc, nil
}

// Load is a convenience wrapper around DocumentParser with default settings.
func Load(ctx context.Context, data []byte) (*Document, error) {
	return NewDocumentParser(Config{}).Parse(ctx, data)
}

// inherited carries the page attributes that descend through the tree
// (PDF 7.7.3.4).
type inherited struct {
	resources raw.Object
	mediaBox  raw.Object
	rotate    raw.Object
}

func (d *Document) firstPage(node raw.Object, inh *inherited, depth int) (*Page, error) {
	if depth > 64 {
		return nil, errors.New("page tree too deep")
	}
	ref, isRef := node.(raw.RefObj)
	dict, ok := raw.DictValue(d, node)
	if !ok {
		return nil, ErrNoPages
	}
	next := inherited{}
	if inh != nil {
		next = *inh
	}
	if v, ok := dict.Get("Resources"); ok {
		next.resources = v
	}
	if v, ok := dict.Get("MediaBox"); ok {
		next.mediaBox = v
	}
	if v, ok := dict.Get("Rotate"); ok {
		next.rotate = v
	}

	typ, _ := raw.NameValue(d, dict.KV["Type"])
	kids, hasKids := raw.ArrayValue(d, dict.KV["Kids"])
	if typ == "Pages" || (typ == "" && hasKids) {
		for _, kid := range kids.Items {
			page, err := d.firstPage(kid, &next, depth+1)
			if errors.Is(err, ErrNoPages) {
				continue
			}
			return page, err
		}
		return nil, ErrNoPages
	}
	if !isRef {
		return nil, errors.New("page object must be indirect")
	}

	page := &Page{Ref: ref.R, Dict: dict.Clone(), MediaBox: [4]float64{0, 0, 612, 792}}
	// pull inherited attributes onto the page so an updated copy is
	// self-contained
	if _, ok := page.Dict.Get("Resources"); !ok && next.resources != nil {
		page.Dict.Set("Resources", next.resources)
	}
	if _, ok := page.Dict.Get("MediaBox"); !ok && next.mediaBox != nil {
		page.Dict.Set("MediaBox", next.mediaBox)
	}
	if _, ok := page.Dict.Get("Rotate"); !ok && next.rotate != nil {
		page.Dict.Set("Rotate", next.rotate)
	}
	if res, ok := raw.DictValue(d, next.resources); ok {
		page.Resources = res
	} else {
		page.Resources = raw.Dict()
	}
	if box, ok := raw.ArrayValue(d, next.mediaBox); ok && box.Len() == 4 {
		for i := range page.MediaBox {
			page.MediaBox[i], _ = raw.NumberValue(d, box.Items[i])
		}
	}
	return page, nil
}

func detectHeaderVersion(data []byte) (string, bool) {
	// the header may be preceded by junk; readers search the first 1KB
	window := data
	if len(window) > 1024 {
		window = window[:1024]
	}
	idx := bytes.Index(window, []byte("%PDF-"))
	if idx < 0 {
		return "", false
	}
	line := data[idx+5:]
	end := 0
	for end < len(line) && end < 8 && (line[end] == '.' || (line[end] >= '0' && line[end] <= '9')) {
		end++
	}
	return string(line[:end]), true
}

// Contents decodes the page's content streams and joins them with newlines,
// the way a reader concatenates a Contents array.
func (d *Document) Contents() ([]byte, error) {
	v, ok := d.Page.Dict.Get("Contents")
	if !ok {
		return nil, nil
	}
	items := []raw.Object{v}
	if arr, ok := raw.ArrayValue(d, v); ok {
		items = arr.Items
	}
	var out bytes.Buffer
	for i, item := range items {
		obj, err := d.Resolve(item)
		if err != nil {
			return nil, err
		}
		st, ok := obj.(*raw.StreamObj)
		if !ok {
			continue
		}
		names, params := filters.ExtractFilters(st.Dict)
		data, err := filters.NewDefaultPipeline(d.loader.limits).Decode(d.ctx, st.Data, names, params)
		if err != nil {
			return nil, fmt.Errorf("content stream %d: %w", i, err)
		}
		if i > 0 {
			out.WriteByte('\n')
		}
		out.Write(data)
	}
	return out.Bytes(), nil
}
