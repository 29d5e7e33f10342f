package writer

import (
	"context"
	"io"

	"github.com/wudi/pdfoverlay/ir/raw"
	"github.com/wudi/pdfoverlay/xref"
)

type Config struct {
	// Compression is the zlib level for the xref stream; zero means
	// BestCompression.
	Compression int
	// Deterministic derives the new /ID entry from the output bytes instead
	// of random data.
	Deterministic bool
}

// Update is an incremental update against an existing file (PDF 7.5.6): the
// original bytes are copied unchanged and Objects are appended with a new
// cross-reference section chained through /Prev.
type Update struct {
	Original []byte
	Table    *xref.Table
	Objects  map[raw.ObjectRef]raw.Object
}

type Writer interface {
	WriteIncremental(ctx context.Context, u Update, out io.Writer) error
	SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error)
}

type WriterBuilder struct{ cfg Config }

func (b *WriterBuilder) WithConfig(cfg Config) *WriterBuilder {
	b.cfg = cfg
	return b
}

func (b *WriterBuilder) Build() Writer { return &impl{cfg: b.cfg} }

// New returns a Writer producing deterministic output.
func New() Writer { return &impl{cfg: Config{Deterministic: true}} }
