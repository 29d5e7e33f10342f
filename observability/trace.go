package observability

import (
	"context"
	"sync"
	"time"
)

// Tracer opens spans around render passes and other timed steps.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

type Span interface {
	SetTag(key string, value interface{})
	SetError(err error)
	Finish()
}

type nopTracer struct{}

func (nopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, nopSpan{}
}

// NopTracer returns a tracer that does nothing.
func NopTracer() Tracer { return nopTracer{} }

type nopSpan struct{}

func (nopSpan) SetTag(string, interface{}) {}
func (nopSpan) SetError(error)             {}
func (nopSpan) Finish()                    {}

// NewLogTracer returns a Tracer that writes one debug line per finished span
// carrying its name, duration and tags. Spans that recorded an error are
// logged at warn.
func NewLogTracer(l Logger) Tracer {
	if l == nil {
		l = NopLogger{}
	}
	return logTracer{log: l, now: time.Now}
}

type logTracer struct {
	log Logger
	now func() time.Time
}

func (t logTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &logSpan{tracer: t, name: name, start: t.now()}
}

type logSpan struct {
	tracer logTracer
	name   string
	start  time.Time

	mu       sync.Mutex
	tags     []Field
	err      error
	finished bool
}

func (s *logSpan) SetTag(key string, value interface{}) {
	s.mu.Lock()
	s.tags = append(s.tags, Any(key, value))
	s.mu.Unlock()
}

func (s *logSpan) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Finish logs the span once; later calls are ignored.
func (s *logSpan) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.finished = true
	fields := append([]Field{
		String("span", s.name),
		Int64("duration_us", s.tracer.now().Sub(s.start).Microseconds()),
	}, s.tags...)
	if s.err != nil {
		s.tracer.log.Warn("span failed", append(fields, Error("err", s.err))...)
		return
	}
	s.tracer.log.Debug("span", fields...)
}
