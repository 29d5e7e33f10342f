// Package server exposes the renderer over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/wudi/pdfoverlay/observability"
	"github.com/wudi/pdfoverlay/overlay"
	"github.com/wudi/pdfoverlay/submission"
)

// OutputName is the download name suggested for rendered documents.
const OutputName = "checklist_completado.pdf"

const generationFailed = "document generation failed"

type Server struct {
	renderer *overlay.Renderer
	template []byte
	log      observability.Logger

	maxBody         int64
	maxConns        int
	shutdownTimeout time.Duration
}

type Option func(*Server)

func WithLogger(l observability.Logger) Option { return func(s *Server) { s.log = l } }

// WithMaxBodyBytes caps the size of a render request. Zero disables the cap.
func WithMaxBodyBytes(n int64) Option { return func(s *Server) { s.maxBody = n } }

// WithMaxConnections caps concurrently accepted connections. Zero disables
// the cap.
func WithMaxConnections(n int) Option { return func(s *Server) { s.maxConns = n } }

func WithShutdownTimeout(d time.Duration) Option { return func(s *Server) { s.shutdownTimeout = d } }

// New serves renders of template. The template bytes are shared read-only
// between requests; every request parses its own copy of the document.
func New(r *overlay.Renderer, template []byte, opts ...Option) *Server {
	s := &Server{
		renderer:        r,
		template:        template,
		log:             observability.NopLogger{},
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /render", s.handleRender)
	mux.HandleFunc("GET /schema", s.handleSchema)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	return s.logRequests(mux)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	body := io.Reader(r.Body)
	if s.maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, s.maxBody)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "read request body", http.StatusBadRequest)
		return
	}
	values, err := submission.ParseJSON(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := s.renderer.Render(r.Context(), s.template, values)
	if err != nil {
		if r.Context().Err() != nil {
			s.log.Info("render abandoned", observability.Error("err", err))
			return
		}
		s.log.Error(generationFailed, observability.Error("err", err))
		http.Error(w, generationFailed, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+OutputName+`"`)
	_, _ = w.Write(out)
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.renderer.Schema()); err != nil {
		s.log.Warn("encode schema", observability.Error("err", err))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			observability.String("method", r.Method),
			observability.String("path", r.URL.Path),
			observability.Int("status", rec.status),
			observability.Int64("duration_ms", time.Since(start).Milliseconds()))
	})
}

// Serve answers requests on ln until ctx is cancelled, then drains in-flight
// requests for at most the shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.maxConns > 0 {
		ln = netutil.LimitListener(ln, s.maxConns)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("listening", observability.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
