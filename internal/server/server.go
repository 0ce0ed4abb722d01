// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/stupside/reel/internal/app"
	"github.com/stupside/reel/internal/pipeline"
	"github.com/stupside/reel/internal/relay"
	"github.com/stupside/reel/internal/report"
)

// maxBodyBytes caps /fetch request bodies.
const maxBodyBytes = 1 << 20

// fetchRequest is the /fetch body, form-encoded or JSON.
type fetchRequest struct {
	GofileURL string `json:"gofileUrl"`
	URL       string `json:"url"`
}

// target returns gofileUrl, or url when gofileUrl is absent.
func (r fetchRequest) target() string {
	if r.GofileURL != "" {
		return strings.TrimSpace(r.GofileURL)
	}
	return strings.TrimSpace(r.URL)
}

// Options configures the HTTP surface.
type Options struct {
	PublicPrefix  string
	ScreenshotDir string
	// OutputFile, when set, receives every generated report.
	OutputFile string
}

// Server routes HTTP requests to the pipeline, relay and report renderer.
type Server struct {
	pipeline *pipeline.Pipeline
	relay    *relay.Relay
	renderer *report.Renderer
	validate *validator.Validate
	router   *mux.Router
	opts     Options
}

// New creates a Server and registers its routes.
func New(p *pipeline.Pipeline, rl *relay.Relay, renderer *report.Renderer, opts Options) *Server {
	s := &Server{
		pipeline: p,
		relay:    rl,
		renderer: renderer,
		validate: validator.New(),
		router:   mux.NewRouter(),
		opts:     opts,
	}

	s.router.Use(requestLogger)
	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/fetch", s.handleFetch).Methods(http.MethodPost)
	s.router.HandleFunc("/video/{contentID}", s.handleVideo).Methods(http.MethodGet)
	s.router.PathPrefix(opts.PublicPrefix).Handler(
		http.StripPrefix(opts.PublicPrefix, http.FileServer(http.Dir(opts.ScreenshotDir))),
	).Methods(http.MethodGet, http.MethodHead)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger tags each request with a request id carried by every log
// record written under its context.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		ctx := app.WithLogAttrs(r.Context(), slog.String("request_id", id))
		w.Header().Set("X-Request-Id", id)

		slog.DebugContext(ctx, "request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := report.Index()
	if err != nil {
		slog.ErrorContext(r.Context(), "rendering index", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeHTML(w, page)
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	target, err := s.decodeFetch(w, r)
	if err != nil {
		slog.InfoContext(ctx, "rejected fetch request", "error", err)
		http.Error(w, "Invalid URL provided.", http.StatusBadRequest)
		return
	}

	res, err := s.pipeline.Run(ctx, target)
	if err != nil {
		slog.ErrorContext(ctx, "processing request", "url", target, "error", err)
		http.Error(w, "Error fetching or processing the URL: "+err.Error(), http.StatusInternalServerError)
		return
	}

	in := report.Input{
		OriginalURL: res.URL,
		ContentID:   res.ContentID,
		Media:       res.Media,
		PageHTML:    res.HTML,
	}
	if res.Screenshot != nil {
		in.ScreenshotName = res.Screenshot.Name
	}

	page, err := s.renderer.Render(in)
	if err != nil {
		slog.ErrorContext(ctx, "rendering report", "error", err)
		http.Error(w, "Error fetching or processing the URL: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if s.opts.OutputFile != "" {
		if err := writeFileAtomic(s.opts.OutputFile, []byte(page)); err != nil {
			slog.WarnContext(ctx, "writing output file", "path", s.opts.OutputFile, "error", err)
		} else {
			slog.DebugContext(ctx, "modified HTML saved", "path", s.opts.OutputFile)
		}
	}

	writeHTML(w, page)
}

// decodeFetch reads and validates the target URL from a form or JSON body.
func (s *Server) decodeFetch(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req fetchRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", fmt.Errorf("decoding JSON body: %w", err)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return "", fmt.Errorf("parsing form: %w", err)
		}
		req.GofileURL = r.PostForm.Get("gofileUrl")
		req.URL = r.PostForm.Get("url")
	}

	target := req.target()
	if err := s.validate.Var(target, "required,http_url"); err != nil {
		return "", fmt.Errorf("validating %q: %w", target, err)
	}
	return target, nil
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["contentID"]

	if err := s.relay.Serve(w, r, id); err != nil {
		slog.ErrorContext(ctx, "relaying video", "content_id", id, "error", err)

		msg := err.Error()
		var upErr *relay.UpstreamError
		if errors.As(err, &upErr) {
			msg = "Upstream error: " + upErr.Status
		}
		http.Error(w, "Error proxying video: "+msg, http.StatusInternalServerError)
	}
}

func writeHTML(w http.ResponseWriter, page string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(page))
}

// writeFileAtomic replaces path with data through a temporary file in the
// same directory.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ListenAndServe serves h on cfg.Address until ctx is cancelled, then shuts
// down gracefully within cfg.ShutdownTimeout.
func ListenAndServe(ctx context.Context, cfg app.ServerConfig, h http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           h,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.InfoContext(ctx, "server listening", "address", cfg.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving HTTP: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()

		slog.InfoContext(ctx, "shutting down server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	})

	return g.Wait()
}
