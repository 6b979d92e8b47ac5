// Package server exposes the processed data tree and a small JSON API for
// the web map client. Deployments that publish the data tree to an object
// store can run it in redirect mode, where dataset requests answer with a
// 302 to the bucket instead of a local read.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/williamstreaties/atlas/internal/config"
)

// Options are the deployment knobs that live outside config.yaml.
type Options struct {
	// Addr overrides the host:port from the config file.
	Addr string

	// BucketURL switches dataset requests to 302 redirects against a
	// public bucket, for example https://bucket.example.com/atlas.
	BucketURL string

	// NoRedirect serves everything locally even when BucketURL is set.
	NoRedirect bool

	// PreferLocal serves files that exist on disk and redirects the rest.
	PreferLocal bool

	// Username and Password enable basic auth on every route except
	// /healthz and /metrics.
	Username string
	Password string
}

// OptionsFromEnv reads the deployment environment. Flags take precedence,
// so callers should fill in anything the command line sets afterwards.
func OptionsFromEnv() Options {
	return Options{
		BucketURL: os.Getenv("ATLAS_BUCKET_URL"),
		Username:  os.Getenv("ATLAS_USERNAME"),
		Password:  os.Getenv("ATLAS_PASSWORD"),
	}
}

type Server struct {
	cfg     *config.Config
	opts    Options
	metrics *Metrics
	handler http.Handler
}

func New(cfg *config.Config, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	}

	registry := prometheus.NewRegistry()
	s := &Server{
		cfg:     cfg,
		opts:    opts,
		metrics: NewMetrics(registry),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/api/layers", s.handleLayers)
	mux.HandleFunc("/api/info", s.handleInfo)
	mux.HandleFunc("/api/layer-config", s.handleLayerConfig)
	mux.HandleFunc("/data/", s.handleData)
	mux.HandleFunc("/", s.handleWeb)

	var handler http.Handler = mux
	handler = s.withAuth(handler)
	handler = withCORS(handler)
	handler = gzhttp.GzipHandler(handler)
	s.handler = s.instrument(handler)
	return s
}

// Handler returns the full middleware stack, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Addr() string {
	return s.opts.Addr
}

// Run serves until the context is cancelled, then drains connections for up
// to ten seconds before returning.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	failed := make(chan error, 1)
	go func() {
		event := log.Info().Str("addr", s.opts.Addr).Str("data", s.cfg.Directories.Data)
		if s.redirecting() {
			event = event.Str("bucket", s.opts.BucketURL)
		}
		event.Msg("serving")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
	}()

	select {
	case err := <-failed:
		return err
	case <-ctx.Done():
	}

	log.Warn().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) redirecting() bool {
	return s.opts.BucketURL != "" && !s.opts.NoRedirect
}

// withAuth requires basic auth on every route when credentials are
// configured. The health and metrics endpoints stay open so probes and
// scrapers keep working.
func (s *Server) withAuth(next http.Handler) http.Handler {
	if s.opts.Username == "" && s.opts.Password == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.opts.Username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.opts.Password)) == 1
		if !ok || !userOK || !passOK {
			s.metrics.AuthRejected.Inc()
			w.Header().Set("WWW-Authenticate", `Basic realm="atlas"`)
			writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// The server is read only, so anything beyond GET and HEAD is refused.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD")
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		cw := &countingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(cw, r)

		s.metrics.Requests.Inc()
		s.metrics.BytesServed.Add(float64(cw.bytes))
		if cw.status == http.StatusNotFound {
			s.metrics.NotFound.Inc()
		}
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", cw.status).
			Int64("bytes", cw.bytes).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

type countingWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *countingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}
