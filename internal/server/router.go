package server

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Options wires the router's collaborators.
type Options struct {
	Engine Converter
	// CredentialCheck is the eager configuration probe, run before any
	// request processing. Nil means no probe.
	CredentialCheck func() error
	MaxUploadBytes  int64
	// StaticDir serves a pre-built client when set and present on disk.
	StaticDir string
	Log       *logrus.Entry
}

// NewRouter assembles the chi router: standard middleware, CORS, the convert
// endpoint, health, and the optional static client.
func NewRouter(opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	h := &convertHandler{
		engine:          opts.Engine,
		credentialCheck: opts.CredentialCheck,
		maxUploadBytes:  opts.MaxUploadBytes,
		log:             log,
	}
	if h.maxUploadBytes <= 0 {
		h.maxUploadBytes = 32 << 20
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// Model calls on large projects are slow; keep the bound generous.
	r.Use(middleware.Timeout(10 * time.Minute))
	r.Use(CORS)

	r.Get("/healthz", h.handleHealth)
	r.Post("/api/v1/convert", h.handleConvert)

	if opts.StaticDir != "" {
		if info, err := os.Stat(opts.StaticDir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(opts.StaticDir)))
		} else {
			log.WithField("dir", opts.StaticDir).Warn("static dir not found, not serving client")
		}
	}
	return r
}
