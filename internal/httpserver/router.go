// Package httpserver wires the file store, the chat hub and the vitals
// collector into one HTTP surface: a JSON API under /api, the chat
// socket at /ws and the static frontend everywhere else.
package httpserver

import (
	"net/http"

	"skiff/internal/chat"
	"skiff/internal/config"
	"skiff/internal/storage"
	"skiff/internal/sysinfo"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

type RouterDeps struct {
	Config config.Config
	Store  *storage.Store
	Hub    *chat.Hub
	Sys    *sysinfo.Collector
}

type Server struct {
	cfg   config.Config
	store *storage.Store
	hub   *chat.Hub
	sys   *sysinfo.Collector
}

// NewRouter builds the full handler stack. No global timeout
// middleware: uploads run as long as 25 GB takes, and the chat socket
// stays open for the life of the client.
func NewRouter(deps RouterDeps) (http.Handler, error) {
	s := &Server{
		cfg:   deps.Config,
		store: deps.Store,
		hub:   deps.Hub,
		sys:   deps.Sys,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	if len(s.cfg.AllowedSubnets) > 0 {
		allow, err := newCIDRAllowlist(s.cfg.AllowedSubnets)
		if err != nil {
			return nil, err
		}
		r.Use(allow.middleware)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Get("/files", s.handleListFiles)
		r.Get("/download/{filename}", s.handleDownload)
		r.Delete("/files/{filename}", s.handleDeleteFile)
		r.Get("/system-info", s.handleSystemInfo)
		r.Get("/health", s.handleHealth)
		r.Get("/qr", s.handleQR)
		// Unknown API paths answer in JSON, not with the frontend.
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "not found")
		})
	})

	r.Get("/ws", s.handleWS)

	// Everything else is the frontend.
	r.Handle("/*", spaHandler(s.cfg.WebDir))

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins, // empty means any origin
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r), nil
}
