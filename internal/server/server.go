// Package server wires the services, the Huma API and the HTTP handlers.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/plat-eco/internal/api"
	"github.com/joeblew999/plat-eco/internal/db"
	"github.com/joeblew999/plat-eco/internal/humastar"
	"github.com/joeblew999/plat-eco/internal/logger"
	"github.com/joeblew999/plat-eco/internal/metrics"
	"github.com/joeblew999/plat-eco/internal/regions"
	"github.com/joeblew999/plat-eco/internal/service"
	"github.com/joeblew999/plat-eco/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host     string
	Port     string
	DataDir  string // selection state, regions/ and duckdb/ live here; empty keeps everything in memory
	RedisURL string // shared selection store; empty uses the file store
	Upstream string // ecology REST API the selection filter is rendered for
	// Fragments overrides the embedded HTML fragments (*.html at its root).
	Fragments fs.FS
	Logger    *slog.Logger
}

// Server is the eco HTTP server.
type Server struct {
	config   Config
	log      *slog.Logger
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	links    *humastar.Links
	db       *sql.DB
	store    service.Store
	services *api.Services
	renderer *templates.Renderer
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates the server and starts relaying selection changes made by
// other instances. Close releases everything New acquired.
func New(ctx context.Context, cfg Config) (*Server, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	renderer, err := newRenderer(cfg.Fragments)
	if err != nil {
		return nil, fmt.Errorf("parse fragments: %w", err)
	}

	store, kind, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	catalog := regions.New(nil, nil)
	if cfg.DataDir != "" {
		if c, err := regions.Load(filepath.Join(cfg.DataDir, "regions")); err != nil {
			log.Warn("regions_unavailable", "error", err)
		} else {
			catalog = c
		}
	}
	nr, nd := catalog.Size()
	log.Info("regions_loaded", "regions", nr, "districts", nd)

	var conn *sql.DB
	if c, err := db.Open(db.Config{DataDir: cfg.DataDir, DBName: "eco"}); err != nil {
		log.Warn("duckdb_unavailable", "error", err)
	} else {
		conn = c
	}

	mux := http.NewServeMux()
	links := humastar.NewLinks()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-eco API", api.Version)
	humaConfig.Info.Description = "Shared selection, SOATO resolution and region geometry for the ecology monitoring portal."
	if cfg.Host != "" && cfg.Port != "" {
		humaConfig.Servers = []*huma.Server{
			{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
		}
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	s := &Server{
		config:   cfg,
		log:      log,
		mux:      mux,
		humaAPI:  humago.New(mux, humaConfig),
		links:    links,
		db:       conn,
		store:    store,
		renderer: renderer,
		services: &api.Services{
			Selection: service.NewSelectionService(store, nil, log),
			Regions:   catalog,
			Records:   service.NewRecordService(conn),
			DB:        conn,
			Upstream:  cfg.Upstream,
		},
		done: make(chan struct{}),
	}
	s.routes(kind)
	s.handler = logger.AccessMiddleware(log)(mux)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go func() {
		defer close(s.done)
		if err := s.services.Selection.Run(runCtx); err != nil {
			log.Error("selection_relay_stopped", "error", err)
		}
	}()
	return s, nil
}

func newRenderer(fragments fs.FS) (*templates.Renderer, error) {
	if fragments == nil {
		return templates.New()
	}
	return templates.NewFS(fragments, "*.html")
}

func openStore(ctx context.Context, cfg Config, log *slog.Logger) (service.Store, string, error) {
	if cfg.RedisURL == "" {
		return service.NewFileStore(cfg.DataDir), "file", nil
	}
	store, err := service.NewRedisStore(ctx, cfg.RedisURL, log)
	if err != nil {
		return nil, "", fmt.Errorf("selection store: %w", err)
	}
	return store, "redis", nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// API returns the Huma API, e.g. to export the OpenAPI document.
func (s *Server) API() huma.API {
	return s.humaAPI
}

// Services returns the services behind the handlers.
func (s *Server) Services() *api.Services {
	return s.services
}

// Close stops the relay and closes the store and the database.
func (s *Server) Close() error {
	s.cancel()
	<-s.done
	err := s.store.Close()
	if s.db != nil {
		if dbErr := s.db.Close(); err == nil {
			err = dbErr
		}
	}
	return err
}

func (s *Server) routes(storeKind string) {
	h := api.NewAPIHandler(s.services)
	huma.AutoRegister(s.humaAPI, h)

	api.NewInfoHandler(s.config.DataDir, storeKind, s.config.Upstream, s.services).RegisterRoutes(s.humaAPI)
	api.NewStreamHandler(h, s.renderer, s.log).RegisterRoutes(s.humaAPI)

	api.Links(s.humaAPI, s.links)

	s.mux.Handle("GET /metrics", metrics.Handler())
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	// the root mirrors the /health entry point links
	for _, link := range s.links.For("/health") {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-eco",
		"status":  "running",
		"docs":    "/docs",
		"openapi": "/openapi.json",
	})
}
