// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package server exposes ingestion, question answering and the equipment
// registry over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/wrench/answer"
	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/ingestion"
	"github.com/poiesic/wrench/storage"
)

const (
	// DefaultMaxUploadBytes is the per-file upload cap.
	DefaultMaxUploadBytes = 25 << 20
	// DefaultMaxUploadFiles is the most files one upload may carry.
	DefaultMaxUploadFiles = 8
	// DefaultMaxJSONBytes caps JSON request bodies.
	DefaultMaxJSONBytes = 2 << 20
)

var (
	// ErrEngineRequired is returned when no query engine is provided.
	ErrEngineRequired = errors.New("query engine required")

	// ErrIngesterRequired is returned when no ingester is provided.
	ErrIngesterRequired = errors.New("ingester required")
)

// QueryEngine answers technician questions. answer.Engine satisfies it.
type QueryEngine interface {
	Answer(ctx context.Context, req *core.QueryRequest) (*core.Answer, error)
	Stream(ctx context.Context, req *core.QueryRequest, emit answer.Emitter) error
}

// Ingester indexes documents. ingestion.Pipeline satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, docs []*core.Document, opts *ingestion.IngestOptions) (*ingestion.Result, error)
}

// Dependencies holds the services the handlers call.
type Dependencies struct {
	Engine   QueryEngine
	Ingester Ingester

	// Equipment is optional; without it the /equipment routes are not registered.
	Equipment storage.EquipmentRepository

	// Events is optional; without it the /events routes are not registered.
	Events storage.EventLog
}

// Server is the HTTP front end.
type Server struct {
	router *gin.Engine
	server *http.Server

	engine    QueryEngine
	ingester  Ingester
	equipment storage.EquipmentRepository
	events    storage.EventLog

	metrics        *Metrics
	logger         *slog.Logger
	corsOrigins    []string
	maxUploadBytes int64
	maxUploadFiles int
	maxJSONBytes   int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables request metrics and the /metrics endpoint.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithCORSOrigins sets the allowed origins. Default is "*".
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithMaxUploadBytes sets the per-file upload cap.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithMaxUploadFiles sets the most files one upload may carry.
func WithMaxUploadFiles(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadFiles = n
		}
	}
}

// New creates a Server with its routes registered.
func New(deps Dependencies, opts ...Option) (*Server, error) {
	if deps.Engine == nil {
		return nil, ErrEngineRequired
	}
	if deps.Ingester == nil {
		return nil, ErrIngesterRequired
	}

	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:         gin.New(),
		engine:         deps.Engine,
		ingester:       deps.Ingester,
		equipment:      deps.Equipment,
		events:         deps.Events,
		logger:         slog.Default(),
		corsOrigins:    []string{"*"},
		maxUploadBytes: DefaultMaxUploadBytes,
		maxUploadFiles: DefaultMaxUploadFiles,
		maxJSONBytes:   DefaultMaxJSONBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")

	if s.metrics != nil {
		s.ingester = s.metrics.InstrumentIngester(s.ingester)
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(loggingMiddleware(s.logger))
	s.router.Use(corsMiddleware(s.corsOrigins))
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware())
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.health)
	if s.metrics != nil {
		s.router.GET("/metrics", s.metrics.Handler())
	}

	jsonLimit := bodyLimitMiddleware(s.maxJSONBytes)
	s.router.POST("/ingest", bodyLimitMiddleware(s.maxUploadBytes), s.ingest)
	s.router.POST("/ingest/upload", bodyLimitMiddleware(s.maxUploadBytes*int64(s.maxUploadFiles)+(1<<20)), s.upload)
	s.router.POST("/query", jsonLimit, s.query)
	s.router.POST("/query/stream", jsonLimit, s.queryStream)

	if s.equipment != nil {
		g := s.router.Group("/equipment", jsonLimit)
		g.GET("", s.listEquipment)
		g.POST("", s.createEquipment)
		g.GET("/:id", s.getEquipment)
		g.PUT("/:id", s.updateEquipment)
		g.DELETE("/:id", s.deleteEquipment)
	}
	if s.events != nil {
		s.router.GET("/events", s.recentEvents)
		s.router.POST("/events", jsonLimit, s.appendEvent)
	}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
