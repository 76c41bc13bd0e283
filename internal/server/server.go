package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cuygur/llm-council/internal/council"
	"github.com/cuygur/llm-council/internal/models"
	"github.com/cuygur/llm-council/internal/persona"
	"github.com/cuygur/llm-council/internal/storage"
)

// allowed CORS origins for local frontend development
var corsOrigins = map[string]bool{
	"http://localhost:5173": true,
	"http://localhost:3000": true,
}

// Server wires the council engine, storage, and model catalog behind a REST
// and SSE API. The roster is held under a mutex; every run gets an immutable
// snapshot, so a config update mid-run never affects runs in flight.
type Server struct {
	gw     council.Gateway
	lister models.Lister
	store  *storage.Store
	logger *logrus.Logger

	mu     sync.Mutex
	roster council.Config
}

// New builds a Server. lister may be nil, in which case /api/models serves
// the curated catalog only.
func New(gw council.Gateway, lister models.Lister, store *storage.Store, roster council.Config, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{
		gw:     gw,
		lister: lister,
		store:  store,
		logger: logger,
		roster: roster,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLog())
	r.Use(cors())

	r.GET("/", s.handleHealth)

	api := r.Group("/api")
	{
		api.GET("/config", s.handleGetConfig)
		api.POST("/config", s.handleUpdateConfig)
		api.GET("/models", s.handleModels)
		api.POST("/estimate", s.handleEstimate)

		api.GET("/conversations", s.handleListConversations)
		api.POST("/conversations", s.handleCreateConversation)
		api.GET("/conversations/:id", s.handleGetConversation)
		api.DELETE("/conversations/:id", s.handleDeleteConversation)
		api.GET("/conversations/:id/export", s.handleExport)

		api.POST("/conversations/:id/message", s.handleMessage)
		api.POST("/conversations/:id/message/stream", s.handleMessageStream)
	}
	return r
}

// Run starts the HTTP server on addr and blocks until it exits.
func (s *Server) Run(addr string) error {
	s.logger.WithField("addr", addr).Info("council server listening")
	return s.Router().Run(addr)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		}).Info("request")
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); corsOrigins[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// snapshot returns a copy of the current roster safe to hand to a run.
func (s *Server) snapshot() council.Config {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.roster
	cfg.CouncilModels = append([]string(nil), s.roster.CouncilModels...)
	if s.roster.Personas != nil {
		cfg.Personas = make(map[string]string, len(s.roster.Personas))
		for k, v := range s.roster.Personas {
			cfg.Personas[k] = v
		}
	}
	return cfg
}

// runConfig builds the council config for one run, resolving per-query
// personas when the roster is in roleplay mode without explicit personas.
func (s *Server) runConfig(ctx context.Context, query string) council.Config {
	cfg := s.snapshot()
	if cfg.Mode == persona.ModeRoleplay && len(cfg.Personas) == 0 {
		resolver := persona.NewResolver(s.gw, cfg.Auxiliary())
		cfg.Personas = resolver.Resolve(ctx, cfg.Mode, query, cfg.CouncilModels, cfg.ChairmanModel)
	}
	return cfg
}
