// @title           GM-Gate API
// @version         1.0
// @description     Permission broker API for coding agents.
// @host            localhost:8080
// @BasePath        /

package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/gm-agent-org/gm-gate/pkg/api/handler"
	"github.com/gm-agent-org/gm-gate/pkg/api/middleware"
	"github.com/gm-agent-org/gm-gate/pkg/api/service"
)

// Config defines the HTTP server settings.
type Config struct {
	Addr   string
	APIKey string // agent key: submit
	// ApproverAPIKey guards respond, callback and the notification stream.
	// It must differ from APIKey. Empty disables those routes.
	ApproverAPIKey string
	DevMode        bool    // Enables Swagger UI
	ThrottleRPS    float64 // Per-client limit on mutating routes, 0 disables
	ThrottleBurst  int
}

// Server hosts the Gin engine and manages API resources.
type Server struct {
	engine *gin.Engine
	config Config
	svc    *service.PermissionService
	stream handler.Stream
	log    *slog.Logger
}

// NewServer constructs the HTTP API server. stream may be nil, in which
// case the notification stream route is not registered.
func NewServer(cfg Config, svc *service.PermissionService, stream handler.Stream, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.Logger(log))

	srv := &Server{
		engine: engine,
		config: cfg,
		svc:    svc,
		stream: stream,
		log:    log,
	}

	srv.setupRoutes()

	return srv
}

// Engine returns the underlying Gin engine (for http.Server).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the configured address.
func (s *Server) Addr() string {
	return s.config.Addr
}
