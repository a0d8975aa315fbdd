package api

import (
	_ "github.com/gm-agent-org/gm-gate/pkg/api/docs"
	"github.com/gm-agent-org/gm-gate/pkg/api/handler"
	"github.com/gm-agent-org/gm-gate/pkg/api/middleware"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// setupRoutes configures all API routes.
//
// Agent routes take APIKey, approver routes take ApproverAPIKey and the
// read-only views accept either. Approver routes are only registered when
// ApproverAPIKey is set, so the agent key can never resolve a request.
func (s *Server) setupRoutes() {
	// Health (no auth required)
	s.engine.GET("/health", handler.Health)

	throttle := middleware.Throttle(s.config.ThrottleRPS, s.config.ThrottleBurst)
	permissionHandler := handler.NewPermissionHandler(s.svc)

	// Agent side
	agent := s.engine.Group("/api/v1")
	agent.Use(middleware.Auth(s.config.APIKey))
	agent.POST("/permission", throttle, permissionHandler.Submit)

	// Read-only views
	views := s.engine.Group("/api/v1")
	views.Use(middleware.Auth(s.config.APIKey, s.config.ApproverAPIKey))
	views.GET("/status", permissionHandler.Status)
	views.GET("/policy", permissionHandler.Policies)
	views.GET("/ratelimit/:user", permissionHandler.RateLimit)
	views.GET("/audit", permissionHandler.Audit)

	// Approver side
	switch s.config.ApproverAPIKey {
	case "":
		s.log.Warn("approver api key not set, respond routes disabled")
	case s.config.APIKey:
		s.log.Error("approver api key equals agent api key, respond routes disabled")
	default:
		approver := s.engine.Group("/api/v1")
		approver.Use(middleware.Auth(s.config.ApproverAPIKey))
		approver.GET("/permission", permissionHandler.List)
		approver.POST("/permission/:id/respond", throttle, permissionHandler.Respond)
		approver.POST("/callback", throttle, permissionHandler.Callback)
		approver.DELETE("/ratelimit/:user", permissionHandler.ClearRateLimit)

		if s.stream != nil {
			streamHandler := handler.NewStreamHandler(s.stream)
			approver.GET("/notification/stream", streamHandler.SSE)
		}
	}

	// Swagger UI (only in DevMode)
	if s.config.DevMode {
		s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
		s.log.Info("swagger ui enabled", "path", "/swagger/index.html")
	}

	// K8s health probe
	s.engine.GET("/healthz", handler.Health)
}
