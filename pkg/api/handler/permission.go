package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gm-agent-org/gm-gate/pkg/api/dto"
	"github.com/gm-agent-org/gm-gate/pkg/api/service"
	"github.com/gm-agent-org/gm-gate/pkg/audit"
	"github.com/gm-agent-org/gm-gate/pkg/broker"
	"github.com/gm-agent-org/gm-gate/pkg/notify"
	"github.com/gm-agent-org/gm-gate/pkg/types"
)

const alreadyHandled = "request expired or already handled"

// PermissionHandler handles permission-related requests.
type PermissionHandler struct {
	svc *service.PermissionService
}

// NewPermissionHandler creates a new PermissionHandler.
func NewPermissionHandler(svc *service.PermissionService) *PermissionHandler {
	return &PermissionHandler{svc: svc}
}

// Submit godoc
// @Summary      Submit a permission request
// @Description  Registers a request and blocks until it is auto-approved, rate limited, answered or timed out
// @Tags         permission
// @Accept       json
// @Produce      json
// @Param        request body dto.SubmitPermissionRequest true "Permission request"
// @Success      200 {object} types.Outcome
// @Failure      400 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      503 {object} dto.ErrorResponse
// @Router       /api/v1/permission [post]
func (h *PermissionHandler) Submit(c *gin.Context) {
	var req dto.SubmitPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	out, err := h.svc.Submit(c.Request.Context(), service.SubmitInput{
		ID:        req.ID,
		UserID:    req.UserID,
		Action:    types.Action(req.Action),
		Target:    req.Target,
		RiskLevel: types.RiskLevel(req.RiskLevel),
		Context:   req.Context,
	})
	if err != nil {
		switch {
		case errors.Is(err, broker.ErrDuplicateRequest):
			c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
		case errors.Is(err, broker.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		case errors.Is(err, broker.ErrClosed):
			c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "gate is shutting down"})
		default:
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, out)
}

// List godoc
// @Summary      List pending requests
// @Description  Returns requests awaiting a human decision, context redacted
// @Tags         permission
// @Produce      json
// @Success      200 {object} dto.PendingListResponse
// @Router       /api/v1/permission [get]
func (h *PermissionHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, dto.PendingListResponse{Requests: h.svc.Pending()})
}

// Respond godoc
// @Summary      Respond to a permission request
// @Description  Approve or deny a pending request
// @Tags         permission
// @Accept       json
// @Produce      json
// @Param        id path string true "Request ID"
// @Param        request body dto.RespondRequest true "Decision"
// @Success      200 {object} dto.RespondResponse
// @Failure      400 {object} dto.ErrorResponse
// @Failure      403 {object} dto.ErrorResponse
// @Failure      409 {object} dto.RespondResponse
// @Router       /api/v1/permission/{id}/respond [post]
func (h *PermissionHandler) Respond(c *gin.Context) {
	id := c.Param("id")
	var req dto.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
		return
	}

	resolved, err := h.svc.Respond(id, req.Approved, req.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			c.JSON(http.StatusForbidden, dto.ErrorResponse{Error: "unauthorized"})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if !resolved {
		c.JSON(http.StatusConflict, dto.RespondResponse{Resolved: false, Message: alreadyHandled})
		return
	}

	c.JSON(http.StatusOK, dto.RespondResponse{Resolved: true})
}

// Callback godoc
// @Summary      Route a button press
// @Description  Accepts callback data such as approve:<id> or deny:<id> from a notification transport
// @Tags         permission
// @Accept       json
// @Produce      json
// @Param        request body dto.CallbackRequest true "Callback"
// @Success      200 {object} dto.CallbackResponse
// @Failure      400 {object} dto.ErrorResponse
// @Failure      403 {object} dto.ErrorResponse
// @Failure      409 {object} dto.CallbackResponse
// @Failure      422 {object} dto.CallbackResponse
// @Router       /api/v1/callback [post]
func (h *PermissionHandler) Callback(c *gin.Context) {
	var req dto.CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
		return
	}

	res, err := h.svc.Callback(req.Data, req.UserID)
	resp := dto.CallbackResponse{Action: string(res.Action), RequestID: res.RequestID, Resolved: res.Resolved}
	switch {
	case errors.Is(err, notify.ErrInvalidCallback):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{Error: "unauthorized"})
	case errors.Is(err, service.ErrUnsupportedCallback):
		resp.Message = err.Error()
		c.JSON(http.StatusUnprocessableEntity, resp)
	case err != nil:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	case !res.Resolved:
		resp.Message = alreadyHandled
		c.JSON(http.StatusConflict, resp)
	default:
		c.JSON(http.StatusOK, resp)
	}
}

// Status godoc
// @Summary      Gate status
// @Description  Pending count, outcome counters and loaded policy count
// @Tags         global
// @Produce      json
// @Success      200 {object} service.Status
// @Router       /api/v1/status [get]
func (h *PermissionHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Status())
}

// Policies godoc
// @Summary      List policies
// @Description  Returns the auto-approval policies in evaluation order
// @Tags         global
// @Produce      json
// @Success      200 {object} dto.PolicyListResponse
// @Router       /api/v1/policy [get]
func (h *PermissionHandler) Policies(c *gin.Context) {
	c.JSON(http.StatusOK, dto.PolicyListResponse{Policies: h.svc.Policies()})
}

// RateLimit godoc
// @Summary      Rate limit state
// @Description  Returns the limiter view of one user
// @Tags         global
// @Produce      json
// @Param        user path string true "User ID"
// @Success      200 {object} ratelimit.UserStats
// @Router       /api/v1/ratelimit/{user} [get]
func (h *PermissionHandler) RateLimit(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.RateLimit(c.Param("user")))
}

// ClearRateLimit godoc
// @Summary      Reset rate limit state
// @Description  Forgets the request window and denial backoff of one user
// @Tags         global
// @Produce      json
// @Param        user path string true "User ID"
// @Success      200 {object} ratelimit.UserStats
// @Router       /api/v1/ratelimit/{user} [delete]
func (h *PermissionHandler) ClearRateLimit(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.ClearRateLimit(c.Param("user")))
}

// Audit godoc
// @Summary      Audit events
// @Description  Reads events from the live audit log
// @Tags         global
// @Produce      json
// @Param        request_id query string false "Request ID"
// @Param        type query string false "Event type"
// @Param        limit query int false "Most recent N events"
// @Success      200 {object} dto.AuditListResponse
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /api/v1/audit [get]
func (h *PermissionHandler) Audit(c *gin.Context) {
	filter := audit.Filter{
		RequestID: c.Query("request_id"),
		EventType: audit.EventType(c.Query("type")),
		Limit:     100,
	}
	if filter.EventType != "" && !filter.EventType.Valid() {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "unknown event type"})
		return
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid limit"})
			return
		}
		filter.Limit = n
	}

	events, err := h.svc.AuditEvents(filter)
	if err != nil {
		if errors.Is(err, service.ErrAuditDisabled) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "audit log disabled"})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	c.JSON(http.StatusOK, dto.AuditListResponse{Events: events})
}
