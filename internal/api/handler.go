package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/tripsync/internal/gateway"
	"github.com/rongwang/tripsync/internal/models"
	"github.com/rongwang/tripsync/internal/service"
)

// Handler exposes the proposal engines of a Registry over HTTP
type Handler struct {
	registry  *service.Registry
	jwtSecret []byte
	logger    *slog.Logger
}

// NewHandler creates a new Handler
func NewHandler(registry *service.Registry, jwtSecret []byte, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry:  registry,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

// SetupRoutes registers all routes on router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)

	api := router.Group("/api")
	api.Use(AuthMiddleware(h.jwtSecret))

	proposals := api.Group("/trips/:tripId/proposals")
	proposals.GET("", h.GetProposals)
	proposals.POST("/refresh", h.RefreshProposals)
	proposals.GET("/events", h.StreamProposals)
	proposals.PUT("/:proposalId/ranking", h.SubmitRanking)
	proposals.DELETE("/:proposalId/ranking", h.ClearRanking)
	proposals.DELETE("/:proposalId", h.CancelProposal)
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetProposals handles GET /api/trips/:tripId/proposals.
// The first request for a trip loads it; fetch failures are reported in
// the returned view state.
func (h *Handler) GetProposals(c *gin.Context) {
	engine := h.registry.For(c.Param("tripId"))
	_ = engine.EnsureLoaded(c.Request.Context())
	c.JSON(http.StatusOK, engine.State().Response())
}

// RefreshProposals handles POST /api/trips/:tripId/proposals/refresh
func (h *Handler) RefreshProposals(c *gin.Context) {
	engine := h.registry.For(c.Param("tripId"))
	_ = engine.Refresh(c.Request.Context())
	c.JSON(http.StatusOK, engine.State().Response())
}

// StreamProposals handles GET /api/trips/:tripId/proposals/events as
// server-sent events, one "state" event per view change.
func (h *Handler) StreamProposals(c *gin.Context) {
	engine := h.registry.For(c.Param("tripId"))
	_ = engine.EnsureLoaded(c.Request.Context())

	states, unsubscribe := engine.Subscribe()
	defer unsubscribe()

	c.Stream(func(w io.Writer) bool {
		select {
		case state, ok := <-states:
			if !ok {
				return false
			}
			c.SSEvent("state", state.Response())
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// SubmitRanking handles PUT /api/trips/:tripId/proposals/:proposalId/ranking
func (h *Handler) SubmitRanking(c *gin.Context) {
	proposalID, ok := h.proposalID(c)
	if !ok {
		return
	}

	var req models.SubmitRankingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "rank must be a positive integer")
		return
	}

	engine := h.registry.For(c.Param("tripId"))
	if err := engine.Vote(c.Request.Context(), proposalID, &req.Rank); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, engine.State().Response())
}

// ClearRanking handles DELETE /api/trips/:tripId/proposals/:proposalId/ranking
func (h *Handler) ClearRanking(c *gin.Context) {
	proposalID, ok := h.proposalID(c)
	if !ok {
		return
	}

	engine := h.registry.For(c.Param("tripId"))
	if err := engine.Vote(c.Request.Context(), proposalID, nil); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, engine.State().Response())
}

// CancelProposal handles DELETE /api/trips/:tripId/proposals/:proposalId
func (h *Handler) CancelProposal(c *gin.Context) {
	proposalID, ok := h.proposalID(c)
	if !ok {
		return
	}

	engine := h.registry.For(c.Param("tripId"))
	if err := engine.Cancel(c.Request.Context(), proposalID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, engine.State().Response())
}

func (h *Handler) proposalID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("proposalId"), 10, 64)
	if err != nil {
		respondInvalid(c, "invalid proposal id")
		return 0, false
	}
	return id, true
}

// respondError maps mutation failures onto bridge error responses
func (h *Handler) respondError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrInvalidRank) {
		respondInvalid(c, err.Error())
		return
	}

	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	kind, _ := gateway.KindOf(err)
	switch kind {
	case gateway.KindUnauthorized:
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	case gateway.KindHTTPStatus:
		status, code = http.StatusBadGateway, "UPSTREAM_ERROR"
	case gateway.KindDecoding:
		status, code = http.StatusBadGateway, "DECODING_FAILED"
	case gateway.KindTransport:
		status, code = http.StatusServiceUnavailable, "TRANSPORT_FAILURE"
	case gateway.KindConfiguration:
		status, code = http.StatusInternalServerError, "CONFIGURATION"
	}

	h.logger.Warn("proposal operation failed", "path", c.FullPath(), "code", code, "error", err)
	c.JSON(status, models.ErrorResponse{
		Status:  "error",
		Code:    code,
		Message: gateway.UserMessage(err),
	})
}

func respondInvalid(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Status:  "error",
		Code:    "INVALID_REQUEST",
		Message: message,
	})
}
