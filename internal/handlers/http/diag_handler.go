package http

import (
	"net/http"
	"time"

	"lockstream/internal/core/domain"
	"lockstream/internal/core/ports"
	apperrors "lockstream/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DiagHandler exposes the liveness probe and the diagnostic stream listing.
// The listing is unauthenticated: a hardening gap kept for wire-contract
// compatibility. It sits behind the optional IP rate limiter.
type DiagHandler struct {
	sessions ports.SessionService
	logger   *zap.SugaredLogger
}

func NewDiagHandler(sessions ports.SessionService, logger *zap.SugaredLogger) *DiagHandler {
	return &DiagHandler{
		sessions: sessions,
		logger:   logger,
	}
}

func (h *DiagHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/streams", h.ListStreams)
	api.GET("/streams/:id", h.GetStream)
}

func (h *DiagHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

func (h *DiagHandler) ListStreams(c *gin.Context) {
	infos, err := h.sessions.ListStreams(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to list streams", "error", err)
		appErr := apperrors.NewInternalError("failed to list streams")
		c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message, "code": appErr.Code})
		return
	}

	streams := make([]gin.H, 0, len(infos))
	for _, info := range infos {
		streams = append(streams, gin.H{
			"id":          info.ID,
			"name":        info.Name,
			"memberCount": info.MemberCount,
			"createdAt":   info.CreatedAt.UnixMilli(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"streams": streams})
}

func (h *DiagHandler) GetStream(c *gin.Context) {
	id := domain.StreamID(c.Param("id"))

	info, err := h.sessions.GetStream(c.Request.Context(), id)
	if err != nil {
		appErr := apperrors.NewNotFoundError("stream")
		c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message, "code": appErr.Code})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":          info.ID,
		"name":        info.Name,
		"memberCount": info.MemberCount,
		"createdAt":   info.CreatedAt.UnixMilli(),
	})
}
