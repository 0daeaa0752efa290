package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/sharefetch-go/internal/app"
	"github.com/yourusername/sharefetch-go/internal/domain"
)

// AcquireHandler handles acquisition HTTP requests
type AcquireHandler struct {
	engine *app.Engine
	logger *zap.Logger
}

// NewAcquireHandler creates a new acquire handler
func NewAcquireHandler(engine *app.Engine, logger *zap.Logger) *AcquireHandler {
	return &AcquireHandler{engine: engine, logger: logger}
}

// AcquireRequest represents a request to acquire a share link
type AcquireRequest struct {
	URL    string `json:"url" binding:"required"`
	All    bool   `json:"all,omitempty"`
	Resume bool   `json:"resume,omitempty"`
}

// AcquireResponse wraps the per-item records of one acquisition
type AcquireResponse struct {
	Records []domain.ResultRecord `json:"records"`
}

// Acquire handles POST /api/v1/acquire. The acquisition runs synchronously;
// accepted bytes land under the configured output directory and each record
// carries its path.
func (h *AcquireHandler) Acquire(c *gin.Context) {
	var req AcquireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, err := h.engine.Acquire(c.Request.Context(), req.URL, app.AcquireOptions{
		All:    req.All,
		Resume: req.Resume,
	})
	if err != nil {
		var env *domain.Envelope
		if errors.As(err, &env) && env.Code == domain.ErrUsage {
			c.JSON(http.StatusBadRequest, gin.H{"error": env})
			return
		}
		h.logger.Error("Acquisition failed", zap.String("url", req.URL), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, AcquireResponse{Records: records})
}

// DetectRequest represents a platform detection query
type DetectRequest struct {
	URL string `json:"url" binding:"required"`
}

// Detect handles POST /api/v1/detect, a pure syntactic check with no
// network I/O.
func (h *AcquireHandler) Detect(c *gin.Context) {
	var req DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"platform": h.engine.Detect(req.URL)})
}
