package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/sharefetch-go/internal/infrastructure"
)

// PlatformHandler exposes the adapter registry
type PlatformHandler struct {
	registry *infrastructure.Registry
}

// NewPlatformHandler creates a new platform handler
func NewPlatformHandler(registry *infrastructure.Registry) *PlatformHandler {
	return &PlatformHandler{registry: registry}
}

// PlatformInfo describes one registered platform and its fallback chain
type PlatformInfo struct {
	Platform string   `json:"platform"`
	Methods  []string `json:"methods"`
}

// List handles GET /api/v1/platforms
func (h *PlatformHandler) List(c *gin.Context) {
	adapters := h.registry.List()
	infos := make([]PlatformInfo, 0, len(adapters))
	for _, adapter := range adapters {
		methods := adapter.Methods()
		names := make([]string, 0, len(methods))
		for _, m := range methods {
			names = append(names, m.Name)
		}
		infos = append(infos, PlatformInfo{
			Platform: string(adapter.Platform()),
			Methods:  names,
		})
	}
	c.JSON(http.StatusOK, infos)
}
