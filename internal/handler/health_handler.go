package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/localrag/localrag/internal/pkg/response"
	"github.com/localrag/localrag/internal/service"
)

type HealthHandler struct {
	queries *service.QueryService
}

func NewHealthHandler(queries *service.QueryService) *HealthHandler {
	return &HealthHandler{queries: queries}
}

func (h *HealthHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Status is the simplified readiness view: is retrieval usable and how
// many documents are loaded. It always answers 200 so dashboards can
// poll it without special-casing outages.
func (h *HealthHandler) Status(c *gin.Context) {
	now := time.Now().UTC().Format(time.RFC3339)
	status, err := h.queries.Status(c.Request.Context())
	if err != nil {
		response.Success(c, gin.H{
			"rag_status":      "error",
			"documents_count": 0,
			"timestamp":       now,
		})
		return
	}
	ragStatus := "ready"
	if status.ModelChecked && !status.ModelAvailable {
		ragStatus = "degraded"
	}
	response.Success(c, gin.H{
		"rag_status":      ragStatus,
		"documents_count": status.Documents,
		"timestamp":       now,
	})
}

func (h *HealthHandler) Detailed(c *gin.Context) {
	status, err := h.queries.Status(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"status": "healthy",
		"index":  status,
	})
}
