package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/localrag/localrag/internal/pkg/response"
	"github.com/localrag/localrag/internal/service"
)

type QueryHandler struct {
	queries *service.QueryService
}

func NewQueryHandler(queries *service.QueryService) *QueryHandler {
	return &QueryHandler{queries: queries}
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid", "invalid request")
		return
	}
	if req.Query == "" {
		response.Error(c, http.StatusBadRequest, "invalid", "query required")
		return
	}
	result, err := h.queries.Query(c.Request.Context(), req.Query, req.TopK)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *QueryHandler) IndexStats(c *gin.Context) {
	status, err := h.queries.Status(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, status)
}
