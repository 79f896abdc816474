package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/localrag/localrag/internal/ai"
	appErr "github.com/localrag/localrag/internal/pkg/errors"
	"github.com/localrag/localrag/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Warn("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, appErr.ErrPayloadTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", err.Error())
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, http.StatusConflict, "conflict", "conflict")
	// Provider outages win over the ingestion-failed wrapper so a
	// model-down upload reports 503/504, not 422.
	case errors.Is(err, ai.ErrUnavailable):
		response.Error(c, http.StatusServiceUnavailable, "model_unavailable", "embedding model unavailable")
	case errors.Is(err, ai.ErrTimeout):
		response.Error(c, http.StatusGatewayTimeout, "model_timeout", "embedding model timeout")
	case errors.Is(err, appErr.ErrIngestionFailed):
		response.Error(c, http.StatusUnprocessableEntity, "ingestion_failed", err.Error())
	case errors.Is(err, appErr.ErrInvalid), errors.Is(err, ai.ErrEmptyInput):
		response.Error(c, http.StatusBadRequest, "invalid", err.Error())
	case errors.Is(err, appErr.ErrDimensionMismatch):
		response.Error(c, http.StatusInternalServerError, "dimension_mismatch", err.Error())
	case errors.Is(err, appErr.ErrTooMany):
		response.Error(c, http.StatusTooManyRequests, "too_many", "too many requests")
	default:
		response.Error(c, http.StatusInternalServerError, "internal", "internal error")
	}
}
