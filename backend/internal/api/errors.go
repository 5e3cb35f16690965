package api

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "chain-graph/backend/pkg/errors"
)

// statusFor maps engine errors onto HTTP statuses
func statusFor(err error) int {
	var timeout *apperrors.ErrContextTimeout
	switch {
	case apperrors.IsValidation(err):
		return http.StatusBadRequest
	case stderrors.As(err, &timeout):
		return http.StatusGatewayTimeout
	case apperrors.IsErrorType(err, apperrors.ErrorTypeContext):
		return http.StatusServiceUnavailable
	case apperrors.IsStorage(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error body. Validation reasons go back to the
// caller verbatim; everything else is logged and summarized.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)

	var validation *apperrors.ErrValidation
	if stderrors.As(err, &validation) {
		c.JSON(status, gin.H{
			"error":      validation.Reason,
			"field":      validation.Field,
			"request_id": requestID(c),
		})
		return
	}

	h.logger.Error("Request failed",
		zap.String("request_id", requestID(c)),
		zap.String("path", c.FullPath()),
		zap.Int("status", status),
		zap.Error(err),
	)
	c.JSON(status, gin.H{
		"error":      http.StatusText(status),
		"retryable":  apperrors.IsRetryable(err),
		"request_id": requestID(c),
	})
}
