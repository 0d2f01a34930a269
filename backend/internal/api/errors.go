package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "tami-graph/backend/pkg/errors"
)

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeStoreUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.ErrorTypeExtraction:
		return http.StatusBadGateway
	case apperrors.ErrorTypeContext:
		return http.StatusGatewayTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respond writes err as {"error", "type"}. Server-side failures are logged.
func (h *Handler) respond(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("op", op),
			zap.String("owner_id", c.Param("owner")),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	body := gin.H{"error": err.Error()}
	if t := apperrors.TypeOf(err); t != "" {
		body["type"] = t
	}
	c.JSON(status, body)
}

// bind decodes the JSON body, answering 400 when it is malformed
func (h *Handler) bind(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "type": apperrors.ErrorTypeValidation})
		return false
	}
	return true
}

// queryInt reads an integer query parameter. Absent means zero, which the
// engine replaces with its default.
func queryInt(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidation(key, fmt.Sprintf("%q is not an integer", raw))
	}
	return v, nil
}

// queryList splits a comma separated query parameter
func queryList(c *gin.Context, key string) []string {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
