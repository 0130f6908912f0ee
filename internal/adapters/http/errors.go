package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
	"github.com/rs/zerolog/log"
)

// statusOf maps an error kind to its HTTP status. A few constraint errors are
// caller mistakes or server bugs rather than conflicts and are special-cased.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidCapacity):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvariantViolation):
		return http.StatusInternalServerError
	}
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindUnauthorized:
		return http.StatusForbidden
	case domain.KindConflict, domain.KindConstraint:
		return http.StatusConflict
	case domain.KindBusy:
		return http.StatusServiceUnavailable
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusOf(err)
	body := gin.H{
		"error": domain.CodeOf(err),
		"kind":  domain.KindOf(err),
	}
	var de *domain.Error
	if errors.As(err, &de) {
		if de.RoomID != "" {
			body["room_id"] = de.RoomID
		}
		if de.UserID != "" {
			body["user_id"] = de.UserID
		}
	}
	if domain.IsRetryable(err) {
		c.Header("Retry-After", "1")
	}

	ev := log.Warn()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		ev = log.Error()
	}
	ev.Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Int("status", status).Msg("request failed")

	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	writeError(c, domain.Invalid(err.Error()))
}
