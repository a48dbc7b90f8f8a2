package handler

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clubdesk/ticket-service/internal/errs"
)

// Коды ошибок, которые уходят клиенту в поле "error".
const (
	CodeNotFound         = "not_found"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeInternal         = "internal_error"
	CodeInvalidID        = "invalid_id"
	CodeInvalidBody      = "invalid_body"
	CodeTicketNotFound   = "ticket_not_found"
	CodeUnauthorized     = "unauthorized"
	CodeForbidden        = "forbidden"
	CodeNotReady         = "not_ready"
)

func abortError(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code})
}

// writeError maps service errors to HTTP statuses. Unknown errors are logged and
// reported as internal_error without details.
func writeError(c *gin.Context, log *slog.Logger, err error) {
	var v *errs.ValidationError
	switch {
	case errors.As(err, &v):
		body := gin.H{"error": v.Code}
		if v.Field != "" {
			body["field"] = v.Field
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, body)
	case errors.Is(err, errs.ErrTicketNotFound):
		abortError(c, http.StatusNotFound, CodeTicketNotFound)
	case errors.Is(err, errs.ErrUnauthorized):
		abortError(c, http.StatusUnauthorized, CodeUnauthorized)
	case errors.Is(err, errs.ErrForbidden):
		abortError(c, http.StatusForbidden, CodeForbidden)
	default:
		log.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", RequestIDFrom(c),
			"error", err,
		)
		abortError(c, http.StatusInternalServerError, CodeInternal)
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortError(c, http.StatusBadRequest, CodeInvalidID)
		return 0, false
	}
	return id, true
}

// checkSecret compares a caller-supplied shared secret with the configured one.
// An unconfigured secret rejects everything.
func checkSecret(provided, configured string) error {
	if provided == "" || configured == "" {
		return errs.ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(configured)) != 1 {
		return errs.ErrForbidden
	}
	return nil
}

func firstQuery(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := c.Query(k); v != "" {
			return v
		}
	}
	return ""
}
