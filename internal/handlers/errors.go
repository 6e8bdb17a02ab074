package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/chachabrian/clearinghouse-backend/internal/bulk"
	"github.com/chachabrian/clearinghouse-backend/internal/clearinghouse"
	"github.com/chachabrian/clearinghouse-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// respondError writes the error envelope for err. Unknown errors are logged
// and reported as a generic 500.
func respondError(c *gin.Context, err error) {
	var validation *clearinghouse.ValidationError
	switch {
	case errors.As(err, &validation):
		abortWith(c, http.StatusUnprocessableEntity, "validation_failed", "Validation failed", validation.Fields)
	case errors.Is(err, clearinghouse.ErrUnauthorized):
		abortWith(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
	case errors.Is(err, clearinghouse.ErrNotFound):
		abortWith(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, clearinghouse.ErrInvalidTransition):
		abortWith(c, http.StatusConflict, "invalid_transition", err.Error(), nil)
	case errors.Is(err, clearinghouse.ErrConflictingApproval):
		abortWith(c, http.StatusConflict, "conflicting_approval", err.Error(), nil)
	case errors.Is(err, clearinghouse.ErrDuplicateRelationship):
		abortWith(c, http.StatusConflict, "duplicate_relationship", err.Error(), nil)
	case errors.Is(err, bulk.ErrJobRunning):
		abortWith(c, http.StatusConflict, "job_running", err.Error(), nil)
	default:
		_ = c.Error(err)
		slog.Error("request failed", "error", err, "request_id", c.GetString(middleware.RequestIDKey))
		abortWith(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
	}
}

// badRequest reports a body or parameter that could not be parsed at all.
func badRequest(c *gin.Context, message string) {
	abortWith(c, http.StatusBadRequest, "bad_request", message, nil)
}

func abortWith(c *gin.Context, status int, code, message string, fields map[string]string) {
	body := gin.H{"code": code, "message": message}
	if len(fields) > 0 {
		body["fields"] = fields
	}
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.GetString(middleware.RequestIDKey),
		"error":      body,
	})
}

func callerFrom(c *gin.Context) clearinghouse.Caller {
	return clearinghouse.Caller{
		UserID:     c.GetUint(middleware.UserIDKey),
		ProviderID: c.GetUint(middleware.ProviderIDKey),
	}
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}
