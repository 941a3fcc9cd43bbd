package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/foxfit/backend/internal/apperr"
	"github.com/foxfit/backend/internal/logger"
)

// ErrorResponse sends a standardized error response and logs at caller if needed
func ErrorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// respondError maps a service error onto the HTTP status and body clients
// rely on. Only 5xx responses are logged here.
func respondError(c *gin.Context, err error) {
	if ve, ok := apperr.AsValidation(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      "Validation failed",
			"field":      ve.Field,
			"constraint": ve.Constraint,
		})
		return
	}

	switch {
	case errors.Is(err, apperr.ErrNotFound):
		ErrorResponse(c, http.StatusNotFound, "Not found")
	case errors.Is(err, apperr.ErrForbidden):
		ErrorResponse(c, http.StatusForbidden, "Forbidden")
	case errors.Is(err, apperr.ErrUnauthenticated):
		ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, apperr.ErrStateConflict):
		ErrorResponse(c, http.StatusConflict, "Conflicting state")
	case errors.Is(err, apperr.ErrConflict):
		ErrorResponse(c, http.StatusConflict, "Already exists")
	case errors.Is(err, apperr.ErrTransient), errors.Is(err, context.DeadlineExceeded):
		logger.WithContext(c.Request.Context()).WithError(err).Error("dependency unavailable")
		ErrorResponse(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		logger.WithContext(c.Request.Context()).WithError(err).Error("request failed")
		ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
	}
}

// bindError reports a request body that failed to bind. Rule violations
// are answered like service validation failures; malformed JSON is a 400.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		constraint := fe.Tag()
		if fe.Param() != "" {
			constraint += "=" + fe.Param()
		}
		respondError(c, apperr.Validation(fe.Field(), constraint))
		return
	}
	ErrorResponse(c, http.StatusBadRequest, "Malformed request body")
}

// pathUUID parses a uuid path parameter. Unparseable ids answer 404.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		ErrorResponse(c, http.StatusNotFound, "Not found")
		return uuid.Nil, false
	}
	return id, true
}
