package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sirupsen/logrus"

	"github.com/foxfit/backend/internal/apperr"
	"github.com/foxfit/backend/internal/logger"
)

const maxHookBody = 64 << 10

// Gateway reacts to the media server's publish callbacks.
type Gateway interface {
	OnPublishStart(ctx context.Context, key string) error
	OnPublishStop(ctx context.Context, key string) error
}

// IngestHandler serves the media server's publish hooks. Stream keys arrive
// in the request and must never be echoed or logged.
type IngestHandler struct {
	gateway Gateway
}

func NewIngestHandler(gateway Gateway) *IngestHandler {
	return &IngestHandler{gateway: gateway}
}

type publishHook struct {
	Key  string `json:"key" form:"key"`
	Name string `json:"name" form:"name"`
}

// streamKey reads the key from a JSON body, a form body or the query string,
// accepting both "key" and "name" (the name nginx-rtmp uses).
func streamKey(c *gin.Context) string {
	var hook publishHook
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxHookBody))
		if err == nil && len(body) > 0 {
			if c.ContentType() == binding.MIMEJSON {
				if err := json.Unmarshal(body, &hook); err != nil {
					logHookDecodeError(c, "json", err)
				}
			} else {
				c.Request.Body = io.NopCloser(bytes.NewReader(body))
				if err := c.ShouldBindWith(&hook, binding.Form); err != nil {
					logHookDecodeError(c, "form", err)
				}
			}
		}
	}
	for _, k := range []string{hook.Key, hook.Name, c.Query("key"), c.Query("name")} {
		if k = strings.TrimSpace(k); k != "" {
			return k
		}
	}
	return ""
}

// logHookDecodeError records why a hook body was ignored. Decoder messages
// can quote the body, so only the error type and offset are kept.
func logHookDecodeError(c *gin.Context, format string, err error) {
	fields := logrus.Fields{"format": format, "error_type": fmt.Sprintf("%T", err)}
	var syntax *json.SyntaxError
	if errors.As(err, &syntax) {
		fields["offset"] = syntax.Offset
	}
	logger.WithContext(c.Request.Context()).WithFields(fields).Debug("publish hook body not decoded")
}

// PublishStart authorizes a broadcaster and brings the channel live.
// Anything but 200 makes the media server drop the connection.
func (h *IngestHandler) PublishStart(c *gin.Context) {
	key := streamKey(c)
	if key == "" {
		ErrorResponse(c, http.StatusBadRequest, "Stream key required")
		return
	}

	err := h.gateway.OnPublishStart(c.Request.Context(), key)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, apperr.ErrForbidden):
		ErrorResponse(c, http.StatusForbidden, "Invalid stream key")
	case errors.Is(err, apperr.ErrTransient), errors.Is(err, context.DeadlineExceeded):
		logger.WithContext(c.Request.Context()).WithError(err).Error("publish start failed")
		ErrorResponse(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		if _, ok := apperr.AsValidation(err); ok {
			ErrorResponse(c, http.StatusBadRequest, "Stream key required")
			return
		}
		respondError(c, err)
	}
}

// PublishStop ends the broadcast. The media server cannot act on a failure
// here, so errors are logged and 200 is returned regardless.
func (h *IngestHandler) PublishStop(c *gin.Context) {
	key := streamKey(c)
	if key == "" {
		ErrorResponse(c, http.StatusBadRequest, "Stream key required")
		return
	}

	if err := h.gateway.OnPublishStop(c.Request.Context(), key); err != nil {
		logger.WithContext(c.Request.Context()).WithError(err).Error("publish stop failed")
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
