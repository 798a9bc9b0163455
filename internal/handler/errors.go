package handler

import (
	"errors"
	"net/http"
	"strconv"

	"progresshub/internal/apperr"
	"progresshub/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContextUserID is the gin context key the auth middleware stores the caller under.
const ContextUserID = "user_id"

func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidArgument:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindForbidden:
		return http.StatusForbidden
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// WriteError aborts the request with {"error": ...}. Internal errors are
// logged with their cause and answered with a generic message.
func WriteError(c *gin.Context, log *zap.Logger, op string, err error) {
	status := StatusFor(err)
	log = logger.WithTrace(c.Request.Context(), log)
	if status == http.StatusInternalServerError {
		log.Error(op+": failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	log.Warn(op+": rejected",
		zap.Int("status", status),
		zap.Error(err),
	)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, log *zap.Logger, op, msg string, err error) {
	log.Warn(op+": "+msg, zap.Error(err))
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// queryInt reads an optional integer query parameter.
func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.InvalidArgument("invalid %s %q", name, raw)
	}
	return v, nil
}

func pageParams(c *gin.Context) (page, size int, err error) {
	if page, err = queryInt(c, "page", 0); err != nil {
		return 0, 0, err
	}
	if size, err = queryInt(c, "size", 10); err != nil {
		return 0, 0, err
	}
	return page, size, nil
}
