package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/tabkeeper/internal/common"
	"github.com/dmitrijs2005/tabkeeper/internal/logging"
)

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader(common.AuthorizationHeaderName)
	if !strings.HasPrefix(header, common.BearerPrefix) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, common.BearerPrefix))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}

	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			h.logger.Info(c.Request.Context(), "token validation failed", "error", err)
		} else {
			h.logger.Warn(c.Request.Context(), "token validation failed", "error", err)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.Set(userIDContextKey, subject)
	c.Request = c.Request.WithContext(logging.ContextWith(c.Request.Context(), "user_id", subject))
	c.Next()
}

func (h *httpHandler) logRequest(c *gin.Context) {
	start := time.Now()
	c.Next()

	h.logger.Debug(c.Request.Context(), "request served",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"duration", time.Since(start),
	)
}
