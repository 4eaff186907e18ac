// Package httpapi exposes the sync protocol over HTTP: a public ping route
// and bearer-authenticated push and pull routes.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/tabkeeper/internal/client/client"
	"github.com/dmitrijs2005/tabkeeper/internal/client/merge"
	"github.com/dmitrijs2005/tabkeeper/internal/client/models"
	"github.com/dmitrijs2005/tabkeeper/internal/common"
	"github.com/dmitrijs2005/tabkeeper/internal/logging"
	"github.com/dmitrijs2005/tabkeeper/internal/server/store"
)

const userIDContextKey = "tabkeeper_user_id"

var (
	errMissingStore         = errors.New("sync store dependency required")
	errMissingTokens        = errors.New("token validator dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// SyncStore applies pushes and answers pulls for one user at a time.
type SyncStore interface {
	Push(ctx context.Context, userID string, payload *models.Dataset) (merge.Stats, error)
	Pull(ctx context.Context, userID string, since int64) (*models.Dataset, error)
}

// TokenValidator resolves a bearer token to a user id.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// TokenValidatorFunc adapts a function to TokenValidator.
type TokenValidatorFunc func(token string) (string, error)

func (f TokenValidatorFunc) ValidateToken(token string) (string, error) { return f(token) }

type Dependencies struct {
	Store          SyncStore
	Tokens         TokenValidator
	Logger         logging.Logger
	MaxBodyBytes   int64
	AllowedOrigins []string
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Store == nil {
		return nil, errMissingStore
	}
	if deps.Tokens == nil {
		return nil, errMissingTokens
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	corsConfig := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{common.AuthorizationHeaderName, "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(deps.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = deps.AllowedOrigins
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig))

	handler := &httpHandler{
		store:        deps.Store,
		tokens:       deps.Tokens,
		logger:       logger.With("module", "http_api"),
		maxBodyBytes: deps.MaxBodyBytes,
	}
	router.Use(handler.logRequest)

	router.GET(common.RoutePing, handler.handlePing)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST(common.RoutePush, handler.handlePush)
	protected.POST(common.RoutePull, handler.handlePull)

	return router, nil
}

type httpHandler struct {
	store        SyncStore
	tokens       TokenValidator
	logger       logging.Logger
	maxBodyBytes int64
}

type pushResponsePayload struct {
	LocalWins  int `json:"localWins"`
	ServerWins int `json:"serverWins"`
}

func (h *httpHandler) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handlePush(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	ctx := c.Request.Context()

	h.limitBody(c)
	var payload models.Dataset
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	stats, err := h.store.Push(ctx, userID, &payload)
	if err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			h.logger.Info(ctx, "push rejected", "violations", len(verr.Violations))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_references", "violations": verr.Violations})
			return
		}
		h.logger.Error(ctx, "push failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sync_failed"})
		return
	}

	h.logger.Debug(ctx, "push applied", "records", payload.Len(),
		"local_wins", stats.LocalWins, "server_wins", stats.ServerWins)
	c.JSON(http.StatusOK, pushResponsePayload{LocalWins: stats.LocalWins, ServerWins: stats.ServerWins})
}

func (h *httpHandler) handlePull(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	ctx := c.Request.Context()

	h.limitBody(c)
	var request client.PullRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.LastSyncTimestamp < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	data, err := h.store.Pull(ctx, userID, request.LastSyncTimestamp)
	if err != nil {
		h.logger.Error(ctx, "pull failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sync_failed"})
		return
	}

	c.JSON(http.StatusOK, data)
}

func (h *httpHandler) limitBody(c *gin.Context) {
	if h.maxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}
}
