package handlers

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/foxfit/backend/internal/auth"
	"github.com/foxfit/backend/internal/logger"
	"github.com/foxfit/backend/internal/middleware"
	"github.com/foxfit/backend/internal/registry"
	"github.com/foxfit/backend/internal/websocket"
)

const healthTimeout = 2 * time.Second

// RouterDeps carries everything the HTTP surface is built from.
type RouterDeps struct {
	AllowedOrigins []string
	HookToken      string
	JWT            *auth.JWTService
	ChatLimiter    *middleware.RateLimiter

	Auth     *AuthHandler
	Channels *ChannelHandler
	Videos   *VideoHandler
	Chat     *ChatHandler
	Ingest   *IngestHandler
	WS       *websocket.Handler

	// Health checks the datastore; nil means always healthy.
	Health func(ctx context.Context) error
}

// RegisterValidators installs the custom binding rules and reports field
// names as they appear in JSON.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return registry.RegisterValidation(v)
}

// NewRouter wires the routes.
func NewRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), logger.RequestLogger(), middleware.CORSMiddleware(d.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		if d.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()
			if err := d.Health(ctx); err != nil {
				logger.WithContext(ctx).WithError(err).Warn("health check failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public routes
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/register", d.Auth.Register)
		authRoutes.POST("/login", d.Auth.Login)
	}

	// Media server callbacks
	hooks := router.Group("/ingest", middleware.HookToken(d.HookToken))
	{
		hooks.POST("/publish-start", d.Ingest.PublishStart)
		hooks.POST("/publish-stop", d.Ingest.PublishStop)
	}
	internal := router.Group("/internal", middleware.HookToken(d.HookToken))
	{
		internal.POST("/videos/:id/finalize", d.Videos.Finalize)
	}

	videos := router.Group("/videos")
	{
		videos.GET("/:id", d.Videos.GetVideo)
		videos.GET("/:id/stream", middleware.OptionalAuth(d.JWT), d.Videos.Stream)
		videos.GET("/:id/chat", d.Chat.GetMessages)
		videos.POST("/:id/chat",
			middleware.AuthMiddleware(d.JWT),
			middleware.RateLimitMiddleware(d.ChatLimiter),
			d.Chat.PostMessage,
		)
		if d.WS != nil {
			videos.GET("/:id/chat/ws", middleware.OptionalAuth(d.JWT), d.WS.HandleWebSocket)
			videos.GET("/:id/viewers", d.WS.ViewerCount)
		}
	}

	router.GET("/api/v1/channels", d.Channels.ListChannels)
	router.GET("/api/v1/channels/:slug", d.Channels.GetChannel)

	// Protected routes
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(d.JWT))
	{
		api.GET("/me", d.Auth.GetMe)
		api.POST("/channels", d.Channels.CreateChannel)
		api.GET("/studio", d.Channels.Studio)
		api.POST("/channels/:slug/stream-key", d.Channels.RotateStreamKey)
	}

	return router
}
