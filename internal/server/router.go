package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sj-versent/demo-aws-summit-2025/internal/auth"
	"github.com/sj-versent/demo-aws-summit-2025/internal/gallery"
	"github.com/sj-versent/demo-aws-summit-2025/internal/handler"
	"github.com/sj-versent/demo-aws-summit-2025/internal/history"
	"github.com/sj-versent/demo-aws-summit-2025/internal/logging"
	"github.com/sj-versent/demo-aws-summit-2025/internal/middleware"
	"github.com/sj-versent/demo-aws-summit-2025/internal/progress"
)

type Deps struct {
	Generator   handler.Generator
	Broker      handler.CredentialBroker
	CredsPath   string
	Registry    *progress.Registry
	Gallery     *gallery.Gallery
	History     *history.Store
	TokenConfig auth.TokenConfig
	// GenerateLimiter guards every route that invokes the model. Nil means
	// unlimited.
	GenerateLimiter *middleware.RateLimiter
	Info            handler.InfoHandler
	Logger          zerolog.Logger
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.RequestLogger(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	recorder := &handler.Recorder{Gallery: deps.Gallery, History: deps.History, Logger: deps.Logger}

	api := r.Group("/api")

	limited := api.Group("")
	if deps.GenerateLimiter != nil {
		limited.Use(middleware.RateLimit(deps.GenerateLimiter))
	}
	generateHandler := &handler.GenerateHandler{Generator: deps.Generator, Recorder: recorder, Logger: deps.Logger}
	limited.POST("/generate", generateHandler.Create)

	progressHandler := &handler.ProgressHandler{Generator: deps.Generator, Registry: deps.Registry, Recorder: recorder, Logger: deps.Logger}
	limited.GET("/generate/progress", progressHandler.SSE)
	limited.GET("/generate/ws", progressHandler.WebSocket)

	creds := api.Group("/vault-creds")
	creds.Use(middleware.RequireToken(deps.TokenConfig))
	credentialsHandler := &handler.CredentialsHandler{Broker: deps.Broker, DefaultPath: deps.CredsPath, Logger: deps.Logger}
	creds.GET("", credentialsHandler.Get)
	creds.POST("", credentialsHandler.Post)
	creds.DELETE("", credentialsHandler.Delete)

	if deps.Gallery != nil {
		galleryHandler := &handler.GalleryHandler{Gallery: deps.Gallery}
		api.GET("/gallery", galleryHandler.List)
		api.DELETE("/gallery", galleryHandler.Clear)
	}

	if deps.History != nil {
		metricsHandler := &handler.MetricsHandler{History: deps.History}
		api.GET("/metrics", metricsHandler.Summary)
		api.GET("/history", metricsHandler.Recent)
	}

	info := deps.Info
	api.GET("/prompts", info.Prompts)
	api.GET("/version", info.Version)

	return r
}
