package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sj-versent/demo-aws-summit-2025/internal/generation"
)

// Generator is the orchestrator as seen by the HTTP layer.
type Generator interface {
	Generate(ctx context.Context, prompt string, emit generation.Sink) generation.Status
	GenerateOnce(ctx context.Context, prompt string) (string, error)
}

type GenerateHandler struct {
	Generator Generator
	Recorder  *Recorder
	Logger    zerolog.Logger
}

type generateBody struct {
	Prompt string `json:"prompt"`
}

func (h *GenerateHandler) Create(c *gin.Context) {
	var body generateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	prompt := strings.TrimSpace(body.Prompt)
	if prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt is required"})
		return
	}

	start := time.Now()
	image, err := h.Generator.GenerateOnce(c.Request.Context(), prompt)
	latency := time.Since(start)
	if err != nil {
		h.Logger.Warn().Err(err).Dur("latency", latency).Msg("generate failed")
		h.Recorder.Record(c.Request.Context(), prompt, generation.Failed(err.Error()), latency)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.Recorder.Record(c.Request.Context(), prompt, generation.Ready(image), latency)
	c.JSON(http.StatusOK, gin.H{"image": image})
}
