package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/sj-versent/demo-aws-summit-2025/internal/generation"
	"github.com/sj-versent/demo-aws-summit-2025/internal/progress"
)

const DefaultPrompt = "A koala in a tree"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ProgressHandler streams one generation's statuses, over SSE or WebSocket.
type ProgressHandler struct {
	Generator Generator
	Registry  *progress.Registry
	Recorder  *Recorder
	Logger    zerolog.Logger
}

func promptFrom(c *gin.Context) string {
	if p := strings.TrimSpace(c.Query("prompt")); p != "" {
		return p
	}
	return DefaultPrompt
}

func (h *ProgressHandler) SSE(c *gin.Context) {
	w, err := progress.NewSSEWriter(c.Request.Context(), c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.run(c.Request.Context(), promptFrom(c), w, "sse")
}

func (h *ProgressHandler) WebSocket(c *gin.Context) {
	prompt := promptFrom(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already replied.
		h.Logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Read only to notice the client going away; incoming frames are ignored.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.run(ctx, prompt, progress.NewWSWriter(conn), "websocket")
}

func (h *ProgressHandler) run(ctx context.Context, prompt string, w progress.Writer, transport string) {
	id := uuid.NewString()
	log := h.Logger.With().Str("request_id", id).Str("transport", transport).Logger()

	ch := progress.NewChannel(w)
	if h.Registry != nil {
		h.Registry.Register(id, ch)
		defer h.Registry.Unregister(id)
	}
	defer func() { _ = ch.Close() }()

	// Work stops as soon as the stream is closed under it.
	ctx, cancel := ch.Bind(ctx)
	defer cancel()

	start := time.Now()
	final := h.Generator.Generate(ctx, prompt, ch.Emit)
	latency := time.Since(start)

	ev := log.Info()
	if final.Phase == generation.PhaseFailed {
		ev = log.Warn().Str("error", final.Message)
	}
	if err := ch.Err(); err != nil {
		ev = ev.AnErr("stream_error", err)
	}
	ev.Str("status", final.Phase.String()).Dur("latency", latency).Msg("generation finished")

	h.Recorder.Record(ctx, prompt, final, latency)
}
