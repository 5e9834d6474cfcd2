package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sj-versent/demo-aws-summit-2025/internal/gallery"
	"github.com/sj-versent/demo-aws-summit-2025/internal/history"
)

type GalleryHandler struct {
	Gallery *gallery.Gallery
}

func (h *GalleryHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"images": h.Gallery.List()})
}

func (h *GalleryHandler) Clear(c *gin.Context) {
	h.Gallery.Clear()
	c.Status(http.StatusNoContent)
}

type MetricsHandler struct {
	History *history.Store
}

func (h *MetricsHandler) Summary(c *gin.Context) {
	m, err := h.History.Summary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, m)
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type historyItem struct {
	ID             string  `json:"id"`
	Prompt         string  `json:"prompt"`
	Outcome        string  `json:"outcome"`
	Message        string  `json:"message,omitempty"`
	LatencySeconds float64 `json:"latencySeconds"`
	Cost           float64 `json:"cost"`
	CreatedAt      string  `json:"createdAt"`
}

func (h *MetricsHandler) Recent(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := h.History.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]historyItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, historyItem{
			ID:             e.ID,
			Prompt:         e.Prompt,
			Outcome:        string(e.Outcome),
			Message:        e.Message,
			LatencySeconds: e.Latency.Seconds(),
			Cost:           e.Cost,
			CreatedAt:      e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"generations": items})
}
