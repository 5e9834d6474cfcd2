package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SavedPrompts are offered as one-click examples.
var SavedPrompts = []string{
	"A futuristic city skyline at sunset",
	"A koala sitting in a eucalyptus tree, watercolor style",
	"A cyberpunk kangaroo in Sydney",
	"Outback landscape with dramatic clouds, photorealistic",
	"Abstract art inspired by the Australian bush",
}

type InfoHandler struct {
	BuildVersion string
	ModelID      string
	Region       string
}

func (h *InfoHandler) Prompts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"prompts": SavedPrompts, "default": DefaultPrompt})
}

func (h *InfoHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": h.BuildVersion, "modelId": h.ModelID, "region": h.Region})
}
