package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sj-versent/demo-aws-summit-2025/internal/broker"
	"github.com/sj-versent/demo-aws-summit-2025/internal/logging"
	"github.com/sj-versent/demo-aws-summit-2025/internal/middleware"
)

type CredentialBroker interface {
	ScopedCredential(ctx context.Context, path string) (broker.ScopedCredential, error)
	Invalidate(path string) bool
}

// CredentialsHandler exposes the broker's scoped credentials over HTTP.
type CredentialsHandler struct {
	Broker CredentialBroker
	// DefaultPath is served by GET.
	DefaultPath string
	Logger      zerolog.Logger
}

type credentialsBody struct {
	Path string `json:"path"`
}

func (h *CredentialsHandler) Get(c *gin.Context) {
	h.respond(c, h.DefaultPath, "GET /api/vault-creds")
}

func (h *CredentialsHandler) Post(c *gin.Context) {
	const where = "POST /api/vault-creds"
	var body credentialsBody
	_ = c.ShouldBindJSON(&body)
	path := strings.TrimSpace(body.Path)
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "message": "Path is required", "context": where})
		return
	}
	h.respond(c, path, where)
}

// Delete drops the cached credential for ?path= (default path when omitted).
func (h *CredentialsHandler) Delete(c *gin.Context) {
	path := c.DefaultQuery("path", h.DefaultPath)
	invalidated := h.Broker.Invalidate(path)
	h.audit(c).Info().Str("path", path).Bool("invalidated", invalidated).Msg("credentials invalidated")
	c.JSON(http.StatusOK, gin.H{"path": path, "invalidated": invalidated})
}

// audit tags log lines with the token's operator when the guard is on.
func (h *CredentialsHandler) audit(c *gin.Context) *zerolog.Logger {
	log := h.Logger
	if op, ok := middleware.OperatorFromContext(c); ok {
		log = log.With().Str("operator", op).Logger()
	}
	return &log
}

func (h *CredentialsHandler) respond(c *gin.Context, path, where string) {
	log := h.audit(c)
	cred, err := h.Broker.ScopedCredential(c.Request.Context(), path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("credential fetch failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to fetch credentials",
			"message": err.Error(),
			"context": where,
		})
		return
	}

	log.Info().
		Str("path", path).
		Str("access_key", logging.RedactValue(cred.AccessKeyID)).
		Int("ttl", cred.LeaseSeconds).
		Msg("credentials served")

	resp := gin.H{
		"accessKeyId":     cred.AccessKeyID,
		"secretAccessKey": cred.SecretAccessKey,
		"ttl":             cred.LeaseSeconds,
	}
	if cred.SessionToken != "" {
		resp["sessionToken"] = cred.SessionToken
	}
	c.JSON(http.StatusOK, resp)
}
