package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/sj-versent/demo-aws-summit-2025/internal/auth"
	"github.com/sj-versent/demo-aws-summit-2025/internal/bedrock"
	"github.com/sj-versent/demo-aws-summit-2025/internal/broker"
	"github.com/sj-versent/demo-aws-summit-2025/internal/config"
	"github.com/sj-versent/demo-aws-summit-2025/internal/gallery"
	"github.com/sj-versent/demo-aws-summit-2025/internal/generation"
	"github.com/sj-versent/demo-aws-summit-2025/internal/handler"
	"github.com/sj-versent/demo-aws-summit-2025/internal/history"
	"github.com/sj-versent/demo-aws-summit-2025/internal/logging"
	"github.com/sj-versent/demo-aws-summit-2025/internal/middleware"
	"github.com/sj-versent/demo-aws-summit-2025/internal/progress"
	"github.com/sj-versent/demo-aws-summit-2025/internal/server"
	"github.com/sj-versent/demo-aws-summit-2025/internal/vault"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	log := logging.ForOutput(cfg.LogLevel, os.Stdout)
	gin.SetMode(cfg.GinMode)

	if !cfg.HasVaultCredentials() {
		log.Warn().Msg("VAULT_ROLE_ID or VAULT_SECRET_ID not set; credential requests will fail")
	}

	vc, err := vault.NewClient(cfg.VaultAddr)
	if err != nil {
		return fmt.Errorf("vault client: %w", err)
	}
	b := broker.New(vc, broker.Config{
		RoleID:       cfg.VaultRoleID,
		SecretID:     cfg.VaultSecretID,
		DefaultLease: cfg.DefaultLease,
		SafetyMargin: cfg.SafetyMargin,
	})
	orch := generation.NewOrchestrator(b, bedrock.NewClient(cfg.AWSRegion, cfg.ModelID), generation.Options{
		CredsPath:     cfg.CredsPath,
		ReceivedPause: cfg.ReceivedPause,
	})

	var hist *history.Store
	if cfg.HistoryDBPath != "" {
		hist, err = history.Open(cfg.HistoryDBPath, cfg.CostPerImage)
	} else {
		hist, err = history.OpenMemory("nova-canvas-history", cfg.CostPerImage)
	}
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	defer hist.Close()

	gal := gallery.New(gallery.Options{
		StateFile: cfg.GalleryStateFile,
		Capacity:  cfg.GalleryCapacity,
		MaxBytes:  cfg.GalleryMaxBytes,
		Logger:    log.With().Str("store", "gallery").Logger(),
	})

	limiter := middleware.NewRateLimiter(cfg.GenerateRateLimit, time.Minute)
	defer limiter.Stop()

	registry := progress.NewRegistry()
	router := server.NewRouter(server.Deps{
		Generator:       orch,
		Broker:          b,
		CredsPath:       cfg.CredsPath,
		Registry:        registry,
		Gallery:         gal,
		History:         hist,
		TokenConfig:     auth.NewTokenConfig(cfg.APITokenSecret, cfg.APITokenExpiry),
		GenerateLimiter: limiter,
		Info:            handler.InfoHandler{BuildVersion: version, ModelID: cfg.ModelID, Region: cfg.AWSRegion},
		Logger:          log,
	})

	log.Info().
		Int("port", cfg.Port).
		Str("vault_addr", cfg.VaultAddr).
		Str("region", cfg.AWSRegion).
		Str("model", cfg.ModelID).
		Bool("token_guard", cfg.APITokenSecret != "").
		Msg("listening")

	return server.Run(ctx, cfg, router, func() {
		n := registry.CloseAll()
		log.Info().Int("streams", n).Msg("shutting down")
	})
}
