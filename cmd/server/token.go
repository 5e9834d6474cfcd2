package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sj-versent/demo-aws-summit-2025/internal/auth"
	"github.com/sj-versent/demo-aws-summit-2025/internal/config"
)

func newTokenCmd() *cobra.Command {
	var operator string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the credential endpoints (uses API_TOKEN_SECRET)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.APITokenSecret == "" {
				return errors.New("API_TOKEN_SECRET is not set; the credential endpoints are open")
			}
			tok, err := auth.CreateToken(operator, auth.NewTokenConfig(cfg.APITokenSecret, cfg.APITokenExpiry))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "ops", "name recorded in the token")
	return cmd
}
