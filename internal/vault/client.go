// Package vault talks to HashiCorp Vault: AppRole login and dynamic secret
// reads for the credential broker.
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/sj-versent/demo-aws-summit-2025/internal/broker"
)

const appRoleLoginPath = "auth/approle/login"

var _ broker.SecretsService = (*Client)(nil)

type Client struct {
	api *vaultapi.Client
}

// NewClient builds a client for the Vault server at addr. Vault's own retry
// loop is disabled; a failed call is terminal for the request.
func NewClient(addr string) (*Client, error) {
	cfg := vaultapi.DefaultConfig()
	if cfg.Error != nil {
		return nil, fmt.Errorf("vault config: %w", cfg.Error)
	}
	cfg.Address = addr
	cfg.MaxRetries = 0
	cfg.Timeout = 30 * time.Second

	c, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}
	// A VAULT_TOKEN in the environment must not bypass AppRole.
	c.ClearToken()
	return &Client{api: c}, nil
}

// Authenticate checks server health and then logs in with AppRole.
func (c *Client) Authenticate(ctx context.Context, roleID, secretID string) (broker.AuthResult, error) {
	if _, err := c.api.Sys().HealthWithContext(ctx); err != nil {
		return broker.AuthResult{}, fmt.Errorf("%w: %v", broker.ErrAuthConnectivity, err)
	}

	secret, err := c.api.Logical().WriteWithContext(ctx, appRoleLoginPath, map[string]interface{}{
		"role_id":   roleID,
		"secret_id": secretID,
	})
	if err != nil {
		var respErr *vaultapi.ResponseError
		if errors.As(err, &respErr) {
			return broker.AuthResult{}, fmt.Errorf("%w: approle login: %v", broker.ErrAuthRejected, err)
		}
		return broker.AuthResult{}, fmt.Errorf("%w: approle login: %v", broker.ErrAuthConnectivity, err)
	}
	if secret == nil || secret.Auth == nil || secret.Auth.ClientToken == "" {
		return broker.AuthResult{}, broker.ErrAuthRejected
	}

	return broker.AuthResult{
		Token: secret.Auth.ClientToken,
		Lease: time.Duration(secret.Auth.LeaseDuration) * time.Second,
	}, nil
}

// ReadSecret reads dynamic AWS credentials from path using token.
func (c *Client) ReadSecret(ctx context.Context, token, path string) (broker.Secret, error) {
	scoped, err := c.api.Clone()
	if err != nil {
		return broker.Secret{}, fmt.Errorf("vault client: %w", err)
	}
	scoped.SetToken(token)

	secret, err := scoped.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return broker.Secret{}, err
	}
	if secret == nil || secret.Data == nil {
		return broker.Secret{}, fmt.Errorf("no secret found at %s", path)
	}

	lease := secret.LeaseDuration
	if lease <= 0 {
		lease = intField(secret.Data, "lease_duration")
	}

	return broker.Secret{
		AccessKeyID:     stringField(secret.Data, "access_key"),
		SecretAccessKey: stringField(secret.Data, "secret_key"),
		SessionToken:    stringField(secret.Data, "security_token"),
		LeaseSeconds:    lease,
	}, nil
}

func stringField(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return s
}

func intField(data map[string]interface{}, key string) int {
	switch v := data[key].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}
