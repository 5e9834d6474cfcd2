package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sj-versent/demo-aws-summit-2025/internal/broker"
)

type fakeVault struct {
	loginStatus int
	loginBody   map[string]any
	readBody    map[string]any
	gotToken    string
	gotLogin    map[string]any
}

func (f *fakeVault) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/v1/sys/health":
		_ = json.NewEncoder(w).Encode(map[string]any{"initialized": true, "sealed": false, "standby": false})
	case r.URL.Path == "/v1/auth/approle/login":
		_ = json.NewDecoder(r.Body).Decode(&f.gotLogin)
		if f.loginStatus != 0 {
			w.WriteHeader(f.loginStatus)
			_ = json.NewEncoder(w).Encode(map[string]any{"errors": []string{"invalid role or secret ID"}})
			return
		}
		_ = json.NewEncoder(w).Encode(f.loginBody)
	case strings.HasPrefix(r.URL.Path, "/v1/aws/creds/"):
		f.gotToken = r.Header.Get("X-Vault-Token")
		_ = json.NewEncoder(w).Encode(f.readBody)
	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"errors": []string{}})
	}
}

func newFakeVault() *fakeVault {
	return &fakeVault{
		loginBody: map[string]any{"auth": map[string]any{"client_token": "s.approle", "lease_duration": 120}},
		readBody: map[string]any{
			"lease_duration": 900,
			"data": map[string]any{
				"access_key":     "AKIAEXAMPLE",
				"secret_key":     "secret",
				"security_token": "session",
			},
		},
	}
}

func TestAuthenticate_AppRoleLogin(t *testing.T) {
	fv := newFakeVault()
	srv := httptest.NewServer(fv)
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	res, err := c.Authenticate(context.Background(), "role-1", "secret-1")
	require.NoError(t, err)
	assert.Equal(t, "s.approle", res.Token)
	assert.Equal(t, 120*time.Second, res.Lease)
	assert.Equal(t, "role-1", fv.gotLogin["role_id"])
	assert.Equal(t, "secret-1", fv.gotLogin["secret_id"])
}

func TestAuthenticate_Rejected(t *testing.T) {
	fv := newFakeVault()
	fv.loginStatus = http.StatusBadRequest
	srv := httptest.NewServer(fv)
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Authenticate(context.Background(), "role-1", "bad")
	assert.ErrorIs(t, err, broker.ErrAuthRejected)
}

func TestAuthenticate_MissingClientToken(t *testing.T) {
	fv := newFakeVault()
	fv.loginBody = map[string]any{"auth": map[string]any{}}
	srv := httptest.NewServer(fv)
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Authenticate(context.Background(), "role-1", "secret-1")
	assert.ErrorIs(t, err, broker.ErrAuthRejected)
}

func TestAuthenticate_Unreachable(t *testing.T) {
	srv := httptest.NewServer(newFakeVault())
	addr := srv.URL
	srv.Close()

	c, err := NewClient(addr)
	require.NoError(t, err)

	_, err = c.Authenticate(context.Background(), "role-1", "secret-1")
	assert.ErrorIs(t, err, broker.ErrAuthConnectivity)
}

func TestReadSecret_UsesTokenAndMapsFields(t *testing.T) {
	fv := newFakeVault()
	srv := httptest.NewServer(fv)
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	secret, err := c.ReadSecret(context.Background(), "s.approle", "aws/creds/bedrock-app")
	require.NoError(t, err)
	assert.Equal(t, "s.approle", fv.gotToken)
	assert.Equal(t, broker.Secret{
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "secret",
		SessionToken:    "session",
		LeaseSeconds:    900,
	}, secret)
}

func TestReadSecret_LeaseInsideData(t *testing.T) {
	fv := newFakeVault()
	fv.readBody = map[string]any{
		"data": map[string]any{
			"access_key":     "AKIAEXAMPLE",
			"secret_key":     "secret",
			"lease_duration": 300,
		},
	}
	srv := httptest.NewServer(fv)
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	secret, err := c.ReadSecret(context.Background(), "tok", "aws/creds/other")
	require.NoError(t, err)
	assert.Equal(t, 300, secret.LeaseSeconds)
	assert.Empty(t, secret.SessionToken)
}

func TestBrokerOverVault(t *testing.T) {
	fv := newFakeVault()
	srv := httptest.NewServer(fv)
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	b := broker.New(c, broker.Config{RoleID: "role-1", SecretID: "secret-1"})
	cred, err := b.ScopedCredential(context.Background(), "aws/creds/bedrock-app")
	require.NoError(t, err)
	assert.Equal(t, "AKIAEXAMPLE", cred.AccessKeyID)
	assert.Equal(t, 900, cred.LeaseSeconds)
}
