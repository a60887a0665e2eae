// Package authclient implements the context bundler's SecretsProvider and
// AccountsProvider against an external secrets/identity service over HTTP.
// Decryption itself stays server-side: this client only ever sees the
// already-decrypted response body.
package authclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/flowcore/runner/engine/core"
	"github.com/flowcore/runner/engine/store"
)

// Config points the client at the secrets/identity service.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implements store.Store's secrets/accounts members.
type Client struct {
	http *resty.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetRetryCount(3).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	return &Client{http: c}
}

type secretsResponse struct {
	Secrets []store.Secret `json:"secrets"`
}

// GetDecryptedSecrets fetches every secret registered to accountID.
func (c *Client) GetDecryptedSecrets(ctx context.Context, accountID core.ID) ([]store.Secret, error) {
	var out secretsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("account_id", accountID.String()).
		SetResult(&out).
		Get("/accounts/{account_id}/secrets")
	if err != nil {
		return nil, fmt.Errorf("authclient: fetch secrets: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("authclient: fetch secrets: status %d", resp.StatusCode())
	}
	return out.Secrets, nil
}

type accountsResponse struct {
	Accounts []store.Account `json:"accounts"`
}

// FetchCachedAuthAccounts fetches every auth account registered to
// accountID. refreshAuth asks the service to bypass its own cache and
// refresh tokens before responding.
func (c *Client) FetchCachedAuthAccounts(
	ctx context.Context,
	accountID core.ID,
	refreshAuth bool,
) ([]store.Account, error) {
	var out accountsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("account_id", accountID.String()).
		SetQueryParam("refresh_auth", fmt.Sprintf("%t", refreshAuth)).
		SetResult(&out).
		Get("/accounts/{account_id}/auth-accounts")
	if err != nil {
		return nil, fmt.Errorf("authclient: fetch auth accounts: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("authclient: fetch auth accounts: status %d", resp.StatusCode())
	}
	return out.Accounts, nil
}
