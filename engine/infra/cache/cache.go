// Package cache wraps the context bundler's SecretsProvider/AccountsProvider
// collaborators with a short-TTL dgraph-io/ristretto cache keyed by
// account_id (and account_id+refresh_auth for accounts), so repeated tasks
// in the same session and rapid-fire sessions for the same account don't
// re-hit the secrets manager / OAuth provider on every task.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/flowcore/runner/engine/core"
	"github.com/flowcore/runner/engine/store"
)

// Config controls the cache's TTLs and cost bound.
type Config struct {
	SecretsTTL  time.Duration
	AccountsTTL time.Duration
	MaxCost     int64
}

func DefaultConfig() Config {
	return Config{SecretsTTL: 30 * time.Second, AccountsTTL: 30 * time.Second, MaxCost: 1 << 20}
}

type secretsProvider interface {
	GetDecryptedSecrets(ctx context.Context, accountID core.ID) ([]store.Secret, error)
}

type accountsProvider interface {
	FetchCachedAuthAccounts(ctx context.Context, accountID core.ID, refreshAuth bool) ([]store.Account, error)
}

// Cache decorates a secretsProvider/accountsProvider pair with a ristretto
// cache in front of each.
type Cache struct {
	secrets  secretsProvider
	accounts accountsProvider
	store    *ristretto.Cache[string, any]
	cfg      Config
}

func New(secrets secretsProvider, accounts accountsProvider, cfg Config) (*Cache, error) {
	if cfg.MaxCost <= 0 {
		cfg = DefaultConfig()
	}
	store, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: cfg.MaxCost * 10,
		MaxCost:     cfg.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: new ristretto cache: %w", err)
	}
	return &Cache{secrets: secrets, accounts: accounts, store: store, cfg: cfg}, nil
}

func secretsKey(accountID core.ID) string {
	return "secrets:" + accountID.String()
}

func accountsKey(accountID core.ID, refreshAuth bool) string {
	return fmt.Sprintf("accounts:%s:%t", accountID.String(), refreshAuth)
}

// GetDecryptedSecrets serves accountID's secrets from cache when present,
// otherwise fetches and populates the cache with SecretsTTL.
func (c *Cache) GetDecryptedSecrets(ctx context.Context, accountID core.ID) ([]store.Secret, error) {
	key := secretsKey(accountID)
	if v, ok := c.store.Get(key); ok {
		return v.([]store.Secret), nil
	}
	secrets, err := c.secrets.GetDecryptedSecrets(ctx, accountID)
	if err != nil {
		return nil, err
	}
	c.store.SetWithTTL(key, secrets, 1, c.cfg.SecretsTTL)
	c.store.Wait()
	return secrets, nil
}

// FetchCachedAuthAccounts serves accountID's auth accounts from cache when
// present and refreshAuth is false. With refreshAuth the cache is not read
// and the provider is always called; its result is stored under the
// refresh_auth=true key, which lookups with refreshAuth=false do not read.
func (c *Cache) FetchCachedAuthAccounts(
	ctx context.Context,
	accountID core.ID,
	refreshAuth bool,
) ([]store.Account, error) {
	key := accountsKey(accountID, refreshAuth)
	if !refreshAuth {
		if v, ok := c.store.Get(key); ok {
			return v.([]store.Account), nil
		}
	}
	accounts, err := c.accounts.FetchCachedAuthAccounts(ctx, accountID, refreshAuth)
	if err != nil {
		return nil, err
	}
	c.store.SetWithTTL(key, accounts, 1, c.cfg.AccountsTTL)
	c.store.Wait()
	return accounts, nil
}
