package cache_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/runner/engine/core"
	"github.com/flowcore/runner/engine/infra/cache"
	"github.com/flowcore/runner/engine/store"
)

type countingSecrets struct {
	calls int32
}

func (c *countingSecrets) GetDecryptedSecrets(context.Context, core.ID) ([]store.Secret, error) {
	atomic.AddInt32(&c.calls, 1)
	return []store.Secret{{SecretName: "api_key", SecretValue: "xyz"}}, nil
}

type countingAccounts struct {
	calls int32
}

func (c *countingAccounts) FetchCachedAuthAccounts(context.Context, core.ID, bool) ([]store.Account, error) {
	atomic.AddInt32(&c.calls, 1)
	return []store.Account{{AccountAuthProviderAccountSlug: "github"}}, nil
}

func TestCache_GetDecryptedSecrets_HitsCacheOnSecondCall(t *testing.T) {
	secrets := &countingSecrets{}
	c, err := cache.New(secrets, &countingAccounts{}, cache.Config{
		SecretsTTL: time.Minute, AccountsTTL: time.Minute, MaxCost: 1 << 10,
	})
	require.NoError(t, err)

	accountID := core.MustNewID()
	_, err = c.GetDecryptedSecrets(context.Background(), accountID)
	require.NoError(t, err)
	_, err = c.GetDecryptedSecrets(context.Background(), accountID)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&secrets.calls))
}

func TestCache_FetchCachedAuthAccounts_RefreshAuthBypassesCache(t *testing.T) {
	accounts := &countingAccounts{}
	c, err := cache.New(&countingSecrets{}, accounts, cache.Config{
		SecretsTTL: time.Minute, AccountsTTL: time.Minute, MaxCost: 1 << 10,
	})
	require.NoError(t, err)

	accountID := core.MustNewID()
	_, err = c.FetchCachedAuthAccounts(context.Background(), accountID, false)
	require.NoError(t, err)
	_, err = c.FetchCachedAuthAccounts(context.Background(), accountID, true)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&accounts.calls))
}
