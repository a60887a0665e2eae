package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/runner/engine/core"
	"github.com/flowcore/runner/engine/session"
	"github.com/flowcore/runner/engine/store"
	"github.com/flowcore/runner/engine/task"
)

type fakeSecrets struct {
	secrets []store.Secret
}

func (f *fakeSecrets) GetDecryptedSecrets(_ context.Context, _ core.ID) ([]store.Secret, error) {
	return f.secrets, nil
}

type fakeAccounts struct {
	accounts []store.Account
}

func (f *fakeAccounts) FetchCachedAuthAccounts(_ context.Context, _ core.ID, _ bool) ([]store.Account, error) {
	return f.accounts, nil
}

func TestBundler_Bundle(t *testing.T) {
	secrets := &fakeSecrets{secrets: []store.Secret{{SecretName: "api_key", SecretValue: "s3cr3t"}}}
	accounts := &fakeAccounts{accounts: []store.Account{
		{AccountAuthProviderAccountSlug: "slack", Value: core.NewJSON(map[string]any{"token": "xoxb"})},
	}}
	cache := session.NewCache()
	fsID := core.MustNewID()
	cache.GetOrCreate(fsID, nil)
	prior := &task.Task{TaskID: core.MustNewID(), ActionID: "A0", TaskStatus: core.StatusCompleted,
		Result: core.NewJSON(map[string]any{"value": 1})}
	cache.PutTask(fsID, prior)

	b := NewBundler(secrets, accounts, cache)

	variablesConfig := core.NewJSON(map[string]any{
		"secret": "{{secrets.api_key}}",
		"prior":  "{{actions.A0.result}}",
	})
	inputsConfig := core.NewJSON(map[string]any{
		"greeting": "hi {{variables.secret}}",
	})

	out, err := b.Bundle(context.Background(), core.MustNewID(), fsID, variablesConfig, inputsConfig, false)
	require.NoError(t, err)
	m, ok := out.Object()
	require.True(t, ok)
	assert.Equal(t, "hi s3cr3t", m["greeting"])
}

func TestBundler_Bundle_NilConfigsYieldEmptyObjects(t *testing.T) {
	b := NewBundler(&fakeSecrets{}, &fakeAccounts{}, session.NewCache())
	fsID := core.MustNewID()
	b.Sessions.GetOrCreate(fsID, nil)
	out, err := b.Bundle(context.Background(), core.MustNewID(), fsID, core.Null, core.Null, false)
	require.NoError(t, err)
	m, ok := out.Object()
	require.True(t, ok)
	assert.Empty(t, m)
}
