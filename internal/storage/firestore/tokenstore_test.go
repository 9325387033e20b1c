// --- File: internal/storage/firestore/tokenstore_test.go ---
//go:build integration

package firestore_test

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fs "github.com/tinywideclouds/go-push-service/internal/storage/firestore"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
	"github.com/tinywideclouds/go-push-service/pkg/push"
)

func setupSuite(t *testing.T) (context.Context, *fs.FirestoreStore) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	projectID := "test-token-store"
	conn := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig(projectID))
	client, err := firestore.NewClient(ctx, projectID, conn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return ctx, fs.NewFirestoreStore(client)
}

func TestTokenStore_Integration(t *testing.T) {
	ctx, store := setupSuite(t)
	userURN, _ := urn.Parse("urn:sm:user:test-user")

	t.Run("Registration Lifecycle", func(t *testing.T) {
		token := push.DeviceToken{Platform: push.PlatformFCM, Token: "token-android-1"}

		// 1. Register
		require.NoError(t, store.RegisterToken(ctx, userURN, token))

		// 2. List and verify the platform tag survived the round trip
		tokens, err := store.GetTokens(ctx, userURN)
		require.NoError(t, err)
		assert.Equal(t, []push.DeviceToken{token}, tokens)

		// 3. Unregister
		require.NoError(t, store.UnregisterToken(ctx, userURN, token))

		// 4. Verify gone
		after, err := store.GetTokens(ctx, userURN)
		require.NoError(t, err)
		assert.Empty(t, after)
	})

	t.Run("Re-registration is an upsert", func(t *testing.T) {
		token := push.DeviceToken{Platform: push.PlatformAPNS, Token: "token-ios-1"}

		require.NoError(t, store.RegisterToken(ctx, userURN, token))
		require.NoError(t, store.RegisterToken(ctx, userURN, token))

		tokens, err := store.GetTokens(ctx, userURN)
		require.NoError(t, err)
		assert.Len(t, tokens, 1)

		require.NoError(t, store.UnregisterToken(ctx, userURN, token))
	})

	t.Run("Unregistering an unknown token is not an error", func(t *testing.T) {
		ghost := push.DeviceToken{Platform: push.PlatformFCM, Token: "never-registered"}
		assert.NoError(t, store.UnregisterToken(ctx, userURN, ghost))
	})

	t.Run("Mixed platforms fan out together", func(t *testing.T) {
		android := push.DeviceToken{Platform: push.PlatformFCM, Token: "token-android-mix"}
		browser := push.DeviceToken{Platform: push.PlatformWebPush, Token: `{"endpoint":"https://web.push/mix"}`}

		require.NoError(t, store.RegisterToken(ctx, userURN, android))
		require.NoError(t, store.RegisterToken(ctx, userURN, browser))

		tokens, err := store.GetTokens(ctx, userURN)
		require.NoError(t, err)
		assert.ElementsMatch(t, []push.DeviceToken{android, browser}, tokens)
	})
}
