// --- File: pushservice/config/config_test.go ---
package config_test

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-push-service/pushservice/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	logger := newTestLogger()

	baseConfig := func() *config.Config {
		return &config.Config{
			ProjectID:          "base-project",
			ListenAddr:         ":8080",
			SubscriptionID:     "base-sub",
			NumPipelineWorkers: 2,
			FCM: config.FCMConfig{
				CredentialsFile: "/etc/fcm/base.json",
			},
			Vapid: config.VapidConfig{
				PublicKey:       "base-pub",
				PrivateKey:      "base-priv",
				SubscriberEmail: "mailto:ops@tinywideclouds.com",
			},
		}
	}

	t.Run("Success - All overrides applied", func(t *testing.T) {
		cfg := baseConfig()

		t.Setenv("PROJECT_ID", "env-project")
		t.Setenv("PORT", "9090")
		t.Setenv("SUBSCRIPTION_ID", "env-sub")
		t.Setenv("COOLDOWN_SECONDS", "120")

		t.Setenv("FCM_CREDENTIALS_FILE", "/etc/fcm/env.json")
		t.Setenv("APNS_KEY_FILE", "/etc/apns/env.p8")
		t.Setenv("APNS_KEY_ID", "env-key-id")
		t.Setenv("APNS_TEAM_ID", "env-team-id")
		t.Setenv("APNS_BUNDLE_ID", "com.env.app")

		t.Setenv("VAPID_PUBLIC_KEY", "env-pub")
		t.Setenv("VAPID_PRIVATE_KEY", "env-priv")
		t.Setenv("VAPID_SUB_EMAIL", "env@test.com")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "env-project", finalCfg.ProjectID)
		assert.Equal(t, ":9090", finalCfg.ListenAddr)
		assert.Equal(t, "env-sub", finalCfg.SubscriptionID)
		assert.Equal(t, 2*time.Minute, finalCfg.CooldownTTL)

		assert.Equal(t, "/etc/fcm/env.json", finalCfg.FCM.CredentialsFile)
		assert.Equal(t, "/etc/apns/env.p8", finalCfg.APNS.KeyFile)
		assert.Equal(t, "env-key-id", finalCfg.APNS.KeyID)
		assert.Equal(t, "env-team-id", finalCfg.APNS.TeamID)
		assert.Equal(t, "com.env.app", finalCfg.APNS.BundleID)

		assert.Equal(t, "env-pub", finalCfg.Vapid.PublicKey)
		assert.Equal(t, "env-priv", finalCfg.Vapid.PrivateKey)
		assert.Equal(t, "env@test.com", finalCfg.Vapid.SubscriberEmail)
	})

	t.Run("Success - Defaults preserved", func(t *testing.T) {
		cfg := baseConfig()
		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "base-project", finalCfg.ProjectID)
		assert.Equal(t, "base-pub", finalCfg.Vapid.PublicKey)
		assert.Equal(t, 10*time.Minute, finalCfg.CooldownTTL) // default applied
	})

	t.Run("Backend enablement follows credential presence", func(t *testing.T) {
		cfg := baseConfig()
		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.True(t, finalCfg.FCMEnabled())
		assert.False(t, finalCfg.APNSEnabled())
		assert.True(t, finalCfg.WebEnabled())
	})

	t.Run("Validation Failure - Missing ProjectID", func(t *testing.T) {
		cfg := &config.Config{
			SubscriptionID: "sub",
			FCM:            config.FCMConfig{CredentialsFile: "/etc/fcm/x.json"},
		}
		os.Unsetenv("PROJECT_ID")
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - No backend configured", func(t *testing.T) {
		cfg := &config.Config{
			ProjectID:      "project",
			SubscriptionID: "sub",
		}
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no push backend configured")
	})

	t.Run("Validation Failure - Half-configured APNS", func(t *testing.T) {
		// A key file with no key_id/team_id/bundle_id would boot and then
		// fail every send; it has to be rejected up front.
		cfg := &config.Config{
			ProjectID:      "project",
			SubscriptionID: "sub",
			APNS: config.APNSConfig{
				KeyFile: "/etc/apns/key.p8",
				KeyID:   "key-id",
			},
		}
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bundle_id")
	})

	t.Run("Validation Failure - Lone VAPID key", func(t *testing.T) {
		cfg := &config.Config{
			ProjectID:      "project",
			SubscriptionID: "sub",
			FCM:            config.FCMConfig{CredentialsFile: "/etc/fcm/x.json"},
			Vapid:          config.VapidConfig{PublicKey: "pub-only"},
		}
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "both public_key and private_key")
	})

	t.Run("Validation Failure - Web push without subscriber email", func(t *testing.T) {
		// Push services reject VAPID JWTs without a sub claim.
		cfg := &config.Config{
			ProjectID:      "project",
			SubscriptionID: "sub",
			Vapid: config.VapidConfig{
				PublicKey:  "pub",
				PrivateKey: "priv",
			},
		}
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "subscriber_email")
	})
}
