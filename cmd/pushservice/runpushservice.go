// --- File: cmd/pushservice/runpushservice.go ---
package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-push-service/internal/dispatch"
	"github.com/tinywideclouds/go-push-service/internal/pipeline"
	"github.com/tinywideclouds/go-push-service/internal/platform/apns"
	"github.com/tinywideclouds/go-push-service/internal/platform/fcm"
	"github.com/tinywideclouds/go-push-service/internal/platform/web"

	"github.com/tinywideclouds/go-push-service/internal/storage/cache"
	fsStore "github.com/tinywideclouds/go-push-service/internal/storage/firestore"
	"github.com/tinywideclouds/go-push-service/pkg/push"

	"github.com/tinywideclouds/go-push-service/pushservice"
	"github.com/tinywideclouds/go-push-service/pushservice/config"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"
)

//go:embed local.yaml
var configFile []byte

func main() {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "go-push-service")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, _ := config.NewConfigFromYaml(&yamlCfg, logger)
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	// --- Infrastructure Clients ---
	psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.Error("PubSub client failed", "err", err)
		os.Exit(1)
	}
	defer psClient.Close()

	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.Error("Firestore client failed", "err", err)
		os.Exit(1)
	}
	defer fsClient.Close()

	// --- Token Store & Cooldowns (optionally Redis-backed) ---
	var tokenStore push.TokenStore = fsStore.NewFirestoreStore(fsClient)
	var cooldowns pipeline.CooldownStore = cache.NewMemoryCooldowns(cfg.CooldownTTL)
	logger.Info("TokenStore initialized", "type", "firestore")

	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis Cache layer...", "addr", cfg.Redis.Addr)
		redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		tokenStore = cache.NewCachedTokenStore(tokenStore, redisClient, 24*time.Hour)
		cooldowns = cache.NewRedisCooldowns(redisClient, cfg.CooldownTTL)
		logger.Info("TokenStore upgraded", "type", "redis_cached_firestore")
	}

	// --- Auth ---
	identityURL := os.Getenv("IDENTITY_SERVICE_URL")
	if identityURL == "" {
		identityURL = "http://localhost:3000"
	}
	jwksURL, err := middleware.DiscoverAndValidateJWTConfig(identityURL, middleware.RSA256, logger)
	if err != nil {
		logger.Error("JWT config discovery failed", "identity_url", identityURL, "err", err)
		os.Exit(1)
	}
	authMiddleware, err := middleware.NewJWKSAuthMiddleware(jwksURL, logger)
	if err != nil {
		logger.Error("Auth middleware creation failed", "err", err)
		os.Exit(1)
	}

	// --- Push Backends ---
	// A backend whose credential file is unreadable or unparsable is a
	// deployment bug: the constructor panics and the whole process aborts.
	// A backend the provider SDK rejects (CertLoading tier) is skipped so the
	// remaining platforms keep working.
	pushers := make(map[push.Platform]push.Pusher)

	if cfg.FCMEnabled() {
		sender, err := fcm.NewSender(ctx, fcm.Config{CredentialsFile: cfg.FCM.CredentialsFile}, logger)
		if err != nil {
			logger.Error("FCM backend disabled", "err", err)
		} else {
			pushers[push.PlatformFCM] = sender
			logger.Info("FCM backend enabled", "resource", sender.ResourcePath())
		}
	}

	if cfg.APNSEnabled() {
		sender, err := apns.NewSender(apns.Config{
			KeyFile:  cfg.APNS.KeyFile,
			KeyID:    cfg.APNS.KeyID,
			TeamID:   cfg.APNS.TeamID,
			BundleID: cfg.APNS.BundleID,
		}, logger)
		if err != nil {
			logger.Error("APNS backend disabled", "err", err)
		} else {
			pushers[push.PlatformAPNS] = sender
			logger.Info("APNS backend enabled", "topic", cfg.APNS.BundleID)
		}
	}

	if cfg.WebEnabled() {
		pushers[push.PlatformWebPush] = web.NewSender(web.Config{
			PublicKey:       cfg.Vapid.PublicKey,
			PrivateKey:      cfg.Vapid.PrivateKey,
			SubscriberEmail: cfg.Vapid.SubscriberEmail,
		}, logger)
		logger.Info("Web Push backend enabled")
	}

	if len(pushers) == 0 {
		logger.Error("No push backend could be initialized; nothing to run.")
		os.Exit(1)
	}
	router := dispatch.NewRouter(pushers, logger)

	// --- Subscription & Service ---
	subscriber, err := ensureSubscription(ctx, cfg, psClient, logger)
	if err != nil {
		logger.Error("Subscription setup failed", "err", err)
		os.Exit(1)
	}

	service := pushservice.New(cfg, subscriber, router, tokenStore, cooldowns, authMiddleware, logger)

	logger.Info("Starting service...")
	go func() {
		if err := service.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Service exited with error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := service.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", "err", err)
		os.Exit(1)
	}
}

// ensureSubscription creates the wake-up subscription (with its dead-letter
// policy) if it does not exist yet, and returns a subscriber bound to it.
func ensureSubscription(ctx context.Context, cfg *config.Config, psClient *pubsub.Client, logger *slog.Logger) (*pubsub.Subscriber, error) {
	sub := pubsubName(cfg.ProjectID, cfg.SubscriptionID, "subscriptions")
	topicID := pubsubName(cfg.ProjectID, cfg.TopicID, "topics")
	dlt := pubsubName(cfg.ProjectID, cfg.SubscriptionDLQTopicID, "topics")

	subConfig := &pubsubpb.Subscription{
		Name:               sub,
		Topic:              topicID,
		AckDeadlineSeconds: 10,
		DeadLetterPolicy: &pubsubpb.DeadLetterPolicy{
			DeadLetterTopic:     dlt,
			MaxDeliveryAttempts: 5,
		},
		EnableMessageOrdering: false,
	}
	logger.Debug("Ensuring subscription exists", "sub", subConfig.Name, "topic", subConfig.Topic)
	_, err := psClient.SubscriptionAdminClient.CreateSubscription(ctx, subConfig)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			logger.Debug("Subscription already exists, skipping creation", "sub", subConfig.Name)
		} else {
			logger.Error("Failed to create subscription", "sub", subConfig.Name, "err", err)
			return nil, fmt.Errorf("could not create sub: %s", sub)
		}
	}

	return psClient.Subscriber(cfg.SubscriptionID), nil
}

type pubsubKind string

func pubsubName(project, id string, kind pubsubKind) string {
	return fmt.Sprintf("projects/%s/%s/%s", project, kind, id)
}
