package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/adega-club/api/internal/handlers"
	"github.com/adega-club/api/internal/payments"
	"github.com/adega-club/api/internal/platform/auth"
	"github.com/adega-club/api/internal/platform/config"
	pfirestore "github.com/adega-club/api/internal/platform/firestore"
	"github.com/adega-club/api/internal/platform/idempotency"
	"github.com/adega-club/api/internal/platform/jobs"
	"github.com/adega-club/api/internal/platform/observability"
	"github.com/adega-club/api/internal/platform/secrets"
	platformstorage "github.com/adega-club/api/internal/platform/storage"
	"github.com/adega-club/api/internal/repositories"
	firestoreRepo "github.com/adega-club/api/internal/repositories/firestore"
	"github.com/adega-club/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	requiredSecrets := requiredSecretNames(envValues)
	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecrets...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	var signedURLClient *platformstorage.Client
	if signerKey := strings.TrimSpace(cfg.Storage.SignedURLKey); signerKey != "" {
		signer, err := platformstorage.NewServiceAccountSignerFromJSON([]byte(signerKey))
		if err != nil {
			logger.Fatal("failed to parse storage signer key", zap.Error(err))
		}
		signedURLClient, err = platformstorage.NewClient(signer)
		if err != nil {
			logger.Fatal("failed to initialise signed url client", zap.Error(err))
		}
	} else {
		logger.Warn("storage signer key not configured; image upload URLs are disabled")
	}

	systemService, err := newSystemService(ctx, firestoreClient, fetcher, buildInfo)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	var cleanupTicker *time.Ticker
	if cfg.Idempotency.CleanupInterval > 0 {
		cleanupTicker = time.NewTicker(cfg.Idempotency.CleanupInterval)
		cleanupWG.Add(1)
		go func() {
			defer cleanupWG.Done()
			cleanupLogger := logger.Named("idempotency")
			for {
				select {
				case <-cleanupTicker.C:
					runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
					removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					cancel()
					if err != nil {
						cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
					}
				case <-cleanupCtx.Done():
					return
				}
			}
		}()
	}

	webhookMiddleware := buildHMACMiddleware(logger.Named("auth"), cfg)
	if webhookMiddleware == nil {
		webhookMiddleware = buildOIDCMiddleware(logger.Named("auth"), cfg)
	}

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier, auth.WithUserGetter(firebaseVerifier))

	productRepo, err := firestoreRepo.NewProductRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}
	categoryRepo, err := firestoreRepo.NewCategoryRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise category repository", zap.Error(err))
	}
	cartRepo, err := firestoreRepo.NewCartRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise cart repository", zap.Error(err))
	}

	var comboEvents services.ComboEventPublisher
	var pubsubClient *pubsub.Client
	if cfg.Features.EnableComboEvents && strings.TrimSpace(cfg.PubSub.ProjectID) != "" {
		if host := strings.TrimSpace(cfg.PubSub.EmulatorHost); host != "" {
			if err := os.Setenv("PUBSUB_EMULATOR_HOST", host); err != nil {
				logger.Warn("failed to point pubsub at emulator", zap.Error(err))
			}
		}
		pubsubClient, err = pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		confirmedTopic := pubsubClient.Topic(cfg.PubSub.ComboConfirmedTopic)
		var rejectedTopic *pubsub.Topic
		if strings.TrimSpace(cfg.PubSub.ComboRejectedTopic) != "" {
			rejectedTopic = pubsubClient.Topic(cfg.PubSub.ComboRejectedTopic)
		}
		comboEvents, err = jobs.NewPubSubComboPublisher(confirmedTopic, rejectedTopic)
		if err != nil {
			logger.Fatal("failed to initialise combo event publisher", zap.Error(err))
		}
		defer func() {
			confirmedTopic.Stop()
			if rejectedTopic != nil {
				rejectedTopic.Stop()
			}
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
	} else {
		logger.Info("combo events disabled; confirmations will not be published")
	}

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products:        productRepo,
		Categories:      categoryRepo,
		Storage:         signedURLClient,
		CatalogBucket:   cfg.Storage.CatalogBucket,
		Clock:           time.Now,
		Logger:          observability.EventLogger(logger.Named("catalog")),
		Currency:        cfg.Catalog.Currency,
		SnapshotTimeout: cfg.Catalog.SnapshotTimeout,
		SnapshotRetries: cfg.Catalog.SnapshotRetries,
		IceSlotCount:    cfg.Combo.IceSlotCount,
		CanPackSizes:    cfg.Combo.CanPackSizes,
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}
	catalogHandlers := handlers.NewCatalogHandlers(catalogService)
	adminCatalogHandlers := handlers.NewAdminCatalogHandlers(authenticator, catalogService)

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Repository:      cartRepo,
		Catalog:         catalogService,
		Clock:           time.Now,
		DefaultCurrency: cfg.Catalog.Currency,
		Logger:          observability.EventLogger(logger.Named("cart")),
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}
	cartHandlers := handlers.NewCartHandlers(authenticator, cartService)

	comboService, err := services.NewComboService(services.ComboServiceDeps{
		Catalog:      catalogService,
		Cart:         cartService,
		Events:       comboEvents,
		Clock:        time.Now,
		Logger:       observability.EventLogger(logger.Named("combo")),
		IceSlotCount: cfg.Combo.IceSlotCount,
		CanPackSizes: cfg.Combo.CanPackSizes,
		SessionTTL:   cfg.Combo.SessionTTL,
		Currency:     cfg.Catalog.Currency,
	})
	if err != nil {
		logger.Fatal("failed to initialise combo service", zap.Error(err))
	}
	comboHandlers := handlers.NewComboHandlers(authenticator, comboService,
		handlers.WithConfirmMiddlewares(idempotencyMiddleware),
	)

	sweeperCtx, sweeperCancel := context.WithCancel(context.Background())
	defer sweeperCancel()
	if sweeper, ok := comboService.(interface {
		StartSweeper(context.Context, time.Duration)
	}); ok && cfg.Combo.SessionSweep > 0 {
		sweeper.StartSweeper(sweeperCtx, cfg.Combo.SessionSweep)
	}

	var checkoutHandlers *handlers.CheckoutHandlers
	if cfg.Features.EnableCheckout && strings.TrimSpace(cfg.PSP.StripeAPIKey) != "" {
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey: cfg.PSP.StripeAPIKey,
			Logger: observability.EventLogger(logger.Named("payments")),
			Clock:  time.Now,
		})
		if err != nil {
			logger.Fatal("failed to initialise stripe payment provider", zap.Error(err))
		}
		paymentManager, err := payments.NewManager(map[string]payments.Provider{
			"stripe": stripeProvider,
		})
		if err != nil {
			logger.Fatal("failed to initialise payment manager", zap.Error(err))
		}
		checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
			Cart:     cartService,
			Payments: paymentManager,
			Clock:    time.Now,
			Logger:   observability.EventLogger(logger.Named("checkout")),
		})
		if err != nil {
			logger.Fatal("failed to initialise checkout service", zap.Error(err))
		}
		checkoutHandlers = handlers.NewCheckoutHandlers(authenticator, checkoutService)
	} else {
		logger.Info("checkout disabled; payment sessions will not be offered")
	}

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}
	if cfg.RateLimits.DefaultPerMinute > 0 || cfg.RateLimits.AuthenticatedPerMinute > 0 {
		middlewares = append(middlewares, handlers.RateLimitMiddleware(
			cfg.RateLimits.DefaultPerMinute,
			cfg.RateLimits.AuthenticatedPerMinute,
			time.Now,
		))
	}

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(systemService)),
		handlers.WithCatalogRoutes(catalogHandlers.Routes),
		handlers.WithComboRoutes(comboHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithAdminRoutes(adminCatalogHandlers.Routes),
	}
	if checkoutHandlers != nil {
		opts = append(opts,
			handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
			handlers.WithCheckoutMiddlewares(idempotencyMiddleware),
		)
	}
	if webhookMiddleware != nil {
		webhookHandlers := handlers.NewWebhookHandlers(catalogService)
		opts = append(opts,
			handlers.WithWebhookRoutes(webhookHandlers.Routes),
			handlers.WithWebhookMiddlewares(webhookMiddleware),
		)
	} else {
		logger.Info("webhook credentials not configured; webhook routes disabled")
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("adega combo api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	sweeperCancel()
	if cleanupTicker != nil {
		cleanupTicker.Stop()
	}
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func newSystemService(ctx context.Context, client *firestore.Client, fetcher *secrets.Fetcher, build services.BuildInfo) (services.SystemService, error) {
	checks := make([]repositories.DependencyCheck, 0, 2)
	if client != nil {
		c := client
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := c.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if fetcher != nil {
		const secretHealthReference = "secret://system/healthz?version=latest"
		checks = append(checks, repositories.DependencyCheck{
			Name:    "secretManager",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil {
					return nil
				}
				if st, ok := status.FromError(err); ok {
					switch st.Code() {
					case codes.NotFound:
						return nil
					}
				}
				return err
			},
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Clock:            time.Now,
		Build:            build,
	})
}

func buildOIDCMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.Security.OIDC.JWKSURL) == "" {
		return nil
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	adapter := observability.NewPrintfAdapter(logger)
	cache := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL, auth.WithJWKSLogger(adapter))
	validator := auth.NewOIDCValidator(cache, auth.WithOIDCLogger(adapter))

	audience := strings.TrimSpace(cfg.Security.OIDC.Audience)
	if audience == "" {
		logger.Warn("auth: OIDC audience not configured; webhook routes will reject requests")
	}
	issuers := cfg.Security.OIDC.Issuers
	if len(issuers) == 0 {
		logger.Warn("auth: OIDC issuers not configured; webhook routes will reject requests")
	}

	return validator.RequireOIDC(audience, issuers)
}

func buildHMACMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	hmacSecrets := make(map[string]string)
	for key, value := range cfg.Security.HMAC.Secrets {
		if strings.TrimSpace(value) == "" {
			continue
		}
		hmacSecrets[strings.ToLower(key)] = value
	}
	if len(hmacSecrets) == 0 {
		return nil
	}

	provider := staticSecretProvider{secrets: hmacSecrets}
	nonces := auth.NewInMemoryNonceStore()
	adapter := observability.NewPrintfAdapter(logger)
	validator := auth.NewHMACValidator(provider, nonces,
		auth.WithHMACLogger(adapter),
		auth.WithHMACHeaders(cfg.Security.HMAC.SignatureHeader, cfg.Security.HMAC.TimestampHeader, cfg.Security.HMAC.NonceHeader),
		auth.WithHMACClockSkew(cfg.Security.HMAC.ClockSkew),
		auth.WithHMACNonceTTL(cfg.Security.HMAC.NonceTTL),
	)

	resolver := webhookSecretResolver(hmacSecrets)
	return validator.RequireHMACResolver(resolver)
}

type staticSecretProvider struct {
	secrets map[string]string
}

func (p staticSecretProvider) GetSecret(_ context.Context, name string) (string, error) {
	if len(p.secrets) == 0 {
		return "", errors.New("auth: hmac secrets not configured")
	}
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return "", errors.New("auth: secret name required")
	}
	if secret, ok := p.secrets[key]; ok && secret != "" {
		return secret, nil
	}
	return "", errors.New("auth: secret not found")
}

func webhookSecretResolver(secrets map[string]string) func(*http.Request) (string, bool) {
	return func(r *http.Request) (string, bool) {
		path := r.URL.Path
		if idx := strings.Index(path, "/webhooks/"); idx >= 0 {
			path = path[idx+len("/webhooks/"):]
		}
		path = strings.Trim(path, "/")
		if path == "" {
			if secret, ok := secrets["default"]; ok && secret != "" {
				return "default", true
			}
			return "", false
		}

		segments := strings.Split(path, "/")
		candidates := make([]string, 0, 3)
		if len(segments) >= 2 {
			candidates = append(candidates, strings.ToLower(strings.Join(segments[:2], "/")))
		}
		if len(segments) >= 1 {
			candidates = append(candidates, strings.ToLower(segments[0]))
		}
		candidates = append(candidates, "default")

		for _, candidate := range candidates {
			if secret, ok := secrets[candidate]; ok && secret != "" {
				return candidate, true
			}
		}
		return "", false
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		if value, ok := env[key]; ok {
			return strings.TrimSpace(value)
		}
		return ""
	}

	envLabel := strings.ToLower(lookup("API_SECURITY_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	projectMap := secretProjectMapFromEnv(env)
	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}
	credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE")

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if len(projectMap) > 0 {
		opts = append(opts, secrets.WithProjectMap(projectMap))
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

func requiredSecretNames(env map[string]string) []string {
	required := make([]string, 0, 4)

	hmacRaw := ""
	if env != nil {
		hmacRaw = strings.TrimSpace(env["API_SECURITY_HMAC_SECRETS"])
		if key := strings.TrimSpace(env["API_PSP_STRIPE_API_KEY"]); key != "" {
			required = append(required, "PSP.StripeAPIKey")
		}
		if key := strings.TrimSpace(env["API_STORAGE_SIGNED_URL_KEY"]); key != "" {
			required = append(required, "Storage.SignedURLKey")
		}
	}
	for _, key := range parseHMACSecretKeys(hmacRaw) {
		required = append(required, fmt.Sprintf("Security.HMAC.Secrets[%s]", key))
	}

	return uniqueStrings(required)
}

func secretProjectMapFromEnv(env map[string]string) map[string]string {
	raw := ""
	if env != nil {
		raw = env["API_SECRET_PROJECT_IDS"]
	}
	return parseKeyValueList(raw)
}

func parseHMACSecretKeys(raw string) []string {
	values := parseKeyValueList(raw)
	if len(values) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, strings.ToLower(key))
	}
	sort.Strings(keys)
	return keys
}

func parseKeyValueList(raw string) map[string]string {
	result := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return result
	}
	entries := strings.Split(raw, ",")
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		result[key] = value
	}
	return result
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
