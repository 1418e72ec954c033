// Command management serves the video-wall platform's Management Service:
// operator-facing CRUD for walls, sources, and layouts; policy evaluation
// and stream token minting; bundle export/import; and audit proxying.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vitaliisemenov/videowall-controlplane/internal/apimw"
	"github.com/vitaliisemenov/videowall-controlplane/internal/audit"
	"github.com/vitaliisemenov/videowall-controlplane/internal/database"
	"github.com/vitaliisemenov/videowall-controlplane/internal/database/postgres"
	"github.com/vitaliisemenov/videowall-controlplane/internal/management/auth"
	"github.com/vitaliisemenov/videowall-controlplane/internal/management/bundle"
	"github.com/vitaliisemenov/videowall-controlplane/internal/management/httpapi"
	"github.com/vitaliisemenov/videowall-controlplane/internal/management/reconcile"
	"github.com/vitaliisemenov/videowall-controlplane/internal/management/storage"
	"github.com/vitaliisemenov/videowall-controlplane/internal/management/token"
	"github.com/vitaliisemenov/videowall-controlplane/pkg/logger"
	"github.com/vitaliisemenov/videowall-controlplane/internal/platformmetrics"
)

func main() {
	root := &cobra.Command{
		Use:   "management",
		Short: "Video-wall platform Management Service",
		RunE:  run,
	}

	flags := root.Flags()
	flags.String("host", "0.0.0.0", "bind address")
	flags.Int("port", 8080, "listen port")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "json", "log format: json or text")

	flags.String("jwks-path", "", "local JWKS file used to verify operator bearer tokens")
	flags.String("public-key-pem-path", "", "single pinned RSA public key PEM, takes precedence over jwks-path")
	flags.String("jwt-issuer", "", "expected bearer token issuer, empty to skip the check")
	flags.String("jwt-audience", "", "expected bearer token audience, empty to skip the check")
	flags.String("jwt-client-id", "", "resource_access client id whose roles merge into the operator's role set")

	flags.String("stream-token-secret", "", "HMAC secret for minted stream-subscribe tokens")
	flags.Duration("stream-token-ttl", 5*time.Minute, "stream-subscribe token validity window")

	flags.String("bundle-hmac-secret", "", "HMAC secret for bundle export/import signatures; empty disables signing")

	flags.String("policy-engine-url", "http://policyengine:8082", "base URL of the Policy Engine")
	flags.String("audit-service-url", "http://audit:8083", "base URL of the separately deployed Audit Service")
	flags.String("config-authority-url", "http://configauthority:8081", "base URL of the Configuration Authority")
	flags.String("audit-chain-id", "vw-audit", "audit chain this service appends to")

	flags.Bool("reconcile-enabled", true, "run the background Configuration Authority reconciliation loop")
	flags.Duration("reconcile-interval", 30*time.Second, "poll period between config-hash checks")

	flags.Float64("rate-limit-rps", 20, "requests/sec allowed per operator (in-memory fallback bucket when redis-addr is unset or unreachable)")
	flags.Int("rate-limit-burst", 40, "burst capacity per operator")
	flags.String("redis-addr", "", "redis address (host:port) backing a distributed rate-limit counter; empty keeps the limiter in-process")
	flags.Int64("rate-limit-redis-count", 1200, "requests allowed per window per operator when redis-addr is set")
	flags.Duration("rate-limit-redis-window", time.Minute, "window size for the redis-backed rate limit counter")

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	viper.SetEnvPrefix("VW_MANAGEMENT")
	viper.AutomaticEnv()

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := logger.NewLogger(logger.Config{Level: viper.GetString("log-level"), Format: viper.GetString("log-format"), Output: "stdout"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConfig := postgres.LoadFromEnv()
	pool := postgres.NewPostgresPool(dbConfig, log)
	if err := pool.Connect(ctx); err != nil {
		return fmt.Errorf("management: connect to database: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, log); err != nil {
		log.Warn("database migrations failed, continuing with existing schema", "error", err)
	}

	poolExporter := postgres.NewPrometheusExporter(pool, platformmetrics.NewDatabaseMetrics("videowall"))
	poolExporter.Start(ctx, 15*time.Second)
	defer poolExporter.Stop()

	auditStore := audit.NewStore(pool, viper.GetString("audit-chain-id"))
	if err := auditStore.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("management: ensure audit schema: %w", err)
	}

	verifier, err := buildVerifier()
	if err != nil {
		return fmt.Errorf("management: build bearer verifier: %w", err)
	}

	walls := storage.NewWallRepository(pool)
	sources := storage.NewSourceRepository(pool)
	layouts := storage.NewLayoutRepository(pool)

	minter := token.NewMinter(viper.GetString("stream-token-secret"), viper.GetDuration("stream-token-ttl"))
	signer := bundle.NewSigner(viper.GetString("bundle-hmac-secret"))

	policyClient := httpapi.NewPolicyClient(viper.GetString("policy-engine-url"))
	auditClient := httpapi.NewAuditClient(viper.GetString("audit-service-url"))
	configClient := reconcile.NewConfigClient(viper.GetString("config-authority-url"))

	reconciler := reconcile.New(configClient, walls, sources, auditStore, log,
		viper.GetDuration("reconcile-interval"), viper.GetBool("reconcile-enabled"))
	go reconciler.Loop(ctx)

	h := httpapi.New(walls, sources, layouts, auditStore, policyClient, auditClient, minter, reconciler, signer, log)

	var rateLimiter *apimw.RateLimiter
	if redisAddr := viper.GetString("redis-addr"); redisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
		rateLimiter = apimw.NewRedisRateLimiter(redisClient,
			viper.GetInt64("rate-limit-redis-count"), viper.GetDuration("rate-limit-redis-window"),
			viper.GetFloat64("rate-limit-rps"), viper.GetInt("rate-limit-burst"))
		log.Info("rate limiter backed by redis", "addr", redisAddr)
	} else {
		rateLimiter = apimw.NewRateLimiter(viper.GetFloat64("rate-limit-rps"), viper.GetInt("rate-limit-burst"))
	}
	router := httpapi.NewRouter(h, verifier, rateLimiter, log)

	addr := fmt.Sprintf("%s:%d", viper.GetString("host"), viper.GetInt("port"))
	server := &http.Server{Addr: addr, Handler: router, ReadTimeout: 15 * time.Second, WriteTimeout: 15 * time.Second}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("management service listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

func buildVerifier() (*auth.Verifier, error) {
	cfg := auth.Config{
		Issuer:   viper.GetString("jwt-issuer"),
		Audience: viper.GetString("jwt-audience"),
		ClientID: viper.GetString("jwt-client-id"),
	}
	if path := viper.GetString("public-key-pem-path"); path != "" {
		pem, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read public key pem: %w", err)
		}
		cfg.PublicKeyPEM = string(pem)
	} else {
		cfg.JWKSPath = viper.GetString("jwks-path")
	}
	return auth.NewVerifier(cfg)
}
