package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/farmtrack/farmtrack/backend/go-services/handlers"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/config"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/crops"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/database"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/oidc"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/profiles"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/sessions"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/tokens"
	"github.com/farmtrack/farmtrack/backend/go-services/pkg/logger"
	"github.com/farmtrack/farmtrack/backend/go-services/pkg/metrics"
	"github.com/farmtrack/farmtrack/backend/go-services/pkg/middleware"
)

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: identity=%s mongo=%v redis=%v keycloak=%v", cfg.Identity.Mode, cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Keycloak.URL != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(handlers.CORS(cfg.Identity.Header), gin.Logger(), gin.Recovery())

	// Redis is optional: it backs the shared rate limiter and token revocations.
	rdb, err := sessions.Connect(ctx, cfg.Redis)
	if err != nil {
		logger.Warnf("redis unavailable, continuing without it: %v", err)
	} else if rdb != nil {
		logger.Infof("connected to Redis at %s", cfg.Redis.Addr())
		defer func() { _ = rdb.Close() }()
	}

	// The Mongo client is created on first use so the server starts even
	// when the database is down; /ready reports it.
	mongoDB := database.NewLazy(cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.Timeout)
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoDB.Close(cctx)
	}()
	cropRepo := crops.NewMongoRepository(mongoDB)
	go func() {
		ictx, cancel := context.WithTimeout(ctx, cfg.MongoDB.Timeout)
		defer cancel()
		if err := cropRepo.EnsureIndexes(ictx); err != nil {
			logger.Warnf("crop indexes not created yet: %v", err)
		}
	}()

	resolver, err := identityResolver(ctx, cfg, rdb)
	if err != nil {
		logger.Fatalf("identity setup failed: %v", err)
	}

	api := handlers.NewAPIHandler(profiles.NewService(profiles.NewMongoRepository(mongoDB)), crops.NewService(cropRepo))
	api.Register(r.Group("/"), resolver, rateLimiter(cfg, rdb)...)

	deps := map[string]handlers.Pinger{"mongo": mongoDB}
	if rdb != nil {
		deps["redis"] = redisPinger{rdb}
	}
	handlers.RegisterOps(r, deps)
	handlers.RegisterSwagger(r, cfg.Identity.Header)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.ServeStatic(r, cfg.Server.StaticDir)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("Starting farmtrack API on %s (static dir %s)", addr, cfg.Server.StaticDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

// identityResolver picks how callers are identified from IDENTITY_MODE.
func identityResolver(ctx context.Context, cfg *config.Config, rdb *redis.Client) (middleware.IdentityResolver, error) {
	switch cfg.Identity.Mode {
	case config.IdentityOIDC:
		if cfg.Keycloak.URL == "" || cfg.Keycloak.ClientID == "" {
			return nil, errors.New("IDENTITY_MODE=oidc needs KEYCLOAK_URL and KEYCLOAK_CLIENT_ID")
		}
		ver, err := oidc.NewVerifier(ctx, cfg.Keycloak)
		if err != nil {
			return nil, err
		}
		logger.Infof("identity: verifying bearer tokens from %s", cfg.Keycloak.Issuer())
		return ver.Resolver(), nil
	case config.IdentityJWT:
		if cfg.JWT.Secret == "" {
			return nil, tokens.ErrNoSecret
		}
		res := middleware.TokenResolver{
			Parse: func(raw string) (string, error) { return tokens.ParseSubject(cfg, raw) },
		}
		if rdb != nil {
			res.Revoked = sessions.NewRevocationList(rdb, "")
		}
		logger.Infof("identity: verifying session tokens (revocations=%v)", rdb != nil)
		return res, nil
	}
	logger.Warnf("identity: trusting the %s header without verification", cfg.Identity.Header)
	return middleware.HeaderResolver{Header: cfg.Identity.Header}, nil
}

// rateLimiter returns the per-caller limiter for the /api group, if enabled.
// It runs after RequireIdentity so buckets are keyed by caller id.
func rateLimiter(cfg *config.Config, rdb *redis.Client) []gin.HandlerFunc {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	if cfg.RateLimit.UseRedis && rdb != nil {
		win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
		return []gin.HandlerFunc{middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)}
	}
	return []gin.HandlerFunc{middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)}
}

type redisPinger struct{ c *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.c.Ping(ctx).Err() }
