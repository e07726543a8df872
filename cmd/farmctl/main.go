package main

import (
	"context"
	"fmt"
	"os"

	"github.com/farmtrack/farmtrack/backend/go-services/internal/config"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/crops"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/database"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/farmclient"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/identity"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/localcache"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/profiles"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/sessions"
	"github.com/farmtrack/farmtrack/backend/go-services/pkg/logger"
)

var version = "dev"

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	root := newRootCmd(cfg, openClient)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openClient wires the direct-access client against Mongo, the SQLite side
// store and, when configured, the Redis revocation list.
func openClient(ctx context.Context, cfg *config.Config) (*backend, error) {
	mongoDB := database.NewLazy(cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.Timeout)
	b := &backend{}
	b.closers = append(b.closers, func() { _ = mongoDB.Close(context.Background()) })

	var local farmclient.ProfileStore
	if cfg.Client.ProfilePolicy == config.PolicyResilient {
		store, err := localcache.OpenSQLite(cfg.Client.LocalCachePath)
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = store.Close() })
		local = store
	}
	policy, err := farmclient.NewPolicy(cfg.Client.ProfilePolicy, farmclient.RemoteProfiles{Repo: profiles.NewMongoRepository(mongoDB)}, local)
	if err != nil {
		b.close()
		return nil, err
	}

	opts := []identity.Option{}
	rdb, err := sessions.Connect(ctx, cfg.Redis)
	if err != nil {
		logger.Warnf("redis unavailable, sign-outs will not be recorded: %v", err)
	} else if rdb != nil {
		b.closers = append(b.closers, func() { _ = rdb.Close() })
		opts = append(opts, identity.WithRevoker(sessions.NewRevocationList(rdb, "")))
	}
	creds := identity.NewMongoCredentialRepository(mongoDB)
	if err := creds.EnsureIndexes(ctx); err != nil {
		logger.Warnf("credential index: %v", err)
	}
	auth := identity.NewProvider(creds, cfg, opts...)
	b.client = farmclient.New(auth, policy, crops.NewMongoRepository(mongoDB))
	return b, nil
}
