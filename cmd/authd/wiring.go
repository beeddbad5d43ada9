package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/core/service"
	"github.com/99minutos/identity-service/internal/infrastructure/config"
	"github.com/99minutos/identity-service/internal/infrastructure/crypto"
	mongostore "github.com/99minutos/identity-service/internal/infrastructure/db/mongo"
	redisstore "github.com/99minutos/identity-service/internal/infrastructure/db/redis"
	"github.com/99minutos/identity-service/internal/infrastructure/db/sqlite"
	"github.com/99minutos/identity-service/internal/infrastructure/http/handlers"
	"github.com/99minutos/identity-service/internal/infrastructure/queue"
	"github.com/99minutos/identity-service/pkg/logger"
)

// components holds the wired object graph shared by serve and bootstrap-admin.
type components struct {
	accounts   *service.AccountService
	authorizer *service.Authorizer
	checks     map[string]handlers.Check
	closers    []func(context.Context) error
}

// close releases resources in reverse order of acquisition.
func (c *components) close(ctx context.Context, log zerolog.Logger) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}

// build wires store, hasher, tokens and services from cfg. The hash pool outlives
// ctx: it keeps serving in-flight requests while the server drains and is only
// stopped by close, after shutdown has returned.
func build(ctx context.Context, cfg *config.Config, withThrottle bool) (*components, error) {
	c := &components{checks: make(map[string]handlers.Check)}

	poolCtx, stopPool := context.WithCancel(context.WithoutCancel(ctx))
	c.closers = append(c.closers, func(context.Context) error {
		stopPool()
		return nil
	})
	pool := queue.NewPool(cfg.Auth.HashWorkers, logger.Component("hash-pool"))
	pool.Start(poolCtx)

	hasher, err := crypto.NewBcryptHasher(cfg.Auth.BcryptCost, pool)
	if err != nil {
		c.close(ctx, logger.Get())
		return nil, err
	}
	tokens, err := crypto.NewJWTTokens([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	if err != nil {
		c.close(ctx, logger.Get())
		return nil, err
	}

	store, err := c.openStore(ctx, cfg)
	if err != nil {
		c.close(ctx, logger.Get())
		return nil, err
	}
	c.checks["store"] = store.Ping

	opts := []service.AccountServiceOption{service.WithAutoLogin(cfg.Auth.AutoLogin)}
	if withThrottle && cfg.Redis.Enabled {
		client, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			c.close(ctx, logger.Get())
			return nil, err
		}
		c.closers = append(c.closers, func(context.Context) error { return client.Close() })
		c.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		opts = append(opts, service.WithLoginThrottle(
			redisstore.NewLoginThrottle(client, cfg.Auth.LoginMaxFailures, cfg.Auth.LoginFailureWindow),
		))
	}

	c.accounts, err = service.NewAccountService(ctx, store, hasher, tokens, logger.Component("accounts"), opts...)
	if err != nil {
		c.close(ctx, logger.Get())
		return nil, err
	}
	c.authorizer = service.NewAuthorizer(tokens, logger.Component("authorizer"))
	return c, nil
}

func (c *components) openStore(ctx context.Context, cfg *config.Config) (ports.CredentialStore, error) {
	log := logger.Component("store")

	switch cfg.Store.Driver {
	case config.StoreSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o750); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		writeDB, readDB, err := sqlite.OpenPair(ctx, cfg.SQLite.Path, 0)
		if err != nil {
			return nil, err
		}
		store := sqlite.NewAccountStore(writeDB, readDB)
		c.closers = append(c.closers, func(context.Context) error { return store.Close() })
		if err := sqlite.RunMigrations(writeDB); err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLite.Path).Msg("sqlite credential store ready")
		return store, nil

	default:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			AppName:  serviceName,
		})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, client.Disconnect)
		store := mongostore.NewAccountStore(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("mongo credential store ready")
		return store, nil
	}
}
