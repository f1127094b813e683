package main

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/assessment-runner/internal/cache"
	"github.com/SAP-F-2025/assessment-runner/internal/client"
	"github.com/SAP-F-2025/assessment-runner/internal/config"
	"github.com/SAP-F-2025/assessment-runner/internal/services"
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/SAP-F-2025/assessment-runner/internal/validator"
	"github.com/SAP-F-2025/assessment-runner/pkg"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
)

const cachePrefix = "runner:"

type backend struct {
	intake services.IntakeService
	redis  *redis.Client
}

func (b *backend) Close() error {
	if b.redis != nil {
		return b.redis.Close()
	}
	return nil
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	var files []string
	if f := cmd.String("env-file"); f != "" {
		files = append(files, f)
	}
	cfg, err := config.LoadConfig(files...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newBackend wires the backend client, the submission path and the
// read-through assessment cache. Redis failures only disable the cache.
func newBackend(ctx context.Context, cfg *config.Config, logger utils.Logger) (*backend, error) {
	api, err := client.New(client.Config{
		BaseURL: cfg.BackendURL,
		Token:   cfg.BackendToken,
		Timeout: cfg.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}

	b := &backend{}
	cacheService := cache.NewNoopCache()
	if cfg.RedisURL != "" {
		rdb, err := pkg.NewRedisClient(ctx, cfg)
		if err != nil {
			logger.Warn("Redis unavailable, assessment cache disabled", "error", err)
		} else {
			b.redis = rdb
			cacheService = cache.NewRedisCache(rdb, cachePrefix, logger)
			logger.Info("Assessment cache enabled", "ttl", cfg.CacheTTL.String())
		}
	}

	v := validator.New()
	submissions := services.NewSubmissionService(api, v, logger)
	b.intake = services.NewIntakeService(api, submissions, cacheService, cfg.CacheTTL, v, logger)
	return b, nil
}
