package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/urfave/cli/v3"
)

func purgeCacheCommand() *cli.Command {
	return &cli.Command{
		Name:      "purge-cache",
		Usage:     "Drop cached assessments, one by id or all of them",
		ArgsUsage: "[assessment-id]",
		Action:    purgeCache,
	}
}

func purgeCache(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.RedisURL == "" {
		return errors.New("REDIS_URL is not set, there is no cache to purge")
	}

	logger := utils.NewLogger(cfg.Environment)
	b, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()
	if b.redis == nil {
		return fmt.Errorf("redis at %s is unreachable", cfg.RedisURL)
	}

	if id := cmd.Args().First(); id != "" {
		if err := b.intake.Invalidate(ctx, id); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "Dropped cached assessment", id)
		return nil
	}

	if err := b.intake.InvalidateAll(ctx); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, "Dropped all cached assessments")
	return nil
}
