package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/SAP-F-2025/assessment-runner/internal/report"
	"github.com/SAP-F-2025/assessment-runner/internal/runner"
	"github.com/SAP-F-2025/assessment-runner/internal/services"
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/urfave/cli/v3"
)

func takeCommand() *cli.Command {
	return &cli.Command{
		Name:      "take",
		Usage:     "Take an assessment in the terminal",
		ArgsUsage: "<assessment-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "export",
				Aliases: []string{"o"},
				Usage:   "write the submitted attempt to an .xlsx workbook",
			},
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "ignore any cached copy of the assessment",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log runner activity to stdout",
			},
		},
		Action: take,
	}
}

func take(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return errors.New("missing assessment id")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := utils.NewNopLogger()
	if cmd.Bool("verbose") {
		logger = utils.NewLogger(cfg.Environment)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	if cmd.Bool("refresh") {
		if err := b.intake.Invalidate(ctx, id); err != nil {
			logger.Warn("Failed to drop cached assessment", "assessment_id", id, "error", err)
		}
	}

	term := newTerminal(os.Stdout)
	r, err := b.intake.Begin(ctx, id,
		runner.WithListener(term.listener()),
		runner.WithTimeWarning(cfg.TimeWarningSeconds),
		runner.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer r.Close()

	snap, err := term.run(ctx, r, os.Stdin)
	if errors.Is(err, errQuit) {
		fmt.Fprintln(os.Stdout, "Attempt abandoned, nothing was submitted.")
		return nil
	}
	if err != nil {
		return err
	}

	if path := cmd.String("export"); path != "" {
		data, err := report.AttemptWorkbook(r.Assessment(), snap)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintln(os.Stdout, "Attempt exported to", path)
	}

	if link, err := services.ResultsURL(cfg.ResultsBaseURL, id, snap.Result); err == nil {
		fmt.Fprintln(os.Stdout, "Results:", link)
	}
	return nil
}
