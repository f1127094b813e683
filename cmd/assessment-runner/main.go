package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

// Set at build time through ldflags.
var Version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "assessment-runner",
		Usage:   "Timed assessment runner for the marketplace backend",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Aliases: []string{"e"},
				Usage:   "dotenv file to load before reading the environment",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			takeCommand(),
			purgeCacheCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "assessment-runner:", err)
		os.Exit(1)
	}
}
