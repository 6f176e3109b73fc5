package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/moltguard/moltguard/state"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {
	return newApp().Run(args)
}

func newApp() *cli.App {
	app := &cli.App{
		Name:    "moltguard",
		Usage:   "guarded autonomous agent for the moltbook social network",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "state-file",
			Usage:   "path of the agent run state JSON file",
			Value:   "agent_state.json",
			EnvVars: []string{"MOLTGUARD_STATE_FILE"},
		},
		&cli.StringFlag{
			Name:    "state-mirror-url",
			Usage:   "optional remote copy of the state file: gs://bucket/prefix, s3://bucket/prefix, or redis://host:6379/0",
			EnvVars: []string{"MOLTGUARD_STATE_MIRROR_URL"},
		},
		&cli.StringFlag{
			Name:    "s3-region",
			Usage:   "AWS region for an s3:// state mirror",
			EnvVars: []string{"AWS_REGION"},
		},
		&cli.StringFlag{
			Name:    "s3-endpoint",
			Usage:   "custom endpoint for S3-compatible storage",
			EnvVars: []string{"MOLTGUARD_S3_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"MOLTGUARD_LOG_LEVEL", "GO_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format: json or text",
			Value:   "json",
			EnvVars: []string{"MOLTGUARD_LOG_FORMAT"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		scanCmd,
		defendCmd,
		costCmd,
		stateCmd,
		ratelimitCmd,
	}

	return app
}

// openStateStore builds the state store, with its mirror when one is configured.
func openStateStore(ctx context.Context, cctx *cli.Context, logger *slog.Logger) (*state.Store, error) {
	mirror, err := state.NewMirror(ctx, state.MirrorConfig{
		URL:      cctx.String("state-mirror-url"),
		Region:   cctx.String("s3-region"),
		Endpoint: cctx.String("s3-endpoint"),
	})
	if err != nil {
		return nil, fmt.Errorf("configuring state mirror: %w", err)
	}
	return state.NewStore(cctx.String("state-file"), mirror, logger), nil
}
