package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/moltguard/moltguard/agent"
	"github.com/moltguard/moltguard/agent/setstore"
	"github.com/moltguard/moltguard/budget"
	"github.com/moltguard/moltguard/ratelimit"
	"github.com/moltguard/moltguard/scanner"
	"github.com/moltguard/moltguard/util/svcutil"

	cli "github.com/urfave/cli/v2"
)

var scannerFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:  "strict",
		Usage: "treat low-weight findings alone as suspicious",
	},
	&cli.StringFlag{
		Name:    "sets-json-path",
		Usage:   "JSON sets file; known-attacks members are matched as extra attack literals",
		EnvVars: []string{"MOLTGUARD_SETS_JSON_PATH"},
	},
}

var scanCmd = &cli.Command{
	Name:      "scan",
	Usage:     "scan text for prompt injection and print the verdict",
	ArgsUsage: "<text | ->",
	Flags:     scannerFlags,
	Action: func(cctx *cli.Context) error {
		s, err := scannerFromFlags(cctx)
		if err != nil {
			return err
		}
		text, err := inputText(cctx)
		if err != nil {
			return err
		}
		return printJSON(cctx.App.Writer, s.Scan(text))
	},
}

var defendCmd = &cli.Command{
	Name:      "defend",
	Usage:     "neutralize injection patterns in text and print the result",
	ArgsUsage: "<text | ->",
	Flags:     scannerFlags,
	Action: func(cctx *cli.Context) error {
		s, err := scannerFromFlags(cctx)
		if err != nil {
			return err
		}
		text, err := inputText(cctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cctx.App.Writer, s.Defend(text))
		return err
	},
}

var activityFlags = []cli.Flag{
	&cli.IntFlag{
		Name:  "posts",
		Usage: "original posts per day",
		Value: agent.DefaultPostsPerDay,
	},
	&cli.IntFlag{
		Name:  "comments",
		Usage: "comments per day",
		Value: agent.DefaultCommentsPerDay,
	},
	&cli.IntFlag{
		Name:  "reads",
		Usage: "posts read per day",
		Value: 100,
	},
}

var costCmd = &cli.Command{
	Name:  "cost",
	Usage: "model cost projections",
	Subcommands: []*cli.Command{
		{
			Name:  "estimate",
			Usage: "project daily and monthly cost for one model",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:  "model",
					Value: agent.DefaultModel,
				},
			}, activityFlags...),
			Action: func(cctx *cli.Context) error {
				est, err := budget.EstimateCost(cctx.String("model"), cctx.Int("posts"), cctx.Int("comments"), cctx.Int("reads"))
				if err != nil {
					return err
				}
				return printJSON(cctx.App.Writer, est)
			},
		},
		{
			Name:  "compare",
			Usage: "project cost for every known model, cheapest first",
			Flags: activityFlags,
			Action: func(cctx *cli.Context) error {
				return printJSON(cctx.App.Writer, budget.CompareModels(cctx.Int("posts"), cctx.Int("comments"), cctx.Int("reads")))
			},
		},
	},
}

var stateCmd = &cli.Command{
	Name:  "state",
	Usage: "inspect persisted run state",
	Subcommands: []*cli.Command{
		{
			Name:  "show",
			Usage: "print the run state",
			Action: func(cctx *cli.Context) error {
				logger := svcutil.ConfigLogger(cctx, os.Stderr)
				store, err := openStateStore(cctx.Context, cctx, logger)
				if err != nil {
					return err
				}
				st, err := store.Load(cctx.Context)
				if err != nil {
					return err
				}
				return printJSON(cctx.App.Writer, st)
			},
		},
	},
}

var ratelimitCmd = &cli.Command{
	Name:  "ratelimit",
	Usage: "inspect or reset persisted rate limit history",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "agent YAML config file; its rate_limits override the defaults",
			EnvVars: []string{"MOLTGUARD_CONFIG"},
		},
	},
	Subcommands: []*cli.Command{
		{
			Name:  "status",
			Usage: "print usage for every configured action",
			Action: func(cctx *cli.Context) error {
				logger := svcutil.ConfigLogger(cctx, os.Stderr)
				store, err := openStateStore(cctx.Context, cctx, logger)
				if err != nil {
					return err
				}
				st, err := store.Load(cctx.Context)
				if err != nil {
					return err
				}
				limits, err := configuredLimits(cctx)
				if err != nil {
					return err
				}
				rl := ratelimit.New(limits, st.RateState, ratelimit.WithLogger(logger))
				return printJSON(cctx.App.Writer, rl.StatusAll())
			},
		},
		{
			Name:      "reset",
			Usage:     "clear history for one action, or for all actions",
			ArgsUsage: "[action]",
			Action: func(cctx *cli.Context) error {
				logger := svcutil.ConfigLogger(cctx, os.Stderr)
				store, err := openStateStore(cctx.Context, cctx, logger)
				if err != nil {
					return err
				}
				st, err := store.Load(cctx.Context)
				if err != nil {
					return err
				}
				limits, err := configuredLimits(cctx)
				if err != nil {
					return err
				}
				action := cctx.Args().First()
				rl := ratelimit.New(limits, st.RateState, ratelimit.WithLogger(logger))
				rl.Reset(action)
				st.RateState = rl.Snapshot()
				if err := store.Save(cctx.Context, st); err != nil {
					return err
				}
				if action == "" {
					action = "all actions"
				}
				logger.Info("rate limit history cleared", "action", action, "path", store.Path())
				return nil
			},
		},
	},
}

func scannerFromFlags(cctx *cli.Context) (*scanner.Scanner, error) {
	opts := scanner.Options{
		Strict: cctx.Bool("strict"),
		Logger: svcutil.ConfigLogger(cctx, os.Stderr),
	}
	if p := cctx.String("sets-json-path"); p != "" {
		sets := setstore.NewMemSetStore()
		if err := sets.LoadFromFileJSON(p); err != nil {
			return nil, err
		}
		opts.ExtraAttacks = sets.Members(setstore.SetKnownAttacks)
	}
	return scanner.New(opts), nil
}

// inputText returns the first argument, or stdin when it is "-" or absent.
func inputText(cctx *cli.Context) (string, error) {
	arg := cctx.Args().First()
	if arg != "" && arg != "-" {
		return strings.Join(cctx.Args().Slice(), " "), nil
	}
	b, err := io.ReadAll(cctx.App.Reader)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(b), nil
}

func configuredLimits(cctx *cli.Context) (map[string]ratelimit.Limit, error) {
	limits := ratelimit.DefaultLimits()
	p := cctx.String("config")
	if p == "" {
		return limits, nil
	}
	cfg, err := agent.LoadConfigFile(p)
	if err != nil {
		return nil, err
	}
	for k, v := range cfg.RateLimits {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("%w: rate limit %q: %w", agent.ErrConfiguration, k, err)
		}
		limits[k] = v
	}
	return limits, nil
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
