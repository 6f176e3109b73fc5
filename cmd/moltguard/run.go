package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moltguard/moltguard/activity"
	"github.com/moltguard/moltguard/agent"
	"github.com/moltguard/moltguard/agent/cachestore"
	"github.com/moltguard/moltguard/agent/countstore"
	"github.com/moltguard/moltguard/agent/setstore"
	"github.com/moltguard/moltguard/llm"
	"github.com/moltguard/moltguard/platform"
	"github.com/moltguard/moltguard/scanner"
	"github.com/moltguard/moltguard/util/cliutil"
	"github.com/moltguard/moltguard/util/svcutil"

	cli "github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"gorm.io/plugin/opentelemetry/tracing"
)

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the agent loop",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to agent YAML config file",
			EnvVars: []string{"MOLTGUARD_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "name",
			Usage:   "agent name (overrides config file)",
			EnvVars: []string{"MOLTGUARD_AGENT_NAME"},
		},
		&cli.StringFlag{
			Name:    "model",
			Usage:   "model name, eg claude-3-5-sonnet or gpt-4o-mini (overrides config file)",
			EnvVars: []string{"MOLTGUARD_MODEL"},
		},
		&cli.StringSliceFlag{
			Name:    "community",
			Usage:   "community to monitor, eg m/general (overrides config file)",
			EnvVars: []string{"MOLTGUARD_COMMUNITIES"},
		},
		&cli.StringFlag{
			Name:    "moltbook-host",
			Usage:   "platform API base URL",
			Value:   platform.DefaultHost,
			EnvVars: []string{"MOLTBOOK_HOST"},
		},
		&cli.StringFlag{
			Name:    "moltbook-api-key",
			Usage:   "platform API key (moltbook_...)",
			EnvVars: []string{"MOLTBOOK_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "llm-api-key",
			Usage:   "model provider API key; falls back to ANTHROPIC_API_KEY or OPENAI_API_KEY by provider",
			EnvVars: []string{"LLM_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "llm-api-url",
			Usage:   "override model provider base URL",
			EnvVars: []string{"LLM_API_URL"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for counters and scan cache; in-process memory when empty",
			EnvVars: []string{"MOLTGUARD_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "sets-json-path",
			Usage:   "file path of JSON file containing static sets (blocked-authors, known-attacks)",
			EnvVars: []string{"MOLTGUARD_SETS_JSON_PATH"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "optional activity log database, eg sqlite://data/moltguard/activity.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   4,
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			Usage:   "trace activity log queries with OpenTelemetry",
			EnvVars: []string{"MOLTGUARD_DB_TRACING"},
		},
		&cli.DurationFlag{
			Name:    "activity-retention",
			Usage:   "how long activity log rows are kept",
			Value:   30 * 24 * time.Hour,
			EnvVars: []string{"MOLTGUARD_ACTIVITY_RETENTION"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for the status API",
			Value:   ":3999",
			EnvVars: []string{"MOLTGUARD_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3998",
			EnvVars: []string{"MOLTGUARD_METRICS_LISTEN"},
		},
		&cli.BoolFlag{
			Name:  "once",
			Usage: "run a single cycle and exit",
		},
	},
	Action: runAgent,
}

func runAgent(cctx *cli.Context) error {
	ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger := svcutil.ConfigLogger(cctx, os.Stdout)

	shutdownOTEL := configOTEL(ctx, "moltguard")
	defer shutdownOTEL()

	cfg, err := loadAgentConfig(cctx)
	if err != nil {
		return err
	}

	pc, err := platform.NewClient(platform.Config{
		Host:      cctx.String("moltbook-host"),
		APIKey:    cctx.String("moltbook-api-key"),
		AgentName: cfg.Name,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", agent.ErrConfiguration, err)
	}

	provider, ok := llm.ProviderFor(cfg.Model)
	if !ok {
		return fmt.Errorf("%w: unknown model %q", agent.ErrConfiguration, cfg.Model)
	}
	mc, err := llm.New(llm.Config{
		Provider: provider,
		Model:    cfg.Model,
		APIKey:   llmAPIKey(cctx, provider),
		APIURL:   cctx.String("llm-api-url"),
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", agent.ErrConfiguration, err)
	}

	store, err := openStateStore(ctx, cctx, logger)
	if err != nil {
		return err
	}
	st, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading run state: %w", err)
	}
	logger.Info("loaded run state", "path", store.Path(), "seen_posts", len(st.SeenPostIDs))

	sets := setstore.NewMemSetStore()
	if p := cctx.String("sets-json-path"); p != "" {
		if err := sets.LoadFromFileJSON(p); err != nil {
			return fmt.Errorf("initializing in-process setstore: %v", err)
		}
		logger.Info("loaded set config from JSON", "path", p)
	}

	deps := agent.Deps{
		Platform: pc,
		Model:    mc,
		Store:    store,
		State:    st,
		Scanner: scanner.New(scanner.Options{
			Strict:       cfg.Strict,
			ExtraAttacks: sets.Members(setstore.SetKnownAttacks),
			Logger:       logger,
		}),
		Sets:   sets,
		Logger: logger,
	}

	if redisURL := cctx.String("redis-url"); redisURL != "" {
		cnt, err := countstore.NewRedisCountStore(redisURL)
		if err != nil {
			return fmt.Errorf("initializing redis countstore: %v", err)
		}
		deps.Counters = cnt

		csh, err := cachestore.NewRedisCacheStore(redisURL, 24*time.Hour)
		if err != nil {
			return fmt.Errorf("initializing redis cachestore: %v", err)
		}
		deps.Cache = csh
	} else {
		deps.Counters = countstore.NewMemCountStoreFrom(st.DailyCounts, nil)
		deps.Cache = cachestore.NewMemCacheStore(5_000, 24*time.Hour)
	}

	if hook := cctx.String("slack-webhook-url"); hook != "" {
		deps.Notifier = agent.NewSlackNotifier(hook, logger)
	}

	var actStore *activity.Store
	if dburl := cctx.String("database-url"); dburl != "" {
		db, err := cliutil.SetupDatabase(dburl, cctx.Int("max-db-connections"), logger)
		if err != nil {
			return err
		}
		if cctx.Bool("db-tracing") {
			if err := db.Use(tracing.NewPlugin()); err != nil {
				return err
			}
		}
		actStore, err = activity.NewStore(db)
		if err != nil {
			return err
		}
		deps.Activity = actStore
	}

	ag, err := agent.New(cfg, deps)
	if err != nil {
		return err
	}

	if cctx.Bool("once") {
		stats, err := ag.RunOnce(ctx)
		if err != nil {
			return err
		}
		return printJSON(cctx.App.Writer, stats)
	}

	srv := NewServer(ag, actStore, cctx.String("bind"), logger)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return RunMetrics(ctx, cctx.String("metrics-listen"))
	})
	eg.Go(func() error {
		return srv.RunAPI(ctx)
	})
	if actStore != nil {
		eg.Go(func() error {
			return runActivityPrune(ctx, actStore, cctx.Duration("activity-retention"), logger)
		})
	}
	eg.Go(func() error {
		defer stop()
		if err := ag.Run(ctx); err != nil {
			return fmt.Errorf("agent loop failed: %w", err)
		}
		return nil
	})

	logger.Info("moltguard running", "agent", cfg.Name, "model", cfg.Model, "communities", cfg.Communities)
	return eg.Wait()
}

// loadAgentConfig reads the YAML config, if any, and applies flag overrides.
func loadAgentConfig(cctx *cli.Context) (agent.Config, error) {
	cfg := agent.DefaultConfig()
	if p := cctx.String("config"); p != "" {
		var err error
		if cfg, err = agent.LoadConfigFile(p); err != nil {
			return cfg, err
		}
	}
	if v := cctx.String("name"); v != "" {
		cfg.Name = v
	}
	if v := cctx.String("model"); v != "" {
		cfg.Model = v
	}
	if v := cctx.StringSlice("community"); len(v) > 0 {
		cfg.Communities = v
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func llmAPIKey(cctx *cli.Context, provider string) string {
	if k := cctx.String("llm-api-key"); k != "" {
		return k
	}
	switch provider {
	case llm.ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	default:
		return os.Getenv("ANTHROPIC_API_KEY")
	}
}

func runActivityPrune(ctx context.Context, store *activity.Store, retention time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		n, err := store.Prune(ctx, time.Now().Add(-retention))
		if err != nil {
			logger.Error("failed to prune activity log", "err", err)
		} else if n > 0 {
			logger.Info("pruned activity log", "rows", n)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
