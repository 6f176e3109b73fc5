package agent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/moltguard/moltguard/budget"
	"github.com/moltguard/moltguard/ratelimit"
)

// ErrConfiguration marks fatal startup problems: bad config values, missing
// credentials, or an unknown model.
var ErrConfiguration = errors.New("invalid agent configuration")

const (
	DefaultName              = "MoltbookAgent"
	DefaultArchetype         = "general"
	DefaultModel             = "claude-3-5-sonnet"
	DefaultCommunity         = "m/general"
	DefaultPostsPerDay       = 5
	DefaultCommentsPerDay    = 20
	DefaultPollInterval      = 30 * time.Minute
	DefaultFetchLimit        = 10
	DefaultFetchSort         = "new"
	DefaultEngageProbability = 0.7
	DefaultPostProbability   = 0.5
	DefaultMaxTokens         = 500
	DefaultTemperature       = 0.7
	DefaultDailyBudget       = 1.00
	DefaultMonthlyBudget     = 25.00
)

// Config is the agent's behavior policy. Credentials are not part of it; they
// reach the agent through the Platform and Model clients in Deps.
type Config struct {
	Name        string   `yaml:"name"`
	Archetype   string   `yaml:"archetype"`
	Model       string   `yaml:"model"`
	Communities []string `yaml:"communities"`

	PostsPerDay    int `yaml:"posts_per_day"`
	CommentsPerDay int `yaml:"comments_per_day"`
	// MaxPerAuthorPerDay caps replies to any single author. Zero disables the cap.
	MaxPerAuthorPerDay int `yaml:"max_per_author_per_day"`

	PollInterval time.Duration `yaml:"poll_interval"`
	// MaxStall bounds any single rate-limit wait inside a cycle. Defaults to PollInterval.
	MaxStall time.Duration `yaml:"max_stall"`

	FetchLimit int    `yaml:"fetch_limit"`
	FetchSort  string `yaml:"fetch_sort"`

	// EngageProbability is the chance an eligible post gets a reply.
	EngageProbability float64 `yaml:"engage_probability"`
	// PostProbability is the per-community chance of an original post each cycle.
	// Zero disables original posts.
	PostProbability float64 `yaml:"post_probability"`

	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`

	// nil means unbounded
	DailyBudget   *float64 `yaml:"daily_budget"`
	MonthlyBudget *float64 `yaml:"monthly_budget"`

	Strict bool `yaml:"strict"`

	// RateLimits overrides individual entries of ratelimit.DefaultLimits.
	RateLimits map[string]ratelimit.Limit `yaml:"rate_limits"`

	// Personality and Guidelines are appended to the system prompt. When empty
	// they are read from SoulFile and AgentsFile, relative to ProjectDir.
	ProjectDir  string `yaml:"project_dir"`
	SoulFile    string `yaml:"soul_file"`
	AgentsFile  string `yaml:"agents_file"`
	Personality string `yaml:"-"`
	Guidelines  string `yaml:"-"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Name:              DefaultName,
		Archetype:         DefaultArchetype,
		Model:             DefaultModel,
		Communities:       []string{DefaultCommunity},
		PostsPerDay:       DefaultPostsPerDay,
		CommentsPerDay:    DefaultCommentsPerDay,
		PollInterval:      DefaultPollInterval,
		FetchLimit:        DefaultFetchLimit,
		FetchSort:         DefaultFetchSort,
		EngageProbability: DefaultEngageProbability,
		PostProbability:   DefaultPostProbability,
		MaxTokens:         DefaultMaxTokens,
		Temperature:       DefaultTemperature,
		DailyBudget:       budget.Float(DefaultDailyBudget),
		MonthlyBudget:     budget.Float(DefaultMonthlyBudget),
		Strict:            true,
		SoulFile:          "SOUL.md",
		AgentsFile:        "AGENTS.md",
	}
}

// LoadConfigFile reads a YAML config file over the defaults. Keys missing from
// the file keep their default value.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading agent config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parsing %s: %w", ErrConfiguration, path, err)
	}
	if cfg.ProjectDir == "" {
		cfg.ProjectDir = filepath.Dir(path)
	}
	return cfg, nil
}

// Validate fills zero values with defaults and rejects values that cannot work.
func (c *Config) Validate() error {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Archetype == "" {
		c.Archetype = DefaultArchetype
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if len(c.Communities) == 0 {
		c.Communities = []string{DefaultCommunity}
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxStall <= 0 {
		c.MaxStall = c.PollInterval
	}
	if c.FetchLimit <= 0 {
		c.FetchLimit = DefaultFetchLimit
	}
	if c.FetchSort == "" {
		c.FetchSort = DefaultFetchSort
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}

	if _, err := budget.PriceFor(c.Model); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if c.PostsPerDay < 0 || c.CommentsPerDay < 0 || c.MaxPerAuthorPerDay < 0 {
		return fmt.Errorf("%w: daily caps must not be negative", ErrConfiguration)
	}
	if c.EngageProbability < 0 || c.EngageProbability > 1 {
		return fmt.Errorf("%w: engage_probability must be within [0, 1]", ErrConfiguration)
	}
	if c.PostProbability < 0 || c.PostProbability > 1 {
		return fmt.Errorf("%w: post_probability must be within [0, 1]", ErrConfiguration)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be within [0, 2]", ErrConfiguration)
	}
	if c.DailyBudget != nil && *c.DailyBudget < 0 {
		return fmt.Errorf("%w: daily_budget must not be negative", ErrConfiguration)
	}
	if c.MonthlyBudget != nil && *c.MonthlyBudget < 0 {
		return fmt.Errorf("%w: monthly_budget must not be negative", ErrConfiguration)
	}
	for action, l := range c.RateLimits {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("%w: rate limit %q: %w", ErrConfiguration, action, err)
		}
	}
	return nil
}

// limits merges RateLimits over the defaults.
func (c *Config) limits() map[string]ratelimit.Limit {
	out := ratelimit.DefaultLimits()
	for action, l := range c.RateLimits {
		out[action] = l
	}
	return out
}
