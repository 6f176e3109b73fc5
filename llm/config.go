package llm

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/moltguard/moltguard/util"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

const (
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.7
)

type modelInfo struct {
	provider string
	apiID    string
}

// friendly model names, mapped to current API identifiers
var models = map[string]modelInfo{
	"claude-3-5-sonnet": {ProviderAnthropic, "claude-sonnet-4-20250514"},
	"claude-3-opus":     {ProviderAnthropic, "claude-3-opus-20240229"},
	"claude-3-haiku":    {ProviderAnthropic, "claude-3-haiku-20240307"},
	"gpt-4o":            {ProviderOpenAI, "gpt-4o"},
	"gpt-4o-mini":       {ProviderOpenAI, "gpt-4o-mini"},
	"gpt-4-turbo":       {ProviderOpenAI, "gpt-4-turbo"},
}

type Config struct {
	// Provider may be empty, in which case it is inferred from Model.
	Provider string
	Model    string
	APIKey   string
	// APIURL overrides the provider's base URL.
	APIURL     string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Models lists supported friendly model names.
func Models() []string {
	out := make([]string, 0, len(models))
	for m := range models {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// APIModelID maps a friendly model name to the provider's identifier.
func APIModelID(model string) string {
	if mi, ok := models[model]; ok {
		return mi.apiID
	}
	return model
}

// ProviderFor returns the provider serving a friendly model name.
func ProviderFor(model string) (string, bool) {
	mi, ok := models[model]
	return mi.provider, ok
}

// New validates the configuration and returns a ready client. Missing
// credentials and unknown or mismatched models are rejected here, never at
// call time.
func New(cfg Config) (*Client, error) {
	mi, ok := models[cfg.Model]
	if !ok {
		return nil, fmt.Errorf("unknown model %q (supported: %s)", cfg.Model, strings.Join(Models(), ", "))
	}
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		name = mi.provider
	}
	if name != mi.provider {
		return nil, fmt.Errorf("model %q is not served by provider %q", cfg.Model, cfg.Provider)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("no API key provided for %s", name)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "llm", "provider", name, "model", cfg.Model)
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = util.RobustHTTPClientWithLogger(logger)
	}

	var p Provider
	switch name {
	case ProviderAnthropic:
		p = newAnthropicProvider(httpClient, cfg.APIURL, cfg.APIKey, mi.apiID)
	case ProviderOpenAI:
		p = newOpenAIProvider(httpClient, cfg.APIURL, cfg.APIKey, mi.apiID)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
	return &Client{
		provider: p,
		name:     name,
		model:    cfg.Model,
	}, nil
}
