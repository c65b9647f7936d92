// Package config builds the process-wide configuration once at startup.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"chat-dispatch/internal/integrations/gemini"
	"chat-dispatch/internal/integrations/openai"
)

const (
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvDeepseekAPIKey  = "DEEPSEEK_API_KEY"
	EnvParamPrefix     = "PARAM_PREFIX"
	EnvGeminiURL       = "GEMINI_API_URL"
	EnvDeepseekURL     = "DEEPSEEK_API_URL"
	EnvUpstreamTimeout = "UPSTREAM_TIMEOUT_SECONDS"
	EnvListenAddr      = "LISTEN_ADDR"

	// SSM parameter names under PARAM_PREFIX.
	GeminiSecretName   = "gemini-api-key"
	DeepseekSecretName = "deepseek-api-key"

	DefaultDeepseekURL     = openai.DefaultBaseURL + "/chat/completions"
	DefaultUpstreamTimeout = 30 * time.Second

	// Lambda invocations end after 15 minutes.
	maxUpstreamTimeoutSeconds = 900
)

// SecretSource resolves a named secret, e.g. from AWS SSM Parameter Store.
type SecretSource interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// Config is immutable after Load returns.
type Config struct {
	GeminiAPIKey    string
	DeepseekAPIKey  string
	GeminiURL       string
	DeepseekURL     string
	UpstreamTimeout time.Duration
	ListenAddr      string
}

// Load reads configuration through lookup (os.Getenv in production). Secrets
// missing from the environment are fetched from secrets when it is non-nil.
// A secret that cannot be resolved is an error: the process must not start.
func Load(ctx context.Context, lookup func(string) string, secrets SecretSource) (Config, error) {
	if lookup == nil {
		return Config{}, errors.New("config: lookup must not be nil")
	}
	get := func(key string) string { return strings.TrimSpace(lookup(key)) }

	geminiKey, err := resolveSecret(ctx, get(EnvGeminiAPIKey), EnvGeminiAPIKey, GeminiSecretName, secrets)
	if err != nil {
		return Config{}, err
	}
	deepseekKey, err := resolveSecret(ctx, get(EnvDeepseekAPIKey), EnvDeepseekAPIKey, DeepseekSecretName, secrets)
	if err != nil {
		return Config{}, err
	}

	timeout := DefaultUpstreamTimeout
	if v := get(EnvUpstreamTimeout); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("config: %s must be a positive integer, got %q", EnvUpstreamTimeout, v)
		}
		if n > maxUpstreamTimeoutSeconds {
			return Config{}, fmt.Errorf("config: %s must be at most %d, got %q", EnvUpstreamTimeout, maxUpstreamTimeoutSeconds, v)
		}
		timeout = time.Duration(n) * time.Second
	}

	return Config{
		GeminiAPIKey:    geminiKey,
		DeepseekAPIKey:  deepseekKey,
		GeminiURL:       orDefault(get(EnvGeminiURL), gemini.DefaultEndpoint),
		DeepseekURL:     orDefault(get(EnvDeepseekURL), DefaultDeepseekURL),
		UpstreamTimeout: timeout,
		ListenAddr:      get(EnvListenAddr),
	}, nil
}

func resolveSecret(ctx context.Context, fromEnv, envKey, secretName string, secrets SecretSource) (string, error) {
	if fromEnv != "" {
		return fromEnv, nil
	}
	if secrets == nil {
		return "", fmt.Errorf("config: missing required environment variable: %s", envKey)
	}
	v, err := secrets.GetSecret(ctx, secretName)
	if err != nil {
		return "", fmt.Errorf("config: resolve %s: %w", envKey, err)
	}
	if v == "" {
		return "", fmt.Errorf("config: missing required secret: %s", envKey)
	}
	return v, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// LogValue keeps secrets out of structured logs; only their lengths are shown.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("gemini_key_len", len(c.GeminiAPIKey)),
		slog.Int("deepseek_key_len", len(c.DeepseekAPIKey)),
		slog.String("gemini_url", c.GeminiURL),
		slog.String("deepseek_url", c.DeepseekURL),
		slog.Duration("upstream_timeout", c.UpstreamTimeout),
		slog.String("listen_addr", c.ListenAddr),
	)
}
