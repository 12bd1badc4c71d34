package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	EstimatorChars    = "chars"
	EstimatorTiktoken = "tiktoken"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Tools         ToolsConfig
	Agent         AgentConfig
	ObjectStore   ObjectStoreConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type ToolsConfig struct {
	DataDir       string
	DefaultLimit  int
	TokenBudget   int
	Estimator     string
	CharsPerToken int
	QueryTimeout  time.Duration
}

type AgentConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	MaxSteps    int
	TaskFile    string
	OutputFile  string
}

type ObjectStoreConfig struct {
	Enabled          bool
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("DUCKRCA_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid DUCKRCA_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "DUCKRCA_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKRCA_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "DUCKRCA_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "DUCKRCA_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "DUCKRCA_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKRCA_DATA_DIR", &cfg.Tools.DataDir); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "DUCKRCA_DEFAULT_LIMIT", &cfg.Tools.DefaultLimit); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "DUCKRCA_TOKEN_BUDGET", &cfg.Tools.TokenBudget); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKRCA_TOKEN_ESTIMATOR", &cfg.Tools.Estimator); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "DUCKRCA_CHARS_PER_TOKEN", &cfg.Tools.CharsPerToken); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "DUCKRCA_QUERY_TIMEOUT", &cfg.Tools.QueryTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKRCA_AGENT_BASE_URL", &cfg.Agent.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKRCA_AGENT_API_KEY", &cfg.Agent.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKRCA_AGENT_MODEL", &cfg.Agent.Model); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "DUCKRCA_AGENT_TEMPERATURE", &cfg.Agent.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "DUCKRCA_AGENT_TIMEOUT", &cfg.Agent.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "DUCKRCA_AGENT_MAX_STEPS", &cfg.Agent.MaxSteps); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKRCA_TASK_FILE", &cfg.Agent.TaskFile); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKRCA_OUTPUT_FILE", &cfg.Agent.OutputFile); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "DUCKRCA_OBJECTSTORE_ENABLED", &cfg.ObjectStore.Enabled); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKRCA_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKRCA_OBJECTSTORE_REGION", &cfg.ObjectStore.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKRCA_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKRCA_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKRCA_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "DUCKRCA_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKRCA_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "DUCKRCA_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "DUCKRCA_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "DUCKRCA_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}

	cfg.Tools.Estimator = strings.ToLower(cfg.Tools.Estimator)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return fmt.Errorf("http address is required")
	}
	if cfg.Tools.DefaultLimit <= 0 {
		return fmt.Errorf("default limit must be > 0")
	}
	if cfg.Tools.TokenBudget <= 0 {
		return fmt.Errorf("token budget must be > 0")
	}
	if cfg.Tools.CharsPerToken <= 0 {
		return fmt.Errorf("chars per token must be > 0")
	}
	switch cfg.Tools.Estimator {
	case EstimatorChars, EstimatorTiktoken:
	default:
		return fmt.Errorf("invalid DUCKRCA_TOKEN_ESTIMATOR: %q", cfg.Tools.Estimator)
	}
	if cfg.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent max steps must be > 0")
	}
	if cfg.ObjectStore.Enabled && cfg.ObjectStore.Bucket == "" {
		return fmt.Errorf("object store bucket is required when upload is enabled")
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "duckrca-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Tools: ToolsConfig{
			DataDir:       "data",
			DefaultLimit:  10,
			TokenBudget:   5000,
			Estimator:     EstimatorChars,
			CharsPerToken: 3,
			QueryTimeout:  30 * time.Second,
		},
		Agent: AgentConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o",
			Temperature: 0,
			Timeout:     2 * time.Minute,
			MaxSteps:    25,
			TaskFile:    "task.json",
			OutputFile:  "experiments/output.json",
		},
		ObjectStore: ObjectStoreConfig{
			Enabled:          false,
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "duckrca",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  false,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Observability.LogJSON = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
