package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	OutputDir        string
	Seed             int64
	Start            time.Time
	Interval         time.Duration
	Points           int
	IncidentOffset   int
	IncidentDuration int
	IncidentService  string
	IncidentRegion   string
}

func DefaultConfig() Config {
	return Config{
		OutputDir:        "data",
		Seed:             42,
		Start:            time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
		Interval:         time.Minute,
		Points:           120,
		IncidentOffset:   60,
		IncidentDuration: 15,
		IncidentService:  "payments",
		IncidentRegion:   "region-a",
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyString(lookup, "DUCKRCA_DEMO_OUTPUT_DIR", &cfg.OutputDir); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "DUCKRCA_DEMO_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}
	if err := applyTime(lookup, "DUCKRCA_DEMO_START", &cfg.Start); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "DUCKRCA_DEMO_INTERVAL", &cfg.Interval); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "DUCKRCA_DEMO_POINTS", &cfg.Points); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "DUCKRCA_DEMO_INCIDENT_OFFSET", &cfg.IncidentOffset); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "DUCKRCA_DEMO_INCIDENT_DURATION", &cfg.IncidentDuration); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKRCA_DEMO_INCIDENT_SERVICE", &cfg.IncidentService); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKRCA_DEMO_INCIDENT_REGION", &cfg.IncidentRegion); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("DUCKRCA_DEMO_OUTPUT_DIR is required")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("DUCKRCA_DEMO_INTERVAL must be > 0")
	}
	if c.Points <= 0 {
		return fmt.Errorf("DUCKRCA_DEMO_POINTS must be > 0")
	}
	if c.IncidentOffset < 0 || c.IncidentOffset >= c.Points {
		return fmt.Errorf("DUCKRCA_DEMO_INCIDENT_OFFSET must be within [0, %d)", c.Points)
	}
	if c.IncidentDuration <= 0 {
		return fmt.Errorf("DUCKRCA_DEMO_INCIDENT_DURATION must be > 0")
	}
	if !isService(c.IncidentService) {
		return fmt.Errorf("DUCKRCA_DEMO_INCIDENT_SERVICE must be one of %s", strings.Join(services, ", "))
	}
	if !isRegion(c.IncidentRegion) {
		return fmt.Errorf("DUCKRCA_DEMO_INCIDENT_REGION must be one of %s", strings.Join(regions, ", "))
	}
	return nil
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
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyTime(lookup LookupFunc, key string, dst *time.Time) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v.UTC()
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
