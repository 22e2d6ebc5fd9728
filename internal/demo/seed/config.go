package seed

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	Reset     bool
	ExtraRows int
	Seed      int64
	Timeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Reset:     false,
		ExtraRows: 0,
		Seed:      time.Now().UTC().UnixNano(),
		Timeout:   30 * time.Second,
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyBool(lookup, "QUERYLENS_SEED_RESET", &cfg.Reset); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "QUERYLENS_SEED_EXTRA_ROWS", &cfg.ExtraRows); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "QUERYLENS_SEED_RANDOM_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "QUERYLENS_SEED_TIMEOUT", &cfg.Timeout); err != nil {
		return Config{}, err
	}

	if cfg.ExtraRows < 0 {
		return Config{}, fmt.Errorf("QUERYLENS_SEED_EXTRA_ROWS must be >= 0")
	}
	if cfg.Timeout <= 0 {
		return Config{}, fmt.Errorf("QUERYLENS_SEED_TIMEOUT must be > 0")
	}
	return cfg, nil
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

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
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
