package config

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/coveridge/tiercache/monitoring"
	"github.com/coveridge/tiercache/strategy"
	"github.com/coveridge/tiercache/utils/env"
)

// Config represents the full application configuration
type Config struct {
	// Valkey (open-source version of Redis) endpoint backing the durable tier.
	// E.g., localhost:6379. Empty disables the remote tier.
	ValkeyEndpoint string `yaml:"valkey_endpoint"`

	// Port to listen for admin API requests.
	Port int `yaml:"port"`

	// Interval between proactive warming passes. E.g., 5m
	WarmingInterval string `yaml:"warming_interval"`

	// Interval between optimization passes. E.g., 1h
	OptimizeInterval string `yaml:"optimize_interval"`

	// Timeout for a single tier operation. E.g., 2s
	OperationTimeout string `yaml:"operation_timeout"`

	// Upper bound on tracked key metadata entries.
	TrackerCapacity int `yaml:"tracker_capacity"`

	// Entry bound for the built-in strategies' fast tiers.
	FastTierEntries int64 `yaml:"fast_tier_entries"`

	// Metric namespace settings.
	Monitoring *monitoring.PrometheusConfig `yaml:"monitoring"`

	// Strategies declared in config, keyed by key category. They are
	// registered on top of the built-ins, replacing same-named categories.
	Strategies map[string]strategy.Config `yaml:"strategies"`
}

// LoadConfig loads the configuration from the specified path
func LoadConfig(path string, logger *zap.SugaredLogger) (*Config, error) {
	// Setting default values
	config := Config{
		ValkeyEndpoint:   "",
		Port:             8080,
		WarmingInterval:  "5m",
		OptimizeInterval: "1h",
		OperationTimeout: "2s",
	}

	// Checks if config is specified via environment variable.
	configSource := env.OptionalStringVariable("CONFIG_SOURCE", path)
	configToken := env.OptionalStringVariable("CONFIG_TOKEN", "")
	configData, err := func(configSource string, configToken string) ([]byte, error) {
		// Handle URL or local path
		if strings.HasPrefix(configSource, "http://") || strings.HasPrefix(configSource, "https://") {
			logger.Infow("Fetching remote config", "url", configSource)
			return fetchRemoteConfig(configSource, configToken)
		}
		logger.Infow("Loading local config", "path", configSource)
		return os.ReadFile(configSource)
	}(configSource, configToken)

	if err != nil {
		return nil, fmt.Errorf("failed to get config data: %v", err)
	}

	// Overrides config with the YAML data.
	if err := yaml.Unmarshal(configData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	// Overrides config with environment variables.
	// Therefore, the values from the environment variables precede the values from the YAML file.
	config.ValkeyEndpoint = env.OptionalStringVariable("VALKEY_ENDPOINT", config.ValkeyEndpoint)
	config.WarmingInterval = env.OptionalStringVariable("WARMING_INTERVAL", config.WarmingInterval)
	config.OptimizeInterval = env.OptionalStringVariable("OPTIMIZE_INTERVAL", config.OptimizeInterval)
	config.OperationTimeout = env.OptionalStringVariable("OPERATION_TIMEOUT", config.OperationTimeout)
	config.TrackerCapacity = env.OptionalIntVariable("TRACKER_CAPACITY", config.TrackerCapacity)
	config.Port = env.OptionalIntVariable("PORT", config.Port)

	return &config, nil
}

// Intervals parses the duration-valued fields, rejecting malformed values
// before anything is wired up.
func (c *Config) Intervals() (warming, optimize, timeout time.Duration, err error) {
	warming, err = time.ParseDuration(c.WarmingInterval)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid warming interval: %v", err)
	}
	optimize, err = time.ParseDuration(c.OptimizeInterval)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid optimize interval: %v", err)
	}
	timeout, err = time.ParseDuration(c.OperationTimeout)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid operation timeout: %v", err)
	}
	return warming, optimize, timeout, nil
}

func fetchRemoteConfig(url string, token string) ([]byte, error) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch config: HTTP %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
