package config

import (
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"

	"cli2api/internal/core"
	"cli2api/internal/util"
)

// ServerConfig server configuration
type ServerConfig struct {
	Port                string
	GinMode             string
	ClientAPIKeys       []string
	ProvidersConfigPath string
	Providers           []*core.ProviderConfig
	Storage             core.StorageInterface
	Logger              core.Logger
}

// LoadServerConfigFromEnv loads server config from environment variables
func LoadServerConfigFromEnv(logger core.Logger) (ServerConfig, error) {
	clientAPIKeys := util.ParseEnvList(os.Getenv("CLIENT_API_KEYS"))
	if len(clientAPIKeys) == 0 {
		logger.Warn("CLIENT_API_KEYS environment variable is empty")
	} else {
		logger.Info("Loaded %d client API keys", len(clientAPIKeys))
	}

	config := ServerConfig{
		Port:                util.GetEnvWithDefault("PORT", core.DefaultPort),
		GinMode:             util.GetEnvWithDefault("GIN_MODE", core.DefaultGinMode),
		ClientAPIKeys:       clientAPIKeys,
		ProvidersConfigPath: util.GetEnvWithDefault("PROVIDERS_CONFIG", core.DefaultProvidersConfigPath),
	}

	return config, nil
}

// LoadProviders loads provider configurations from a JSON file. A missing
// file is not an error: the caller falls back to built-in defaults. Loaded
// entries are validated and normalized.
func LoadProviders(path string, logger core.Logger) ([]*core.ProviderConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path from config, not user input
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("Provider config %s not found, using built-in defaults", path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var configs []*core.ProviderConfig
	if err := sonic.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for i, pc := range configs {
		if err := normalizeProvider(pc); err != nil {
			return nil, fmt.Errorf("provider #%d in %s: %w", i+1, path, err)
		}
	}

	logger.Info("Loaded %d providers from %s", len(configs), path)
	return configs, nil
}

func normalizeProvider(pc *core.ProviderConfig) error {
	if pc.Command == "" {
		return fmt.Errorf("command must not be empty")
	}
	if pc.Name == "" {
		pc.Name = pc.Command
	}
	if pc.TimeoutSecs < 0 {
		return fmt.Errorf("timeout_seconds must not be negative")
	}
	if pc.TimeoutSecs > 0 {
		pc.Timeout = time.Duration(pc.TimeoutSecs) * time.Second
	} else {
		pc.Timeout = core.DefaultInvocationTimeout
	}
	return nil
}
