package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for ledgergate.yaml/.yml
// in standard locations. The search requires an explicit YAML extension to
// avoid matching the binary itself, which Viper's built-in SetConfigName
// would match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location. Set name/type
		// without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by callers).
		viper.SetConfigName("ledgergate")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: LEDGERGATE_SERVER_HTTP_ADDR
	viper.SetEnvPrefix("LEDGERGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a ledgergate config file
// with an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".ledgergate"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "ledgergate"))
		}
	} else {
		paths = append(paths, "/etc/ledgergate")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for ledgergate.yaml
// or .yml. Returns the first match, or empty string if none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "ledgergate"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds config keys for environment variable support.
// Example: LEDGERGATE_RATE_LIMIT_CAPACITY overrides rate_limit.capacity.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.http_addr")
	_ = viper.BindEnv("server.log_level")
	_ = viper.BindEnv("server.session_cookie")

	_ = viper.BindEnv("routes.sign_in_url")
	// Note: routes prefix lists are arrays; use the config file for those.

	_ = viper.BindEnv("shield.mode")
	_ = viper.BindEnv("bot_filter.mode")

	_ = viper.BindEnv("rate_limit.mode")
	_ = viper.BindEnv("rate_limit.capacity")
	_ = viper.BindEnv("rate_limit.refill_rate")
	_ = viper.BindEnv("rate_limit.interval")
	_ = viper.BindEnv("rate_limit.max_keys")
	_ = viper.BindEnv("rate_limit.sweep_interval")
	_ = viper.BindEnv("rate_limit.max_idle")

	_ = viper.BindEnv("auth.fail_mode")
	_ = viper.BindEnv("auth.resolver")
	_ = viper.BindEnv("auth.verify_url")
	_ = viper.BindEnv("auth.verify_timeout")
	// Note: auth.sessions is an array; use the config file for sessions.

	_ = viper.BindEnv("audit.output")
	_ = viper.BindEnv("audit.channel_size")
	_ = viper.BindEnv("audit.batch_size")
	_ = viper.BindEnv("audit.flush_interval")

	_ = viper.BindEnv("scoring.base_url")
	_ = viper.BindEnv("scoring.timeout")

	_ = viper.BindEnv("upstream.url")

	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and returns the Config.
// Caller should apply any CLI flag overrides (e.g. --dev), then call
// cfg.SetDevDefaults() and cfg.Validate() to complete initialization.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}

	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults, but
// does NOT apply dev defaults or validate. Use this when CLI flags may
// override DevMode before validation.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found: continue with env vars only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the loaded configuration file, or an
// empty string if none was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
