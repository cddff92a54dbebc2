package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// EnvPrefix is the prefix of environment variables read into the config.
// A double underscore separates nested keys: DAVE_PIP__PYTHON -> pip.python.
const EnvPrefix = "DAVE_"

// listKeys are split on commas when they come from the environment.
var listKeys = map[string]bool{
	"pip.exclude":    true,
	"aliases.shells": true,
}

// flagOnly names global flags that are never merged into koanf. They
// enable destructive mode and must be typed on the command line.
var flagOnly = map[string]bool{
	"apply":  true,
	"yes":    true,
	"config": true,
}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// findConfigFile returns the config file to use.
// Priority: explicit path > ./dave.yaml > ./dave.yml > ~/.dave/dave.yaml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range ConfigFileNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".dave", "dave.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// envKey maps DAVE_PIP__PYTHON to pip.python.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for fresh load
	k = koanf.New(".")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if _, err := os.Stat(configFileUsed); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configFileUsed, err)
		}
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables (DAVE_ prefix)
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(s, v string) (string, interface{}) {
		key := envKey(s)
		if flagOnly[key] {
			return "", nil
		}
		if listKeys[key] {
			return key, splitList(v)
		}
		return key, v
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed || flagOnly[f.Name] {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			// --journal is short for journal_path
			if key == "journal" {
				return "journal_path", posflag.FlagVal(flags, f)
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Destructive switches come from flags only
	if flags != nil {
		cfg.Apply = flagBool(flags, "apply")
		cfg.AssumeYes = flagBool(flags, "yes")
	}

	// 7. Resolve paths
	if configFileUsed != "" {
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			cfg.ProjectRoot = filepath.Dir(abs)
		}
	}
	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot, _ = os.Getwd()
	}
	cfg.OutputFormat = strings.ToLower(strings.TrimSpace(cfg.OutputFormat))
	cfg.JournalPath = ExpandHome(cfg.JournalPath)
	cfg.LogDir = ExpandHome(cfg.LogDir)
	cfg.LogFile = ExpandHome(cfg.LogFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	currentConfig = &cfg
	return &cfg, nil
}

func flagBool(flags *pflag.FlagSet, name string) bool {
	if flags.Lookup(name) == nil {
		return false
	}
	v, err := flags.GetBool(name)
	return err == nil && v
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
func GetCurrentConfig() *Config {
	return currentConfig
}

// Default returns a configuration built from defaults only.
func Default() *Config {
	cfg, err := LoadConfigFrom(defaults())
	if err != nil {
		return &Config{OutputFormat: DefaultOutput, NoJournal: true}
	}
	return cfg
}

// LoadConfigFrom decodes a flat key map on top of the defaults, without
// reading files, environment or flags.
func LoadConfigFrom(values map[string]interface{}) (*Config, error) {
	kk := koanf.New(".")
	if err := kk.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, err
	}
	if err := kk.Load(confmap.Provider(values, "."), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := kk.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.JournalPath = ExpandHome(cfg.JournalPath)
	cfg.LogDir = ExpandHome(cfg.LogDir)
	return &cfg, nil
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}
