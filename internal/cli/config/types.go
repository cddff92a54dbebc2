// Package config provides configuration management for the dave CLI.
package config

// Config holds all CLI configuration options.
type Config struct {
	Verbose      bool   `koanf:"verbose" yaml:"verbose" json:"verbose"`
	OutputFormat string `koanf:"output" yaml:"output" json:"output"`
	JournalPath  string `koanf:"journal_path" yaml:"journal_path" json:"journal_path"`
	NoJournal    bool   `koanf:"no_journal" yaml:"no_journal" json:"no_journal"`
	LogFile      string `koanf:"log_file" yaml:"log_file,omitempty" json:"log_file,omitempty"`
	LogDir       string `koanf:"log_dir" yaml:"log_dir" json:"log_dir"`

	Brew    BrewConfig      `koanf:"brew" yaml:"brew" json:"brew"`
	Pip     PipConfig       `koanf:"pip" yaml:"pip" json:"pip"`
	History HistoryConfig   `koanf:"history" yaml:"history" json:"history"`
	Disk    DiskUsageConfig `koanf:"du" yaml:"du" json:"du"`
	Path    PathConfig      `koanf:"path" yaml:"path" json:"path"`
	Aliases AliasesConfig   `koanf:"aliases" yaml:"aliases" json:"aliases"`

	// Apply and AssumeYes only ever come from command-line flags.
	Apply     bool `koanf:"-" yaml:"-" json:"-"`
	AssumeYes bool `koanf:"-" yaml:"-" json:"-"`

	// ProjectRoot is the directory holding the config file, or the
	// working directory when none was found.
	ProjectRoot string `koanf:"-" yaml:"-" json:"-"`
}

// BrewConfig configures `dave brew`.
type BrewConfig struct {
	Greedy bool `koanf:"greedy" yaml:"greedy" json:"greedy"`
}

// PipConfig configures the pip helpers.
type PipConfig struct {
	Python  string   `koanf:"python" yaml:"python" json:"python"`
	Exclude []string `koanf:"exclude" yaml:"exclude" json:"exclude"`
}

// HistoryConfig configures `dave history`.
type HistoryConfig struct {
	Shell string `koanf:"shell" yaml:"shell" json:"shell"`
	Tail  int    `koanf:"tail" yaml:"tail" json:"tail"`
}

// DiskUsageConfig configures `dave du`.
type DiskUsageConfig struct {
	Limit   int `koanf:"limit" yaml:"limit" json:"limit"`
	Workers int `koanf:"workers" yaml:"workers" json:"workers"`
}

// PathConfig configures `dave path`.
type PathConfig struct {
	SuggestionLimit int `koanf:"suggestion_limit" yaml:"suggestion_limit" json:"suggestion_limit"`
}

// AliasesConfig configures `dave aliases`.
type AliasesConfig struct {
	Shells   []string `koanf:"shells" yaml:"shells" json:"shells"`
	MaxDepth int      `koanf:"max_depth" yaml:"max_depth" json:"max_depth"`
}

// Default configuration values.
const (
	DefaultOutput          = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultJournalPath     = "~/.dave/journal.db"
	DefaultLogDir          = "~/.dave/logs"
	DefaultPython          = "python3"
	DefaultHistoryShell    = "zsh"
	DefaultHistoryTail     = 20
	DefaultDiskLimit       = 20
	DefaultDiskWorkers     = 8
	DefaultSuggestionLimit = 5
	DefaultAliasDepth      = 3
)

// ConfigFileNames are searched in order in the working directory.
var ConfigFileNames = []string{"dave.yaml", "dave.yml"}

// defaults returns the flattened default values fed to koanf.
func defaults() map[string]interface{} {
	return map[string]interface{}{
		"verbose":               false,
		"output":                DefaultOutput,
		"journal_path":          DefaultJournalPath,
		"no_journal":            false,
		"log_file":              "",
		"log_dir":               DefaultLogDir,
		"brew.greedy":           true,
		"pip.python":            DefaultPython,
		"pip.exclude":           []string{},
		"history.shell":         DefaultHistoryShell,
		"history.tail":          DefaultHistoryTail,
		"du.limit":              DefaultDiskLimit,
		"du.workers":            DefaultDiskWorkers,
		"path.suggestion_limit": DefaultSuggestionLimit,
		"aliases.shells":        []string{"zsh", "bash"},
		"aliases.max_depth":     DefaultAliasDepth,
	}
}
