package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var validOutputs = []string{"auto", "text", "markdown", "json"}

var validShells = []string{"zsh", "bash"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(validOutputs, strings.ToLower(c.OutputFormat)) {
		errs = append(errs, fmt.Errorf("output must be one of %s, got %q",
			strings.Join(validOutputs, "|"), c.OutputFormat))
	}
	if !c.NoJournal && strings.TrimSpace(c.JournalPath) == "" {
		errs = append(errs, errors.New("journal_path is required unless no_journal is set"))
	}
	if strings.TrimSpace(c.Pip.Python) == "" {
		errs = append(errs, errors.New("pip.python is required"))
	}
	if !slices.Contains(validShells, c.History.Shell) {
		errs = append(errs, fmt.Errorf("history.shell must be zsh or bash, got %q", c.History.Shell))
	}
	for _, s := range c.Aliases.Shells {
		if !slices.Contains(validShells, s) {
			errs = append(errs, fmt.Errorf("aliases.shells: unsupported shell %q", s))
		}
	}
	if c.History.Tail < 1 {
		errs = append(errs, fmt.Errorf("history.tail must be positive, got %d", c.History.Tail))
	}
	if c.Disk.Limit < 1 {
		errs = append(errs, fmt.Errorf("du.limit must be positive, got %d", c.Disk.Limit))
	}
	if c.Disk.Workers < 1 || c.Disk.Workers > 64 {
		errs = append(errs, fmt.Errorf("du.workers must be between 1 and 64, got %d", c.Disk.Workers))
	}
	if c.Path.SuggestionLimit < 0 {
		errs = append(errs, fmt.Errorf("path.suggestion_limit must not be negative, got %d", c.Path.SuggestionLimit))
	}
	if c.Aliases.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("aliases.max_depth must not be negative, got %d", c.Aliases.MaxDepth))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
