package commands

import (
	"fmt"

	"github.com/dangerousdave/dave/internal/cli/config"
	"github.com/dangerousdave/dave/internal/cli/output"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCommand creates the config command.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration dave would use, after merging defaults, the
config file (--config, ./dave.yaml, ./dave.yml, ~/.dave/dave.yaml), DAVE_*
environment variables and flags. The output is valid dave.yaml.

--apply and --yes are never read from files or the environment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextReadOnly(cmd)
			r := cmdCtx.Renderer

			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(cmdCtx.Cfg)
			}

			data, err := yaml.Marshal(cmdCtx.Cfg)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			if used := config.GetConfigFileUsed(); used != "" {
				r.Println("# config file: " + used)
			} else {
				r.Println("# no config file found, defaults in effect")
			}
			r.Printf("%s", data)
			return nil
		},
	}
}
