package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/tinu/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file, apply defaults and environment overrides,
validate it and print the effective configuration as YAML.

Examples:
  tinu validate -c /etc/tinu/tinu.yml
  TINU_ROLE=client tinu validate -c tinu.yml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd)
	},
}

func runValidate(cmd *cobra.Command) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "INVALID: %v\n", err)
		return err
	}
	out, err := cfg.Dump()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "VALID: role %s, port %d\n---\n%s", cfg.Role, cfg.Port, out)
	return nil
}
