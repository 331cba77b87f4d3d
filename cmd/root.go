// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"github.com/spf13/cobra"

	"firestige.xyz/tinu/internal/config"
	"firestige.xyz/tinu/internal/core"
	"firestige.xyz/tinu/internal/log"
)

var (
	// Global flags
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tinu",
	Short: "tinu - stateless TCP-in-UDP transcoder",
	Long: `tinu rewrites TCP segments of one designated flow into UDP datagrams
(TINU framing) on the way out and restores them on the way in, so the flow
can cross middleboxes that only let UDP through.

Every frame is rewritten in place and always forwarded. Frames that cannot
be translated are passed through untouched.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and TINU_* environment when empty)")

	rootCmd.AddCommand(bridgeCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(validateCmd)
}

// setup loads the configuration and installs the global logger.
func setup() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if err := log.Init(&cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}

// roleValue and directionValue let cobra parse enum flags through the
// types' own text decoding.
type roleValue struct{ r *core.Role }

func (v roleValue) String() string {
	if v.r == nil {
		return ""
	}
	return v.r.String()
}
func (v roleValue) Set(s string) error { return v.r.UnmarshalText([]byte(s)) }
func (v roleValue) Type() string       { return "role" }

type directionValue struct{ d *core.Direction }

func (v directionValue) String() string {
	if v.d == nil {
		return ""
	}
	return v.d.String()
}
func (v directionValue) Set(s string) error { return v.d.UnmarshalText([]byte(s)) }
func (v directionValue) Type() string       { return "direction" }
