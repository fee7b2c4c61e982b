package main

import (
	"fmt"
	"os"

	"github.com/aretw0/tripvoice/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tripvoice",
	Short: "tripvoice plans trips from a spoken or typed conversation",
	Long: `tripvoice gathers trip constraints from a conversation, turns them into a
day-by-day itinerary and answers questions about it. Replies can be spoken.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().Bool("debug", false, "Log lifecycle events at debug level")
	rootCmd.PersistentFlags().String("api-url", "", "Base URL of the planning service (overrides the config)")
}

// loadConfig reads the configuration named by --config and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, bool, error) {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, false, err
	}
	if apiURL, _ := cmd.Flags().GetString("api-url"); apiURL != "" {
		cfg.APIURL = apiURL
		if err := cfg.Validate(); err != nil {
			return nil, false, err
		}
	}
	return cfg, debug, nil
}
