// Command semlog replays scripted manipulation episodes through the
// semantic event monitors, stores the resulting events and serves them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/semlog/internal/config"
	"github.com/banshee-data/semlog/internal/monitoring"
	"github.com/banshee-data/semlog/internal/version"
)

var (
	verbose    bool
	tuningPath string
)

var rootCmd = &cobra.Command{
	Use:   "semlog",
	Short: "Semantic event logger for manipulation episodes",
	Long: `semlog turns low-level contact, movement and input events of a simulated
episode into time-bounded semantic events (contact, grasp, reach, pick-up,
slicing...) and records them to SQLite and OWL experiment documents.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		monitoring.SetDebug(verbose)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log monitor state transitions")
	rootCmd.PersistentFlags().StringVar(&tuningPath, "tuning", "", "Tuning file (.json, .yaml); built-in defaults when empty")

	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(episodesCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadTuning reads --tuning, or returns the defaults.
func loadTuning() (*config.TuningConfig, error) {
	if tuningPath == "" {
		return config.EmptyTuningConfig(), nil
	}
	cfg, err := config.LoadTuningConfig(tuningPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tuning: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "semlog:", err)
		os.Exit(1)
	}
}
