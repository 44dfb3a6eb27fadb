package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "lethe",
	Short: "Tiered, decay-based memory for conversational companions",
	Long:  "Lethe maintains a bounded, queryable set of memories per owner: pinned facts never fade, repeated important ones consolidate into long-term memory, and transient chatter is forgotten on its own.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(rememberCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(forgetCmd)
	rootCmd.AddCommand(maintainCmd)
}
