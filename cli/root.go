// Package cli implements the hound command line: the HTTP server, a one-shot
// inference run and a terminal chat with the agent.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xiaoyuanzhu-com/hound/config"
	"github.com/xiaoyuanzhu-com/hound/db"
	"github.com/xiaoyuanzhu-com/hound/llm"
	"github.com/xiaoyuanzhu-com/hound/log"
	"github.com/xiaoyuanzhu-com/hound/server"
	"github.com/xiaoyuanzhu-com/hound/vendors"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// newModel returns the configured model provider. Tests replace it.
var newModel = func() (llm.Client, error) {
	client := vendors.GetOpenAIClient()
	if client == nil {
		return nil, fmt.Errorf("model provider not configured: %w", llm.ErrNotConfigured)
	}
	return client, nil
}

// openDB opens the configured proposal store. Tests replace it.
var openDB = func() (*db.DB, error) {
	return db.Open(server.NewConfig(config.Get()).ToDBConfig())
}

var rootCmd = &cobra.Command{
	Use:   "hound",
	Short: "Hound - task proposals from your messages",
	Long: `Hound watches chat and email messages for actionable requests and turns
them into task proposals you can approve. It also offers a tool-using chat
assistant over the same data.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if level := config.Get().LogLevel; level != "" {
			log.SetLevel(level)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hound %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
