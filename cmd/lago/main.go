// Command lago runs the messaging bot: the webhook server, the Telegram
// long-poll loop, or a single planning run in the terminal.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "lago",
		Short:         "Chat bot for Telegram, WhatsApp and Messenger with a task planner",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().String("config", "", "Config file path (default lago.toml, or $LAGO_CONFIG).")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newPollCmd())
	cmd.AddCommand(newTaskCmd())
	return cmd
}

func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("LAGO_CONFIG")
	}
	return path
}
