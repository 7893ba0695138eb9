// symptomd is the symptom-checker chatbot service. It serves the HTTP
// API and offers a local REPL for talking to the predictor without a
// server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "symptomd",
		Short: "Symptom checker chatbot service",
		Long: `symptomd runs a conversational symptom-checker API.

Clients open a chat session, report symptoms over one or more messages,
and receive ranked disease predictions with care recommendations. All
conversational routes sit behind a rate-limiting and abuse-detection
gate.

Common workflows:
  symptomd serve                  # Start the HTTP API
  symptomd serve -c config.yaml   # Start with a config file
  symptomd chat                   # Talk to the predictor locally`,
		Version: fmt.Sprintf("%s (commit: %s)", version, gitCommit),
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newChatCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
