// Wifiprov is the command line client for wifiprov agents.
//
// It finds agents over mDNS, starts candidate network tests, follows their
// progress and manages the candidate and active station configuration.
//
// Usage:
//
//	wifiprov [command] [flags]
//
// See 'wifiprov --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wifiprov",
	Short: "WiFi provisioning client",
	Long: `A command line client for wifiprov agents.

Test a candidate WiFi network on a device without losing its working
connection, then promote the candidate to the active network.

The agent is found over mDNS unless --agent gives its address.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Silent unless WIFIPROV_LOG_LEVEL is set
		return logging.InitializeFromEnv()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wifiprov %s\n", version.Full())
	},
}
