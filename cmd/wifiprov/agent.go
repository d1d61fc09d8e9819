package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wifiprov/internal/api"
	"github.com/muurk/wifiprov/internal/discovery"
	"github.com/muurk/wifiprov/internal/ui"
	"github.com/muurk/wifiprov/internal/version"
)

// Agent selection flags
var (
	agentAddr   string
	instance    string
	scanTimeout time.Duration
	jsonOutput  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&agentAddr, "agent", "", "Agent address, host[:port] or URL (skips discovery)")
	rootCmd.PersistentFlags().StringVar(&instance, "instance", "", "mDNS instance name of the agent")
	rootCmd.PersistentFlags().DurationVar(&scanTimeout, "scan-timeout", discovery.DefaultScanTimeout, "mDNS discovery timeout")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of styled output")

	rootCmd.AddCommand(scanCmd)
}

// scanCmd lists agents on the local network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for agents on the network",
	Long: `Scan for wifiprov agents using mDNS/DNS-SD discovery.

Agents started with --mdns advertise themselves as ` + discovery.ServiceType + `.`,
	Example: `  # Scan for 5 seconds (default)
  wifiprov scan

  # Longer scan for busy networks
  wifiprov scan --scan-timeout 15s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := ui.NewPrinter(cmd.OutOrStdout())
		if !jsonOutput {
			p.PrintHeader(ui.NewHeader("Agent scan", "wifiprov scan",
				ui.Detail{Key: "Service", Value: discovery.ServiceType},
				ui.Detail{Key: "Timeout", Value: scanTimeout.String()}))
		}

		scanner := discovery.NewScanner()
		scanner.Timeout = scanTimeout
		agents, err := scanner.Scan(cmd.Context())
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd, agents)
		}
		p.PrintAgents(agents)
		return nil
	},
}

// resolveAgent returns a client for the selected agent: --agent, then
// --instance over mDNS, then the only agent a scan finds.
func resolveAgent(ctx context.Context) (*api.Client, string, error) {
	addr, err := agentAddress(ctx)
	if err != nil {
		return nil, "", err
	}
	client := api.NewClient(addr)
	client.UserAgent = version.UserAgent("wifiprov")
	return client, client.BaseURL, nil
}

func agentAddress(ctx context.Context) (string, error) {
	if agentAddr != "" {
		return agentAddr, nil
	}

	scanner := discovery.NewScanner()
	scanner.Timeout = scanTimeout

	if instance != "" {
		agent, err := scanner.Find(ctx, instance)
		if err != nil {
			return "", err
		}
		return agent.BaseURL(), nil
	}

	agents, err := scanner.Scan(ctx)
	if err != nil {
		return "", fmt.Errorf("agent discovery failed: %w", err)
	}
	switch len(agents) {
	case 0:
		return "", fmt.Errorf("no agents found; start one with 'wifiprov-agent run --mdns' or pass --agent")
	case 1:
		return agents[0].BaseURL(), nil
	default:
		names := make([]string, 0, len(agents))
		for _, a := range agents {
			names = append(names, a.Instance)
		}
		return "", fmt.Errorf("found %d agents (%s); choose one with --instance or --agent",
			len(agents), strings.Join(names, ", "))
	}
}

// agentTroubleshooting is shown when the agent cannot be reached.
var agentTroubleshooting = []string{
	"Check that wifiprov-agent is running",
	"Pass the agent address with --agent host:port",
	"Run 'wifiprov scan' to list advertised agents",
}
