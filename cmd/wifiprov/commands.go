package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/wifiprov/internal/api"
	"github.com/muurk/wifiprov/internal/provision"
	"github.com/muurk/wifiprov/internal/ui"
)

// Test command flags
var (
	testSSID    string
	testPass    string
	noWait      bool
	waitTimeout time.Duration
	untilResult bool
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resultCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(watchCmd)

	testCmd.Flags().StringVar(&testSSID, "ssid", "", "Candidate SSID (default: the agent's stored candidate)")
	testCmd.Flags().StringVar(&testPass, "pass", "", "Candidate passphrase (prompted when --ssid is given without it)")
	testCmd.Flags().BoolVar(&noWait, "no-wait", false, "Return once the test has started")
	testCmd.Flags().DurationVar(&waitTimeout, "wait-timeout", api.DefaultWaitTimeout, "How long to wait for the result")

	watchCmd.Flags().BoolVar(&untilResult, "until-result", false, "Exit after the next completed test")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the agent's controller and station state",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, base, err := resolveAgent(cmd.Context())
		if err != nil {
			return err
		}
		st, err := client.Status(cmd.Context())
		if err != nil {
			return agentError(cmd, "Status unavailable", err)
		}
		if jsonOutput {
			return printJSON(cmd, st)
		}
		p := ui.NewPrinter(cmd.OutOrStdout())
		p.PrintHeader(ui.NewHeader("Agent status", "wifiprov status", ui.Detail{Key: "Agent", Value: base}))
		p.PrintResult(ui.StatusResult(st))
		return nil
	},
}

var resultCmd = &cobra.Command{
	Use:   "result",
	Short: "Show the last test result",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, base, err := resolveAgent(cmd.Context())
		if err != nil {
			return err
		}
		r, err := client.Result(cmd.Context())
		if err != nil {
			return agentError(cmd, "Result unavailable", err)
		}
		if jsonOutput {
			return printJSON(cmd, r)
		}
		p := ui.NewPrinter(cmd.OutOrStdout())
		p.PrintHeader(ui.NewHeader("Last test result", "wifiprov result", ui.Detail{Key: "Agent", Value: base}))
		if r.SSID == "" && r.Reason == "" && !r.Success {
			p.PrintResult(ui.NewWarningResult("No test has completed yet"))
			return nil
		}
		p.PrintResult(ui.TestResult(r))
		return nil
	},
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test the candidate network",
	Long: `Start a candidate network test on the agent.

Without --ssid the agent tests its stored candidate. With --ssid the
credentials replace the stored candidate first. By default the command waits
for the result and exits non-zero when the test fails.`,
	Example: `  # Test the stored candidate
  wifiprov test

  # Test new credentials (passphrase prompted)
  wifiprov test --ssid Office-5G

  # Start the test and follow it in the watch view
  wifiprov test --no-wait && wifiprov watch --until-result`,
	RunE: runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	if testSSID != "" && !cmd.Flags().Changed("pass") && term.IsTerminal(int(os.Stdin.Fd())) {
		pass, err := promptPassphrase(cmd.ErrOrStderr(), testSSID)
		if err != nil {
			return err
		}
		testPass = pass
	}

	client, base, err := resolveAgent(cmd.Context())
	if err != nil {
		return err
	}
	// The request blocks for the whole test; ctx bounds it instead.
	client.HTTPClient.Timeout = 0

	p := ui.NewPrinter(cmd.OutOrStdout())
	if !jsonOutput {
		params := []ui.Detail{{Key: "Agent", Value: base}}
		if testSSID != "" {
			params = append(params, ui.Detail{Key: "SSID", Value: testSSID})
		}
		p.PrintHeader(ui.NewHeader("Provision test", "wifiprov test", params...))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), waitTimeout+30*time.Second)
	defer cancel()

	resp, err := client.Test(ctx, api.TestRequest{SSID: testSSID, Pass: testPass}, !noWait)
	if err != nil {
		if api.IsConflict(err) && !jsonOutput {
			p.PrintError("A test is already running", err, []string{
				"Wait for it with 'wifiprov watch --until-result'",
				"Check progress with 'wifiprov status'",
			})
			return errors.New("test not started")
		}
		return agentError(cmd, "Test not started", err)
	}

	if jsonOutput {
		return printJSON(cmd, resp)
	}
	if resp.Result == nil {
		p.PrintResult(ui.NewWarningResult("Test started").
			AddDetail("Follow", "wifiprov watch --until-result"))
		return nil
	}

	p.PrintResult(ui.TestResult(*resp.Result))
	if !resp.Result.Success {
		return fmt.Errorf("test failed: %s", resp.Result.Reason)
	}
	return nil
}

func promptPassphrase(out io.Writer, ssid string) (string, error) {
	fmt.Fprintf(out, "Passphrase for %s (empty for an open network): ", ssid)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow station events and test results",
	Long: `Follow the agent's station events and test results as they happen.

On a terminal this opens a live view; press q to quit. Otherwise each message
is printed as a line, or as JSON with --json.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	client, base, err := resolveAgent(cmd.Context())
	if err != nil {
		return err
	}
	stream, err := client.Watch(cmd.Context())
	if err != nil {
		return agentError(cmd, "Stream unavailable", err)
	}
	defer stream.Close()

	if ui.IsTerminal() && !jsonOutput {
		result, err := ui.RunWatch(stream, base, untilResult)
		if err != nil {
			return err
		}
		if untilResult && result != nil && !result.Success {
			return fmt.Errorf("test failed: %s", result.Reason)
		}
		return nil
	}

	for {
		msg, err := stream.Next()
		if err != nil {
			return fmt.Errorf("stream closed: %w", err)
		}
		if jsonOutput {
			if err := printJSONLine(cmd, msg); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), formatMessage(msg))
		}
		if untilResult && msg.Type == api.MessageResult && msg.Result != nil {
			if !msg.Result.Success {
				return fmt.Errorf("test failed: %s", msg.Result.Reason)
			}
			return nil
		}
	}
}

// formatMessage renders a stream message as one plain line.
func formatMessage(msg api.Message) string {
	ts := msg.Time.Format("15:04:05")
	switch {
	case msg.Event != nil:
		return fmt.Sprintf("%s event  %s", ts, msg.Event)
	case msg.Result != nil:
		return fmt.Sprintf("%s result %s", ts, formatResult(*msg.Result))
	case msg.Status != nil:
		st := msg.Status
		state := "idle"
		if st.Running {
			state = fmt.Sprintf("testing %s attempt %d/%d", st.Candidate, st.Attempts, st.MaxAttempts)
		}
		return fmt.Sprintf("%s %-6s %s, station %s %s", ts, msg.Type, state, st.StationState, st.StationSSID)
	default:
		return fmt.Sprintf("%s %s", ts, msg.Type)
	}
}

func formatResult(r provision.Result) string {
	outcome := "failure"
	if r.Success {
		outcome = "success"
	}
	return fmt.Sprintf("%s ssid=%s reason=%s attempts=%d", outcome, r.SSID, r.Reason, r.Attempts)
}

// agentError prints a failure box for an API error and returns it.
func agentError(cmd *cobra.Command, title string, err error) error {
	if jsonOutput {
		return err
	}
	var tips []string
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		tips = agentTroubleshooting
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintError(title, err, tips)
	return errors.New(strings.ToLower(title))
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func printJSONLine(cmd *cobra.Command, v any) error {
	return json.NewEncoder(cmd.OutOrStdout()).Encode(v)
}
