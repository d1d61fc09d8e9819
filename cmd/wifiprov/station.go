package main

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/muurk/wifiprov/internal/ui"
)

var assumeYes bool

var staCmd = &cobra.Command{
	Use:   "sta",
	Short: "Manage the agent's station",
	Long: `Station actions outside a test.

copy and clear change the stored configuration and ask for confirmation
unless --yes is given.`,
}

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Enable or disable the candidate test at agent startup",
}

func init() {
	staCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")

	staCmd.AddCommand(
		actionCmd("connect", "Connect the station with its current configuration", "sta/connect", nil),
		actionCmd("disconnect", "Disconnect the station", "sta/disconnect", nil),
		actionCmd("copy", "Copy the candidate into the active configuration", "sta/copy", ui.ConfirmCopy),
		actionCmd("clear", "Erase the stored candidate", "sta/clear", ui.ConfirmClear),
	)
	bootCmd.AddCommand(
		actionCmd("enable", "Run the candidate test at the next agent start", "boot/enable", nil),
		actionCmd("disable", "Skip the candidate test at agent start", "boot/disable", nil),
	)

	rootCmd.AddCommand(staCmd)
	rootCmd.AddCommand(bootCmd)
}

// actionCmd builds a command that posts one agent action. confirm, when
// set, guards it.
func actionCmd(use, short, action string, confirm func(io.Reader, io.Writer) bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, base, err := resolveAgent(cmd.Context())
			if err != nil {
				return err
			}

			p := ui.NewPrinter(cmd.OutOrStdout())
			if !jsonOutput {
				p.PrintHeader(ui.NewHeader("Station action", cmd.CommandPath(),
					ui.Detail{Key: "Agent", Value: base},
					ui.Detail{Key: "Action", Value: action}))
			}

			if confirm != nil && !assumeYes {
				if !confirm(cmd.InOrStdin(), cmd.OutOrStdout()) {
					return errors.New("cancelled")
				}
			}

			if err := client.Action(cmd.Context(), action); err != nil {
				return agentError(cmd, "Action failed", err)
			}
			if jsonOutput {
				return printJSON(cmd, map[string]any{"ok": true, "action": action})
			}
			p.PrintSuccess(action + " done")
			return nil
		},
	}
}
