package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirm shows a warning box and asks for a yes/no answer on in. Anything
// other than "y" or "yes" declines, including EOF.
func Confirm(in io.Reader, out io.Writer, title string, warnings []string) bool {
	width := GetTerminalWidth()

	lines := []string{"", WarningTitleStyle.Render(fmt.Sprintf("   ⚠  WARNING  ─  %s", title)), ""}
	bullet := fg(TextColor)
	for _, w := range warnings {
		lines = append(lines, bullet.Render("   • "+w))
	}
	lines = append(lines, "")

	_, _ = fmt.Fprintln(out, resultBoxStyle(width, WarningColor).Render(strings.Join(lines, "\n")))
	_, _ = fmt.Fprint(out, WarningTitleStyle.Render("Proceed? [y/N]: "))

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		_, _ = fmt.Fprintln(out)
		return false
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	_, _ = fmt.Fprintln(out, fg(MutedColor).Render("  Cancelled."))
	return false
}

// ConfirmCopy asks before overwriting the agent's active network.
func ConfirmCopy(in io.Reader, out io.Writer) bool {
	return Confirm(in, out, "REPLACE ACTIVE NETWORK", []string{
		"The candidate will overwrite the agent's active station configuration",
		"If the candidate is wrong the agent may not rejoin any network",
		"Run 'wifiprov test' first to verify the candidate",
	})
}

// ConfirmClear asks before erasing the stored candidate.
func ConfirmClear(in io.Reader, out io.Writer) bool {
	return Confirm(in, out, "CLEAR CANDIDATE", []string{
		"The candidate SSID and credentials will be erased from the agent",
	})
}
