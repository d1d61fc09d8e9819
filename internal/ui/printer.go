package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muurk/wifiprov/internal/discovery"
)

// Printer writes UI components to a writer. Commands use it for all styled
// output so tests can capture it.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// SetWidth overrides the detected width.
func (p *Printer) SetWidth(width int) *Printer {
	p.width = width
	return p
}

// Print writes content to the output
func (p *Printer) Print(content string) {
	_, _ = fmt.Fprint(p.out, content)
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(h *Header) {
	p.Println(h.SetWidth(p.width).Render())
}

// PrintResult prints a result box
func (p *Printer) PrintResult(r *Result) {
	p.Println(r.SetWidth(p.width).Render())
}

// PrintError prints a failure box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	p.PrintResult(NewFailureResult(title, err, troubleshooting))
}

// PrintSuccess prints a one-line confirmation.
func (p *Printer) PrintSuccess(msg string) {
	p.Println(SuccessTitleStyle.Render(SuccessMarker+" ") + msg)
}

// PrintAgents prints a table of discovered agents.
func (p *Printer) PrintAgents(agents []*discovery.Agent) {
	if len(agents) == 0 {
		p.Println(fg(MutedColor).Render("  No agents found."))
		return
	}

	rows := [][]string{{"INSTANCE", "ADDRESS", "DRIVER", "VERSION"}}
	for _, a := range agents {
		rows = append(rows, []string{a.Instance, a.Address(), orDash(a.Driver()), orDash(a.Version())})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	for i, row := range rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = cell + strings.Repeat(" ", widths[j]-lipgloss.Width(cell))
		}
		line := "  " + strings.Join(cells, "  ")
		if i == 0 {
			line = HeaderParamKeyStyle.UnsetPaddingLeft().Bold(true).Render(line)
		}
		p.Println(strings.TrimRight(line, " "))
	}
}
