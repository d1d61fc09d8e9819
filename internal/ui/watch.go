package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muurk/wifiprov/internal/api"
	"github.com/muurk/wifiprov/internal/provision"
	"github.com/muurk/wifiprov/internal/wifi"
)

// maxEventLines is how much of the event log the watch view keeps.
const maxEventLines = 12

// Source yields stream messages; *api.Stream satisfies it.
type Source interface {
	Next() (api.Message, error)
}

type streamMsg api.Message

type streamErrMsg struct{ err error }

// WatchModel is the Bubble Tea model behind 'wifiprov watch'. It follows
// the agent's event stream and shows the current test, the station events
// and the last result.
type WatchModel struct {
	src         Source
	agent       string
	untilResult bool

	spinner spinner.Model
	bar     progress.Model
	width   int

	status   provision.Status
	events   []string
	result   *provision.Result
	err      error
	quitting bool
}

// NewWatchModel creates the model. With untilResult the program exits after
// the first completed test.
func NewWatchModel(src Source, agent string, untilResult bool) WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = fg(WarningColor)

	return WatchModel{
		src:         src,
		agent:       agent,
		untilResult: untilResult,
		spinner:     s,
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithWidth(30), progress.WithoutPercentage()),
		width:       GetTerminalWidth(),
	}
}

func (m WatchModel) next() tea.Cmd {
	src := m.src
	return func() tea.Msg {
		msg, err := src.Next()
		if err != nil {
			return streamErrMsg{err: err}
		}
		return streamMsg(msg)
	}
}

// Init implements tea.Model
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.next())
}

// Update implements tea.Model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case streamErrMsg:
		m.err = msg.err
		m.quitting = true
		return m, tea.Quit

	case streamMsg:
		m = m.apply(api.Message(msg))
		if m.untilResult && m.result != nil {
			m.quitting = true
			return m, tea.Quit
		}
		return m, m.next()
	}
	return m, nil
}

// apply folds one stream message into the view state.
func (m WatchModel) apply(msg api.Message) WatchModel {
	switch msg.Type {
	case api.MessageHello, api.MessageStatus:
		if msg.Status != nil {
			m.status = *msg.Status
		}
	case api.MessageEvent:
		if msg.Event == nil {
			break
		}
		ev := *msg.Event
		m.status.StationState = stationState(ev.Type)
		// The agent retries after each disconnect until attempts run out.
		if ev.Type == wifi.EventDisconnected && m.status.Running && m.status.Attempts < m.status.MaxAttempts {
			m.status.Attempts++
		}
		if ev.SSID != "" {
			m.status.StationSSID = ev.SSID
		}
		line := EventTimeStyle.Render(msg.Time.Format("15:04:05")) + "  " + ev.Type.String()
		if ev.SSID != "" {
			line += " " + ev.SSID
		}
		if ev.IP != "" {
			line += " " + ev.IP
		}
		m.events = append(m.events, line)
		if len(m.events) > maxEventLines {
			m.events = m.events[len(m.events)-maxEventLines:]
		}
	case api.MessageResult:
		if msg.Result == nil {
			break
		}
		r := *msg.Result
		m.result = &r
		m.status.Running = false
		m.status.Attempts = 0
	}
	return m
}

func stationState(t wifi.EventType) string {
	switch t {
	case wifi.EventConnecting:
		return wifi.StatusConnecting.String()
	case wifi.EventConnected:
		return wifi.StatusConnected.String()
	case wifi.EventIPAcquired:
		return wifi.StatusIPAcquired.String()
	default:
		return wifi.StatusDisconnected.String()
	}
}

// Result returns the last completed test seen, if any.
func (m WatchModel) Result() *provision.Result {
	return m.result
}

// Err returns the stream error that ended the program, if any.
func (m WatchModel) Err() error {
	return m.err
}

// View implements tea.Model
func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(NewHeader("Watch", "wifiprov watch", Detail{Key: "Agent", Value: m.agent}).SetWidth(m.width).Render())
	b.WriteString("\n\n")

	if m.status.Running {
		fmt.Fprintf(&b, "  %s Testing %s  attempt %d of %d\n",
			m.spinner.View(), orDash(m.status.Candidate), m.status.Attempts, m.status.MaxAttempts)
		if m.status.MaxAttempts > 0 {
			pct := float64(m.status.Attempts) / float64(m.status.MaxAttempts)
			b.WriteString("  " + m.bar.ViewAs(pct) + "\n")
		}
	} else {
		fmt.Fprintf(&b, "  %s Idle\n", fg(MutedColor).Render(IdleMarker))
	}
	fmt.Fprintf(&b, "  Station: %s %s\n\n", m.status.StationState, m.status.StationSSID)

	if len(m.events) > 0 {
		b.WriteString(TroubleshootingTitleStyle.Render("  Events") + "\n")
		for _, line := range m.events {
			b.WriteString(EventStyle.Render(line) + "\n")
		}
		b.WriteString("\n")
	}

	if m.result != nil {
		b.WriteString(TestResult(*m.result).SetWidth(m.width).Render())
		b.WriteString("\n")
	}

	if !m.quitting {
		b.WriteString(HelpStyle.Render("q: quit") + "\n")
	}
	return b.String()
}

// RunWatch runs the watch TUI until the user quits, the stream ends, or,
// with untilResult, a test completes.
func RunWatch(src Source, agent string, untilResult bool) (*provision.Result, error) {
	final, err := tea.NewProgram(NewWatchModel(src, agent, untilResult)).Run()
	if err != nil {
		return nil, err
	}
	m := final.(WatchModel)
	return m.Result(), m.Err()
}
