package models

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/dltctl/pkg/tui"
	"github.com/go-go-golems/dltctl/pkg/tui/styles"
	"github.com/go-go-golems/dltctl/pkg/tui/widgets"
)

type tickMsg time.Time

// RootModel lays out the header, the flow table, the event log and the
// footer for one watched pipeline.
type RootModel struct {
	width  int
	height int

	pipelineID string
	started    time.Time
	now        time.Time

	// ExitOnFinish quits as soon as the monitor reports an outcome.
	ExitOnFinish bool

	session tui.SessionStatus
	state   string
	outcome *tui.OutcomeView

	flows  FlowsModel
	events EventLogModel
}

func NewRootModel(pipelineID string) RootModel {
	now := time.Now()
	return RootModel{
		pipelineID: pipelineID,
		started:    now,
		now:        now,
		flows:      NewFlowsModel(),
		events:     NewEventLogModel(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m RootModel) Init() tea.Cmd { return tick() }

func (m RootModel) Outcome() *tui.OutcomeView { return m.outcome }

func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = v.Width, v.Height
		return m.layout(), nil
	case tickMsg:
		if m.outcome != nil {
			return m, nil
		}
		m.now = time.Time(v)
		return m, tick()
	case tea.KeyMsg:
		if !m.events.Searching() {
			switch v.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			}
		}
		var cmd tea.Cmd
		m.events, cmd = m.events.Update(v)
		return m, cmd
	case tui.SessionStatusMsg:
		m.session = v.Status
		if v.Status.State != "" {
			m.state = v.Status.State
		}
		return m, nil
	case tui.FlowStatusMsg:
		m.flows = m.flows.Apply(v.Flow)
		return m.layout(), nil
	case tui.EventLogAppendMsg:
		m.events = m.events.Append(v.Entry)
		return m, nil
	case tui.OutcomeMsg:
		o := v.Outcome
		m.outcome = &o
		if m.ExitOnFinish {
			return m, tea.Quit
		}
		return m, nil
	}
	return m, nil
}

func (m RootModel) layout() RootModel {
	m.flows = m.flows.WithWidth(m.width)
	// header 2, footer 2
	eventsHeight := m.height - 4 - m.flows.Height()
	m.events = m.events.WithSize(m.width, maxInt(6, eventsHeight))
	return m
}

func (m RootModel) headerStatus() (string, string, bool) {
	if m.outcome != nil {
		return styles.OutcomeIcon(m.outcome.Kind), m.outcome.Text, m.outcome.Kind != "failure"
	}
	state := m.state
	if state == "" {
		state = "WATCHING"
	}
	ok := state != "FAILED" && state != "CANCELED"
	return styles.IconRunning, fmt.Sprintf("%s %s", m.pipelineID, state), ok
}

func (m RootModel) View() string {
	icon, text, ok := m.headerStatus()
	header := widgets.NewHeader("dltctl").
		WithStatus(icon, text, ok).
		WithElapsed(m.now.Sub(m.started)).
		WithWidth(m.width).
		Render()

	note := widgets.NewIdleMeter(m.session.Idle, m.session.MaxIdle).Render()
	if m.session.Poll > 0 {
		note = fmt.Sprintf("poll %d  %s", m.session.Poll, note)
	}
	footer := widgets.NewFooter([]widgets.Keybind{
		{Key: "q", Label: "quit"},
		{Key: "/", Label: "filter"},
		{Key: "c", Label: "clear"},
	}).WithNote(note).WithWidth(m.width).Render()

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.flows.View(),
		m.events.View(),
		footer,
	)
}
