package models

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/dltctl/pkg/tui"
	"github.com/go-go-golems/dltctl/pkg/tui/styles"
	"github.com/go-go-golems/dltctl/pkg/tui/widgets"
)

// FlowsModel keeps the latest status reported for each flow.
type FlowsModel struct {
	flows map[string]tui.FlowStatus
	width int
}

func NewFlowsModel() FlowsModel {
	return FlowsModel{flows: map[string]tui.FlowStatus{}}
}

func (m FlowsModel) WithWidth(w int) FlowsModel {
	m.width = w
	return m
}

func (m FlowsModel) Apply(fs tui.FlowStatus) FlowsModel {
	next := make(map[string]tui.FlowStatus, len(m.flows)+1)
	for k, v := range m.flows {
		next[k] = v
	}
	if prev, ok := next[fs.Flow]; ok && fs.At.Before(prev.At) {
		return m
	}
	next[fs.Flow] = fs
	m.flows = next
	return m
}

func (m FlowsModel) Status(flow string) string {
	return m.flows[flow].Status
}

func flowIcon(status string) string {
	switch status {
	case "COMPLETED":
		return styles.IconSuccess
	case "FAILED", "STOPPED":
		return styles.IconError
	case "RUNNING", "STARTING", "PLANNING", "INITIALIZING":
		return styles.IconRunning
	case "SKIPPED", "EXCLUDED":
		return styles.IconIdle
	default:
		return styles.IconPending
	}
}

func (m FlowsModel) Height() int {
	if len(m.flows) == 0 {
		return 4
	}
	return len(m.flows) + 4
}

func (m FlowsModel) View() string {
	names := make([]string, 0, len(m.flows))
	for name := range m.flows {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]widgets.TableRow, 0, len(names))
	for _, name := range names {
		fs := m.flows[name]
		rows = append(rows, widgets.TableRow{
			Icon:  flowIcon(fs.Status),
			Cells: []string{name, fs.Status, fs.At.UTC().Format("15:04:05")},
		})
	}

	nameWidth := maxInt(20, m.width-40)
	table := widgets.NewTable([]widgets.TableColumn{
		{Header: "FLOW", Width: nameWidth},
		{Header: "STATUS", Width: 14},
		{Header: "UPDATED", Width: 10, Align: lipgloss.Right},
	}).WithRows(rows)

	return widgets.NewBox(fmt.Sprintf("Flows (%d)", len(names))).
		WithContent(table.Render()).
		WithSize(m.width, 0).
		Render()
}
