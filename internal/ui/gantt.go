package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ldi/optiflow/internal/calendar"
	"github.com/ldi/optiflow/internal/plan"
	"github.com/ldi/optiflow/pkg/models"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	summaryStyle   = lipgloss.NewStyle().Bold(true)
	cursorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	barStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	summaryBar     = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	milestoneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const (
	outlineWidth = 44
	chartWidth   = 60
)

// GanttModel is a read-only outline and bar chart view of one project's
// plan. Collapsing and expanding happens in memory only; the view never
// writes back.
type GanttModel struct {
	projectName string
	plan        *plan.Plan
	visible     []*models.Task
	cursor      int
	quitting    bool
}

func NewGanttModel(projectName string, pl *plan.Plan) GanttModel {
	return GanttModel{
		projectName: projectName,
		plan:        pl,
		visible:     pl.VisibleTasks(),
	}
}

func (m GanttModel) Init() tea.Cmd {
	return nil
}

func (m GanttModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.visible)-1 {
				m.cursor++
			}

		case "enter", " ":
			if m.cursor < len(m.visible) {
				if _, err := m.plan.ToggleExpand(m.visible[m.cursor].ID); err == nil {
					m.visible = m.plan.VisibleTasks()
					if m.cursor >= len(m.visible) {
						m.cursor = len(m.visible) - 1
					}
				}
			}
		}
	}

	return m, nil
}

func (m GanttModel) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s — %d tasks", m.projectName, m.plan.Len())))
	s.WriteString("\n\n")

	if len(m.visible) == 0 {
		s.WriteString(dimStyle.Render("  no tasks"))
		s.WriteString("\n")
		return s.String()
	}

	chartStart, chartEnd := m.dateRange()
	s.WriteString(dimStyle.Render(fmt.Sprintf("%-*s %s .. %s",
		outlineWidth, "", chartStart, chartEnd)))
	s.WriteString("\n")

	for i, t := range m.visible {
		s.WriteString(m.renderRow(i, t, chartStart, chartEnd))
		s.WriteString("\n")
	}

	s.WriteString("\n(j/k to move, enter to expand/collapse, q to quit)\n")
	return s.String()
}

// dateRange spans the earliest start to the latest end of the whole plan,
// so collapsing a summary does not rescale the chart.
func (m GanttModel) dateRange() (calendar.Date, calendar.Date) {
	tasks := m.plan.Tasks()
	start, end := tasks[0].StartDate, tasks[0].EndDate
	for _, t := range tasks[1:] {
		if t.StartDate.Before(start) {
			start = t.StartDate
		}
		if t.EndDate.After(end) {
			end = t.EndDate
		}
	}
	return start, end
}

func (m GanttModel) renderRow(i int, t *models.Task, chartStart, chartEnd calendar.Date) string {
	marker := "  "
	if t.IsSummary {
		marker = "▸ "
		if t.Expanded {
			marker = "▾ "
		}
	}

	label := fmt.Sprintf("%s%s%-8s %s %s",
		strings.Repeat("  ", t.Level), marker, t.WBSCode, t.TaskID, t.Description)
	// Pad and truncate by rune count so the bars line up.
	runes := []rune(label)
	if len(runes) > outlineWidth {
		runes = append(runes[:outlineWidth-1], '…')
	}
	label = string(runes) + strings.Repeat(" ", outlineWidth-len(runes))

	switch {
	case i == m.cursor:
		label = cursorStyle.Render(label)
	case t.IsSummary:
		label = summaryStyle.Render(label)
	}

	return label + " " + m.renderBar(t, chartStart, chartEnd)
}

func (m GanttModel) renderBar(t *models.Task, chartStart, chartEnd calendar.Date) string {
	total := daysBetween(chartStart, chartEnd) + 1
	if total < 1 {
		total = 1
	}

	offset := daysBetween(chartStart, t.StartDate) * chartWidth / total
	span := (daysBetween(t.StartDate, t.EndDate) + 1) * chartWidth / total
	if span < 1 {
		span = 1
	}
	if offset+span > chartWidth {
		span = chartWidth - offset
	}

	pad := strings.Repeat(" ", offset)
	switch {
	case t.TaskType == models.TaskTypeMilestone:
		return pad + milestoneStyle.Render("◆")
	case t.IsSummary:
		return pad + summaryBar.Render(strings.Repeat("━", span))
	default:
		filled := span * t.Progress / 100
		bar := strings.Repeat("█", filled) + strings.Repeat("░", span-filled)
		return pad + barStyle.Render(bar)
	}
}

func daysBetween(a, b calendar.Date) int {
	return int(b.Sub(a.Time).Hours() / 24)
}

// RunGantt shows the chart for one project until the user quits.
func RunGantt(projectName string, pl *plan.Plan) error {
	m := NewGanttModel(projectName, pl)
	p := tea.NewProgram(m)
	_, err := p.Run()
	return err
}
