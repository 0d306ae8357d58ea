package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/reqlint/pkg/check"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	detailBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorDim).Padding(0, 1)
)

// =============================================================================
// FindingsModel - Interactive findings browser
// =============================================================================

// FindingsModel is the bubbletea model behind check --interactive.
type FindingsModel struct {
	Report *check.Report
	Filter check.Severity // empty shows all
	Cursor int
	Offset int
	Height int

	visible []check.Finding
}

func newFindingsModel(rep *check.Report) FindingsModel {
	m := FindingsModel{Report: rep, Height: 12}
	m.applyFilter()
	return m
}

func (m *FindingsModel) applyFilter() {
	m.visible = nil
	for _, f := range m.Report.Findings {
		if m.Filter == "" || f.Severity == m.Filter {
			m.visible = append(m.visible, f)
		}
	}
	m.Cursor, m.Offset = 0, 0
}

func (m FindingsModel) Init() tea.Cmd {
	return nil
}

func (m FindingsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.visible)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "e":
			m.Filter = check.SeverityError
			m.applyFilter()
		case "w":
			m.Filter = check.SeverityWarning
			m.applyFilter()
		case "i":
			m.Filter = check.SeverityInfo
			m.applyFilter()
		case "a":
			m.Filter = ""
			m.applyFilter()
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 10
		if m.Height < 3 {
			m.Height = 3
		}
	}
	return m, nil
}

func (m FindingsModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Findings in " + m.Report.Manifest))
	b.WriteString("  ")
	b.WriteString(summaryLine(m.Report.Summary))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  e/w/i/a filter  q quit"))
	b.WriteString("\n\n")

	if len(m.visible) == 0 {
		b.WriteString(listDimStyle.Render("  no findings with severity " + string(m.Filter)))
		b.WriteString("\n")
		return b.String()
	}

	end := min(m.Offset+m.Height, len(m.visible))
	for i := m.Offset; i < end; i++ {
		f := m.visible[i]
		cursor := "  "
		style := listNormalStyle
		if i == m.Cursor {
			cursor = "▸ "
			style = listSelectedStyle
		}
		line := fmt.Sprintf("%-6s %-20s %s", location(f), f.Rule, f.Package)
		b.WriteString(cursor + severityIcon(f.Severity) + " " + style.Render(line))
		b.WriteString("\n")
	}

	f := m.visible[m.Cursor]
	detail := severityStyle(f.Severity).Render(string(f.Severity)+" · "+string(f.Rule)) + "\n" + f.Message
	b.WriteString("\n")
	b.WriteString(detailBoxStyle.Render(detail))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.visible))))

	return b.String()
}
