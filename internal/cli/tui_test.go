package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/reqlint/pkg/check"
)

func testReport() *check.Report {
	return &check.Report{
		Manifest: "requirements.txt",
		Findings: []check.Finding{
			{Rule: check.RuleConflict, Severity: check.SeverityError, Line: 2, Package: "sphinx", Message: "sphinx>=4 conflicts with sphinx<4"},
			{Rule: check.RuleDuplicate, Severity: check.SeverityWarning, Line: 5, Package: "pygame", Message: "pygame is listed twice"},
			{Rule: check.RuleUnpinned, Severity: check.SeverityInfo, Line: 3, Package: "pyfiglet", Message: "pyfiglet has no version constraint"},
		},
		Summary: check.Summary{Requirements: 4, Errors: 1, Warnings: 1, Infos: 1},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestFindingsModel_Navigate(t *testing.T) {
	var m tea.Model = newFindingsModel(testReport())
	m, _ = m.Update(key("down"))
	m, _ = m.Update(key("down"))
	m, _ = m.Update(key("down"))

	fm := m.(FindingsModel)
	if fm.Cursor != 2 {
		t.Errorf("Cursor = %d, want 2 (clamped)", fm.Cursor)
	}
	if !strings.Contains(fm.View(), "pyfiglet has no version constraint") {
		t.Error("View() does not show the selected finding's message")
	}

	m, _ = m.Update(key("up"))
	if m.(FindingsModel).Cursor != 1 {
		t.Errorf("Cursor = %d, want 1", m.(FindingsModel).Cursor)
	}
}

func TestFindingsModel_Filter(t *testing.T) {
	var m tea.Model = newFindingsModel(testReport())
	m, _ = m.Update(key("w"))
	fm := m.(FindingsModel)
	if len(fm.visible) != 1 || fm.visible[0].Package != "pygame" {
		t.Errorf("visible = %+v, want only the warning", fm.visible)
	}

	m, _ = m.Update(key("a"))
	if n := len(m.(FindingsModel).visible); n != 3 {
		t.Errorf("visible = %d, want 3", n)
	}
}

func TestFindingsModel_Quit(t *testing.T) {
	m := newFindingsModel(testReport())
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}
