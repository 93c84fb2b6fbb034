package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jllopis/skillsloop/pkg/core"
)

var styles = struct {
	banner     lipgloss.Style
	prompt     lipgloss.Style
	step       lipgloss.Style
	agentLabel lipgloss.Style
	errorLabel lipgloss.Style
	info       lipgloss.Style
	rule       lipgloss.Style
}{
	banner: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#89b4fa")).
		Padding(0, 1),
	prompt:     lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1")).Bold(true),
	step:       lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7086")),
	agentLabel: lipgloss.NewStyle().Foreground(lipgloss.Color("#89b4fa")).Bold(true),
	errorLabel: lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8")).Bold(true),
	info:       lipgloss.NewStyle().Foreground(lipgloss.Color("#f9e2af")),
	rule:       lipgloss.NewStyle().Foreground(lipgloss.Color("#45475a")),
}

func printBanner(w io.Writer, workspace string, skills int, tools bool) {
	toolState := "disabled"
	if tools {
		toolState = "enabled"
	}
	body := fmt.Sprintf("skillsloop %s\nworkspace: %s\nskills: %d  tools: %s\n%s",
		version, workspace, skills, toolState,
		styles.info.Render("Type 'exit', 'quit' or 'salir' to leave."))
	fmt.Fprintln(w, styles.banner.Render(body))
}

// stepLine renders the progress line of one decision.
func stepLine(step int, action core.Action) string {
	return fmt.Sprintf("Step %d: %s (%s:%s)", step, action.Reason, action.Kind, action.Name)
}

func printStep(w io.Writer, step int, action core.Action) {
	fmt.Fprintln(w, styles.step.Render(stepLine(step, action)))
}

func printAnswer(w io.Writer, answer string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, styles.agentLabel.Render("Agent:"))
	fmt.Fprintln(w, answer)
	fmt.Fprintln(w, styles.rule.Render(strings.Repeat("-", 40)))
	fmt.Fprintln(w)
}

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, styles.errorLabel.Render("Error:"), err)
}
