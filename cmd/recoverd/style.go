package main

import "github.com/charmbracelet/lipgloss"

var (
	styleBanner  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	styleVerdict = map[string]lipgloss.Style{
		"healthy":   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		"degraded":  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		"unhealthy": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		"skipped":   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		"failed":    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
)

func renderVerdict(v string) string {
	if s, ok := styleVerdict[v]; ok {
		return s.Render(v)
	}
	return v
}

func renderPassFail(ok bool) string {
	if ok {
		return styleSuccess.Render("PASSED")
	}
	return styleError.Render("FAILED")
}
