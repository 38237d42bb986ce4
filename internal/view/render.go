package view

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorNeutral = lipgloss.Color("#94A3B8")
	colorActive  = lipgloss.Color("#22C55E")
	colorBusy    = lipgloss.Color("#F59E0B")
	colorFailure = lipgloss.Color("#EF4444")
	colorSubtle  = lipgloss.Color("#64748B")
	colorText    = lipgloss.Color("#F8FAFC")
)

var toneColors = map[Tone]lipgloss.Color{
	Neutral:  colorNeutral,
	Active:   colorActive,
	Busy:     colorBusy,
	Positive: colorActive,
	Negative: colorFailure,
}

var (
	styleTranscript = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSubtle).
			Foreground(colorText).
			Padding(0, 1)

	styleHint = lipgloss.NewStyle().
			Foreground(colorSubtle).
			Italic(true)

	styleCard = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorActive).
			Padding(0, 1)

	styleEnabled  = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	styleDisabled = lipgloss.NewStyle().Foreground(colorSubtle).Strikethrough(true)
)

// Render draws v as a block of terminal text width columns wide.
func Render(v View, width int) string {
	if width <= 0 {
		width = 60
	}
	accent := toneColors[v.Tone]

	var b strings.Builder
	status := lipgloss.NewStyle().Foreground(accent).Bold(true).Render("● " + v.Label)
	b.WriteString(status)
	if v.Detail != "" {
		b.WriteString(" " + styleHint.Render("("+v.Detail+")"))
	}
	b.WriteString("\n")

	text := v.Display
	if strings.TrimSpace(text) == "" {
		text = styleHint.Render("Transcript will appear here")
	}
	b.WriteString(styleTranscript.Width(width).Render(text))
	b.WriteString("\n")

	if v.Listening {
		b.WriteString(meter(v.Level, accent))
		b.WriteString("\n")
	}

	mic := "mic"
	if v.Listening {
		mic = "stop"
	}
	b.WriteString(strings.Join([]string{
		button("[t] "+mic, v.MicEnabled),
		button("[x] send", v.SendEnabled),
		button("[c] clear", v.ClearEnabled),
	}, "  "))

	if v.Summary != "" {
		b.WriteString("\n")
		b.WriteString(styleCard.Render(v.Summary + "\n" + styleHint.Render("[d] dismiss")))
	}
	return b.String()
}

func meter(level int, accent lipgloss.Color) string {
	on := lipgloss.NewStyle().Foreground(accent).Render(strings.Repeat("▮", level))
	off := lipgloss.NewStyle().Foreground(colorSubtle).Render(strings.Repeat("▯", maxLevel-level))
	return on + off
}

func button(label string, enabled bool) string {
	if enabled {
		return styleEnabled.Render(label)
	}
	return styleDisabled.Render(label)
}
