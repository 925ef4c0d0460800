package ui

import (
	"image/color"
	"strings"

	"charm.land/lipgloss/v2"
)

var (
	timeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	senderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	idleTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	mediaStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))

	dimColor       = lipgloss.Color("240") // gray
	highlightColor = lipgloss.Color("#FF5FAF")

	// Tier badge colors, text-only first.
	tierColors = []color.Color{
		lipgloss.Color("245"),
		lipgloss.Color("#2ECC71"),
		lipgloss.Color("#3498DB"),
		lipgloss.Color("#FF6B9D"),
	}

	// Rainbow gradient colors for focused borders (wraps back to start).
	rainbowBlend = []color.Color{
		lipgloss.Color("#FF6B9D"), // pink
		lipgloss.Color("#9B59B6"), // purple
		lipgloss.Color("#3498DB"), // blue
		lipgloss.Color("#2ECC71"), // green
		lipgloss.Color("#FF6B9D"), // pink (wrap)
	}
)

// applyBorderColor applies either the rainbow blend (focused) or dim border color.
func applyBorderColor(s lipgloss.Style, focused bool) lipgloss.Style {
	if focused {
		return s.BorderForegroundBlend(rainbowBlend...)
	}
	return s.BorderForeground(dimColor)
}

func tierColor(tier int) color.Color {
	if tier < 0 || tier >= len(tierColors) {
		return tierColors[0]
	}
	return tierColors[tier]
}

// truncateHeight limits s to at most maxLines lines.
func truncateHeight(s string, maxLines int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= maxLines {
		return s
	}
	return strings.Join(lines[:maxLines], "\n")
}
