package ui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/danhigham/tipcharm/internal/domain"
)

var (
	// Dark gray background matching the lipgloss example
	statusBarBg = lipgloss.Color("#353533")
	// Bright magenta for the status pill and time highlight
	statusPillBg    = lipgloss.Color("#FF5FAF")
	statusPillBgOff = lipgloss.Color("#6C5098")
	// Teal/cyan for the time pill
	statusTimeBg = lipgloss.Color("#6124DF")
)

type statusModel struct {
	state   domain.AuthState
	summary string
	bot     string
	queue   int
	width   int
}

func newStatusModel() statusModel {
	return statusModel{summary: "Starting…"}
}

// SetWidth sets the full terminal width for the status bar.
func (m statusModel) SetWidth(w int) statusModel {
	m.width = w
	return m
}

// View renders a full-width status bar:
// [STATE pill] [summary] ... [bot/queue pill] [time pill]
func (m statusModel) View() string {
	pillBg := statusPillBgOff
	if m.state == domain.AuthStateReady {
		pillBg = statusPillBg
	}
	pillStyle := lipgloss.NewStyle().
		Background(pillBg).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1)
	pill := pillStyle.Render(strings.ToUpper(m.state.String()))

	titleStyle := lipgloss.NewStyle().
		Background(statusBarBg).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1)
	title := titleStyle.Render(m.summary)

	timeStyle := lipgloss.NewStyle().
		Background(statusTimeBg).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1)
	timePill := timeStyle.Render(time.Now().Format("15:04"))

	botStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("#7B5EA7")).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1)
	botPill := botStyle.Render(fmt.Sprintf("@%s · %d queued", m.bot, m.queue))

	left := pill + title
	right := botPill + timePill

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	filler := lipgloss.NewStyle().
		Background(statusBarBg).
		Render(strings.Repeat(" ", gap))

	barStyle := lipgloss.NewStyle().
		Background(statusBarBg).
		Width(m.width).
		MaxWidth(m.width)

	return barStyle.Render(left + filler + right)
}
