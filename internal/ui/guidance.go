package ui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"

	"github.com/danhigham/tipcharm/internal/domain"
)

// GuidanceModel shows the operator status and the pending queue as
// markdown rendered by glamour.
type GuidanceModel struct {
	viewport viewport.Model
	renderer *glamour.TermRenderer
	focused  bool
	width    int
	height   int
	status   string
	pending  []domain.TipEvent
}

func NewGuidanceModel() GuidanceModel {
	return GuidanceModel{viewport: viewport.New()}
}

func (m GuidanceModel) Update(msg tea.Msg) (GuidanceModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "j":
			m.viewport.ScrollDown(1)
			return m, nil
		case "k":
			m.viewport.ScrollUp(1)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m GuidanceModel) View() string {
	contentH := m.height - 2
	if contentH < 0 {
		contentH = 0
	}

	content := truncateHeight(m.viewport.View(), contentH)

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(m.width).
		Height(m.height)
	style = applyBorderColor(style, m.focused)

	return style.Render(content)
}

func (m GuidanceModel) SetSize(w, h int) GuidanceModel {
	m.width = w
	m.height = h
	// Viewport inner: subtract border (2)
	vpW := w - 2
	vpH := h - 2
	if vpW < 1 {
		vpW = 1
	}
	if vpH < 1 {
		vpH = 1
	}
	m.viewport.SetWidth(vpW)
	m.viewport.SetHeight(vpH)
	m = m.recreateRenderer()
	m = m.renderContent()
	return m
}

func (m GuidanceModel) SetFocused(f bool) GuidanceModel {
	m.focused = f
	return m
}

// SetContent replaces the status text and the pending queue.
func (m GuidanceModel) SetContent(status string, pending []domain.TipEvent) GuidanceModel {
	if status == m.status && samePending(pending, m.pending) {
		return m
	}
	m.status = status
	m.pending = pending
	return m.renderContent()
}

func (m GuidanceModel) recreateRenderer() GuidanceModel {
	wordWrap := m.viewport.Width() - 2
	if wordWrap < 10 {
		wordWrap = 10
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(wordWrap),
	)
	if err == nil {
		m.renderer = r
	}
	return m
}

func (m GuidanceModel) renderContent() GuidanceModel {
	md := guidanceMarkdown(m.status, m.pending)
	out := md
	if m.renderer != nil {
		if rendered, err := m.renderer.Render(md); err == nil {
			out = strings.Trim(rendered, "\n")
		}
	}
	m.viewport.SetContent(out)
	return m
}

// guidanceMarkdown builds the pane source. The first status line is the
// heading; the rest is guidance.
func guidanceMarkdown(status string, pending []domain.TipEvent) string {
	var b strings.Builder

	head, rest, _ := strings.Cut(status, "\n")
	if head == "" {
		head = "Telegram"
	}
	b.WriteString("## " + head + "\n\n")
	for _, line := range strings.Split(rest, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			b.WriteString(line + "\n\n")
		}
	}

	fmt.Fprintf(&b, "### Queue (%d)\n\n", len(pending))
	if len(pending) == 0 {
		b.WriteString("_No tips waiting._\n")
	}
	for _, ev := range pending {
		sender := ev.Sender
		if sender == "" {
			sender = "anonymous"
		}
		fmt.Fprintf(&b, "- **%s** %s %s\n", sender, ev.AmountDisplay, ev.Symbol)
	}
	return b.String()
}

func samePending(a, b []domain.TipEvent) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].DedupeKey != b[i].DedupeKey || a[i].Sender != b[i].Sender {
			return false
		}
	}
	return true
}
