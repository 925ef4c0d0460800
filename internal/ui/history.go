package ui

import (
	"fmt"
	"io"

	"charm.land/bubbles/v2/list"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/danhigham/tipcharm/internal/state"
)

// playedItem implements list.Item for the alert history.
type playedItem struct {
	sender  string
	amount  string
	symbol  string
	message string
	tier    int
	at      string
}

func (i playedItem) FilterValue() string { return i.sender }

// playedItemDelegate renders a playedItem in the list.
type playedItemDelegate struct{}

func (d playedItemDelegate) Height() int                             { return 2 }
func (d playedItemDelegate) Spacing() int                            { return 1 }
func (d playedItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d playedItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	pi, ok := item.(playedItem)
	if !ok {
		return
	}

	sender := pi.sender
	if sender == "" {
		sender = "anonymous"
	}
	title := fmt.Sprintf("%s %s %s", sender, pi.amount, pi.symbol)

	// Account for the cursor prefix ("  " or "> ") in available width.
	contentWidth := m.Width() - 2
	if contentWidth < 1 {
		contentWidth = 1
	}

	titleStyle := lipgloss.NewStyle().MaxWidth(contentWidth).MaxHeight(1)
	descStyle := lipgloss.NewStyle().MaxWidth(contentWidth).MaxHeight(1).Foreground(lipgloss.Color("240"))
	badge := lipgloss.NewStyle().Foreground(tierColor(pi.tier)).Render(fmt.Sprintf("T%d", pi.tier))

	cursor := "  "
	if index == m.Index() {
		cursor = "> "
		titleStyle = titleStyle.Foreground(lipgloss.Color("170")).Bold(true)
		descStyle = descStyle.Foreground(lipgloss.Color("250"))
	}

	desc := timeStyle.Render(pi.at) + " " + badge + " " + pi.message
	fmt.Fprintf(w, "%s%s\n%s%s", cursor, titleStyle.Render(title), "  ", descStyle.Render(desc))
}

// HistoryModel wraps bubbles/list for the played alerts sidebar.
type HistoryModel struct {
	list    list.Model
	focused bool
	width   int
	height  int
}

func NewHistoryModel() HistoryModel {
	l := list.New(nil, playedItemDelegate{}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.DisableQuitKeybindings()

	return HistoryModel{list: l}
}

func (m HistoryModel) Update(msg tea.Msg) (HistoryModel, tea.Cmd) {
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// Filtering reports whether the filter prompt owns the keyboard.
func (m HistoryModel) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

func (m HistoryModel) View() string {
	contentH := m.height - 2
	if contentH < 0 {
		contentH = 0
	}

	content := truncateHeight(m.list.View(), contentH)

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(m.width).
		Height(m.height)
	style = applyBorderColor(style, m.focused)

	return style.Render(content)
}

// WithItems replaces the list with played alerts, newest first.
func (m HistoryModel) WithItems(played []state.Played) HistoryModel {
	items := make([]list.Item, len(played))
	for i, p := range played {
		items[i] = playedItem{
			sender:  p.Event.Sender,
			amount:  p.Event.AmountDisplay,
			symbol:  p.Event.Symbol,
			message: p.Event.Message,
			tier:    p.Tier,
			at:      p.At.Format("15:04:05"),
		}
	}
	m.list.SetItems(items)
	return m
}

func (m HistoryModel) Len() int {
	return len(m.list.Items())
}

func (m HistoryModel) SetSize(w, h int) HistoryModel {
	m.width = w
	m.height = h
	innerW := w - 2
	innerH := h - 2
	if innerW < 1 {
		innerW = 1
	}
	if innerH < 1 {
		innerH = 1
	}
	m.list.SetSize(innerW, innerH)
	return m
}

func (m HistoryModel) SetFocused(f bool) HistoryModel {
	m.focused = f
	return m
}
