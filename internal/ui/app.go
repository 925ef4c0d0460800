package ui

import (
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"go.uber.org/zap"

	"github.com/danhigham/tipcharm/internal/domain"
	"github.com/danhigham/tipcharm/internal/overlay"
	"github.com/danhigham/tipcharm/internal/state"
)

type focusTarget int

const (
	focusHistory focusTarget = iota
	focusGuidance
)

const (
	historyWidth = 36
	tickInterval = 50 * time.Millisecond
	idleText     = "Waiting for tips · press t for a test alert"
)

// Model is the root Bubble Tea model.
type Model struct {
	history  HistoryModel
	guidance GuidanceModel
	auth     AuthModel
	status   statusModel
	help     HelpModel
	splash   SplashModel
	stage    *Stage

	source *overlay.Source
	store  *state.Store
	logger *zap.Logger

	focus    focusTarget
	width    int
	height   int
	lastTick time.Time
	lastAuth domain.AuthState
}

// NewModel creates the root model. stage must be the Media and Text the
// source was created with.
func NewModel(source *overlay.Source, stage *Stage, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := Model{
		history:  NewHistoryModel(),
		guidance: NewGuidanceModel(),
		auth:     NewAuthModel(),
		status:   newStatusModel(),
		help:     NewHelpModel(),
		splash:   NewSplashModel(),
		stage:    stage,
		source:   source,
		store:    source.Store(),
		logger:   logger,
		focus:    focusHistory,
	}
	return m.updateFocus()
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg{at: t} })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.Tick(2*time.Second, func(time.Time) tea.Msg { return SplashDoneMsg{} }),
		func() tea.Msg { return StoreUpdatedMsg{} },
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m = m.distributeSize()
		return m, nil

	case tickMsg:
		delta := 0.0
		if !m.lastTick.IsZero() {
			delta = msg.at.Sub(m.lastTick).Seconds()
		}
		m.lastTick = msg.at
		m.source.Tick(delta)
		if m.store.Len() != m.status.queue {
			m = m.refreshFromStore()
		}
		return m, tickCmd()

	case StoreUpdatedMsg:
		m = m.refreshFromStore()
		m.splash = m.splash.ConnReady()

		st := m.store.GetAuthState()
		if st == m.lastAuth {
			return m, nil
		}
		m.lastAuth = st
		if stage, ok := authPrompt(st); ok && !m.auth.IsVisible() {
			var cmd tea.Cmd
			m.auth, cmd = m.auth.Show(stage)
			return m, cmd
		}
		return m, nil

	case SplashDoneMsg:
		m.splash = m.splash.TimerDone()
		return m, nil

	case authSubmitMsg:
		return m, m.submit(msg)

	case actionDoneMsg:
		if msg.err != nil {
			m.logger.Warn("Action failed", zap.String("action", msg.action), zap.Error(msg.err))
		}
		m = m.refreshFromStore()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if m.splash.IsVisible() {
		if key == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	}

	if m.auth.IsVisible() {
		var cmd tea.Cmd
		m.auth, cmd = m.auth.Update(msg)
		return m, cmd
	}

	if m.help.IsVisible() {
		switch key {
		case "ctrl+c":
			return m, tea.Quit
		case "h", "f1", "esc":
			m.help = m.help.Toggle()
		}
		return m, nil
	}

	if m.focus == focusHistory && m.history.Filtering() {
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd
	}

	switch key {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "h", "f1":
		m.help = m.help.Toggle()
		return m, nil
	case "tab", "shift+tab":
		m.focus = (m.focus + 1) % 2
		return m.updateFocus(), nil
	case "t":
		m.source.TestAlert()
		return m, nil
	case "r":
		src := m.source
		return m, func() tea.Msg {
			return actionDoneMsg{action: "restart", err: src.Restart()}
		}
	case "p", "c", "w", "a":
		stages := map[string]authStage{"p": authPhone, "c": authCode, "w": authPassword, "a": authAPIID}
		var cmd tea.Cmd
		m.auth, cmd = m.auth.Show(stages[key])
		return m, cmd
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusHistory:
		m.history, cmd = m.history.Update(msg)
	case focusGuidance:
		m.guidance, cmd = m.guidance.Update(msg)
	}
	return m, cmd
}

// submit runs an auth action off the event loop; Restart may block until
// the worker exits.
func (m Model) submit(sub authSubmitMsg) tea.Cmd {
	src := m.source
	return func() tea.Msg {
		switch sub.stage {
		case authPhone:
			src.SubmitPhone(sub.value)
			return actionDoneMsg{action: "phone"}
		case authCode:
			src.SubmitCode(sub.value)
			return actionDoneMsg{action: "code"}
		case authPassword:
			src.SubmitPassword(sub.value)
			return actionDoneMsg{action: "password"}
		case authAPIHash:
			return actionDoneMsg{action: "credentials", err: src.SaveCredentials(sub.apiID, sub.value)}
		}
		return nil
	}
}

func (m Model) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}

	if m.auth.IsVisible() {
		v.SetContent(m.auth.View())
		return v
	}

	rightPane := lipgloss.JoinVertical(lipgloss.Left, m.stageView(), m.guidance.View())
	panes := lipgloss.JoinHorizontal(lipgloss.Top, m.history.View(), rightPane)
	full := lipgloss.JoinVertical(lipgloss.Left, panes, m.status.View())

	mainContent := lipgloss.NewStyle().
		MaxWidth(m.width).
		MaxHeight(m.height).
		Render(full)

	switch {
	case m.splash.IsVisible():
		x, y := m.splash.BoxOffset()
		bg := lipgloss.NewLayer(mainContent)
		fg := lipgloss.NewLayer(m.splash.View()).X(x).Y(y).Z(1)
		v.SetContent(lipgloss.NewCompositor(bg, fg).Render())
	case m.help.IsVisible():
		x, y := m.help.BoxOffset()
		bg := lipgloss.NewLayer(mainContent)
		fg := lipgloss.NewLayer(m.help.View()).X(x).Y(y).Z(1)
		v.SetContent(lipgloss.NewCompositor(bg, fg).Render())
	default:
		v.SetContent(mainContent)
	}
	return v
}

func (m Model) layout() (leftW, rightW, stageH, guidanceH int) {
	contentH := m.height - 1 // status bar
	if contentH < 2 {
		contentH = 2
	}
	leftW = historyWidth
	if leftW > m.width {
		leftW = m.width
	}
	rightW = m.width - leftW
	if rightW < 1 {
		rightW = 1
	}
	stageH = contentH * 3 / 5
	if stageH < 1 {
		stageH = 1
	}
	guidanceH = contentH - stageH
	if guidanceH < 1 {
		guidanceH = 1
	}
	return leftW, rightW, stageH, guidanceH
}

func (m Model) stageView() string {
	_, w, h, _ := m.layout()
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dimColor).
		Width(w).
		Height(h)
	return style.Render(m.stage.View(w-2, h-2, idleText))
}

func (m Model) distributeSize() Model {
	leftW, rightW, _, guidanceH := m.layout()
	m.history = m.history.SetSize(leftW, m.height-1)
	m.guidance = m.guidance.SetSize(rightW, guidanceH)
	m.status = m.status.SetWidth(m.width)
	m.auth = m.auth.SetSize(m.width, m.height)
	m.help = m.help.SetSize(m.width, m.height)
	m.splash = m.splash.SetSize(m.width, m.height)
	return m
}

func (m Model) updateFocus() Model {
	m.history = m.history.SetFocused(m.focus == focusHistory)
	m.guidance = m.guidance.SetFocused(m.focus == focusGuidance)
	return m
}

func (m Model) refreshFromStore() Model {
	m.history = m.history.WithItems(m.store.History())

	status := m.store.Status()
	m.guidance = m.guidance.SetContent(status, m.store.Pending())

	summary, _, _ := strings.Cut(status, "\n")
	m.status.summary = summary
	m.status.state = m.store.GetAuthState()
	m.status.queue = m.store.Len()
	m.status.bot = m.source.AllowedSender().Username
	return m
}

// App wraps the Bubble Tea program for external use.
type App struct {
	program *tea.Program
}

// NewApp creates a new App ready to Run.
func NewApp(source *overlay.Source, stage *Stage, logger *zap.Logger) *App {
	model := NewModel(source, stage, logger)
	p := tea.NewProgram(model)
	return &App{program: p}
}

// Run starts the Bubble Tea event loop (blocks until quit).
func (a *App) Run() error {
	_, err := a.program.Run()
	return err
}

// Send sends a message into the Bubble Tea event loop from external goroutines.
func (a *App) Send(msg tea.Msg) {
	go a.program.Send(msg)
}

// DrawFunc returns a function suitable for state.Store that triggers a re-render.
func (a *App) DrawFunc() func() {
	return func() {
		a.Send(StoreUpdatedMsg{})
	}
}
