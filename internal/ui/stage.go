package ui

import (
	"path/filepath"
	"strings"

	"charm.land/lipgloss/v2"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/danhigham/tipcharm/internal/alert"
)

// pxPerRow converts configured pixel margins into terminal rows.
const pxPerRow = 20

// StageMedia is the terminal stand-in for the tier media child: it shows
// the file name while enabled.
type StageMedia struct {
	file     string
	enabled  bool
	restarts int
}

func (m *StageMedia) SetFile(path string)     { m.file = path }
func (m *StageMedia) Restart()                { m.restarts++ }
func (m *StageMedia) SetEnabled(enabled bool) { m.enabled = enabled }

// Size is unknown in a terminal.
func (m *StageMedia) Size() (int, int) { return 0, 0 }

// StageText renders the alert text, fading its color into the background.
type StageText struct {
	text       string
	style      alert.TextStyle
	opacity    int
	enabled    bool
	background colorful.Color
}

func (t *StageText) SetText(text string)            { t.text = text }
func (t *StageText) SetStyle(style alert.TextStyle) { t.style = style }
func (t *StageText) SetOpacity(percent int)         { t.opacity = percent }
func (t *StageText) SetEnabled(enabled bool)        { t.enabled = enabled }

// Size is the rendered text block in cells.
func (t *StageText) Size() (int, int) {
	if t.text == "" {
		return 0, 0
	}
	return lipgloss.Width(t.text), lipgloss.Height(t.text)
}

// Color is the text color at the current opacity.
func (t *StageText) Color() colorful.Color {
	c := t.style.Color
	fg := colorful.Color{
		R: float64((c>>16)&0xFF) / 255,
		G: float64((c>>8)&0xFF) / 255,
		B: float64(c&0xFF) / 255,
	}
	alpha := float64(t.opacity) / 100
	return t.background.BlendRgb(fg, alpha).Clamped()
}

func (t *StageText) render() string {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Color().Hex())).
		Align(lipgloss.Center)
	if t.style.Outline {
		style = style.Bold(true)
	}
	return style.Render(t.text)
}

// Stage draws the alert in flight on a terminal canvas.
type Stage struct {
	Media *StageMedia
	Text  *StageText
}

func NewStage() *Stage {
	return &Stage{
		Media: &StageMedia{},
		Text:  &StageText{background: colorful.Color{}},
	}
}

// View renders a w x h canvas.
func (s *Stage) View(w, h int, idle string) string {
	if w <= 0 || h <= 0 {
		return ""
	}
	if !s.Text.enabled {
		return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, idleTextStyle.Render(idle))
	}

	text := s.Text.render()
	tw, th := lipgloss.Width(text), lipgloss.Height(text)
	style := s.Text.style
	style.Margin /= pxPerRow
	x, y := alert.TextOrigin(style, w, h, tw, th)

	blank := strings.Repeat(strings.Repeat(" ", w)+"\n", h-1) + strings.Repeat(" ", w)
	layers := []*lipgloss.Layer{
		lipgloss.NewLayer(blank),
		lipgloss.NewLayer(text).X(x).Y(y).Z(1),
	}
	if s.Media.enabled && s.Media.file != "" {
		label := mediaStyle.Render("▶ " + filepath.Base(s.Media.file))
		layers = append(layers, lipgloss.NewLayer(label).X(1).Y(h-1).Z(2))
	}
	return lipgloss.NewCompositor(layers...).Render()
}
