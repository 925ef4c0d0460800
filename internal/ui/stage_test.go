package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"

	"github.com/danhigham/tipcharm/internal/alert"
)

func TestStageText_ColorFollowsOpacity(t *testing.T) {
	s := NewStage()
	s.Text.SetStyle(alert.TextStyle{Color: 0xFFFF00})

	s.Text.SetOpacity(0)
	assert.Equal(t, "#000000", s.Text.Color().Hex())

	s.Text.SetOpacity(100)
	assert.Equal(t, "#ffff00", s.Text.Color().Hex())

	s.Text.SetOpacity(50)
	c := s.Text.Color()
	assert.InDelta(t, 0.5, c.R, 0.01)
	assert.InDelta(t, 0.0, c.B, 0.01)
}

func TestStageText_Size(t *testing.T) {
	s := NewStage()
	w, h := s.Text.Size()
	assert.Zero(t, w)
	assert.Zero(t, h)

	s.Text.SetText("alice tipped 1.000 TWICH\ngg")
	w, h = s.Text.Size()
	assert.Equal(t, 24, w)
	assert.Equal(t, 2, h)
}

func TestStage_ViewIdle(t *testing.T) {
	s := NewStage()
	out := ansi.Strip(s.View(40, 5, "waiting"))
	assert.Contains(t, out, "waiting")
	assert.Equal(t, 5, strings.Count(out, "\n")+1)
}

func TestStage_ViewPlaying(t *testing.T) {
	s := NewStage()
	s.Text.SetText("hello")
	s.Text.SetStyle(alert.TextStyle{Color: 0xFFFFFF})
	s.Text.SetOpacity(100)
	s.Text.SetEnabled(true)
	s.Media.SetFile("/media/tier2.webm")
	s.Media.SetEnabled(true)

	out := ansi.Strip(s.View(40, 6, "waiting"))
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "tier2.webm")
	assert.NotContains(t, out, "waiting")
}
