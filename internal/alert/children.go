package alert

import (
	"go.uber.org/zap"
)

// Media is the visual child that plays a tier's media file.
type Media interface {
	SetFile(path string)
	Restart()
	SetEnabled(enabled bool)
	// Size reports the media dimensions, zero when unknown.
	Size() (width, height int)
}

// Text is the visual child that shows the rendered template.
type Text interface {
	SetText(text string)
	SetStyle(style TextStyle)
	// SetOpacity takes a percentage in [0, 100].
	SetOpacity(percent int)
	SetEnabled(enabled bool)
	Size() (width, height int)
}

// LogMedia is a Media for headless hosts; it only logs.
type LogMedia struct {
	Logger *zap.Logger
	file   string
}

func (m *LogMedia) SetFile(path string) { m.file = path }

func (m *LogMedia) Restart() {
	m.Logger.Info("Play media", zap.String("file", m.file))
}

func (m *LogMedia) SetEnabled(enabled bool) {
	if !enabled {
		m.Logger.Debug("Media hidden")
	}
}

func (m *LogMedia) Size() (int, int) { return 0, 0 }

// LogText is a Text for headless hosts; it logs each alert text once.
type LogText struct {
	Logger *zap.Logger
	text   string
}

func (t *LogText) SetText(text string) { t.text = text }

func (t *LogText) SetStyle(TextStyle) {}

func (t *LogText) SetOpacity(int) {}

func (t *LogText) SetEnabled(enabled bool) {
	if enabled {
		t.Logger.Info("Show alert", zap.String("text", t.text))
	}
}

func (t *LogText) Size() (int, int) { return 0, 0 }
