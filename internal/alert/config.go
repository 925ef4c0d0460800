package alert

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DefaultTemplate is used when the configured template is empty.
const DefaultTemplate = "{user} tipped {amount} {symbol}\n{message}"

// Position places the text vertically on the canvas.
type Position int

const (
	PositionTop Position = iota
	PositionCenter
	PositionBottom
)

func (p Position) String() string {
	switch p {
	case PositionCenter:
		return "center"
	case PositionBottom:
		return "bottom"
	default:
		return "top"
	}
}

// ParsePosition accepts top, center or bottom, ignoring case.
func ParsePosition(s string) (Position, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "top":
		return PositionTop, nil
	case "center":
		return PositionCenter, nil
	case "bottom":
		return PositionBottom, nil
	default:
		return PositionTop, errors.Errorf("unknown text position %q", s)
	}
}

func (p Position) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Position) UnmarshalText(text []byte) error {
	v, err := ParsePosition(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Tier maps an amount threshold to a media file.
type Tier struct {
	Threshold float64 `yaml:"threshold"`
	Media     string  `yaml:"media"`
}

// Tiers are ordered lowest first.
type Tiers [3]Tier

// Normalize raises thresholds so they never decrease from tier1 to tier3.
func (t Tiers) Normalize() Tiers {
	if t[1].Threshold < t[0].Threshold {
		t[1].Threshold = t[0].Threshold
	}
	if t[2].Threshold < t[1].Threshold {
		t[2].Threshold = t[1].Threshold
	}
	return t
}

// Select returns the highest tier (1-based) whose threshold is met and
// whose media is set. Zero means a text-only alert.
func (t Tiers) Select(amount decimal.Decimal) (int, string) {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Media == "" {
			continue
		}
		if amount.GreaterThanOrEqual(decimal.NewFromFloat(t[i].Threshold)) {
			return i + 1, t[i].Media
		}
	}
	return 0, ""
}

// TextStyle is the look of the alert text.
type TextStyle struct {
	Color       uint32   `yaml:"color"` // 0xRRGGBB
	Size        int      `yaml:"size"`
	Outline     bool     `yaml:"outline"`
	OutlineSize int      `yaml:"outline_size"`
	Font        string   `yaml:"font"`
	Position    Position `yaml:"position"`
	Margin      int      `yaml:"margin"`
}

// Config drives the Scheduler. Durations are in seconds.
type Config struct {
	Duration  float64   `yaml:"duration"`
	FadeIn    float64   `yaml:"fade_in"`
	FadeOut   float64   `yaml:"fade_out"`
	Template  string    `yaml:"template"`
	Animation string    `yaml:"animation"` // legacy single media, used as tier1
	Tier1     Tier      `yaml:"tier1"`
	Tier2     Tier      `yaml:"tier2"`
	Tier3     Tier      `yaml:"tier3"`
	Text      TextStyle `yaml:"text"`
}

func DefaultConfig() Config {
	return Config{
		Duration: 3.0,
		FadeIn:   0.20,
		FadeOut:  0.25,
		Template: DefaultTemplate,
		Tier1:    Tier{Threshold: 0},
		Tier2:    Tier{Threshold: 10},
		Tier3:    Tier{Threshold: 50},
		Text: TextStyle{
			Color:       0xFFFF00,
			Size:        36,
			Outline:     true,
			OutlineSize: 2,
			Font:        "Arial",
			Position:    PositionTop,
			Margin:      40,
		},
	}
}

// Tiers returns the normalized tiers, with the legacy animation standing
// in for an empty tier1 media.
func (c Config) Tiers() Tiers {
	t := Tiers{c.Tier1, c.Tier2, c.Tier3}
	if t[0].Media == "" && c.Animation != "" {
		t[0].Media = c.Animation
	}
	return t.Normalize()
}
