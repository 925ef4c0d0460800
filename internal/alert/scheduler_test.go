package alert

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danhigham/tipcharm/internal/domain"
)

type sliceQueue struct {
	events []domain.TipEvent
}

func (q *sliceQueue) Pop() (domain.TipEvent, bool) {
	if len(q.events) == 0 {
		return domain.TipEvent{}, false
	}
	ev := q.events[0]
	q.events = q.events[1:]
	return ev, true
}

type fakeMedia struct {
	file     string
	enabled  bool
	restarts int
	w, h     int
}

func (m *fakeMedia) SetFile(path string)     { m.file = path }
func (m *fakeMedia) Restart()                { m.restarts++ }
func (m *fakeMedia) SetEnabled(enabled bool) { m.enabled = enabled }
func (m *fakeMedia) Size() (int, int)        { return m.w, m.h }

type fakeText struct {
	text      string
	style     TextStyle
	enabled   bool
	opacities []int
	w, h      int
}

func (t *fakeText) SetText(text string)      { t.text = text }
func (t *fakeText) SetStyle(style TextStyle) { t.style = style }
func (t *fakeText) SetOpacity(p int)         { t.opacities = append(t.opacities, p) }
func (t *fakeText) SetEnabled(enabled bool)  { t.enabled = enabled }
func (t *fakeText) Size() (int, int)         { return t.w, t.h }

func tip(amount string) domain.TipEvent {
	return domain.TipEvent{
		Sender:        "alice",
		AmountDisplay: amount,
		Amount:        decimal.RequireFromString(amount),
		Symbol:        "TWICH",
		Message:       "gg",
	}
}

func tieredConfig() Config {
	cfg := DefaultConfig()
	cfg.Tier1.Media = "t1.webm"
	cfg.Tier2.Media = "t2.webm"
	cfg.Tier3.Media = "t3.webm"
	return cfg
}

func TestTiers_Select(t *testing.T) {
	tiers := tieredConfig().Tiers()

	tests := []struct {
		amount string
		tier   int
		media  string
	}{
		{"9.999", 1, "t1.webm"},
		{"10.000", 2, "t2.webm"},
		{"75", 3, "t3.webm"},
		{"50", 3, "t3.webm"},
		{"0", 1, "t1.webm"},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			tier, media := tiers.Select(decimal.RequireFromString(tt.amount))
			assert.Equal(t, tt.tier, tier)
			assert.Equal(t, tt.media, media)
		})
	}
}

func TestTiers_SelectSkipsEmptyMedia(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tier2.Media = "t2.webm"

	tier, media := cfg.Tiers().Select(decimal.RequireFromString("5"))
	assert.Zero(t, tier)
	assert.Empty(t, media)

	// Tier3 threshold met but no media: fall back to tier2.
	tier, media = cfg.Tiers().Select(decimal.RequireFromString("75"))
	assert.Equal(t, 2, tier)
	assert.Equal(t, "t2.webm", media)
}

func TestConfig_TiersNormalizeAndLegacy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tier1.Threshold = 20
	cfg.Tier2.Threshold = 5
	cfg.Tier3.Threshold = 1
	cfg.Animation = "legacy.webm"

	tiers := cfg.Tiers()
	assert.Equal(t, 20.0, tiers[1].Threshold)
	assert.Equal(t, 20.0, tiers[2].Threshold)
	assert.Equal(t, "legacy.webm", tiers[0].Media)

	cfg.Tier1.Media = "own.webm"
	assert.Equal(t, "own.webm", cfg.Tiers()[0].Media)
}

func TestRender(t *testing.T) {
	ev := tip("12.500")
	assert.Equal(t, "alice tipped 12.500 TWICH\ngg", Render("", ev))
	assert.Equal(t, "alice/alice: {other} 12.500", Render("{user}/{user}: {other} {amount}", ev))

	ev.Sender = "{message}"
	assert.Equal(t, "{message} gg", Render("{user} {message}", ev))
}

func TestRender_ValuesNotRescanned(t *testing.T) {
	ev := tip("12.500")
	ev.Sender = "{amount}"
	ev.Message = "{user} {symbol}"

	assert.Equal(t, "{amount} tipped 12.500 TWICH\n{user} {symbol}", Render("", ev))
}

func TestPosition_Text(t *testing.T) {
	for _, p := range []Position{PositionTop, PositionCenter, PositionBottom} {
		text, err := p.MarshalText()
		require.NoError(t, err)

		var got Position
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, p, got)
	}

	got, err := ParsePosition(" BOTTOM ")
	require.NoError(t, err)
	assert.Equal(t, PositionBottom, got)

	var p Position
	assert.Error(t, p.UnmarshalText([]byte("left")))
}

func TestScheduler_PlaysOneAtATime(t *testing.T) {
	q := &sliceQueue{events: []domain.TipEvent{tip("1"), tip("60")}}
	media, text := &fakeMedia{}, &fakeText{}

	var played []int
	idles := 0
	s := NewScheduler(tieredConfig(), q, media, text,
		OnPlay(func(_ domain.TipEvent, tier int) { played = append(played, tier) }),
		OnIdle(func() { idles++ }),
	)

	s.Tick(0.05)
	require.Equal(t, Playing, s.State())
	assert.Equal(t, "t1.webm", media.file)
	assert.True(t, media.enabled)
	assert.Equal(t, 1, media.restarts)
	assert.True(t, text.enabled)
	assert.Equal(t, "alice tipped 1 TWICH\ngg", text.text)
	assert.Equal(t, 0, text.opacities[0])

	// Second event waits until the first finishes.
	for i := 0; i < 10; i++ {
		s.Tick(0.1)
	}
	assert.Equal(t, Playing, s.State())
	assert.Len(t, q.events, 1)

	for s.State() == Playing {
		s.Tick(0.1)
	}
	assert.Equal(t, 1, idles)
	assert.False(t, media.enabled)
	assert.False(t, text.enabled)
	assert.Len(t, q.events, 1)

	s.Tick(0.1)
	assert.Equal(t, Playing, s.State())
	assert.Equal(t, "t3.webm", media.file)
	assert.Equal(t, []int{1, 3}, played)
}

func TestScheduler_TextOnly(t *testing.T) {
	q := &sliceQueue{events: []domain.TipEvent{tip("5")}}
	media, text := &fakeMedia{enabled: true}, &fakeText{}
	cfg := DefaultConfig()
	cfg.FadeIn = 0

	s := NewScheduler(cfg, q, media, text)
	s.Tick(0)

	assert.Equal(t, Playing, s.State())
	assert.False(t, media.enabled)
	assert.Zero(t, media.restarts)
	assert.Equal(t, 100, text.opacities[0])
	assert.Equal(t, 0, s.Slot().Tier)
}

func TestScheduler_FadeEnvelope(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Duration = 2.0
	cfg.FadeIn = 0.5
	cfg.FadeOut = 0.5

	q := &sliceQueue{events: []domain.TipEvent{tip("1")}}
	s := NewScheduler(cfg, q, &fakeMedia{}, &fakeText{})
	s.Tick(0)

	var alphas []float64
	var elapsed []float64
	for s.State() == Playing {
		s.Tick(0.01)
		if s.State() == Playing {
			alphas = append(alphas, s.Opacity())
			elapsed = append(elapsed, s.Slot().Elapsed)
		}
	}

	require.NotEmpty(t, alphas)
	for i, a := range alphas {
		assert.GreaterOrEqual(t, a, 0.0)
		assert.LessOrEqual(t, a, 1.0)
		if i == 0 {
			continue
		}
		switch {
		case elapsed[i] <= cfg.FadeIn:
			assert.GreaterOrEqual(t, a, alphas[i-1], "fade-in at %.2f", elapsed[i])
		case elapsed[i] >= cfg.Duration-cfg.FadeOut:
			assert.LessOrEqual(t, a, alphas[i-1], "fade-out at %.2f", elapsed[i])
		default:
			assert.InDelta(t, 1.0, a, 1e-9)
		}
	}
}

func TestScheduler_OpacityAppliedOnlyOnChange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FadeIn = 0
	cfg.FadeOut = 0
	cfg.Duration = 1

	text := &fakeText{}
	s := NewScheduler(cfg, &sliceQueue{events: []domain.TipEvent{tip("1")}}, &fakeMedia{}, text)
	s.Tick(0)
	for i := 0; i < 5; i++ {
		s.Tick(0.1)
	}
	// Initial 100 on start, then one 100 after the guard reset.
	assert.Equal(t, []int{100, 100}, text.opacities)
}

func TestScheduler_Size(t *testing.T) {
	media, text := &fakeMedia{}, &fakeText{}
	s := NewScheduler(DefaultConfig(), &sliceQueue{}, media, text)

	w, h := s.Size()
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)

	text.w, text.h = 300, 40
	w, h = s.Size()
	assert.Equal(t, 300, w)
	assert.Equal(t, 40, h)

	media.w, media.h = 1280, 720
	w, h = s.Size()
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)
}

func TestTextOrigin(t *testing.T) {
	style := DefaultConfig().Text

	x, y := TextOrigin(style, 100, 50, 20, 4)
	assert.Equal(t, 40, x)
	assert.Equal(t, 40, y)

	style.Position = PositionCenter
	_, y = TextOrigin(style, 100, 50, 20, 4)
	assert.Equal(t, 23, y)

	style.Position = PositionBottom
	style.Margin = 2
	_, y = TextOrigin(style, 100, 50, 20, 4)
	assert.Equal(t, 44, y)

	style.Margin = 100
	_, y = TextOrigin(style, 100, 50, 20, 4)
	assert.Zero(t, y)
}
