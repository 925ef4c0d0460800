// Package alert plays tip events one at a time: an optional tier media
// file plus a templated text that fades in and out.
package alert

import (
	"go.uber.org/zap"

	"github.com/danhigham/tipcharm/internal/domain"
)

// State of the Scheduler.
type State int

const (
	Idle State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "idle"
}

// Queue is the source of pending events. Pop must not block.
type Queue interface {
	Pop() (domain.TipEvent, bool)
}

// Slot is the alert in flight.
type Slot struct {
	Event     domain.TipEvent
	Elapsed   float64
	Remaining float64
	Media     string
	Tier      int
}

// Scheduler is driven by the host tick and is not safe for concurrent use.
type Scheduler struct {
	cfg   Config
	tiers Tiers
	queue Queue
	media Media
	text  Text

	state       State
	slot        Slot
	lastOpacity int

	logger *zap.Logger
	onPlay func(ev domain.TipEvent, tier int)
	onIdle func()
}

type Option func(*Scheduler)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// OnPlay is called when an alert starts.
func OnPlay(fn func(ev domain.TipEvent, tier int)) Option {
	return func(s *Scheduler) { s.onPlay = fn }
}

// OnIdle is called when an alert ends.
func OnIdle(fn func()) Option {
	return func(s *Scheduler) { s.onIdle = fn }
}

func NewScheduler(cfg Config, queue Queue, media Media, text Text, opts ...Option) *Scheduler {
	s := &Scheduler{
		queue:       queue,
		media:       media,
		text:        text,
		lastOpacity: -1,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.Update(cfg)
	return s
}

// Update applies a new configuration. An alert in flight keeps its
// duration.
func (s *Scheduler) Update(cfg Config) {
	s.cfg = cfg
	s.tiers = cfg.Tiers()
}

func (s *Scheduler) Config() Config { return s.cfg }

func (s *Scheduler) State() State { return s.state }

// Slot returns the alert in flight. It is the zero Slot when Idle.
func (s *Scheduler) Slot() Slot { return s.slot }

// Tick advances the scheduler by delta seconds.
func (s *Scheduler) Tick(delta float64) {
	if s.state == Playing {
		s.advance(delta)
		return
	}

	ev, ok := s.queue.Pop()
	if !ok {
		return
	}
	s.start(ev)
}

func (s *Scheduler) advance(delta float64) {
	s.slot.Elapsed += delta
	s.slot.Remaining -= delta

	s.setOpacity(s.Opacity())

	if s.slot.Remaining <= 0 {
		s.state = Idle
		s.slot = Slot{}
		s.media.SetEnabled(false)
		s.text.SetEnabled(false)
		if s.onIdle != nil {
			s.onIdle()
		}
	}
}

// Opacity is the text opacity in [0, 1] for the alert in flight: the
// lesser of the fade-in and fade-out ramps.
func (s *Scheduler) Opacity() float64 {
	alpha := 1.0
	if s.cfg.FadeIn > 0 && s.slot.Elapsed < s.cfg.FadeIn {
		alpha = s.slot.Elapsed / s.cfg.FadeIn
	}
	if s.cfg.FadeOut > 0 && s.slot.Remaining < s.cfg.FadeOut {
		if a := s.slot.Remaining / s.cfg.FadeOut; a < alpha {
			alpha = a
		}
	}
	switch {
	case alpha < 0:
		return 0
	case alpha > 1:
		return 1
	}
	return alpha
}

func (s *Scheduler) setOpacity(alpha float64) {
	percent := int(alpha * 100)
	if percent == s.lastOpacity {
		return
	}
	s.text.SetOpacity(percent)
	s.lastOpacity = percent
}

func (s *Scheduler) start(ev domain.TipEvent) {
	tier, media := s.tiers.Select(ev.Amount)

	s.text.SetText(Render(s.cfg.Template, ev))
	s.text.SetStyle(s.cfg.Text)
	initial := 100
	if s.cfg.FadeIn > 0 {
		initial = 0
	}
	s.text.SetOpacity(initial)
	s.lastOpacity = -1

	if media != "" {
		s.media.SetFile(media)
		s.media.SetEnabled(true)
		s.media.Restart()
	} else {
		s.media.SetEnabled(false)
	}
	s.text.SetEnabled(true)

	s.state = Playing
	s.slot = Slot{
		Event:     ev,
		Remaining: s.cfg.Duration,
		Media:     media,
		Tier:      tier,
	}

	s.logger.Info("Alert started",
		zap.String("sender", ev.Sender),
		zap.String("amount", ev.AmountDisplay),
		zap.Int("tier", tier),
	)
	if s.onPlay != nil {
		s.onPlay(ev, tier)
	}
}

// Size reports the canvas size: the media size if known, then the text
// size, then 1920x1080.
func (s *Scheduler) Size() (int, int) {
	w, h := 0, 0
	if mw, mh := s.media.Size(); mw > 0 || mh > 0 {
		w, h = mw, mh
	}
	tw, th := s.text.Size()
	if w == 0 {
		w = tw
	}
	if h == 0 {
		h = th
	}
	if w == 0 {
		w = DefaultWidth
	}
	if h == 0 {
		h = DefaultHeight
	}
	return w, h
}

const (
	DefaultWidth  = 1920
	DefaultHeight = 1080
)

// TextOrigin is the top-left corner of a tw x th text block on a w x h
// canvas: centered horizontally, placed vertically by style.
func TextOrigin(style TextStyle, w, h, tw, th int) (x, y int) {
	if tw > 0 && w > tw {
		x = (w - tw) / 2
	}
	switch style.Position {
	case PositionCenter:
		if th > 0 && h > th {
			y = (h - th) / 2
		}
	case PositionBottom:
		if th > 0 && h > th {
			y = h - th - style.Margin
		}
	default:
		y = style.Margin
	}
	if y < 0 {
		y = 0
	}
	return x, y
}
