package state

import (
	"sync"
	"time"

	"github.com/danhigham/tipcharm/internal/domain"
)

const maxHistory = 50

// Played is one alert that started playing.
type Played struct {
	Event domain.TipEvent
	Tier  int
	At    time.Time
}

// Store is the state shared between the protocol worker and the host: the
// pending tip queue, recently played alerts and the operator status line.
// No method blocks.
type Store struct {
	mu        sync.RWMutex
	queue     []domain.TipEvent
	history   []Played
	status    string
	authState domain.AuthState
	drawFunc  func()
}

func New(drawFunc func()) *Store {
	return &Store{drawFunc: drawFunc}
}

func (s *Store) SetDrawFunc(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawFunc = f
}

// draw runs outside the lock; drawFunc may hand off to a goroutine that
// reads the store.
func (s *Store) draw() {
	s.mu.RLock()
	f := s.drawFunc
	s.mu.RUnlock()
	if f != nil {
		f()
	}
}

// Push appends ev to the queue and returns the new depth.
func (s *Store) Push(ev domain.TipEvent) int {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	n := len(s.queue)
	s.mu.Unlock()

	s.draw()
	return n
}

// Pop removes the oldest event. It returns false when the queue is empty.
func (s *Store) Pop() (domain.TipEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return domain.TipEvent{}, false
	}
	ev := s.queue[0]
	s.queue[0] = domain.TipEvent{}
	s.queue = s.queue[1:]
	if len(s.queue) == 0 {
		s.queue = nil
	}
	return ev, true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queue)
}

// Pending returns a copy of the queued events, oldest first.
func (s *Store) Pending() []domain.TipEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TipEvent, len(s.queue))
	copy(out, s.queue)
	return out
}

// RecordPlayed adds an alert to the history, keeping the newest maxHistory.
func (s *Store) RecordPlayed(ev domain.TipEvent, tier int, at time.Time) {
	s.mu.Lock()
	s.history = append(s.history, Played{Event: ev, Tier: tier, At: at})
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
	s.mu.Unlock()

	s.draw()
}

// History returns played alerts, newest first.
func (s *Store) History() []Played {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Played, len(s.history))
	for i, p := range s.history {
		out[len(s.history)-1-i] = p
	}
	return out
}

func (s *Store) SetStatus(text string) {
	s.mu.Lock()
	changed := s.status != text
	s.status = text
	s.mu.Unlock()

	if changed {
		s.draw()
	}
}

func (s *Store) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Store) SetAuthState(as domain.AuthState) {
	s.mu.Lock()
	s.authState = as
	s.mu.Unlock()

	s.draw()
}

func (s *Store) GetAuthState() domain.AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authState
}
