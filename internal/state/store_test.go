package state_test

import (
	"sync"
	"testing"
	"time"

	"github.com/danhigham/tipcharm/internal/domain"
	"github.com/danhigham/tipcharm/internal/state"
)

func TestStore_FIFO(t *testing.T) {
	s := state.New(nil) // nil drawFunc for testing

	if _, ok := s.Pop(); ok {
		t.Fatal("Pop on empty store returned an event")
	}

	s.Push(domain.TipEvent{Sender: "alice"})
	if n := s.Push(domain.TipEvent{Sender: "bob"}); n != 2 {
		t.Fatalf("Push depth = %d, want 2", n)
	}

	for _, want := range []string{"alice", "bob"} {
		ev, ok := s.Pop()
		if !ok {
			t.Fatalf("Pop returned nothing, want %q", want)
		}
		if ev.Sender != want {
			t.Errorf("Sender = %q, want %q", ev.Sender, want)
		}
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestStore_ConcurrentPushPop(t *testing.T) {
	s := state.New(nil)

	const producers, perProducer = 4, 250
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				s.Push(domain.TipEvent{})
			}
		}()
	}

	popped := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		if _, ok := s.Pop(); ok {
			popped++
			continue
		}
		select {
		case <-done:
			for {
				if _, ok := s.Pop(); !ok {
					break
				}
				popped++
			}
			if popped != producers*perProducer {
				t.Fatalf("popped %d events, want %d", popped, producers*perProducer)
			}
			return
		default:
		}
	}
}

func TestStore_HistoryLimit(t *testing.T) {
	s := state.New(nil)

	now := time.Now()
	for i := 0; i < 60; i++ {
		s.RecordPlayed(domain.TipEvent{TimestampMS: int64(i)}, 1, now)
	}

	h := s.History()
	if len(h) != 50 {
		t.Fatalf("history = %d, want 50", len(h))
	}
	if h[0].Event.TimestampMS != 59 {
		t.Errorf("newest = %d, want 59", h[0].Event.TimestampMS)
	}
	if h[49].Event.TimestampMS != 10 {
		t.Errorf("oldest = %d, want 10", h[49].Event.TimestampMS)
	}
}

func TestStore_DrawOnChange(t *testing.T) {
	draws := 0
	s := state.New(func() { draws++ })

	s.SetStatus("Starting")
	s.SetStatus("Starting")
	s.SetAuthState(domain.AuthStateReady)
	s.Push(domain.TipEvent{})

	if draws != 3 {
		t.Errorf("draws = %d, want 3", draws)
	}
	if s.Status() != "Starting" {
		t.Errorf("Status = %q, want Starting", s.Status())
	}
	if s.GetAuthState() != domain.AuthStateReady {
		t.Errorf("AuthState = %v, want ready", s.GetAuthState())
	}
}
