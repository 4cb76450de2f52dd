package game

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"sync"
	"time"

	"github.com/RonRicardo/whos-that-pokemon/pkg/realtime"
)

// RevealDelay is how long a revealed answer stays on screen before the next
// round loads. Presentation affordance only: the machine's AdvancePending
// signal is what tests drive.
const RevealDelay = 1500 * time.Millisecond

// Session binds one machine to wall-clock time. The machine itself is
// single-threaded; the session serializes HTTP requests and the timer loop
// behind one mutex, and turns deadlines (next second tick, reveal delay)
// into machine stimuli.
type Session struct {
	mu        sync.Mutex
	ID        string
	CreatedAt time.Time

	machine *Machine

	nextTick   time.Time // deadline of the next one-second tick
	advanceAt  time.Time // reveal-delay deadline; zero when nothing pending
	advanceGen uint64    // generation the scheduled advance belongs to
}

// NewSession creates a session around a fresh machine. No game is running
// until Start succeeds.
func NewSession(src Source) *Session {
	return &Session{
		ID:        newID(),
		CreatedAt: time.Now().UTC(),
		machine:   NewMachine(src),
	}
}

// Start prefetches a full game and arms the first round's tick deadline.
func (s *Session) Start(ctx context.Context, cfg Config, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearTimersLocked()
	if err := s.machine.StartGame(ctx, cfg); err != nil {
		return err
	}
	s.nextTick = now.Add(time.Second)
	return nil
}

// Step is the session's timer reaction, called by the realtime loop. It
// fires whichever deadlines have passed, reschedules, and reports the next
// wake time. done is true when no deadline remains (summary or failed load).
func (s *Session) Step(now time.Time) (next time.Time, events []realtime.Event, done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.advanceAt.IsZero() && !now.Before(s.advanceAt) {
		gen := s.advanceGen
		s.advanceAt = time.Time{}
		if s.machine.Advance(gen) {
			events = append(events, realtime.EventState)
			if s.machine.Phase() == PhaseComplete {
				events = append(events, realtime.EventComplete)
			} else {
				s.nextTick = now.Add(time.Second)
			}
		}
	}

	if s.machine.Phase() == PhaseGuessing && !s.nextTick.IsZero() && !now.Before(s.nextTick) {
		if s.machine.Tick() {
			events = append(events, realtime.EventState)
		}
		if gen, pending := s.machine.AdvancePending(); pending {
			// Timed out; hold the reveal on screen, then advance.
			s.nextTick = time.Time{}
			s.advanceAt = now.Add(RevealDelay)
			s.advanceGen = gen
		} else {
			s.nextTick = now.Add(time.Second)
		}
	}

	switch {
	case !s.advanceAt.IsZero():
		return s.advanceAt, events, false
	case s.machine.Phase() == PhaseGuessing && !s.nextTick.IsZero():
		return s.nextTick, events, false
	default:
		return time.Time{}, events, true
	}
}

// SubmitGuess forwards a guess and, when it ends the round, schedules the
// advance. The caller wakes the loop so the new deadline takes effect.
func (s *Session) SubmitGuess(guess string, now time.Time) (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.machine.SubmitGuess(guess)
	if gen, pending := s.machine.AdvancePending(); pending {
		s.nextTick = time.Time{}
		s.advanceAt = now.Add(RevealDelay)
		s.advanceGen = gen
	}
	return out, ok
}

// RequestModeSwitch switches immediately when nothing is mid-play,
// otherwise parks the config for confirmation.
func (s *Session) RequestModeSwitch(ctx context.Context, cfg Config, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switched, err := s.machine.RequestModeSwitch(ctx, cfg)
	if switched && err == nil {
		s.clearTimersLocked()
		s.nextTick = now.Add(time.Second)
	}
	return switched, err
}

// ConfirmModeSwitch starts the parked game. With no switch pending (double
// click, confirm after cancel) the current game's deadlines stay armed.
func (s *Session) ConfirmModeSwitch(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, pending := s.machine.SwitchPending(); !pending {
		return ErrNoPendingSwitch
	}
	s.clearTimersLocked()
	if err := s.machine.ConfirmModeSwitch(ctx); err != nil {
		return err
	}
	s.nextTick = now.Add(time.Second)
	return nil
}

func (s *Session) CancelModeSwitch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.CancelModeSwitch()
}

// DismissSummary starts a fresh game with the same config.
func (s *Session) DismissSummary(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine.Phase() != PhaseComplete {
		return nil
	}
	s.clearTimersLocked()
	if err := s.machine.DismissSummary(ctx); err != nil {
		return err
	}
	s.nextTick = now.Add(time.Second)
	return nil
}

func (s *Session) Summary() (Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Summary()
}

// View runs fn with the machine locked, for building read-only snapshots.
func (s *Session) View(fn func(m *Machine)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.machine)
}

// clearTimersLocked drops every scheduled deadline before state is replaced
// so nothing fires against a superseded game.
func (s *Session) clearTimersLocked() {
	s.nextTick = time.Time{}
	s.advanceAt = time.Time{}
}

// newID returns a short URL-safe session id.
func newID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b)[:12]
}
