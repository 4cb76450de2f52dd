package game

import (
	"context"
	"log/slog"
	"time"

	"github.com/RonRicardo/whos-that-pokemon/pkg/realtime"
)

// Recorder receives finished-game summaries. Recording is best effort: the
// game never depends on it succeeding.
type Recorder interface {
	Record(ctx context.Context, summary Summary) error
}

// Store owns the live sessions, their SSE broadcasters, and their timer
// loops, and hands finished games to the recorder.
type Store struct {
	r        *realtime.RoomStore[*Session]
	src      Source
	recorder Recorder
}

// NewStore creates an in-memory session store. recorder may be nil.
func NewStore(src Source, recorder Recorder) *Store {
	return &Store{
		r:        realtime.NewRoomStore[*Session](),
		src:      src,
		recorder: recorder,
	}
}

// CreateSession prefetches a full game for cfg and starts its timer loop.
// Prefetch failure surfaces to the caller; no session is registered then.
func (s *Store) CreateSession(ctx context.Context, cfg Config) (*Session, error) {
	session := NewSession(s.src)
	if err := session.Start(ctx, cfg, time.Now().UTC()); err != nil {
		return nil, err
	}
	s.r.Create(session.ID, session)
	s.EnsureLoop(session.ID)
	return session, nil
}

// Get returns a session by ID if it exists.
func (s *Store) Get(id string) (*Session, bool) {
	room, ok := s.r.Get(id)
	if !ok {
		return nil, false
	}
	return room.State, true
}

// Broadcaster returns the SSE broadcaster for a session.
func (s *Store) Broadcaster(id string) *realtime.Broadcaster {
	return s.r.Broadcaster(id)
}

// Publish notifies subscribers of a session update.
func (s *Store) Publish(id string, event realtime.Event) {
	s.r.Publish(id, event)
}

// EnsureLoop starts the timing loop for a session if not already running.
// The loop drives clock ticks and reveal-delay advances, and exits once the
// session has no deadline left (summary reached or load failed).
func (s *Store) EnsureLoop(id string) {
	getState := func() *Session {
		room, ok := s.r.Get(id)
		if !ok {
			return nil
		}
		return room.State
	}
	step := func(session *Session, now time.Time) (time.Time, []realtime.Event, bool) {
		if session == nil {
			return time.Time{}, nil, true
		}
		next, events, done := session.Step(now)
		for _, event := range events {
			if event == realtime.EventComplete {
				s.recordResult(session)
			}
		}
		return next, events, done
	}
	s.r.RunLoop(id, getState, step)
}

// Wake unblocks the session's loop so a new deadline takes effect (e.g.
// right after a guess ends the round).
func (s *Store) Wake(id string) {
	s.r.Wake(id)
}

func (s *Store) recordResult(session *Session) {
	if s.recorder == nil {
		return
	}
	summary, ok := session.Summary()
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.recorder.Record(ctx, summary); err != nil {
		slog.Error("record game result", "session", session.ID, "error", err)
	}
}
