package realtime

import (
	"context"
	"sync"
	"time"
)

// Room holds state and a broadcaster for one room.
type Room[T any] struct {
	ID    string
	State T
	hub   *Broadcaster
}

// RoomStore manages rooms, their broadcasters, and an optional timer loop
// per room. The loop sleeps until the deadline the room reports and can be
// woken early when a request changes that deadline.
type RoomStore[T any] struct {
	mu    sync.RWMutex
	rooms map[string]*Room[T]
	loops map[string]context.CancelFunc
	wakes map[string]chan struct{}
}

// NewRoomStore creates an empty room store.
func NewRoomStore[T any]() *RoomStore[T] {
	return &RoomStore[T]{
		rooms: make(map[string]*Room[T]),
		loops: make(map[string]context.CancelFunc),
		wakes: make(map[string]chan struct{}),
	}
}

// Create adds a room with the given id and state, and a new Broadcaster.
func (s *RoomStore[T]) Create(id string, state T) *Room[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &Room[T]{ID: id, State: state, hub: NewBroadcaster()}
	s.rooms[id] = r
	return r
}

// Get returns the room by ID if it exists.
func (s *RoomStore[T]) Get(id string) (*Room[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

// Delete removes a room and stops its loop, if running.
func (s *RoomStore[T]) Delete(id string) {
	s.mu.Lock()
	cancel, running := s.loops[id]
	delete(s.rooms, id)
	s.mu.Unlock()
	if running {
		cancel()
	}
}

// Publish notifies subscribers of the room's broadcaster.
func (s *RoomStore[T]) Publish(id string, event Event) {
	s.Broadcaster(id).Publish(event)
}

// Broadcaster returns the broadcaster for the room, creating it if the room
// exists but had none.
func (s *RoomStore[T]) Broadcaster(id string) *Broadcaster {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		hub := NewBroadcaster()
		s.rooms[id] = &Room[T]{ID: id, hub: hub}
		return hub
	}
	if r.hub == nil {
		r.hub = NewBroadcaster()
	}
	return r.hub
}

// StepFunc is called by RunLoop each time the room's timer fires (or the
// loop is woken). It returns the next deadline, events to publish now, and
// done=true when no deadline remains and the loop should exit.
type StepFunc[T any] func(state T, now time.Time) (next time.Time, events []Event, done bool)

// RunLoop starts the timer loop for a room. A second call for the same id
// while its loop is alive is a no-op, so callers can invoke it after every
// state change that might need timers again.
func (s *RoomStore[T]) RunLoop(id string, getState func() T, step StepFunc[T]) {
	s.mu.Lock()
	if _, ok := s.loops[id]; ok {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	wake := make(chan struct{}, 1)
	s.loops[id] = cancel
	s.wakes[id] = wake
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.loops, id)
			delete(s.wakes, id)
			s.mu.Unlock()
		}()

		for {
			state := getState()
			now := time.Now().UTC()
			next, events, done := step(state, now)
			// Publish before sleeping so subscribers see the change the
			// moment it happened, not when the next timer fires.
			for _, e := range events {
				s.Publish(id, e)
			}
			if done {
				return
			}
			wait := time.Until(next)
			if wait < 0 {
				wait = 0
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			case <-wake:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			}
		}
	}()
}

// Wake unblocks the room's loop so it recomputes its deadline immediately.
func (s *RoomStore[T]) Wake(id string) {
	s.mu.RLock()
	wake, ok := s.wakes[id]
	s.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case wake <- struct{}{}:
	default:
	}
}
