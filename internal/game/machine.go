package game

import (
	"context"
	"errors"
)

// Phase is the machine's top-level state.
type Phase string

const (
	PhaseLoading    Phase = "loading"
	PhaseLoadFailed Phase = "load_failed"
	PhaseGuessing   Phase = "guessing" // awaiting input for the current round
	PhaseRevealed   Phase = "revealed" // answer shown, advance pending
	PhaseComplete   Phase = "complete" // summary available
)

// RevealReason tags how the current round ended.
type RevealReason string

const (
	RevealCorrect   RevealReason = "correct"
	RevealExhausted RevealReason = "wrong"
	RevealTimeout   RevealReason = "timeout"
)

// ErrNoPendingSwitch is returned when confirming a mode switch that was
// never requested (or already resolved).
var ErrNoPendingSwitch = errors.New("no mode switch pending")

// Machine owns one player's game progression: the prefetched rounds, the
// per-round clock and attempts, score and history, and the transitions
// between rounds and into the end-of-game summary.
//
// The machine is deliberately single-threaded: every mutation happens inside
// one of its methods, driven by a clock tick, a guess submission, or
// prefetch completion. Callers that drive it from timers serialize access
// themselves (see Session).
type Machine struct {
	src Source
	cfg Config

	phase      Phase
	rounds     []Round
	roundIndex int

	clock        Clock
	attemptsLeft int
	wrong        map[string]struct{}
	hint         string
	reason       RevealReason

	score     int
	highScore int
	caught    []Entity

	pendingSwitch *Config

	// generation changes at every round and game boundary. Scheduled
	// callbacks capture it when created and are ignored once stale.
	generation uint64
}

// NewMachine creates a machine in the loading phase; call StartGame to
// resolve rounds and begin play.
func NewMachine(src Source) *Machine {
	return &Machine{
		src:   src,
		phase: PhaseLoading,
		wrong: make(map[string]struct{}),
	}
}

// StartGame discards everything but the running high score, prefetches a
// full game for cfg, and enters round zero. On ErrInsufficientData the
// machine lands in PhaseLoadFailed; a later StartGame recovers it.
func (m *Machine) StartGame(ctx context.Context, cfg Config) error {
	m.generation++
	m.cfg = cfg
	m.phase = PhaseLoading
	m.rounds = nil
	m.roundIndex = 0
	m.score = 0
	m.caught = nil
	m.pendingSwitch = nil

	rounds, err := Prefetch(ctx, m.src, cfg)
	if err != nil {
		m.phase = PhaseLoadFailed
		return err
	}

	m.rounds = rounds
	m.enterRound(0)
	return nil
}

// enterRound resets all per-round state and invalidates anything scheduled
// for the previous round.
func (m *Machine) enterRound(index int) {
	m.generation++
	m.roundIndex = index
	m.clock = newClock(m.cfg.RoundSeconds)
	m.attemptsLeft = m.cfg.MaxAttempts
	m.wrong = make(map[string]struct{})
	m.hint = ""
	m.reason = ""
	m.phase = PhaseGuessing
}

// Tick consumes one second of the round clock. When the countdown reaches
// zero the round is revealed with the timeout tag. Returns true when state
// changed. Ticks outside an active round are ignored.
func (m *Machine) Tick() bool {
	if m.phase != PhaseGuessing || m.clock.State != ClockRunning {
		return false
	}
	if expired := m.clock.tick(); expired {
		m.reveal(RevealTimeout)
	}
	return true
}

// SubmitGuess evaluates a guess for the current round. Outside an active
// round (or with a depleted clock) the submission is a silent no-op: the UI
// should prevent it, but races with the ticker are possible. ok is false
// for those no-ops and for repeated wrong guesses.
func (m *Machine) SubmitGuess(guess string) (Outcome, bool) {
	if m.phase != PhaseGuessing || m.clock.State != ClockRunning || m.attemptsLeft <= 0 {
		return Outcome{}, false
	}

	round := m.rounds[m.roundIndex]
	out := Evaluate(round, guess, m.attemptsLeft, m.clock.Remaining, m.cfg, m.wrong)

	switch out.Verdict {
	case VerdictRepeat:
		return out, false

	case VerdictCorrect:
		m.score += out.ScoreDelta
		if m.score > m.highScore {
			m.highScore = m.score
		}
		m.caught = append(m.caught, round.Answer)
		m.reveal(RevealCorrect)

	case VerdictIncorrect:
		m.attemptsLeft = out.AttemptsLeft
		m.wrong[NormalizeGuess(guess)] = struct{}{}
		if out.HintTriggered {
			m.hint = out.Hint
		}
		if out.RoundEnds {
			m.reveal(RevealExhausted)
		}
	}

	return out, true
}

func (m *Machine) reveal(reason RevealReason) {
	m.clock.reveal()
	m.reason = reason
	m.phase = PhaseRevealed
}

// AdvancePending reports whether the machine is waiting to move past a
// revealed round, and the generation an Advance call must present. This is
// the deterministic "ready to advance" signal: the reveal delay shown to
// players is purely presentational.
func (m *Machine) AdvancePending() (uint64, bool) {
	return m.generation, m.phase == PhaseRevealed
}

// Advance moves from a revealed round to the next one, or to the summary
// when every round has been played. Calls carrying a stale generation (a
// timer that outlived its round) are ignored.
func (m *Machine) Advance(generation uint64) bool {
	if m.phase != PhaseRevealed || generation != m.generation {
		return false
	}
	if m.roundIndex+1 >= m.cfg.Rounds {
		m.generation++
		m.phase = PhaseComplete
		return true
	}
	m.enterRound(m.roundIndex + 1)
	return true
}

// midPlay reports whether switching modes now would destroy progress: the
// clock is running and the game has moved past its untouched first second.
func (m *Machine) midPlay() bool {
	if m.phase != PhaseGuessing || m.clock.State != ClockRunning {
		return false
	}
	return m.roundIndex > 0 ||
		m.score > 0 ||
		m.attemptsLeft < m.cfg.MaxAttempts ||
		m.clock.Remaining < m.cfg.RoundSeconds
}

// RequestModeSwitch either switches immediately (no round mid-play) or
// parks the target config until ConfirmModeSwitch/CancelModeSwitch resolves
// it. switched reports which happened; err is only meaningful when a switch
// actually started a game.
func (m *Machine) RequestModeSwitch(ctx context.Context, cfg Config) (switched bool, err error) {
	if m.midPlay() {
		m.pendingSwitch = &cfg
		return false, nil
	}
	return true, m.StartGame(ctx, cfg)
}

// ConfirmModeSwitch starts the game the pending request asked for.
func (m *Machine) ConfirmModeSwitch(ctx context.Context) error {
	if m.pendingSwitch == nil {
		return ErrNoPendingSwitch
	}
	cfg := *m.pendingSwitch
	m.pendingSwitch = nil
	return m.StartGame(ctx, cfg)
}

// CancelModeSwitch drops a pending request; play continues untouched.
func (m *Machine) CancelModeSwitch() {
	m.pendingSwitch = nil
}

// SwitchPending returns the parked target config, if any.
func (m *Machine) SwitchPending() (Config, bool) {
	if m.pendingSwitch == nil {
		return Config{}, false
	}
	return *m.pendingSwitch, true
}

// DismissSummary starts a fresh game with the same config. Only valid from
// the summary.
func (m *Machine) DismissSummary(ctx context.Context) error {
	if m.phase != PhaseComplete {
		return nil
	}
	return m.StartGame(ctx, m.cfg)
}

// Summary exposes the finished game's score and the entities the player
// identified, in the order they were caught.
type Summary struct {
	Score     int      `json:"score"`
	HighScore int      `json:"highScore"`
	Caught    []Entity `json:"caught"`
	Config    Config   `json:"config"`
}

func (m *Machine) Summary() (Summary, bool) {
	if m.phase != PhaseComplete {
		return Summary{}, false
	}
	caught := make([]Entity, len(m.caught))
	copy(caught, m.caught)
	return Summary{
		Score:     m.score,
		HighScore: m.highScore,
		Caught:    caught,
		Config:    m.cfg,
	}, true
}

func (m *Machine) Phase() Phase         { return m.phase }
func (m *Machine) Config() Config       { return m.cfg }
func (m *Machine) Score() int           { return m.score }
func (m *Machine) HighScore() int       { return m.highScore }
func (m *Machine) RoundIndex() int      { return m.roundIndex }
func (m *Machine) TimeLeft() int        { return m.clock.Remaining }
func (m *Machine) AttemptsLeft() int    { return m.attemptsLeft }
func (m *Machine) Hint() string         { return m.hint }
func (m *Machine) Reason() RevealReason { return m.reason }
func (m *Machine) Generation() uint64   { return m.generation }

// CurrentRound returns the round in play; ok is false outside of one.
func (m *Machine) CurrentRound() (Round, bool) {
	if (m.phase != PhaseGuessing && m.phase != PhaseRevealed) || m.roundIndex >= len(m.rounds) {
		return Round{}, false
	}
	return m.rounds[m.roundIndex], true
}

// WrongGuesses lists the normalized guesses already judged incorrect this
// round. Choice mode uses it to disable picked options.
func (m *Machine) WrongGuesses() []string {
	out := make([]string, 0, len(m.wrong))
	for g := range m.wrong {
		out = append(out, g)
	}
	return out
}
