package game

// MachineSnapshot is the serializable form of a machine mid-game. Restoring
// one reproduces identical behavior for the same subsequent inputs, which
// is also what makes transition tests deterministic.
type MachineSnapshot struct {
	Config        Config       `json:"config"`
	Phase         Phase        `json:"phase"`
	Rounds        []Round      `json:"rounds"`
	RoundIndex    int          `json:"roundIndex"`
	Clock         Clock        `json:"clock"`
	AttemptsLeft  int          `json:"attemptsLeft"`
	WrongGuesses  []string     `json:"wrongGuesses,omitempty"`
	Hint          string       `json:"hint,omitempty"`
	Reason        RevealReason `json:"reason,omitempty"`
	Score         int          `json:"score"`
	HighScore     int          `json:"highScore"`
	Caught        []Entity     `json:"caught,omitempty"`
	PendingSwitch *Config      `json:"pendingSwitch,omitempty"`
}

// Snapshot captures the machine's full mutable state.
func (m *Machine) Snapshot() MachineSnapshot {
	snap := MachineSnapshot{
		Config:       m.cfg,
		Phase:        m.phase,
		Rounds:       append([]Round(nil), m.rounds...),
		RoundIndex:   m.roundIndex,
		Clock:        m.clock,
		AttemptsLeft: m.attemptsLeft,
		WrongGuesses: m.WrongGuesses(),
		Hint:         m.hint,
		Reason:       m.reason,
		Score:        m.score,
		HighScore:    m.highScore,
		Caught:       append([]Entity(nil), m.caught...),
	}
	if m.pendingSwitch != nil {
		cfg := *m.pendingSwitch
		snap.PendingSwitch = &cfg
	}
	return snap
}

// RestoreMachine rebuilds a machine from a snapshot. The generation counter
// starts over; any timers scheduled against the old machine are dead by
// construction.
func RestoreMachine(src Source, snap MachineSnapshot) *Machine {
	m := NewMachine(src)
	m.cfg = snap.Config
	m.phase = snap.Phase
	m.rounds = append([]Round(nil), snap.Rounds...)
	m.roundIndex = snap.RoundIndex
	m.clock = snap.Clock
	m.attemptsLeft = snap.AttemptsLeft
	for _, g := range snap.WrongGuesses {
		m.wrong[g] = struct{}{}
	}
	m.hint = snap.Hint
	m.reason = snap.Reason
	m.score = snap.Score
	m.highScore = snap.HighScore
	m.caught = append([]Entity(nil), snap.Caught...)
	if snap.PendingSwitch != nil {
		cfg := *snap.PendingSwitch
		m.pendingSwitch = &cfg
	}
	return m
}
