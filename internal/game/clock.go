package game

// ClockState is the lifecycle of one round's countdown.
type ClockState string

const (
	ClockRunning  ClockState = "running"
	ClockRevealed ClockState = "revealed" // terminal for the round
)

// Clock is a per-round countdown with one-second granularity. The machine
// owns the tick cadence; wall-clock scheduling lives in the session loop.
// Once revealed, ticks are ignored.
type Clock struct {
	Remaining int        `json:"remaining"`
	State     ClockState `json:"state"`
}

func newClock(seconds int) Clock {
	return Clock{Remaining: seconds, State: ClockRunning}
}

// tick consumes one second and reports whether the countdown just hit zero.
func (c *Clock) tick() bool {
	if c.State != ClockRunning || c.Remaining <= 0 {
		return false
	}
	c.Remaining--
	return c.Remaining == 0
}

func (c *Clock) reveal() {
	c.State = ClockRevealed
}
