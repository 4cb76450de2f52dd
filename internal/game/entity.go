package game

import (
	"context"
	"errors"
)

// CategoryMode selects which slice of the National Dex a game draws from.
type CategoryMode string

const (
	CategoryRestricted CategoryMode = "restricted" // original 151 only
	CategoryFull       CategoryMode = "full"
)

// InputMode selects how the player answers a round.
type InputMode string

const (
	InputChoice InputMode = "choice"
	InputText   InputMode = "text"
)

var (
	// ErrSourceUnavailable marks a transient entity-source failure. The
	// prefetcher retries these within its consecutive-failure budget.
	ErrSourceUnavailable = errors.New("entity source unavailable")

	// ErrInsufficientData means a full game's worth of valid rounds could
	// not be assembled. Fatal to the StartGame call that triggered it.
	ErrInsufficientData = errors.New("not enough valid entities for a full game")
)

// Entity is one guessable subject: a Pokémon with a stable dex id and the
// two sprite renditions the UI needs (silhouette and reveal).
type Entity struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	FrontSprite string `json:"frontSprite"`
	BackSprite  string `json:"backSprite"`
}

// Valid reports whether the entity can carry a round: both sprite
// renditions must be present.
func (e Entity) Valid() bool {
	return e.FrontSprite != "" && e.BackSprite != ""
}

// Round is one timed challenge. Choices is empty in text mode; in choice
// mode it is the full fetched option set and already contains the answer.
type Round struct {
	Answer  Entity   `json:"answer"`
	Choices []Entity `json:"choices,omitempty"`
}

// Source supplies random entities. Implementations must honor the exclusion
// set so the same entity never appears twice in one game.
type Source interface {
	// FetchOne returns one random entity outside the excluded id set.
	FetchOne(ctx context.Context, category CategoryMode, exclude map[int]struct{}) (Entity, error)

	// FetchWithChoices returns a correct entity plus a shuffled option set
	// of count entities that includes the answer, all outside exclude.
	FetchWithChoices(ctx context.Context, category CategoryMode, count int, exclude map[int]struct{}) (Entity, []Entity, error)
}

// Config is fixed for the lifetime of one game; switching any of it means
// starting a new game.
type Config struct {
	Category     CategoryMode `json:"category"`
	Input        InputMode    `json:"input"`
	RoundSeconds int          `json:"roundSeconds"`
	Rounds       int          `json:"rounds"`
	MaxAttempts  int          `json:"maxAttempts"`
	ChoiceCount  int          `json:"choiceCount"`
	QuickBonus   int          `json:"quickBonus"`
	QuickWindow  int          `json:"quickWindow"`
}

const (
	defaultRoundSeconds = 30
	defaultRounds       = 5
	defaultChoiceCount  = 3
	defaultQuickBonus   = 15
	defaultQuickWindow  = 10

	maxAttemptsChoice = 2
	maxAttemptsText   = 3
)

// NewConfig returns the standard ruleset for the given modes.
func NewConfig(category CategoryMode, input InputMode) Config {
	cfg := Config{
		Category:     category,
		Input:        input,
		RoundSeconds: defaultRoundSeconds,
		Rounds:       defaultRounds,
		QuickBonus:   defaultQuickBonus,
		QuickWindow:  defaultQuickWindow,
	}
	if input == InputChoice {
		cfg.MaxAttempts = maxAttemptsChoice
		cfg.ChoiceCount = defaultChoiceCount
	} else {
		cfg.MaxAttempts = maxAttemptsText
	}
	return cfg
}
