// Package viewmodel shapes machine state for the browser. It is the only
// place that decides what the client may see: a round in play never exposes
// the answer's name or reveal sprite.
package viewmodel

import (
	"sort"

	"github.com/RonRicardo/whos-that-pokemon/internal/game"
)

// EntityView is a Pokémon as the client sees it. Name and BackSprite are
// empty until the round is revealed.
type EntityView struct {
	ID          int    `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	FrontSprite string `json:"frontSprite,omitempty"`
	BackSprite  string `json:"backSprite,omitempty"`
}

// ChoiceView is one selectable option in multiple-choice mode.
type ChoiceView struct {
	Name   string `json:"name"`
	Picked bool   `json:"picked"`
}

// GameView is the full client-facing session state.
type GameView struct {
	GameID       string       `json:"gameId"`
	Phase        string       `json:"phase"`
	Category     string       `json:"category"`
	Input        string       `json:"input"`
	Round        int          `json:"round"`
	TotalRounds  int          `json:"totalRounds"`
	TimeLeft     int          `json:"timeLeft"`
	AttemptsLeft int          `json:"attemptsLeft"`
	Score        int          `json:"score"`
	HighScore    int          `json:"highScore"`
	Hint         string       `json:"hint,omitempty"`
	Entity       *EntityView  `json:"entity,omitempty"`
	Choices      []ChoiceView `json:"choices,omitempty"`
	WrongGuesses []string     `json:"wrongGuesses,omitempty"`
	RevealReason string       `json:"revealReason,omitempty"`
	SwitchPrompt *ModeView    `json:"switchPrompt,omitempty"`
	Summary      *SummaryView `json:"summary,omitempty"`
}

// ModeView describes a parked mode switch awaiting confirmation.
type ModeView struct {
	Category string `json:"category"`
	Input    string `json:"input"`
}

// SummaryView is the end-of-game payload.
type SummaryView struct {
	Score     int          `json:"score"`
	HighScore int          `json:"highScore"`
	Caught    []EntityView `json:"caught"`
}

// BuildGameView reads m into a GameView. Callers must hold the session lock
// (use Session.View).
func BuildGameView(gameID string, m *game.Machine) GameView {
	cfg := m.Config()
	view := GameView{
		GameID:       gameID,
		Phase:        string(m.Phase()),
		Category:     string(cfg.Category),
		Input:        string(cfg.Input),
		Round:        m.RoundIndex() + 1,
		TotalRounds:  cfg.Rounds,
		TimeLeft:     m.TimeLeft(),
		AttemptsLeft: m.AttemptsLeft(),
		Score:        m.Score(),
		HighScore:    m.HighScore(),
		Hint:         m.Hint(),
	}

	if pending, ok := m.SwitchPending(); ok {
		view.SwitchPrompt = &ModeView{
			Category: string(pending.Category),
			Input:    string(pending.Input),
		}
	}

	if round, ok := m.CurrentRound(); ok {
		revealed := m.Phase() == game.PhaseRevealed
		view.Entity = entityView(round.Answer, revealed)
		view.WrongGuesses = sortedGuesses(m.WrongGuesses())
		if cfg.Input == game.InputChoice {
			view.Choices = choiceViews(round.Choices, m.WrongGuesses())
		}
		if revealed {
			view.RevealReason = string(m.Reason())
		}
	}

	if summary, ok := m.Summary(); ok {
		caught := make([]EntityView, 0, len(summary.Caught))
		for _, entity := range summary.Caught {
			caught = append(caught, *entityView(entity, true))
		}
		view.Summary = &SummaryView{
			Score:     summary.Score,
			HighScore: summary.HighScore,
			Caught:    caught,
		}
	}

	return view
}

// entityView hides the identifying fields until revealed is true. The id
// also stays hidden mid-round; dex numbers give the answer away.
func entityView(entity game.Entity, revealed bool) *EntityView {
	if !revealed {
		return &EntityView{FrontSprite: entity.FrontSprite}
	}
	return &EntityView{
		ID:          entity.ID,
		Name:        entity.Name,
		FrontSprite: entity.FrontSprite,
		BackSprite:  entity.BackSprite,
	}
}

func choiceViews(choices []game.Entity, wrong []string) []ChoiceView {
	picked := make(map[string]struct{}, len(wrong))
	for _, guess := range wrong {
		picked[guess] = struct{}{}
	}
	out := make([]ChoiceView, 0, len(choices))
	for _, choice := range choices {
		_, wasPicked := picked[game.NormalizeGuess(choice.Name)]
		out = append(out, ChoiceView{Name: choice.Name, Picked: wasPicked})
	}
	return out
}

// sortedGuesses keeps the JSON stable; the machine stores guesses in a map.
func sortedGuesses(guesses []string) []string {
	sort.Strings(guesses)
	return guesses
}
