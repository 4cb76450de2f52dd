package game

import (
	"context"
	"fmt"
)

// maxConsecutiveFailures bounds how many bad fetches in a row the
// prefetcher tolerates before giving up on the whole game.
const maxConsecutiveFailures = 3

// Prefetch resolves a full game's worth of rounds before play begins, so no
// network access happens mid-game. Every entity in an accepted round passes
// the validity predicate, and ids are unique across the entire game,
// distractors included. Partial games are never returned: the result has
// exactly cfg.Rounds rounds or the call fails with ErrInsufficientData.
func Prefetch(ctx context.Context, src Source, cfg Config) ([]Round, error) {
	used := make(map[int]struct{})
	rounds := make([]Round, 0, cfg.Rounds)
	failures := 0

	for len(rounds) < cfg.Rounds {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientData, err)
		}

		round, err := fetchRound(ctx, src, cfg, used)
		if err != nil {
			failures++
			if failures >= maxConsecutiveFailures {
				return nil, fmt.Errorf("%w: %v", ErrInsufficientData, err)
			}
			continue
		}

		failures = 0
		used[round.Answer.ID] = struct{}{}
		for _, choice := range round.Choices {
			used[choice.ID] = struct{}{}
		}
		rounds = append(rounds, round)
	}

	return rounds, nil
}

func fetchRound(ctx context.Context, src Source, cfg Config, used map[int]struct{}) (Round, error) {
	if cfg.Input != InputChoice {
		entity, err := src.FetchOne(ctx, cfg.Category, used)
		if err != nil {
			return Round{}, err
		}
		if err := checkEntities(used, entity); err != nil {
			return Round{}, err
		}
		return Round{Answer: entity}, nil
	}

	answer, choices, err := src.FetchWithChoices(ctx, cfg.Category, cfg.ChoiceCount, used)
	if err != nil {
		return Round{}, err
	}
	if len(choices) != cfg.ChoiceCount {
		return Round{}, fmt.Errorf("source returned %d choices, want %d", len(choices), cfg.ChoiceCount)
	}
	if err := checkEntities(used, choices...); err != nil {
		return Round{}, err
	}
	answerIncluded := false
	for _, choice := range choices {
		if choice.ID == answer.ID {
			answerIncluded = true
			break
		}
	}
	if !answerIncluded {
		return Round{}, fmt.Errorf("answer %d missing from choice set", answer.ID)
	}
	return Round{Answer: answer, Choices: choices}, nil
}

// checkEntities rejects invalid entities along with any id already used in
// this game or duplicated inside the candidate set itself.
func checkEntities(used map[int]struct{}, entities ...Entity) error {
	seen := make(map[int]struct{}, len(entities))
	for _, entity := range entities {
		if !entity.Valid() {
			return fmt.Errorf("entity %d (%s) is missing a sprite", entity.ID, entity.Name)
		}
		if _, ok := used[entity.ID]; ok {
			return fmt.Errorf("entity %d already used this game", entity.ID)
		}
		if _, ok := seen[entity.ID]; ok {
			return fmt.Errorf("entity %d duplicated in one round", entity.ID)
		}
		seen[entity.ID] = struct{}{}
	}
	return nil
}
