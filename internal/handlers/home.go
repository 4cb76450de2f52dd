package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/RonRicardo/whos-that-pokemon/internal/game"
	"github.com/RonRicardo/whos-that-pokemon/internal/scores"
)

// ScoreLister reads back the local result history.
type ScoreLister interface {
	Top(ctx context.Context, limit int) ([]scores.Entry, error)
}

type HomeHandler struct {
	store  *game.Store
	scores ScoreLister
}

// NewHomeHandler creates the session-creation and history handler. lister
// may be nil when no history store is configured.
func NewHomeHandler(store *game.Store, lister ScoreLister) *HomeHandler {
	return &HomeHandler{store: store, scores: lister}
}

func (h *HomeHandler) RegisterRoutes(r chi.Router) {
	r.Post("/games", h.createGame)
	r.Get("/scores", h.topScores)
}

type createGameRequest struct {
	Category string `json:"category"`
	Input    string `json:"input"`
}

func (h *HomeHandler) createGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, err := parseConfig(req.Category, req.Input)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.store.CreateSession(r.Context(), cfg)
	if err != nil {
		slog.Error("create session", "error", err)
		if errors.Is(err, game.ErrInsufficientData) || errors.Is(err, game.ErrSourceUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{
				Error:     "could not load enough Pokémon, try again",
				Retryable: true,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create game")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"gameId": session.ID})
}

func (h *HomeHandler) topScores(w http.ResponseWriter, r *http.Request) {
	if h.scores == nil {
		writeJSON(w, http.StatusOK, []scores.Entry{})
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	entries, err := h.scores.Top(r.Context(), limit)
	if err != nil {
		slog.Error("list scores", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load scores")
		return
	}
	if entries == nil {
		entries = []scores.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// parseConfig validates the two mode selectors and fills in the standard
// ruleset. Empty values take the defaults.
func parseConfig(category, input string) (game.Config, error) {
	cat := game.CategoryMode(category)
	switch cat {
	case "":
		cat = game.CategoryRestricted
	case game.CategoryRestricted, game.CategoryFull:
	default:
		return game.Config{}, errors.New("category must be restricted or full")
	}

	in := game.InputMode(input)
	switch in {
	case "":
		in = game.InputChoice
	case game.InputChoice, game.InputText:
	default:
		return game.Config{}, errors.New("input must be choice or text")
	}

	return game.NewConfig(cat, in), nil
}
