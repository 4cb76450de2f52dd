package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/RonRicardo/whos-that-pokemon/internal/game"
	"github.com/RonRicardo/whos-that-pokemon/internal/scores"
	"github.com/RonRicardo/whos-that-pokemon/internal/viewmodel"
)

// poolSource deals entities with sequential ids, never repeating.
type poolSource struct {
	next int
	fail bool
}

func (s *poolSource) entity() game.Entity {
	s.next++
	return game.Entity{
		ID:          s.next,
		Name:        fmt.Sprintf("Pokemon%d", s.next),
		FrontSprite: fmt.Sprintf("front-%d.png", s.next),
		BackSprite:  fmt.Sprintf("back-%d.png", s.next),
	}
}

func (s *poolSource) FetchOne(ctx context.Context, category game.CategoryMode, exclude map[int]struct{}) (game.Entity, error) {
	if s.fail {
		return game.Entity{}, game.ErrSourceUnavailable
	}
	return s.entity(), nil
}

func (s *poolSource) FetchWithChoices(ctx context.Context, category game.CategoryMode, count int, exclude map[int]struct{}) (game.Entity, []game.Entity, error) {
	if s.fail {
		return game.Entity{}, nil, game.ErrSourceUnavailable
	}
	answer := s.entity()
	choices := []game.Entity{answer}
	for len(choices) < count {
		choices = append(choices, s.entity())
	}
	return answer, choices, nil
}

func newTestRouter(t *testing.T, src game.Source) (chi.Router, *game.Store) {
	t.Helper()
	history, err := scores.Open(":memory:")
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { history.Close() })

	store := game.NewStore(src, history)
	r := chi.NewRouter()
	NewHomeHandler(store, history).RegisterRoutes(r)
	NewGameHandler(store).RegisterRoutes(r)
	return r, store
}

func createGame(t *testing.T, r chi.Router, body string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/games", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create game status %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var resp struct {
		GameID string `json:"gameId"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if resp.GameID == "" {
		t.Fatal("empty gameId")
	}
	return resp.GameID
}

func getState(t *testing.T, r chi.Router, gameID string) viewmodel.GameView {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/game/"+gameID+"/state", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("state status %d, want %d", w.Code, http.StatusOK)
	}
	var view viewmodel.GameView
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return view
}

func TestCreateGame(t *testing.T) {
	r, _ := newTestRouter(t, &poolSource{})

	gameID := createGame(t, r, `{"category":"restricted","input":"choice"}`)

	view := getState(t, r, gameID)
	if view.Phase != "guessing" {
		t.Errorf("Phase %q, want guessing", view.Phase)
	}
	if view.Category != "restricted" || view.Input != "choice" {
		t.Errorf("modes %s/%s, want restricted/choice", view.Category, view.Input)
	}
	if len(view.Choices) != 3 {
		t.Errorf("got %d choices, want 3", len(view.Choices))
	}
}

func TestCreateGame_InvalidCategory(t *testing.T) {
	r, _ := newTestRouter(t, &poolSource{})

	req := httptest.NewRequest(http.MethodPost, "/games", strings.NewReader(`{"category":"johto"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestCreateGame_SourceDown(t *testing.T) {
	r, _ := newTestRouter(t, &poolSource{fail: true})

	req := httptest.NewRequest(http.MethodPost, "/games", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	var body struct {
		Retryable bool `json:"retryable"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if !body.Retryable {
		t.Error("Retryable = false, want true")
	}
}

func TestState_WithholdsAnswer(t *testing.T) {
	r, _ := newTestRouter(t, &poolSource{})
	gameID := createGame(t, r, `{"input":"text"}`)

	view := getState(t, r, gameID)

	if view.Entity == nil {
		t.Fatal("Entity is nil")
	}
	if view.Entity.Name != "" || view.Entity.BackSprite != "" || view.Entity.ID != 0 {
		t.Errorf("answer leaked: %+v", view.Entity)
	}
}

func TestState_UnknownGame(t *testing.T) {
	r, _ := newTestRouter(t, &poolSource{})

	req := httptest.NewRequest(http.MethodGet, "/game/nope/state", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestSubmitGuess_Correct(t *testing.T) {
	r, store := newTestRouter(t, &poolSource{})
	gameID := createGame(t, r, `{"input":"text"}`)

	session, _ := store.Get(gameID)
	var answer string
	session.View(func(m *game.Machine) {
		round, _ := m.CurrentRound()
		answer = round.Answer.Name
	})

	req := httptest.NewRequest(http.MethodPost, "/game/"+gameID+"/guess",
		strings.NewReader(fmt.Sprintf(`{"guess":%q}`, answer)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want %d", w.Code, http.StatusOK)
	}
	var resp struct {
		Outcome game.Outcome       `json:"outcome"`
		State   viewmodel.GameView `json:"state"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Outcome.Verdict != game.VerdictCorrect {
		t.Errorf("Verdict %q, want %q", resp.Outcome.Verdict, game.VerdictCorrect)
	}
	if resp.State.Phase != "revealed" {
		t.Errorf("Phase %q, want revealed", resp.State.Phase)
	}
	if resp.State.Entity.Name != answer {
		t.Errorf("revealed name %q, want %q", resp.State.Entity.Name, answer)
	}
}

func TestSubmitGuess_EmptyGuess(t *testing.T) {
	r, _ := newTestRouter(t, &poolSource{})
	gameID := createGame(t, r, `{}`)

	req := httptest.NewRequest(http.MethodPost, "/game/"+gameID+"/guess",
		strings.NewReader(`{"guess":"  "}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// submitWrongGuess moves a choice-mode game into mid-play by burning one
// attempt on a wrong option.
func submitWrongGuess(t *testing.T, r chi.Router, store *game.Store, gameID string) {
	t.Helper()
	session, ok := store.Get(gameID)
	if !ok {
		t.Fatalf("session %s missing", gameID)
	}
	var wrongName string
	session.View(func(m *game.Machine) {
		round, _ := m.CurrentRound()
		for _, choice := range round.Choices {
			if choice.ID != round.Answer.ID {
				wrongName = choice.Name
				return
			}
		}
	})
	if wrongName == "" {
		t.Fatal("no wrong choice found")
	}
	req := httptest.NewRequest(http.MethodPost, "/game/"+gameID+"/guess",
		strings.NewReader(fmt.Sprintf(`{"guess":%q}`, wrongName)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("wrong guess status %d, want %d", w.Code, http.StatusOK)
	}
}

func TestModeSwitch_FreshGameSwitchesImmediately(t *testing.T) {
	r, _ := newTestRouter(t, &poolSource{})
	gameID := createGame(t, r, `{"category":"restricted","input":"choice"}`)

	req := httptest.NewRequest(http.MethodPost, "/game/"+gameID+"/mode",
		strings.NewReader(`{"category":"full","input":"choice"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want %d", w.Code, http.StatusOK)
	}
	var resp struct {
		Switched bool               `json:"switched"`
		State    viewmodel.GameView `json:"state"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Switched {
		t.Error("Switched = false, want immediate switch on an untouched game")
	}
	if resp.State.Category != "full" {
		t.Errorf("Category %q, want full", resp.State.Category)
	}
}

func TestModeSwitch_MidPlayNeedsConfirmation(t *testing.T) {
	r, store := newTestRouter(t, &poolSource{})
	gameID := createGame(t, r, `{"category":"restricted","input":"choice"}`)
	submitWrongGuess(t, r, store, gameID)

	req := httptest.NewRequest(http.MethodPost, "/game/"+gameID+"/mode",
		strings.NewReader(`{"category":"full","input":"choice"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want %d", w.Code, http.StatusOK)
	}
	var resp struct {
		Switched             bool               `json:"switched"`
		ConfirmationRequired bool               `json:"confirmationRequired"`
		State                viewmodel.GameView `json:"state"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Switched {
		t.Error("Switched = true, want confirmation handshake mid-play")
	}
	if !resp.ConfirmationRequired {
		t.Error("ConfirmationRequired = false, want true")
	}
	if resp.State.SwitchPrompt == nil || resp.State.SwitchPrompt.Category != "full" {
		t.Errorf("SwitchPrompt %+v, want parked full/choice", resp.State.SwitchPrompt)
	}

	// Confirming replaces the game with the parked config.
	req = httptest.NewRequest(http.MethodPost, "/game/"+gameID+"/mode/confirm", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("confirm status %d, want %d", w.Code, http.StatusOK)
	}
	view := getState(t, r, gameID)
	if view.Category != "full" {
		t.Errorf("Category %q after confirm, want full", view.Category)
	}
	if view.Round != 1 || view.Score != 0 {
		t.Errorf("round %d score %d after confirm, want fresh game", view.Round, view.Score)
	}
}

func TestModeSwitch_ConfirmWithoutPending(t *testing.T) {
	r, _ := newTestRouter(t, &poolSource{})
	gameID := createGame(t, r, `{}`)

	req := httptest.NewRequest(http.MethodPost, "/game/"+gameID+"/mode/confirm", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestModeSwitch_CancelKeepsGame(t *testing.T) {
	r, store := newTestRouter(t, &poolSource{})
	gameID := createGame(t, r, `{"category":"restricted","input":"choice"}`)
	submitWrongGuess(t, r, store, gameID)

	req := httptest.NewRequest(http.MethodPost, "/game/"+gameID+"/mode",
		strings.NewReader(`{"category":"full","input":"choice"}`))
	r.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/game/"+gameID+"/mode/cancel", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status %d, want %d", w.Code, http.StatusOK)
	}

	view := getState(t, r, gameID)
	if view.SwitchPrompt != nil {
		t.Error("SwitchPrompt still set after cancel")
	}
	if view.Category != "restricted" {
		t.Errorf("Category %q after cancel, want restricted", view.Category)
	}
}

func TestSharePNG(t *testing.T) {
	r, _ := newTestRouter(t, &poolSource{})
	gameID := createGame(t, r, `{}`)

	req := httptest.NewRequest(http.MethodGet, "/game/"+gameID+"/share.png", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type %q, want image/png", got)
	}
	if w.Body.Len() == 0 {
		t.Error("empty PNG body")
	}
}

func TestTopScores_EmptyHistory(t *testing.T) {
	r, _ := newTestRouter(t, &poolSource{})

	req := httptest.NewRequest(http.MethodGet, "/scores", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want %d", w.Code, http.StatusOK)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body %q, want []", got)
	}
}

func TestStream_SendsInitialState(t *testing.T) {
	r, _ := newTestRouter(t, &poolSource{})
	gameID := createGame(t, r, `{}`)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/game/"+gameID+"/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	// The initial snapshot is written before the handler blocks on events,
	// so a canceled context still yields one state frame.
	done := make(chan struct{})
	go func() {
		r.ServeHTTP(w, req)
		close(done)
	}()
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: state") {
		t.Fatalf("stream body missing state event: %q", body)
	}
	if !strings.Contains(body, `"phase":"guessing"`) {
		t.Errorf("stream body missing snapshot: %q", body)
	}
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type %q, want text/event-stream", got)
	}
}
