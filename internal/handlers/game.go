package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/RonRicardo/whos-that-pokemon/internal/game"
	"github.com/RonRicardo/whos-that-pokemon/internal/viewmodel"
	"github.com/RonRicardo/whos-that-pokemon/pkg/realtime"
)

type GameHandler struct {
	store *game.Store
}

func NewGameHandler(store *game.Store) *GameHandler {
	return &GameHandler{store: store}
}

func (h *GameHandler) RegisterRoutes(r chi.Router) {
	r.Route("/game/{id}", func(r chi.Router) {
		r.Get("/state", h.state)
		r.Post("/guess", h.submitGuess)
		r.Post("/mode", h.requestModeSwitch)
		r.Post("/mode/confirm", h.confirmModeSwitch)
		r.Post("/mode/cancel", h.cancelModeSwitch)
		r.Post("/dismiss", h.dismissSummary)
		r.Get("/stream", h.stream)
		r.Get("/share.png", h.sharePNG)
	})
}

func (h *GameHandler) state(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	session, ok := h.store.Get(gameID)
	if !ok {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	writeJSON(w, http.StatusOK, buildView(session))
}

type guessRequest struct {
	Guess string `json:"guess"`
}

type guessResponse struct {
	Outcome game.Outcome       `json:"outcome"`
	State   viewmodel.GameView `json:"state"`
}

func (h *GameHandler) submitGuess(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	session, ok := h.store.Get(gameID)
	if !ok {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	var req guessRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Guess) == "" {
		writeError(w, http.StatusBadRequest, "guess required")
		return
	}

	outcome, accepted := session.SubmitGuess(req.Guess, time.Now().UTC())
	if accepted {
		h.store.Wake(gameID)
		h.store.Publish(gameID, realtime.EventState)
	}

	writeJSON(w, http.StatusOK, guessResponse{
		Outcome: outcome,
		State:   buildView(session),
	})
}

type modeRequest struct {
	Category string `json:"category"`
	Input    string `json:"input"`
}

type modeResponse struct {
	Switched             bool               `json:"switched"`
	ConfirmationRequired bool               `json:"confirmationRequired"`
	State                viewmodel.GameView `json:"state"`
}

func (h *GameHandler) requestModeSwitch(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	session, ok := h.store.Get(gameID)
	if !ok {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	var req modeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cfg, err := parseConfig(req.Category, req.Input)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switched, err := session.RequestModeSwitch(r.Context(), cfg, time.Now().UTC())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Error:     "could not load the new game, try again",
			Retryable: true,
		})
		return
	}
	if switched {
		h.store.EnsureLoop(gameID)
		h.store.Wake(gameID)
	}
	h.store.Publish(gameID, realtime.EventState)

	writeJSON(w, http.StatusOK, modeResponse{
		Switched:             switched,
		ConfirmationRequired: !switched,
		State:                buildView(session),
	})
}

func (h *GameHandler) confirmModeSwitch(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	session, ok := h.store.Get(gameID)
	if !ok {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	if err := session.ConfirmModeSwitch(r.Context(), time.Now().UTC()); err != nil {
		if err == game.ErrNoPendingSwitch {
			writeError(w, http.StatusConflict, "no mode switch pending")
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Error:     "could not load the new game, try again",
			Retryable: true,
		})
		return
	}
	h.store.EnsureLoop(gameID)
	h.store.Wake(gameID)
	h.store.Publish(gameID, realtime.EventState)
	writeJSON(w, http.StatusOK, buildView(session))
}

func (h *GameHandler) cancelModeSwitch(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	session, ok := h.store.Get(gameID)
	if !ok {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	session.CancelModeSwitch()
	h.store.Publish(gameID, realtime.EventState)
	writeJSON(w, http.StatusOK, buildView(session))
}

func (h *GameHandler) dismissSummary(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	session, ok := h.store.Get(gameID)
	if !ok {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	if err := session.DismissSummary(r.Context(), time.Now().UTC()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Error:     "could not load the next game, try again",
			Retryable: true,
		})
		return
	}
	h.store.EnsureLoop(gameID)
	h.store.Wake(gameID)
	h.store.Publish(gameID, realtime.EventState)
	writeJSON(w, http.StatusOK, buildView(session))
}

func (h *GameHandler) stream(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	session, ok := h.store.Get(gameID)
	if !ok {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	hub := h.store.Broadcaster(gameID)
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	sendState := func(event realtime.Event) {
		payload, err := json.Marshal(buildView(session))
		if err != nil {
			return
		}
		writeSSE(w, string(event), string(payload))
		flusher.Flush()
	}

	sendState(realtime.EventState)

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-sub:
			sendState(event)
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		}
	}
}

// sharePNG renders a QR code pointing at the game page so a finished score
// screen can be passed to another phone.
func (h *GameHandler) sharePNG(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	if _, ok := h.store.Get(gameID); !ok {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	path := strings.TrimSuffix(r.URL.Path, "/share.png")
	url := scheme + "://" + r.Host + path

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "qr generation failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func buildView(session *game.Session) viewmodel.GameView {
	var view viewmodel.GameView
	session.View(func(m *game.Machine) {
		view = viewmodel.BuildGameView(session.ID, m)
	})
	return view
}
