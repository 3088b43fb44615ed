package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/jurypanel/jurypanel/live"
	"github.com/jurypanel/jurypanel/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API already allows cross-origin callers; the socket follows suit.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WebSocketHandler struct {
	hub      *live.Hub
	contests services.ContestService
	logger   *slog.Logger
}

func NewWebSocketHandler(hub *live.Hub, contests services.ContestService, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, contests: contests, logger: logger}
}

// Subscribe upgrades the connection and joins the contest room. Viewers
// receive SCORE_UPDATED and CONTEST_UPDATED messages until they disconnect.
// GET /ws/contests/{contestID}
func (h *WebSocketHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	contestID := chi.URLParam(r, "contestID")
	if _, err := h.contests.Get(r.Context(), contestID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			slog.String("contest_id", contestID), slog.Any("error", err))
		return
	}

	h.hub.Join(contestID, conn)
}
