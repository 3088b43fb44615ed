package handlers

import (
	"net/http"

	"github.com/jurypanel/jurypanel/middleware"
	"github.com/jurypanel/jurypanel/services"
)

type SessionHandler struct {
	sessions services.SessionService
}

func NewSessionHandler(sessions services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Resume restores the session state behind the token; a vanished contest
// falls back to the first available one.
// GET /api/session
func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	sessionID, err := middleware.SessionIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	session, err := h.sessions.Resume(r.Context(), sessionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"session": session}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SwitchContest changes the session's active contest.
// PUT /api/session/contest
func (h *SessionHandler) SwitchContest(w http.ResponseWriter, r *http.Request) {
	sessionID, err := middleware.SessionIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input struct {
		ContestID string `json:"contest_id" validate:"required"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := validate.Struct(input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	session, err := h.sessions.SwitchContest(r.Context(), sessionID, input.ContestID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"session": session}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SwitchUser reattaches the session to another user. Admin only.
// PUT /api/session/user
func (h *SessionHandler) SwitchUser(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	sessionID, err := middleware.SessionIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input struct {
		UserID string `json:"user_id" validate:"required"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := validate.Struct(input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	session, err := h.sessions.SwitchUser(r.Context(), actor, sessionID, input.UserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"session": session}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// End logs the session out server-side. Always succeeds for a valid token;
// asking the human for confirmation is the client's job.
// DELETE /api/session
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	sessionID, err := middleware.SessionIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	if err := h.sessions.End(sessionID); err != nil {
		serverErrorResponse(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "session ended"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
