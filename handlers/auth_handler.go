package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/jurypanel/jurypanel/middleware"
	"github.com/jurypanel/jurypanel/services"
)

// Token lifetime in seconds. Sessions outlive the token in the local store;
// a re-login under the same name reattaches to the same user record.
const tokenTTLSeconds = 12 * 60 * 60

type AuthHandler struct {
	auth      services.AuthService
	sessions  services.SessionService
	jwtSecret []byte
	nowUnix   func() int64
}

func NewAuthHandler(auth services.AuthService, sessions services.SessionService, jwtSecret []byte, nowUnix func() int64) *AuthHandler {
	return &AuthHandler{
		auth:      auth,
		sessions:  sessions,
		jwtSecret: jwtSecret,
		nowUnix:   nowUnix,
	}
}

// Login resolves the name to a user, starts a fresh session and mints the
// token that carries both.
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input services.LoginInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := validate.Struct(input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	user, err := h.auth.Login(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	sessionID := uuid.NewString()
	session, err := h.sessions.Start(r.Context(), sessionID, *user, "")
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	token, err := middleware.NewToken(h.jwtSecret, user, sessionID, tokenTTLSeconds, h.nowUnix())
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{
		"token":   token,
		"user":    user,
		"session": session,
	}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// LastUsername prefills the login form with the most recent name, best
// effort.
// GET /api/auth/last-username
func (h *AuthHandler) LastUsername(w http.ResponseWriter, r *http.Request) {
	err := writeJSON(w, http.StatusOK, jsonResponse{
		"last_username": h.auth.LastUsername(),
	}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListUsers returns every registered user, cache-backed when the store is
// down.
// GET /api/users
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.ListUsers(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"users": users}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
