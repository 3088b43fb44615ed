package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jurypanel/jurypanel/middleware"
	"github.com/jurypanel/jurypanel/services"
)

type ScoreHandler struct {
	scores services.ScoreService
}

func NewScoreHandler(scores services.ScoreService) *ScoreHandler {
	return &ScoreHandler{scores: scores}
}

// scoreValueInput keeps the value raw: numbers, numeric strings and junk all
// reach the service, which coerces rather than rejects.
type scoreValueInput struct {
	Value json.RawMessage `json:"value"`
}

// UpdateScore records one criterion rating by the current user.
// PUT /api/contests/{contestID}/contestants/{contestantID}/scores/{criterionID}
func (h *ScoreHandler) UpdateScore(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input scoreValueInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	entry, err := h.scores.UpdateScore(
		r.Context(),
		user,
		chi.URLParam(r, "contestID"),
		chi.URLParam(r, "contestantID"),
		chi.URLParam(r, "criterionID"),
		input.Value,
	)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"entry": entry}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// MyScores returns the caller's own entries for a contest, keyed by
// contestant id.
// GET /api/contests/{contestID}/scores/mine
func (h *ScoreHandler) MyScores(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	entries, err := h.scores.UserScores(r.Context(), user, chi.URLParam(r, "contestID"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"scores": entries}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
