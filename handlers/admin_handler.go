package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jurypanel/jurypanel/middleware"
	"github.com/jurypanel/jurypanel/services"
)

type AdminHandler struct {
	admin  services.AdminService
	scores services.ScoreService
}

func NewAdminHandler(admin services.AdminService, scores services.ScoreService) *AdminHandler {
	return &AdminHandler{admin: admin, scores: scores}
}

// EditVote corrects any voter's rating without touching its attribution.
// PUT /api/admin/users/{userID}/contests/{contestID}/contestants/{contestantID}/scores/{criterionID}
func (h *AdminHandler) EditVote(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input scoreValueInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	entry, err := h.scores.EditVote(
		r.Context(),
		actor,
		chi.URLParam(r, "userID"),
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

// DeleteUser removes a user and every score they cast, and ends their
// sessions.
// DELETE /api/admin/users/{userID}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	if err := h.admin.DeleteUser(r.Context(), actor, chi.URLParam(r, "userID")); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "user deleted"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ClearContestScores wipes one contest's votes, nothing else.
// DELETE /api/admin/contests/{contestID}/scores
func (h *AdminHandler) ClearContestScores(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	if err := h.admin.ClearContestScores(r.Context(), actor, chi.URLParam(r, "contestID")); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "contest scores cleared"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ClearCompetition wipes all scores, all users and all sessions.
// DELETE /api/admin/competition
func (h *AdminHandler) ClearCompetition(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	if err := h.admin.ClearCompetition(r.Context(), actor); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "competition cleared"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Backup exports the full dataset to object storage.
// POST /api/admin/backup
func (h *AdminHandler) Backup(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	result, err := h.admin.Backup(r.Context(), actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"backup": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Restore replays a previously uploaded backup into the store.
// POST /api/admin/restore
func (h *AdminHandler) Restore(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input struct {
		Key string `json:"key" validate:"required"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := validate.Struct(input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.admin.Restore(r.Context(), actor, input.Key); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "backup restored"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
