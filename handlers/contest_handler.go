package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jurypanel/jurypanel/middleware"
	"github.com/jurypanel/jurypanel/services"
)

type ContestHandler struct {
	contests services.ContestService
}

func NewContestHandler(contests services.ContestService) *ContestHandler {
	return &ContestHandler{contests: contests}
}

// List returns every contest with its contestants in running order.
// GET /api/contests
func (h *ContestHandler) List(w http.ResponseWriter, r *http.Request) {
	contests, err := h.contests.List(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"contests": contests}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Get returns one contest.
// GET /api/contests/{contestID}
func (h *ContestHandler) Get(w http.ResponseWriter, r *http.Request) {
	contest, err := h.contests.Get(r.Context(), chi.URLParam(r, "contestID"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"contest": contest}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ToggleStatus flips the contest between open and closed voting. Admin only.
// POST /api/admin/contests/{contestID}/toggle
func (h *ContestHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	contest, err := h.contests.ToggleStatus(r.Context(), actor, chi.URLParam(r, "contestID"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"contest": contest}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Seed insert-or-replaces a contest and its contestants. Admin only.
// POST /api/admin/contests
func (h *ContestHandler) Seed(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input services.SeedContestInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := validate.Struct(input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	contest, err := h.contests.Seed(r.Context(), actor, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"contest": contest}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
