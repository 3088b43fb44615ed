package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jurypanel/jurypanel/models"
	"github.com/jurypanel/jurypanel/services"
)

type ResultsHandler struct {
	scores      services.ScoreService
	aggregation services.AggregationService
	criteria    models.CriteriaSet
}

func NewResultsHandler(scores services.ScoreService, aggregation services.AggregationService, criteria models.CriteriaSet) *ResultsHandler {
	return &ResultsHandler{scores: scores, aggregation: aggregation, criteria: criteria}
}

// Leaderboard recomputes the contest standings from the full snapshot.
// ?sort= picks the column (a criterion id or "overall"), ?dir=asc flips the
// default descending order.
// GET /api/contests/{contestID}/results
func (h *ResultsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	sortBy := r.URL.Query().Get("sort")
	if sortBy != "" && sortBy != models.OverallKey && !h.criteria.Contains(sortBy) {
		badRequestResponse(w, r, services.ErrUnknownCriterion)
		return
	}
	descending := r.URL.Query().Get("dir") != "asc"

	contest, snapshot, err := h.scores.Snapshot(r.Context(), chi.URLParam(r, "contestID"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	rows := h.aggregation.Leaderboard(contest, snapshot, sortBy, descending)
	err = writeJSON(w, http.StatusOK, jsonResponse{
		"contest": contest,
		"results": rows,
	}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Criteria exposes the scoring dimensions and weights the client renders.
// GET /api/criteria
func (h *ResultsHandler) Criteria(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, jsonResponse{"criteria": h.criteria}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
