package services

import (
	"sort"

	"github.com/jurypanel/jurypanel/models"
)

// LeaderboardRow is one contestant's aggregated line in the results view.
type LeaderboardRow struct {
	ContestantID string             `json:"contestant_id"`
	Name         string             `json:"name"`
	Country      string             `json:"country,omitempty"`
	Averages     map[string]float64 `json:"averages"`
	Overall      float64            `json:"overall"`
	Votes        int                `json:"votes"`
	Rank         int                `json:"rank"`
}

// AggregationService recomputes averages and ranks from a full contest
// snapshot on every read. Nothing is maintained incrementally; eventual
// consistency with the latest writes is all that is promised.
type AggregationService interface {
	// AverageScore is the unweighted mean of key (a criterion id or
	// "overall") over all voters with a present, non-zero value for the
	// contestant. Zero when nobody voted.
	AverageScore(snapshot models.ContestSnapshot, contestantID, key string) float64

	// Rank returns the contestant's 1-based position by descending average
	// overall, ties keeping contestant order. Zero for an unknown
	// contestant.
	Rank(contest *models.Contest, snapshot models.ContestSnapshot, contestantID string) int

	// Leaderboard returns one row per contestant, sorted by the chosen
	// column. sortBy may be a criterion id or "overall"; descending is the
	// default direction and the sort is stable so repeated toggles are
	// deterministic.
	Leaderboard(contest *models.Contest, snapshot models.ContestSnapshot, sortBy string, descending bool) []LeaderboardRow
}

type aggregationService struct {
	criteria models.CriteriaSet
}

func NewAggregationService(criteria models.CriteriaSet) AggregationService {
	return &aggregationService{criteria: criteria}
}

func (s *aggregationService) AverageScore(snapshot models.ContestSnapshot, contestantID, key string) float64 {
	var total float64
	var count int
	for _, entries := range snapshot {
		entry, ok := entries[contestantID]
		if !ok {
			continue
		}
		v, ok := entry.Value(key)
		// A stored zero counts as "not voted"; see DESIGN.md on the
		// zero-as-absent decision.
		if !ok || v == 0 {
			continue
		}
		total += v
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func (s *aggregationService) Rank(contest *models.Contest, snapshot models.ContestSnapshot, contestantID string) int {
	ranked := s.rankedIDs(contest, snapshot)
	for i, id := range ranked {
		if id == contestantID {
			return i + 1
		}
	}
	return 0
}

func (s *aggregationService) Leaderboard(contest *models.Contest, snapshot models.ContestSnapshot, sortBy string, descending bool) []LeaderboardRow {
	rows := make([]LeaderboardRow, 0, len(contest.Contestants))
	for _, contestant := range contest.Contestants {
		row := LeaderboardRow{
			ContestantID: contestant.ID,
			Name:         contestant.Name,
			Country:      contestant.Country,
			Averages:     make(map[string]float64, len(s.criteria)),
			Overall:      s.AverageScore(snapshot, contestant.ID, models.OverallKey),
			Votes:        s.voteCount(snapshot, contestant.ID),
		}
		for _, criterion := range s.criteria {
			row.Averages[criterion.ID] = s.AverageScore(snapshot, contestant.ID, criterion.ID)
		}
		rows = append(rows, row)
	}

	// Ranks are always by overall, independent of the display sort.
	rankOf := make(map[string]int, len(rows))
	for i, id := range s.rankedIDs(contest, snapshot) {
		rankOf[id] = i + 1
	}
	for i := range rows {
		rows[i].Rank = rankOf[rows[i].ContestantID]
	}

	if sortBy == "" {
		sortBy = models.OverallKey
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := sortValue(rows[i], sortBy), sortValue(rows[j], sortBy)
		if descending {
			return a > b
		}
		return a < b
	})
	return rows
}

// rankedIDs sorts contestant ids by descending average overall, stable over
// the contest's declared order.
func (s *aggregationService) rankedIDs(contest *models.Contest, snapshot models.ContestSnapshot) []string {
	ids := make([]string, len(contest.Contestants))
	for i, c := range contest.Contestants {
		ids[i] = c.ID
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return s.AverageScore(snapshot, ids[i], models.OverallKey) >
			s.AverageScore(snapshot, ids[j], models.OverallKey)
	})
	return ids
}

// voteCount counts voters with a complete ballot for the contestant.
func (s *aggregationService) voteCount(snapshot models.ContestSnapshot, contestantID string) int {
	var count int
	for _, entries := range snapshot {
		if entry, ok := entries[contestantID]; ok && entry.Overall != nil {
			count++
		}
	}
	return count
}

func sortValue(row LeaderboardRow, sortBy string) float64 {
	if sortBy == models.OverallKey {
		return row.Overall
	}
	return row.Averages[sortBy]
}
