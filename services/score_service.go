package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jurypanel/jurypanel/live"
	"github.com/jurypanel/jurypanel/localstore"
	"github.com/jurypanel/jurypanel/models"
	"github.com/jurypanel/jurypanel/repositories"
)

// ScoreService applies partial updates to the nested
// user -> contest -> contestant -> criterion structure. Every update merges
// at the leaf: one criterion changes, everything else in the entry and in
// every other entry stays byte-for-byte the same, and the derived overall is
// recomputed.
type ScoreService interface {
	// UpdateScore records one criterion rating by the current user. A nil
	// user is a silent no-op ("you must be logged in to vote").
	UpdateScore(ctx context.Context, user *models.User, contestID, contestantID, criterionID string, rawValue json.RawMessage) (*models.ScoreEntry, error)

	// EditVote is the admin correction path: same merge rule, arbitrary
	// target user, voter attribution left untouched.
	EditVote(ctx context.Context, actor *models.User, userID, contestID, contestantID, criterionID string, rawValue json.RawMessage) (*models.ScoreEntry, error)

	// UserScores returns the caller's own entries for one contest.
	UserScores(ctx context.Context, user *models.User, contestID string) (map[string]models.ScoreEntry, error)

	// Snapshot loads the full score state of a contest for aggregation,
	// falling back to the local cache when the store is unreachable.
	Snapshot(ctx context.Context, contestID string) (*models.Contest, models.ContestSnapshot, error)
}

type scoreService struct {
	scores   repositories.ScoreRepository
	contests repositories.ContestRepository
	criteria models.CriteriaSet
	auth     AuthService
	hub      *live.Hub
	local    localstore.Store
	logger   *slog.Logger
	now      func() time.Time
}

func NewScoreService(
	scores repositories.ScoreRepository,
	contests repositories.ContestRepository,
	criteria models.CriteriaSet,
	auth AuthService,
	hub *live.Hub,
	local localstore.Store,
	logger *slog.Logger,
) ScoreService {
	return &scoreService{
		scores:   scores,
		contests: contests,
		criteria: criteria,
		auth:     auth,
		hub:      hub,
		local:    local,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *scoreService) UpdateScore(ctx context.Context, user *models.User, contestID, contestantID, criterionID string, rawValue json.RawMessage) (*models.ScoreEntry, error) {
	if user == nil {
		return nil, nil
	}

	contest, contestantID, err := s.checkTarget(ctx, contestID, contestantID, criterionID)
	if err != nil {
		return nil, err
	}
	if contest.Closed {
		return nil, ErrVotingClosed
	}

	entry, err := s.loadOrEmpty(ctx, contestID, contestantID, user.ID)
	if err != nil {
		return nil, err
	}

	entry.Values[criterionID] = coerceScoreValue(rawValue)
	entry.VoterName = user.Name
	entry.VoterIsAdmin = user.IsAdmin
	entry.UpdatedAt = s.now()
	entry.Recompute(s.criteria)

	if err := s.scores.SetEntry(ctx, contestID, contestantID, user.ID, entry); err != nil {
		return nil, err
	}

	s.broadcastScore(contestID, contestantID, user.ID)
	return &entry, nil
}

func (s *scoreService) EditVote(ctx context.Context, actor *models.User, userID, contestID, contestantID, criterionID string, rawValue json.RawMessage) (*models.ScoreEntry, error) {
	if err := s.auth.RequireAdmin(actor); err != nil {
		return nil, err
	}

	_, contestantID, err := s.checkTarget(ctx, contestID, contestantID, criterionID)
	if err != nil {
		return nil, err
	}

	entry, err := s.loadOrEmpty(ctx, contestID, contestantID, userID)
	if err != nil {
		return nil, err
	}

	entry.Values[criterionID] = coerceScoreValue(rawValue)
	entry.UpdatedAt = s.now()
	entry.Recompute(s.criteria)

	if err := s.scores.SetEntry(ctx, contestID, contestantID, userID, entry); err != nil {
		return nil, err
	}

	s.broadcastScore(contestID, contestantID, userID)
	return &entry, nil
}

func (s *scoreService) UserScores(ctx context.Context, user *models.User, contestID string) (map[string]models.ScoreEntry, error) {
	if user == nil {
		return map[string]models.ScoreEntry{}, nil
	}

	_, snapshot, err := s.Snapshot(ctx, contestID)
	if err != nil {
		return nil, err
	}

	entries := snapshot[user.ID]
	if entries == nil {
		entries = map[string]models.ScoreEntry{}
	}
	return entries, nil
}

func (s *scoreService) Snapshot(ctx context.Context, contestID string) (*models.Contest, models.ContestSnapshot, error) {
	contest, err := s.contests.GetByID(ctx, contestID)
	if err != nil {
		if errors.Is(err, repositories.ErrContestNotFound) {
			return nil, nil, ErrContestNotFound
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	snapshot, err := s.scores.SnapshotContest(ctx, contest)
	if err != nil {
		s.logger.Error("score snapshot read failed, trying cache",
			slog.String("contest_id", contestID), slog.Any("error", err))
		if cached, ok := s.cachedSnapshot(contestID); ok {
			return contest, cached, nil
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.writeSnapshotCache(contestID, snapshot)
	return contest, snapshot, nil
}

// checkTarget validates the (contest, contestant, criterion) reference and
// returns the contestant id in its normalized string form.
func (s *scoreService) checkTarget(ctx context.Context, contestID, contestantID, criterionID string) (*models.Contest, string, error) {
	if !s.criteria.Contains(criterionID) {
		return nil, "", ErrUnknownCriterion
	}

	contest, err := s.contests.GetByID(ctx, contestID)
	if err != nil {
		if errors.Is(err, repositories.ErrContestNotFound) {
			return nil, "", ErrContestNotFound
		}
		return nil, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	contestantID = strings.TrimSpace(contestantID)
	if contest.Contestant(contestantID) == nil {
		return nil, "", ErrContestantNotFound
	}
	return contest, contestantID, nil
}

func (s *scoreService) loadOrEmpty(ctx context.Context, contestID, contestantID, userID string) (models.ScoreEntry, error) {
	entry, err := s.scores.GetEntry(ctx, contestID, contestantID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrScoreEntryNotFound) {
			return models.ScoreEntry{Values: make(map[string]float64)}, nil
		}
		return models.ScoreEntry{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if entry.Values == nil {
		entry.Values = make(map[string]float64)
	}
	return entry, nil
}

func (s *scoreService) broadcastScore(contestID, contestantID, userID string) {
	s.hub.Broadcast(contestID, live.Message{
		Type: live.MessageScoreUpdated,
		Payload: map[string]string{
			"contestant_id": contestantID,
			"user_id":       userID,
		},
	})
}

func (s *scoreService) writeSnapshotCache(contestID string, snapshot models.ContestSnapshot) {
	all := s.readSnapshotCache()
	all[contestID] = snapshot
	raw, err := json.Marshal(all)
	if err != nil {
		return
	}
	if err := s.local.Set(globalAllScoresKey, string(raw)); err != nil {
		s.logger.Warn("failed to write score cache", slog.Any("error", err))
	}
}

func (s *scoreService) cachedSnapshot(contestID string) (models.ContestSnapshot, bool) {
	all := s.readSnapshotCache()
	snapshot, ok := all[contestID]
	return snapshot, ok
}

func (s *scoreService) readSnapshotCache() map[string]models.ContestSnapshot {
	raw, err := s.local.Get(globalAllScoresKey)
	if err != nil {
		return map[string]models.ContestSnapshot{}
	}
	var all map[string]models.ContestSnapshot
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		return map[string]models.ContestSnapshot{}
	}
	return all
}

// coerceScoreValue mirrors the ingestion rule of the system this replaces:
// numbers pass through as float64, numeric strings are parsed, anything else
// becomes 0 rather than an error, so a bad client cannot corrupt the
// aggregate. Range clamping to [1,10] belongs to the input surface.
func coerceScoreValue(raw json.RawMessage) float64 {
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return num
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
			return v
		}
	}
	return 0
}
