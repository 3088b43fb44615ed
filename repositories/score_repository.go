package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jurypanel/jurypanel/docstore"
	"github.com/jurypanel/jurypanel/models"
)

var ErrScoreEntryNotFound = errors.New("score entry not found")

// ScoreRepository is the authoritative mapping
// user -> contest -> contestant -> criterion -> value, stored as one flat
// document per (contest, contestant, user) so that a merge write touches a
// single leaf and never replaces a per-user or per-contest subtree.
type ScoreRepository interface {
	GetEntry(ctx context.Context, contestID, contestantID, userID string) (models.ScoreEntry, error)
	SetEntry(ctx context.Context, contestID, contestantID, userID string, entry models.ScoreEntry) error

	// SnapshotContest loads every voter's entries for one contest.
	SnapshotContest(ctx context.Context, contest *models.Contest) (models.ContestSnapshot, error)

	// DeleteUserScores removes every entry keyed by userID across the given
	// contests (the delete-user cascade).
	DeleteUserScores(ctx context.Context, contests []models.Contest, userID string) error

	// DeleteContestScores removes every entry under one contest and leaves
	// all other contests untouched.
	DeleteContestScores(ctx context.Context, contest *models.Contest) error
}

type docScoreRepository struct {
	store docstore.Store
}

func NewScoreRepository(store docstore.Store) ScoreRepository {
	return &docScoreRepository{store: store}
}

func (r *docScoreRepository) GetEntry(ctx context.Context, contestID, contestantID, userID string) (models.ScoreEntry, error) {
	doc, err := r.store.Get(ctx, docstore.ScorePath(contestID, contestantID, userID))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return models.ScoreEntry{}, ErrScoreEntryNotFound
		}
		return models.ScoreEntry{}, err
	}
	return scoreEntryFromDoc(doc), nil
}

func (r *docScoreRepository) SetEntry(ctx context.Context, contestID, contestantID, userID string, entry models.ScoreEntry) error {
	path := docstore.ScorePath(contestID, contestantID, userID)
	if err := r.store.Set(ctx, path, scoreEntryToDoc(entry), true); err != nil {
		return fmt.Errorf("failed to write score entry %s: %w", path, err)
	}
	return nil
}

func (r *docScoreRepository) SnapshotContest(ctx context.Context, contest *models.Contest) (models.ContestSnapshot, error) {
	snapshot := make(models.ContestSnapshot)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, contestant := range contest.Contestants {
		contestant := contestant
		g.Go(func() error {
			docs, err := r.store.List(gctx, docstore.ScoresCollection(contest.ID, contestant.ID))
			if err != nil {
				return fmt.Errorf("failed to list scores for %s/%s: %w", contest.ID, contestant.ID, err)
			}

			mu.Lock()
			defer mu.Unlock()
			for userID, doc := range docs {
				if snapshot[userID] == nil {
					snapshot[userID] = make(map[string]models.ScoreEntry)
				}
				snapshot[userID][contestant.ID] = scoreEntryFromDoc(doc)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (r *docScoreRepository) DeleteUserScores(ctx context.Context, contests []models.Contest, userID string) error {
	for _, contest := range contests {
		for _, contestant := range contest.Contestants {
			if err := r.store.Delete(ctx, docstore.ScorePath(contest.ID, contestant.ID, userID)); err != nil {
				return fmt.Errorf("failed to delete scores of user %s in %s: %w", userID, contest.ID, err)
			}
		}
	}
	return nil
}

func (r *docScoreRepository) DeleteContestScores(ctx context.Context, contest *models.Contest) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, contestant := range contest.Contestants {
		contestant := contestant
		g.Go(func() error {
			docs, err := r.store.List(gctx, docstore.ScoresCollection(contest.ID, contestant.ID))
			if err != nil {
				return err
			}
			for userID := range docs {
				if err := r.store.Delete(gctx, docstore.ScorePath(contest.ID, contestant.ID, userID)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// Score documents are flat: criterion ids map to numbers next to the voter
// metadata, exactly the shape a per-field merge needs. The document form is
// the entry's JSON form, so conversion goes through encoding/json.
func scoreEntryFromDoc(doc docstore.Document) models.ScoreEntry {
	raw, err := json.Marshal(doc)
	if err != nil {
		return models.ScoreEntry{Values: make(map[string]float64)}
	}
	var entry models.ScoreEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return models.ScoreEntry{Values: make(map[string]float64)}
	}
	return entry
}

func scoreEntryToDoc(entry models.ScoreEntry) docstore.Document {
	raw, err := json.Marshal(entry)
	if err != nil {
		return docstore.Document{}
	}
	var doc docstore.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return docstore.Document{}
	}
	return doc
}
