package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jurypanel/jurypanel/docstore"
	"github.com/jurypanel/jurypanel/models"
)

func TestContestSaveConverges(t *testing.T) {
	store := docstore.NewMemoryStore()
	repo := NewContestRepository(store)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &models.Contest{
		ID:   "final",
		Name: "Grand Final",
		Contestants: []models.Contestant{
			{ID: "1", Name: "Solo", Order: 1},
			{ID: "2", Name: "Duo", Order: 2},
		},
	}))

	// Reseeding without contestant 2 must remove it.
	require.NoError(t, repo.Save(ctx, &models.Contest{
		ID:   "final",
		Name: "Grand Final",
		Contestants: []models.Contestant{
			{ID: "1", Name: "Solo", Order: 1},
			{ID: "3", Name: "Trio", Order: 2},
		},
	}))

	contest, err := repo.GetByID(ctx, "final")
	require.NoError(t, err)
	require.Len(t, contest.Contestants, 2)
	assert.Equal(t, "1", contest.Contestants[0].ID)
	assert.Equal(t, "3", contest.Contestants[1].ID)
}

func TestContestSetClosedPreservesFields(t *testing.T) {
	store := docstore.NewMemoryStore()
	repo := NewContestRepository(store)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &models.Contest{ID: "final", Name: "Grand Final"}))
	require.NoError(t, repo.SetClosed(ctx, "final", true))

	contest, err := repo.GetByID(ctx, "final")
	require.NoError(t, err)
	assert.True(t, contest.Closed)
	assert.Equal(t, "Grand Final", contest.Name, "merge write must not drop the name")

	assert.ErrorIs(t, repo.SetClosed(ctx, "missing", true), ErrContestNotFound)
}

func TestContestListSortsContestantsByOrder(t *testing.T) {
	store := docstore.NewMemoryStore()
	repo := NewContestRepository(store)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &models.Contest{
		ID:   "final",
		Name: "Grand Final",
		Contestants: []models.Contestant{
			{ID: "9", Name: "Last", Order: 3},
			{ID: "1", Name: "First", Order: 1},
			{ID: "5", Name: "Middle", Order: 2},
		},
	}))

	contests, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, contests, 1)
	ids := []string{
		contests[0].Contestants[0].ID,
		contests[0].Contestants[1].ID,
		contests[0].Contestants[2].ID,
	}
	assert.Equal(t, []string{"1", "5", "9"}, ids)
}

func TestScoreEntryRoundTripThroughStore(t *testing.T) {
	store := docstore.NewMemoryStore()
	repo := NewScoreRepository(store)
	ctx := context.Background()

	overall := 7.75
	entry := models.ScoreEntry{
		Values:    map[string]float64{"songQuality": 8, "staging": 7, "vocalQuality": 8},
		Overall:   &overall,
		VoterName: "alice",
	}
	require.NoError(t, repo.SetEntry(ctx, "final", "1", "user-1", entry))

	got, err := repo.GetEntry(ctx, "final", "1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, entry.Values, got.Values)
	require.NotNil(t, got.Overall)
	assert.Equal(t, overall, *got.Overall)
	assert.Equal(t, "alice", got.VoterName)

	// A partial write merges into the stored document.
	require.NoError(t, store.Set(ctx, docstore.ScorePath("final", "1", "user-1"),
		docstore.Document{"staging": 9.0}, true))
	got, err = repo.GetEntry(ctx, "final", "1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 9.0, got.Values["staging"])
	assert.Equal(t, 8.0, got.Values["songQuality"])

	_, err = repo.GetEntry(ctx, "final", "1", "nobody")
	assert.ErrorIs(t, err, ErrScoreEntryNotFound)
}
