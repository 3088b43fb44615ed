package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jurypanel/jurypanel/models"
)

func (env *testEnv) rate(t *testing.T, user *models.User, contestID, contestantID string, song, staging, vocal float64) {
	t.Helper()
	ctx := context.Background()
	for criterion, v := range map[string]float64{
		"songQuality":  song,
		"staging":      staging,
		"vocalQuality": vocal,
	} {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		_, err = env.scoreSvc.UpdateScore(ctx, user, contestID, contestantID, criterion, raw)
		require.NoError(t, err)
	}
}

func TestAverageScoreTwoVoters(t *testing.T) {
	env := newTestEnv(t)
	env.seedContest(t, "final", false, "1")
	alice := env.newUser(t, "alice", false)
	bob := env.newUser(t, "bob", false)

	env.rate(t, alice, "final", "1", 7, 7, 7)
	env.rate(t, bob, "final", "1", 9, 9, 9)

	_, snapshot, err := env.scoreSvc.Snapshot(context.Background(), "final")
	require.NoError(t, err)

	assert.InDelta(t, 8.0, env.agg.AverageScore(snapshot, "1", "songQuality"), 1e-9)
	assert.InDelta(t, 8.0, env.agg.AverageScore(snapshot, "1", models.OverallKey), 1e-9)
}

func TestAverageScoreSkipsZeroAndAbsent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedContest(t, "final", false, "1")
	alice := env.newUser(t, "alice", false)
	bob := env.newUser(t, "bob", false)

	_, err := env.scoreSvc.UpdateScore(ctx, alice, "final", "1", "songQuality", json.RawMessage(`8`))
	require.NoError(t, err)
	// A zero rating counts as "not voted" in the averages.
	_, err = env.scoreSvc.UpdateScore(ctx, bob, "final", "1", "songQuality", json.RawMessage(`0`))
	require.NoError(t, err)

	_, snapshot, err := env.scoreSvc.Snapshot(ctx, "final")
	require.NoError(t, err)

	assert.InDelta(t, 8.0, env.agg.AverageScore(snapshot, "1", "songQuality"), 1e-9)
	assert.Zero(t, env.agg.AverageScore(snapshot, "1", "staging"), "nobody rated staging")
	assert.Zero(t, env.agg.AverageScore(snapshot, "2", "songQuality"), "unknown contestant")
}

func TestRankByOverall(t *testing.T) {
	env := newTestEnv(t)
	contest := env.seedContest(t, "final", false, "1", "2", "3")
	alice := env.newUser(t, "alice", false)

	env.rate(t, alice, "final", "1", 5, 5, 5)
	env.rate(t, alice, "final", "2", 9, 9, 9)
	env.rate(t, alice, "final", "3", 7, 7, 7)

	_, snapshot, err := env.scoreSvc.Snapshot(context.Background(), "final")
	require.NoError(t, err)

	assert.Equal(t, 1, env.agg.Rank(contest, snapshot, "2"))
	assert.Equal(t, 2, env.agg.Rank(contest, snapshot, "3"))
	assert.Equal(t, 3, env.agg.Rank(contest, snapshot, "1"))
	assert.Zero(t, env.agg.Rank(contest, snapshot, "99"))
}

func TestRankTiesKeepContestantOrder(t *testing.T) {
	env := newTestEnv(t)
	contest := env.seedContest(t, "final", false, "1", "2")
	alice := env.newUser(t, "alice", false)

	env.rate(t, alice, "final", "1", 8, 8, 8)
	env.rate(t, alice, "final", "2", 8, 8, 8)

	_, snapshot, err := env.scoreSvc.Snapshot(context.Background(), "final")
	require.NoError(t, err)

	assert.Equal(t, 1, env.agg.Rank(contest, snapshot, "1"))
	assert.Equal(t, 2, env.agg.Rank(contest, snapshot, "2"))
}

func TestLeaderboardSorting(t *testing.T) {
	env := newTestEnv(t)
	contest := env.seedContest(t, "final", false, "1", "2")
	alice := env.newUser(t, "alice", false)

	// Contestant 1 wins on staging, contestant 2 on overall.
	env.rate(t, alice, "final", "1", 6, 9, 6)
	env.rate(t, alice, "final", "2", 9, 6, 9)

	_, snapshot, err := env.scoreSvc.Snapshot(context.Background(), "final")
	require.NoError(t, err)

	rows := env.agg.Leaderboard(contest, snapshot, "", true)
	require.Len(t, rows, 2)
	assert.Equal(t, "2", rows[0].ContestantID)
	assert.Equal(t, 1, rows[0].Rank)

	byStaging := env.agg.Leaderboard(contest, snapshot, "staging", true)
	assert.Equal(t, "1", byStaging[0].ContestantID)
	// Rank stays by overall regardless of the display sort.
	assert.Equal(t, 2, byStaging[0].Rank)

	ascending := env.agg.Leaderboard(contest, snapshot, "", false)
	assert.Equal(t, "1", ascending[0].ContestantID)
}

func TestLeaderboardVoteCountsCompleteBallots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	contest := env.seedContest(t, "final", false, "1")
	alice := env.newUser(t, "alice", false)
	bob := env.newUser(t, "bob", false)

	env.rate(t, alice, "final", "1", 8, 8, 8)
	// Bob only rated one criterion: no complete ballot, no vote.
	_, err := env.scoreSvc.UpdateScore(ctx, bob, "final", "1", "songQuality", json.RawMessage(`9`))
	require.NoError(t, err)

	_, snapshot, err := env.scoreSvc.Snapshot(ctx, "final")
	require.NoError(t, err)

	rows := env.agg.Leaderboard(contest, snapshot, "", true)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Votes)
}
