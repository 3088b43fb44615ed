package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jurypanel/jurypanel/localstore"
)

func TestDeleteUserCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedContest(t, "semi", false, "1")
	env.seedContest(t, "final", false, "1")
	alice := env.newUser(t, "alice", false)
	bob := env.newUser(t, "bob", false)
	admin := env.newUser(t, "host", true)

	env.rate(t, alice, "semi", "1", 8, 8, 8)
	env.rate(t, alice, "final", "1", 7, 7, 7)
	env.rate(t, bob, "final", "1", 9, 9, 9)
	_, err := env.sessions.Start(ctx, "sid-alice", *alice, "")
	require.NoError(t, err)

	require.NoError(t, env.admin.DeleteUser(ctx, admin, alice.ID))

	_, err = env.auth.GetUser(ctx, alice.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	// Alice's scores are gone in every contest, Bob's survive.
	for _, contestID := range []string{"semi", "final"} {
		_, snapshot, err := env.scoreSvc.Snapshot(ctx, contestID)
		require.NoError(t, err)
		_, has := snapshot[alice.ID]
		assert.False(t, has, contestID)
	}
	_, snapshot, err := env.scoreSvc.Snapshot(ctx, "final")
	require.NoError(t, err)
	assert.Contains(t, snapshot, bob.ID)

	// Her session ended too.
	_, err = env.sessions.Resume(ctx, "sid-alice")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDeleteUserRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedContest(t, "final", false, "1")
	alice := env.newUser(t, "alice", false)
	bob := env.newUser(t, "bob", false)

	err := env.admin.DeleteUser(ctx, alice, bob.ID)
	assert.ErrorIs(t, err, ErrAdminRequired)
}

func TestClearContestScoresIsScoped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedContest(t, "semi", false, "1")
	env.seedContest(t, "final", false, "1")
	alice := env.newUser(t, "alice", false)
	admin := env.newUser(t, "host", true)

	env.rate(t, alice, "semi", "1", 8, 8, 8)
	env.rate(t, alice, "final", "1", 7, 7, 7)
	_, err := env.sessions.Start(ctx, "sid-1", *alice, "")
	require.NoError(t, err)

	require.NoError(t, env.admin.ClearContestScores(ctx, admin, "semi"))

	_, semiScores, err := env.scoreSvc.Snapshot(ctx, "semi")
	require.NoError(t, err)
	assert.Empty(t, semiScores)

	// The other contest, the users and the sessions are untouched.
	_, finalScores, err := env.scoreSvc.Snapshot(ctx, "final")
	require.NoError(t, err)
	assert.Contains(t, finalScores, alice.ID)

	_, err = env.auth.GetUser(ctx, alice.ID)
	assert.NoError(t, err)
	_, err = env.sessions.Resume(ctx, "sid-1")
	assert.NoError(t, err)
}

func TestClearContestScoresUnknownContest(t *testing.T) {
	env := newTestEnv(t)
	env.seedContest(t, "final", false, "1")
	admin := env.newUser(t, "host", true)

	err := env.admin.ClearContestScores(context.Background(), admin, "missing")
	assert.ErrorIs(t, err, ErrContestNotFound)
}

func TestClearCompetitionWipesEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedContest(t, "semi", false, "1")
	env.seedContest(t, "final", false, "1")
	alice := env.newUser(t, "alice", false)
	admin := env.newUser(t, "host", true)

	env.rate(t, alice, "semi", "1", 8, 8, 8)
	env.rate(t, alice, "final", "1", 7, 7, 7)
	_, err := env.sessions.Start(ctx, "sid-1", *alice, "")
	require.NoError(t, err)

	require.NoError(t, env.admin.ClearCompetition(ctx, admin))

	// Caches are dropped with the data they cached. Checked first: any
	// Snapshot call below re-primes the score cache from the (now empty)
	// store.
	_, err = env.local.Get("globalUsers")
	assert.ErrorIs(t, err, localstore.ErrKeyNotFound)
	_, err = env.local.Get("globalAllScores")
	assert.ErrorIs(t, err, localstore.ErrKeyNotFound)

	for _, contestID := range []string{"semi", "final"} {
		_, snapshot, err := env.scoreSvc.Snapshot(ctx, contestID)
		require.NoError(t, err)
		assert.Empty(t, snapshot, contestID)
	}

	users, err := env.users.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	_, err = env.sessions.Resume(ctx, "sid-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Contests themselves survive a competition clear.
	contests, err := env.contests.List(ctx)
	require.NoError(t, err)
	assert.Len(t, contests, 2)
}

func TestBackupWithoutStorage(t *testing.T) {
	env := newTestEnv(t)
	env.seedContest(t, "final", false, "1")
	admin := env.newUser(t, "host", true)

	_, err := env.admin.Backup(context.Background(), admin)
	assert.ErrorIs(t, err, ErrBackupNotConfigured)

	err = env.admin.Restore(context.Background(), admin, "backups/x.json")
	assert.ErrorIs(t, err, ErrBackupNotConfigured)
}

func TestRestoreReplacesResidualState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedContest(t, "final", false, "1")
	alice := env.newUser(t, "alice", false)
	adminUser := env.newUser(t, "host", true)

	objects := newMemObjectStorage()
	admin := env.withObjectStorage(objects)

	env.rate(t, alice, "final", "1", 8, 8, 8)

	result, err := admin.Backup(ctx, adminUser)
	require.NoError(t, err)

	// Diverge from the snapshot: a new voter and changed ratings.
	bob := env.newUser(t, "bob", false)
	env.rate(t, bob, "final", "1", 9, 9, 9)
	env.rate(t, alice, "final", "1", 2, 2, 2)

	require.NoError(t, admin.Restore(ctx, adminUser, result.Key))

	// Post-restore users and scores match the snapshot exactly; Bob and
	// the changed ratings are gone.
	users, err := env.users.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	for _, u := range users {
		assert.NotEqual(t, bob.ID, u.ID)
	}

	_, snapshot, err := env.scoreSvc.Snapshot(ctx, "final")
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.Equal(t, 8.0, snapshot[alice.ID]["1"].Values["songQuality"])
	_, has := snapshot[bob.ID]
	assert.False(t, has)
}

func TestContestToggleAndSeed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedContest(t, "final", false, "1")
	alice := env.newUser(t, "alice", false)
	admin := env.newUser(t, "host", true)

	_, err := env.contestSvc.ToggleStatus(ctx, alice, "final")
	assert.ErrorIs(t, err, ErrAdminRequired)

	contest, err := env.contestSvc.ToggleStatus(ctx, admin, "final")
	require.NoError(t, err)
	assert.True(t, contest.Closed)

	// Seeding normalizes numeric contestant ids and is idempotent.
	input := SeedContestInput{
		ID:   "semi",
		Name: "Semi Final",
		Contestants: []SeedContestantInput{
			{ID: float64(3), Name: "Trio"},
			{ID: "4", Name: "Quartet"},
		},
	}
	seeded, err := env.contestSvc.Seed(ctx, admin, input)
	require.NoError(t, err)
	require.Len(t, seeded.Contestants, 2)
	assert.Equal(t, "3", seeded.Contestants[0].ID)

	again, err := env.contestSvc.Seed(ctx, admin, input)
	require.NoError(t, err)
	assert.Equal(t, seeded.Contestants, again.Contestants)

	// Scoring works against the normalized id.
	_, err = env.scoreSvc.UpdateScore(ctx, alice, "semi", "3", "songQuality", json.RawMessage(`8`))
	assert.NoError(t, err)
}
