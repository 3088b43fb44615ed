package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jurypanel/jurypanel/docstore"
	"github.com/jurypanel/jurypanel/live"
	"github.com/jurypanel/jurypanel/localstore"
	"github.com/jurypanel/jurypanel/models"
	"github.com/jurypanel/jurypanel/repositories"
	"github.com/jurypanel/jurypanel/storage"
)

const testAdminPassphrase = "let-me-in"

// testEnv wires the full service stack over in-memory stores.
type testEnv struct {
	store *docstore.MemoryStore
	local *localstore.MemoryStore

	users    repositories.UserRepository
	contests repositories.ContestRepository
	scores   repositories.ScoreRepository

	auth       AuthService
	sessions   SessionService
	contestSvc ContestService
	scoreSvc   ScoreService
	agg        AggregationService
	admin      AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{
		store: docstore.NewMemoryStore(),
		local: localstore.NewMemoryStore(),
	}
	env.users = repositories.NewUserRepository(env.store)
	env.contests = repositories.NewContestRepository(env.store)
	env.scores = repositories.NewScoreRepository(env.store)

	auth, err := NewAuthService(env.users, env.local, testAdminPassphrase, logger)
	require.NoError(t, err)
	env.auth = auth

	hub := live.NewHub(logger)
	env.sessions = NewSessionService(env.local, env.contests, env.users, env.auth, logger)
	env.contestSvc = NewContestService(env.contests, env.auth, hub, logger)
	env.scoreSvc = NewScoreService(env.scores, env.contests, models.DefaultCriteria, env.auth, hub, env.local, logger)
	env.agg = NewAggregationService(models.DefaultCriteria)
	env.admin = NewAdminService(env.users, env.contests, env.scores, env.sessions, env.auth, env.local, nil, logger)
	return env
}

func (env *testEnv) seedContest(t *testing.T, id string, closed bool, contestantIDs ...string) *models.Contest {
	t.Helper()
	contest := &models.Contest{ID: id, Name: "Contest " + id, Closed: closed}
	for i, cid := range contestantIDs {
		contest.Contestants = append(contest.Contestants, models.Contestant{
			ID:    cid,
			Name:  "Contestant " + cid,
			Order: i + 1,
		})
	}
	require.NoError(t, env.contests.Save(context.Background(), contest))
	return contest
}

// withObjectStorage returns an AdminService backed by an in-memory object
// store, for exercising the backup and restore paths.
func (env *testEnv) withObjectStorage(objects storage.ObjectStorage) AdminService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAdminService(env.users, env.contests, env.scores, env.sessions, env.auth, env.local, objects, logger)
}

// memObjectStorage is the test double for storage.ObjectStorage.
type memObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemObjectStorage() *memObjectStorage {
	return &memObjectStorage{objects: make(map[string][]byte)}
}

func (m *memObjectStorage) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = raw
	return &storage.UploadResult{Key: key, Location: "mem://" + key}, nil
}

func (m *memObjectStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (m *memObjectStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (env *testEnv) newUser(t *testing.T, name string, admin bool) *models.User {
	t.Helper()
	user, err := env.auth.Login(context.Background(), LoginInput{
		Name:       name,
		Password:   testAdminPassphrase,
		AdminLogin: admin,
	})
	require.NoError(t, err)
	return user
}
