package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jurypanel/jurypanel/localstore"
	"github.com/jurypanel/jurypanel/models"
	"github.com/jurypanel/jurypanel/repositories"
	"github.com/jurypanel/jurypanel/storage"
)

// BackupSnapshot is the full-fidelity export: restoring it reproduces users,
// contests and every score entry.
type BackupSnapshot struct {
	CreatedAt time.Time                         `json:"created_at"`
	Users     []models.User                     `json:"users"`
	Contests  []models.Contest                  `json:"contests"`
	Scores    map[string]models.ContestSnapshot `json:"scores"`
}

// AdminService bundles the destructive operations. Contest-scoped clear and
// the global competition clear are deliberately separate methods: running
// the wrong one in the wrong scope is exactly the mistake two distinct
// operations prevent.
type AdminService interface {
	DeleteUser(ctx context.Context, actor *models.User, userID string) error
	ClearContestScores(ctx context.Context, actor *models.User, contestID string) error
	ClearCompetition(ctx context.Context, actor *models.User) error
	Backup(ctx context.Context, actor *models.User) (*storage.UploadResult, error)
	Restore(ctx context.Context, actor *models.User, key string) error
}

type adminService struct {
	users    repositories.UserRepository
	contests repositories.ContestRepository
	scores   repositories.ScoreRepository
	sessions SessionService
	auth     AuthService
	local    localstore.Store
	objects  storage.ObjectStorage // nil when backups are not configured
	logger   *slog.Logger
	now      func() time.Time
}

func NewAdminService(
	users repositories.UserRepository,
	contests repositories.ContestRepository,
	scores repositories.ScoreRepository,
	sessions SessionService,
	auth AuthService,
	local localstore.Store,
	objects storage.ObjectStorage,
	logger *slog.Logger,
) AdminService {
	return &adminService{
		users:    users,
		contests: contests,
		scores:   scores,
		sessions: sessions,
		auth:     auth,
		local:    local,
		objects:  objects,
		logger:   logger,
		now:      time.Now,
	}
}

// DeleteUser removes the user record and cascades to every score entry keyed
// by that user across all contests. Sessions attached to the user end, which
// forces the affected client back to login.
func (s *adminService) DeleteUser(ctx context.Context, actor *models.User, userID string) error {
	if err := s.auth.RequireAdmin(actor); err != nil {
		return err
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	contests, err := s.contests.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list contests for user deletion: %w", err)
	}
	if err := s.scores.DeleteUserScores(ctx, contests, userID); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}
	if err := s.sessions.EndSessionsForUser(userID); err != nil {
		s.logger.Warn("failed to end sessions of deleted user",
			slog.String("user_id", userID), slog.Any("error", err))
	}

	s.logger.Info("user deleted", slog.String("user_id", userID),
		slog.String("actor", actor.ID))
	return nil
}

// ClearContestScores removes every score entry under one contest. Users,
// sessions and other contests' scores stay untouched.
func (s *adminService) ClearContestScores(ctx context.Context, actor *models.User, contestID string) error {
	if err := s.auth.RequireAdmin(actor); err != nil {
		return err
	}

	contest, err := s.contests.GetByID(ctx, contestID)
	if err != nil {
		if errors.Is(err, repositories.ErrContestNotFound) {
			return ErrContestNotFound
		}
		return err
	}

	if err := s.scores.DeleteContestScores(ctx, contest); err != nil {
		return fmt.Errorf("failed to clear scores of contest %s: %w", contestID, err)
	}
	s.dropCachedContest(contestID)

	s.logger.Info("contest scores cleared", slog.String("contest_id", contestID),
		slog.String("actor", actor.ID))
	return nil
}

// ClearCompetition wipes every score, every user, the local caches and all
// persisted session state. The session wipe is deliberate and unique to this
// operation.
func (s *adminService) ClearCompetition(ctx context.Context, actor *models.User) error {
	if err := s.auth.RequireAdmin(actor); err != nil {
		return err
	}

	contests, err := s.contests.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list contests for competition clear: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range contests {
		i := i
		g.Go(func() error {
			return s.scores.DeleteContestScores(gctx, &contests[i])
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := s.users.DeleteAll(ctx); err != nil {
		return err
	}
	if err := s.sessions.EndAll(); err != nil {
		return err
	}
	_ = s.local.Remove(globalUsersKey)
	_ = s.local.Remove(globalAllScoresKey)

	s.logger.Info("competition cleared", slog.String("actor", actor.ID))
	return nil
}

func (s *adminService) Backup(ctx context.Context, actor *models.User) (*storage.UploadResult, error) {
	if err := s.auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if s.objects == nil {
		return nil, ErrBackupNotConfigured
	}

	snapshot, err := s.export(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}

	key := fmt.Sprintf("backups/%s.json", snapshot.CreatedAt.UTC().Format("20060102T150405Z"))
	result, err := s.objects.Upload(ctx, key, "application/json", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to upload backup: %w", err)
	}

	s.logger.Info("backup uploaded", slog.String("key", key), slog.String("actor", actor.ID))
	return result, nil
}

func (s *adminService) Restore(ctx context.Context, actor *models.User, key string) error {
	if err := s.auth.RequireAdmin(actor); err != nil {
		return err
	}
	if s.objects == nil {
		return ErrBackupNotConfigured
	}

	body, err := s.objects.Download(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to download backup %s: %w", key, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read backup %s: %w", key, err)
	}
	var snapshot BackupSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return fmt.Errorf("failed to decode backup %s: %w", key, err)
	}

	// Residual users and scores would otherwise merge into the replayed
	// snapshot; a restore must reproduce it exactly.
	if err := s.users.DeleteAll(ctx); err != nil {
		return err
	}
	for i := range snapshot.Users {
		if err := s.users.Create(ctx, &snapshot.Users[i]); err != nil {
			return err
		}
	}
	for i := range snapshot.Contests {
		if err := s.contests.Save(ctx, &snapshot.Contests[i]); err != nil {
			return err
		}
		if err := s.scores.DeleteContestScores(ctx, &snapshot.Contests[i]); err != nil {
			return err
		}
	}
	for contestID, contestScores := range snapshot.Scores {
		for userID, entries := range contestScores {
			for contestantID, entry := range entries {
				if err := s.scores.SetEntry(ctx, contestID, contestantID, userID, entry); err != nil {
					return err
				}
			}
		}
	}

	// The caches described the pre-restore state.
	_ = s.local.Remove(globalUsersKey)
	_ = s.local.Remove(globalAllScoresKey)

	s.logger.Info("backup restored", slog.String("key", key), slog.String("actor", actor.ID))
	return nil
}

func (s *adminService) export(ctx context.Context) (*BackupSnapshot, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export users: %w", err)
	}
	contests, err := s.contests.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export contests: %w", err)
	}

	snapshot := &BackupSnapshot{
		CreatedAt: s.now(),
		Users:     users,
		Contests:  contests,
		Scores:    make(map[string]models.ContestSnapshot, len(contests)),
	}
	for i := range contests {
		contestScores, err := s.scores.SnapshotContest(ctx, &contests[i])
		if err != nil {
			return nil, fmt.Errorf("failed to export scores of %s: %w", contests[i].ID, err)
		}
		snapshot.Scores[contests[i].ID] = contestScores
	}
	return snapshot, nil
}

func (s *adminService) dropCachedContest(contestID string) {
	raw, err := s.local.Get(globalAllScoresKey)
	if err != nil {
		return
	}
	var all map[string]models.ContestSnapshot
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		return
	}
	delete(all, contestID)
	if updated, err := json.Marshal(all); err == nil {
		_ = s.local.Set(globalAllScoresKey, string(updated))
	}
}
