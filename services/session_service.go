package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jurypanel/jurypanel/localstore"
	"github.com/jurypanel/jurypanel/models"
	"github.com/jurypanel/jurypanel/repositories"
)

// SessionService persists the (current user, active contest) pair per
// session id, independent of the contest dataset: clearing votes does not
// clear sessions, only the explicit global competition clear does.
type SessionService interface {
	Start(ctx context.Context, sessionID string, user models.User, contestID string) (*models.Session, error)
	Resume(ctx context.Context, sessionID string) (*models.Session, error)
	SwitchContest(ctx context.Context, sessionID, contestID string) (*models.Session, error)
	// SwitchUser reattaches the session to another existing user. Admin only.
	SwitchUser(ctx context.Context, actor *models.User, sessionID, userID string) (*models.Session, error)
	End(sessionID string) error
	EndSessionsForUser(userID string) error
	EndAll() error
}

type sessionService struct {
	local    localstore.Store
	contests repositories.ContestRepository
	users    repositories.UserRepository
	auth     AuthService
	logger   *slog.Logger
}

func NewSessionService(local localstore.Store, contests repositories.ContestRepository, users repositories.UserRepository, auth AuthService, logger *slog.Logger) SessionService {
	return &sessionService{
		local:    local,
		contests: contests,
		users:    users,
		auth:     auth,
		logger:   logger,
	}
}

func sessionKey(sessionID string) string { return sessionKeyPrefix + sessionID }

func (s *sessionService) Start(ctx context.Context, sessionID string, user models.User, contestID string) (*models.Session, error) {
	contestID, err := s.resolveContestID(ctx, contestID)
	if err != nil {
		return nil, err
	}

	session := &models.Session{CurrentUser: user, ActiveContestID: contestID}
	if err := s.persist(sessionID, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *sessionService) Resume(ctx context.Context, sessionID string) (*models.Session, error) {
	raw, err := s.local.Get(sessionKey(sessionID))
	if err != nil {
		if errors.Is(err, localstore.ErrKeyNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	// A stale contest reference falls back to the first available contest.
	resolved, err := s.resolveContestID(ctx, session.ActiveContestID)
	if err != nil {
		return nil, err
	}
	if resolved != session.ActiveContestID {
		session.ActiveContestID = resolved
		if err := s.persist(sessionID, &session); err != nil {
			return nil, err
		}
	}
	return &session, nil
}

func (s *sessionService) SwitchContest(ctx context.Context, sessionID, contestID string) (*models.Session, error) {
	if _, err := s.contests.GetByID(ctx, contestID); err != nil {
		if errors.Is(err, repositories.ErrContestNotFound) {
			return nil, ErrContestNotFound
		}
		return nil, err
	}

	session, err := s.Resume(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.ActiveContestID = contestID
	if err := s.persist(sessionID, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *sessionService) SwitchUser(ctx context.Context, actor *models.User, sessionID, userID string) (*models.Session, error) {
	if err := s.auth.RequireAdmin(actor); err != nil {
		return nil, err
	}

	target, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	session, err := s.Resume(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.CurrentUser = *target
	if err := s.persist(sessionID, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *sessionService) End(sessionID string) error {
	return s.local.Remove(sessionKey(sessionID))
}

func (s *sessionService) EndSessionsForUser(userID string) error {
	keys, err := s.local.Keys(sessionKeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	for _, key := range keys {
		raw, err := s.local.Get(key)
		if err != nil {
			continue
		}
		var session models.Session
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			continue
		}
		if session.CurrentUser.ID == userID {
			if err := s.local.Remove(key); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *sessionService) EndAll() error {
	keys, err := s.local.Keys(sessionKeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	for _, key := range keys {
		if err := s.local.Remove(key); err != nil {
			return err
		}
	}
	return nil
}

func (s *sessionService) persist(sessionID string, session *models.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.local.Set(sessionKey(sessionID), string(raw)); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// resolveContestID validates the contest reference, falling back to the
// first available contest when the reference is empty or stale.
func (s *sessionService) resolveContestID(ctx context.Context, contestID string) (string, error) {
	if contestID != "" {
		_, err := s.contests.GetByID(ctx, contestID)
		if err == nil {
			return contestID, nil
		}
		if !errors.Is(err, repositories.ErrContestNotFound) {
			return "", err
		}
	}

	contests, err := s.contests.List(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list contests: %w", err)
	}
	if len(contests) == 0 {
		return "", ErrContestNotFound
	}
	return contests[0].ID, nil
}
