package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/jurypanel/jurypanel/live"
	"github.com/jurypanel/jurypanel/models"
	"github.com/jurypanel/jurypanel/repositories"
)

// SeedContestInput is the insert-or-replace payload for a contest and its
// contestants. Contestant ids may arrive as numbers or strings; they are
// normalized to strings before anything touches the score layer.
type SeedContestInput struct {
	ID          string                `json:"id" validate:"required"`
	Name        string                `json:"name" validate:"required"`
	Closed      bool                  `json:"closed"`
	Contestants []SeedContestantInput `json:"contestants" validate:"required,min=1,dive"`
}

type SeedContestantInput struct {
	ID      any    `json:"id" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Country string `json:"country,omitempty"`
	Order   int    `json:"order,omitempty"`
}

type ContestService interface {
	List(ctx context.Context) ([]models.Contest, error)
	Get(ctx context.Context, id string) (*models.Contest, error)

	// ToggleStatus flips the closed flag. Admin only.
	ToggleStatus(ctx context.Context, actor *models.User, contestID string) (*models.Contest, error)

	// Seed insert-or-replaces a contest; re-running it converges to the
	// same end state. Admin only.
	Seed(ctx context.Context, actor *models.User, input SeedContestInput) (*models.Contest, error)

	// SeedFromFile runs the same seeding from a JSON file at startup,
	// before any user exists.
	SeedFromFile(ctx context.Context, path string) error
}

type contestService struct {
	contests repositories.ContestRepository
	auth     AuthService
	hub      *live.Hub
	logger   *slog.Logger
}

func NewContestService(contests repositories.ContestRepository, auth AuthService, hub *live.Hub, logger *slog.Logger) ContestService {
	return &contestService{contests: contests, auth: auth, hub: hub, logger: logger}
}

func (s *contestService) List(ctx context.Context) ([]models.Contest, error) {
	return s.contests.List(ctx)
}

func (s *contestService) Get(ctx context.Context, id string) (*models.Contest, error) {
	contest, err := s.contests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrContestNotFound) {
			return nil, ErrContestNotFound
		}
		return nil, err
	}
	return contest, nil
}

func (s *contestService) ToggleStatus(ctx context.Context, actor *models.User, contestID string) (*models.Contest, error) {
	if err := s.auth.RequireAdmin(actor); err != nil {
		return nil, err
	}

	contest, err := s.Get(ctx, contestID)
	if err != nil {
		return nil, err
	}

	if err := s.contests.SetClosed(ctx, contestID, !contest.Closed); err != nil {
		return nil, fmt.Errorf("failed to toggle contest %s: %w", contestID, err)
	}
	contest.Closed = !contest.Closed

	s.hub.Broadcast(contestID, live.Message{
		Type:    live.MessageContestUpdated,
		Payload: map[string]bool{"closed": contest.Closed},
	})
	return contest, nil
}

func (s *contestService) Seed(ctx context.Context, actor *models.User, input SeedContestInput) (*models.Contest, error) {
	if err := s.auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.seed(ctx, input)
}

func (s *contestService) SeedFromFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var inputs []SeedContestInput
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return fmt.Errorf("failed to decode seed file %s: %w", path, err)
	}

	for _, input := range inputs {
		if _, err := s.seed(ctx, input); err != nil {
			return err
		}
		s.logger.Info("seeded contest", slog.String("contest_id", input.ID),
			slog.Int("contestants", len(input.Contestants)))
	}
	return nil
}

func (s *contestService) seed(ctx context.Context, input SeedContestInput) (*models.Contest, error) {
	contest := &models.Contest{
		ID:     strings.TrimSpace(input.ID),
		Name:   input.Name,
		Closed: input.Closed,
	}
	if contest.ID == "" {
		return nil, errors.New("contest id must not be empty")
	}

	for i, c := range input.Contestants {
		id := normalizeContestantID(c.ID)
		if id == "" {
			return nil, fmt.Errorf("contestant %d of contest %s has no id", i, contest.ID)
		}
		order := c.Order
		if order == 0 {
			order = i + 1
		}
		contest.Contestants = append(contest.Contestants, models.Contestant{
			ID:      id,
			Name:    c.Name,
			Country: c.Country,
			Order:   order,
		})
	}

	if err := s.contests.Save(ctx, contest); err != nil {
		return nil, err
	}
	return contest, nil
}

// normalizeContestantID renders numeric ids the way the score layer expects:
// 3 and "3" must index the same entry.
func normalizeContestantID(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}
