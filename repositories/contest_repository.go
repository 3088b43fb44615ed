package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/jurypanel/jurypanel/docstore"
	"github.com/jurypanel/jurypanel/models"
)

var ErrContestNotFound = errors.New("contest not found")

type ContestRepository interface {
	List(ctx context.Context) ([]models.Contest, error)
	GetByID(ctx context.Context, id string) (*models.Contest, error)

	// Save insert-or-replaces a contest document and its contestant
	// sub-records. Re-running with the same input produces the same end
	// state, including removal of contestants no longer listed.
	Save(ctx context.Context, contest *models.Contest) error

	SetClosed(ctx context.Context, id string, closed bool) error
}

type docContestRepository struct {
	store docstore.Store
}

func NewContestRepository(store docstore.Store) ContestRepository {
	return &docContestRepository{store: store}
}

func (r *docContestRepository) List(ctx context.Context) ([]models.Contest, error) {
	docs, err := r.store.List(ctx, docstore.ContestsCollection())
	if err != nil {
		return nil, fmt.Errorf("failed to list contests: %w", err)
	}

	contests := make([]models.Contest, 0, len(docs))
	for id, doc := range docs {
		contests = append(contests, contestFromDoc(id, doc))
	}
	sort.Slice(contests, func(i, j int) bool { return contests[i].ID < contests[j].ID })

	// Contestant lists load in parallel; the per-contest fetch is the hot
	// path on startup and contest switch.
	g, gctx := errgroup.WithContext(ctx)
	for i := range contests {
		i := i
		g.Go(func() error {
			contestants, err := r.listContestants(gctx, contests[i].ID)
			if err != nil {
				return err
			}
			contests[i].Contestants = contestants
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return contests, nil
}

func (r *docContestRepository) GetByID(ctx context.Context, id string) (*models.Contest, error) {
	doc, err := r.store.Get(ctx, docstore.ContestPath(id))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrContestNotFound
		}
		return nil, err
	}

	contest := contestFromDoc(id, doc)
	contestants, err := r.listContestants(ctx, id)
	if err != nil {
		return nil, err
	}
	contest.Contestants = contestants
	return &contest, nil
}

func (r *docContestRepository) Save(ctx context.Context, contest *models.Contest) error {
	doc := docstore.Document{
		"name":   contest.Name,
		"closed": contest.Closed,
	}
	if err := r.store.Set(ctx, docstore.ContestPath(contest.ID), doc, false); err != nil {
		return fmt.Errorf("failed to save contest %s: %w", contest.ID, err)
	}

	keep := make(map[string]struct{}, len(contest.Contestants))
	for _, c := range contest.Contestants {
		keep[c.ID] = struct{}{}
		cdoc := docstore.Document{"name": c.Name}
		if c.Country != "" {
			cdoc["country"] = c.Country
		}
		if c.Order != 0 {
			cdoc["order"] = c.Order
		}
		if err := r.store.Set(ctx, docstore.ContestantPath(contest.ID, c.ID), cdoc, false); err != nil {
			return fmt.Errorf("failed to save contestant %s/%s: %w", contest.ID, c.ID, err)
		}
	}

	// Drop contestants removed from the seed so reseeding converges.
	existing, err := r.store.List(ctx, docstore.ContestantsCollection(contest.ID))
	if err != nil {
		return err
	}
	for id := range existing {
		if _, ok := keep[id]; ok {
			continue
		}
		if err := r.store.Delete(ctx, docstore.ContestantPath(contest.ID, id)); err != nil {
			return err
		}
	}
	return nil
}

func (r *docContestRepository) SetClosed(ctx context.Context, id string, closed bool) error {
	if _, err := r.store.Get(ctx, docstore.ContestPath(id)); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrContestNotFound
		}
		return err
	}
	return r.store.Set(ctx, docstore.ContestPath(id), docstore.Document{"closed": closed}, true)
}

func (r *docContestRepository) listContestants(ctx context.Context, contestID string) ([]models.Contestant, error) {
	docs, err := r.store.List(ctx, docstore.ContestantsCollection(contestID))
	if err != nil {
		return nil, fmt.Errorf("failed to list contestants of %s: %w", contestID, err)
	}

	contestants := make([]models.Contestant, 0, len(docs))
	for id, doc := range docs {
		c := models.Contestant{ID: id}
		if name, ok := doc["name"].(string); ok {
			c.Name = name
		}
		if country, ok := doc["country"].(string); ok {
			c.Country = country
		}
		switch order := doc["order"].(type) {
		case float64:
			c.Order = int(order)
		case int:
			c.Order = order
		}
		contestants = append(contestants, c)
	}
	sort.Slice(contestants, func(i, j int) bool {
		if contestants[i].Order != contestants[j].Order {
			return contestants[i].Order < contestants[j].Order
		}
		return contestants[i].ID < contestants[j].ID
	})
	return contestants, nil
}

func contestFromDoc(id string, doc docstore.Document) models.Contest {
	contest := models.Contest{ID: id}
	if name, ok := doc["name"].(string); ok {
		contest.Name = name
	}
	if closed, ok := doc["closed"].(bool); ok {
		contest.Closed = closed
	}
	return contest
}
