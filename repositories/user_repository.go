package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jurypanel/jurypanel/docstore"
	"github.com/jurypanel/jurypanel/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByName performs the identity-by-name lookup used at login.
	GetByName(ctx context.Context, name string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}

type docUserRepository struct {
	store docstore.Store
}

func NewUserRepository(store docstore.Store) UserRepository {
	return &docUserRepository{store: store}
}

func (r *docUserRepository) Create(ctx context.Context, user *models.User) error {
	doc := docstore.Document{
		"name":    user.Name,
		"isAdmin": user.IsAdmin,
	}
	if err := r.store.Set(ctx, docstore.UserPath(user.ID), doc, false); err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.ID, err)
	}
	return nil
}

func (r *docUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	doc, err := r.store.Get(ctx, docstore.UserPath(id))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	user := userFromDoc(id, doc)
	return &user, nil
}

func (r *docUserRepository) GetByName(ctx context.Context, name string) (*models.User, error) {
	users, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Name == name {
			return &users[i], nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *docUserRepository) List(ctx context.Context) ([]models.User, error) {
	docs, err := r.store.List(ctx, docstore.UsersCollection())
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]models.User, 0, len(docs))
	for id, doc := range docs {
		users = append(users, userFromDoc(id, doc))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (r *docUserRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, docstore.UserPath(id))
}

func (r *docUserRepository) DeleteAll(ctx context.Context) error {
	docs, err := r.store.List(ctx, docstore.UsersCollection())
	if err != nil {
		return fmt.Errorf("failed to list users for deletion: %w", err)
	}
	for id := range docs {
		if err := r.store.Delete(ctx, docstore.UserPath(id)); err != nil {
			return err
		}
	}
	return nil
}

func userFromDoc(id string, doc docstore.Document) models.User {
	user := models.User{ID: id}
	if name, ok := doc["name"].(string); ok {
		user.Name = name
	}
	if isAdmin, ok := doc["isAdmin"].(bool); ok {
		user.IsAdmin = isAdmin
	}
	return user
}
