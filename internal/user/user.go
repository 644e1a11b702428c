// Package user implements username resolution and lazy account
// creation (spec.md §4.2). There is no password or session state —
// the server model assumes honest naming.
package user

import (
	"context"

	"github.com/kinkard/auctionhouse/internal/auctionerr"
	"github.com/kinkard/auctionhouse/internal/models"
)

// Store is the subset of the persistence layer the user service needs.
type Store interface {
	GetUserID(ctx context.Context, name string) (uint64, error)
	CreateUser(ctx context.Context, name string) (uint64, error)
}

// Service resolves usernames to user ids, creating accounts on first
// sight.
type Service struct {
	store Store
}

// New wraps a store handle in a user service.
func New(store Store) *Service {
	return &Service{store: store}
}

// Login returns the existing user for name, or creates one with a
// zero-funds row if this is the first time the name has been seen.
func (s *Service) Login(ctx context.Context, name string) (models.User, error) {
	if name == "" {
		return models.User{}, auctionerr.New(auctionerr.Validation, "username cannot be empty")
	}

	id, err := s.store.GetUserID(ctx, name)
	if err == nil {
		return models.User{ID: id, Username: name}, nil
	}
	if !auctionerr.Is(err, auctionerr.NotFound) {
		return models.User{}, err
	}

	id, err = s.store.CreateUser(ctx, name)
	if err != nil {
		if auctionerr.Is(err, auctionerr.Conflict) {
			// Lost a create race against another connection's login; the
			// winner's row is now visible.
			if id, gerr := s.store.GetUserID(ctx, name); gerr == nil {
				return models.User{ID: id, Username: name}, nil
			}
		}
		return models.User{}, err
	}
	return models.User{ID: id, Username: name}, nil
}
