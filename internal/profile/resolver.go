package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/nrgiser71/tandemup-sub000/internal/model"
	"github.com/nrgiser71/tandemup-sub000/internal/repository"
)

// ErrUnresolved signals that no profile exists for the user. Callers
// must handle it explicitly instead of falling back to default values:
// a waiting session whose owner cannot be resolved is never surfaced
// for matching.
var ErrUnresolved = errors.New("profile not resolved")

// Resolver looks up participant profiles.
type Resolver interface {
	Resolve(ctx context.Context, userID int64) (*model.User, error)
}

// RepoResolver resolves profiles from the local users projection.
type RepoResolver struct {
	users *repository.UserRepository
}

func NewRepoResolver(users *repository.UserRepository) *RepoResolver {
	return &RepoResolver{users: users}
}

func (r *RepoResolver) Resolve(ctx context.Context, userID int64) (*model.User, error) {
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve profile: %w", err)
	}
	if user == nil {
		return nil, ErrUnresolved
	}
	return user, nil
}
