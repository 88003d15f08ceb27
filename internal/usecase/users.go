package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"palate/internal/domain"
	"palate/internal/port"
)

// UserUseCase manages users and their declared taste.
type UserUseCase struct {
	users port.UserStore
	now   func() time.Time
}

func NewUserUseCase(users port.UserStore) *UserUseCase {
	return &UserUseCase{users: users, now: func() time.Time { return time.Now().UTC() }}
}

// CreateUser stores a user, assigning an ID when none is given.
func (u *UserUseCase) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	if user.Taste != nil {
		if err := user.Taste.Validate(); err != nil {
			return domain.User{}, err
		}
	}
	user.ID = strings.TrimSpace(user.ID)
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if err := domain.ValidateID("user", user.ID); err != nil {
		return domain.User{}, err
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = u.now()
	}
	if err := u.users.PutUser(user); err != nil {
		return domain.User{}, fmt.Errorf("store user: %w", err)
	}
	return user, nil
}

func (u *UserUseCase) GetUser(ctx context.Context, id string) (domain.User, error) {
	return u.users.GetUser(id)
}

// SetTaste records the user's own taste vector, given on the stated scale
// (1 for canonical values, 5 for 1-5 ratings). Unknown users are created.
func (u *UserUseCase) SetTaste(ctx context.Context, id string, taste domain.TasteVector, scale int) (domain.User, error) {
	if err := domain.ValidateID("user", strings.TrimSpace(id)); err != nil {
		return domain.User{}, err
	}
	canonical, err := domain.Normalize(taste, scale)
	if err != nil {
		return domain.User{}, err
	}

	user, err := u.users.GetUser(id)
	if IsNotFound(err) {
		user = domain.User{ID: id, CreatedAt: u.now()}
	} else if err != nil {
		return domain.User{}, err
	}
	user.Taste = &canonical
	if err := u.users.PutUser(user); err != nil {
		return domain.User{}, fmt.Errorf("store user: %w", err)
	}
	return user, nil
}

// Profile returns the stored profile embedding; ok is false when the user has none yet.
func (u *UserUseCase) Profile(ctx context.Context, id string) (domain.ProfileEmbedding, bool, error) {
	return u.users.GetProfile(id)
}
