package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/AdamBeresnev/pong-arena/internal/apperr"
	"github.com/AdamBeresnev/pong-arena/internal/store"
	users "github.com/AdamBeresnev/pong-arena/internal/user"
	"github.com/AdamBeresnev/pong-arena/internal/utils"
	"github.com/google/uuid"
)

type UserService struct {
	store *store.UserStore
}

func NewUserService(store *store.UserStore) *UserService {
	return &UserService{store: store}
}

// CreateGuestUser registers a new player under the given display name.
func (s *UserService) CreateGuestUser(ctx context.Context, username, avatarURL string) (*users.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperr.InvalidState("username must not be empty")
	}
	user := &users.User{
		ID:        uuid.New(),
		Username:  username,
		AvatarURL: utils.StringOrNil(avatarURL),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return s.store.GetUser(ctx, user.ID)
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*users.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.KindNotFound, ErrPlayerNotFound.Message, err)
	}
	return user, err
}

// Rename changes the display name and avatar. Aliases already copied into live games
// keep the old name.
func (s *UserService) Rename(ctx context.Context, id uuid.UUID, username, avatarURL string) (*users.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperr.InvalidState("username must not be empty")
	}
	user.Username = username
	user.AvatarURL = utils.StringOrNil(avatarURL)
	if err := s.store.UpdateUserNameAndAvatar(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}
