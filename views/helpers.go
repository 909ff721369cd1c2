package views

import (
	"context"

	"github.com/AdamBeresnev/pong-arena/internal/middleware"
	users "github.com/AdamBeresnev/pong-arena/internal/user"
)

func GetUser(ctx context.Context) *users.User {
	return middleware.GetAuthenticatedUser(ctx)
}

func viewerName(ctx context.Context) string {
	if user := GetUser(ctx); user != nil {
		return user.Username
	}
	return "guest"
}
