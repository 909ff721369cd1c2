package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventGameReady              EventKind = "game_ready"
	EventGameCancelled          EventKind = "game_cancelled"
	EventTournamentPlayerJoined EventKind = "tournament_player_joined"
	EventTournamentPlayerLeft   EventKind = "tournament_player_left"
	EventTournamentReady        EventKind = "tournament_ready"
	EventTournamentRound        EventKind = "tournament_round"
	EventTournamentWinner       EventKind = "tournament_winner"
)

// Notifier pushes an event to a single player. Implementations must not block and
// never report delivery failures to the caller.
type Notifier interface {
	Notify(playerID uuid.UUID, kind EventKind, message string)
}

// Notification is one queued message for a player.
type Notification struct {
	PlayerID uuid.UUID `json:"player_id"`
	Event    EventKind `json:"event"`
	Message  string    `json:"message"`
	SentAt   time.Time `json:"sent_at"`
}

// Sender delivers a notification over some transport.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}
