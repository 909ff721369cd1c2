package bracket

import (
	"time"

	"github.com/google/uuid"
)

// Result is the recorded outcome of a finished game. WinnerID or LoserID is nil when
// that side was the AI.
type Result struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	GameID       uuid.UUID  `db:"game_id" json:"gameId"`
	TournamentID *uuid.UUID `db:"tournament_id" json:"tournamentId,omitempty"`
	Mode         GameMode   `db:"mode" json:"mode"`
	WinnerID     *uuid.UUID `db:"winner_id" json:"winnerId,omitempty"`
	LoserID      *uuid.UUID `db:"loser_id" json:"loserId,omitempty"`
	WinnerScore  int        `db:"winner_score" json:"winnerScore"`
	LoserScore   int        `db:"loser_score" json:"loserScore"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
}
