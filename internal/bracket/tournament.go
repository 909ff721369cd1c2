package bracket

import (
	"fmt"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentWaiting  TournamentStatus = "waiting"
	TournamentReady    TournamentStatus = "ready"
	TournamentFinished TournamentStatus = "finished"
)

// ValidTournamentSize reports whether n is one of the supported bracket sizes.
func ValidTournamentSize(n int) bool {
	switch n {
	case 4, 8, 16, 32:
		return true
	}
	return false
}

type Tournament struct {
	ID           uuid.UUID        `json:"tournamentId"`
	PlayerAmount int              `json:"playerAmount"`
	Round        int              `json:"round"`
	Players      []PlayerRef      `json:"players"`
	Games        []Game           `json:"games"`
	Status       TournamentStatus `json:"status"`
}

func NewTournament(playerAmount int) Tournament {
	return Tournament{
		ID:           uuid.New(),
		PlayerAmount: playerAmount,
		Round:        1,
		Players:      []PlayerRef{},
		Games:        []Game{},
		Status:       TournamentWaiting,
	}
}

func (t *Tournament) HasPlayer(id uuid.UUID) bool {
	return indexOfPlayer(t.Players, id) >= 0
}

func (t *Tournament) IsFull() bool {
	return len(t.Players) >= t.PlayerAmount
}

// Joinable reports whether first-fit matchmaking may place a player here.
func (t *Tournament) Joinable(playerAmount int) bool {
	return t.Status == TournamentWaiting && t.PlayerAmount == playerAmount && !t.IsFull()
}

// AddPlayer appends p unless it is already registered or the tournament is full.
func (t *Tournament) AddPlayer(p PlayerRef) bool {
	if t.HasPlayer(p.ID) || t.IsFull() {
		return false
	}
	t.Players = append(t.Players, p)
	return true
}

func (t *Tournament) RemovePlayer(id uuid.UUID) bool {
	var ok bool
	t.Players, ok = removePlayer(t.Players, id)
	return ok
}

// GameIndex returns the index of the current-round game with the given id or -1.
func (t *Tournament) GameIndex(gameID uuid.UUID) int {
	for i, g := range t.Games {
		if g.ID == gameID {
			return i
		}
	}
	return -1
}

func (t *Tournament) RemoveGame(gameID uuid.UUID) (Game, bool) {
	i := t.GameIndex(gameID)
	if i < 0 {
		return Game{}, false
	}
	g := t.Games[i]
	t.Games = append(t.Games[:i], t.Games[i+1:]...)
	return g, true
}

// CheckBracket verifies the bracket shape. A waiting tournament has no games. A running
// round never holds more than floor(players/2) games, every game player is still in
// contention and nobody plays twice. Right after a round starts the count is exact, which
// CheckRoundStart verifies.
func (t *Tournament) CheckBracket() error {
	if t.Status != TournamentReady {
		if len(t.Games) != 0 {
			return fmt.Errorf("tournament %s is %s but has %d games", t.ID, t.Status, len(t.Games))
		}
		return nil
	}
	if limit := len(t.Players) / 2; len(t.Games) > limit {
		return fmt.Errorf("tournament %s round %d has %d games for %d players",
			t.ID, t.Round, len(t.Games), len(t.Players))
	}
	seen := make(map[uuid.UUID]struct{}, len(t.Players))
	for _, g := range t.Games {
		for _, p := range g.Players {
			if !t.HasPlayer(p.ID) {
				return fmt.Errorf("tournament %s game %s has eliminated player %s", t.ID, g.ID, p.ID)
			}
			if _, dup := seen[p.ID]; dup {
				return fmt.Errorf("tournament %s player %s is paired twice", t.ID, p.ID)
			}
			seen[p.ID] = struct{}{}
		}
	}
	return nil
}

// CheckRoundStart verifies that a freshly paired round holds exactly floor(players/2) games.
func (t *Tournament) CheckRoundStart() error {
	if err := t.CheckBracket(); err != nil {
		return err
	}
	if want := len(t.Players) / 2; t.Status == TournamentReady && len(t.Games) != want {
		return fmt.Errorf("tournament %s round %d started with %d games, want %d",
			t.ID, t.Round, len(t.Games), want)
	}
	return nil
}

func (t Tournament) Snapshot() Tournament {
	t.Players = clonePlayers(t.Players)
	games := make([]Game, 0, len(t.Games))
	for _, g := range t.Games {
		games = append(games, g.Snapshot())
	}
	t.Games = games
	return t
}
