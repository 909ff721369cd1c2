package bracket

import (
	"time"

	"github.com/google/uuid"
)

type GameMode string

const (
	PvPRemote GameMode = "pvp_remote"
	PvPLocal  GameMode = "pvp_local"
	PvBAI     GameMode = "pvb_ai"
)

func (m GameMode) Valid() bool {
	switch m {
	case PvPRemote, PvPLocal, PvBAI:
		return true
	}
	return false
}

type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

func (v Visibility) Valid() bool {
	return v == Public || v == Private
}

type GameStatus string

const (
	GameWaiting GameStatus = "waiting"
	GameReady   GameStatus = "ready"
)

// MaxGamePlayers is the hard cap for every mode.
const MaxGamePlayers = 2

type Game struct {
	ID         uuid.UUID   `json:"gameId"`
	Players    []PlayerRef `json:"players"`
	Mode       GameMode    `json:"mode"`
	Visibility Visibility  `json:"visibility"`
	Status     GameStatus  `json:"status"`

	// Only set for PvBAI games
	AIDifficulty int `json:"aiDifficulty,omitempty"`
	// Set when the game is a bracket match
	TournamentID *uuid.UUID `json:"tournamentId,omitempty"`

	// Stamped when the game turns ready
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// RequiredPlayers is the player count at which the game may start.
func (g *Game) RequiredPlayers() int {
	if g.Mode == PvBAI {
		return 1
	}
	return MaxGamePlayers
}

func (g *Game) HasPlayer(id uuid.UUID) bool {
	return indexOfPlayer(g.Players, id) >= 0
}

func (g *Game) IsFull() bool {
	return len(g.Players) >= g.RequiredPlayers()
}

// Matchable reports whether the game is open for first-fit matchmaking.
func (g *Game) Matchable() bool {
	return g.Visibility == Public && g.Status == GameWaiting && len(g.Players) < MaxGamePlayers
}

// AddPlayer appends p when there is room. It returns false for duplicates and full games.
func (g *Game) AddPlayer(p PlayerRef) bool {
	if g.HasPlayer(p.ID) || g.IsFull() || g.Status != GameWaiting {
		return false
	}
	g.Players = append(g.Players, p)
	return true
}

func (g *Game) RemovePlayer(id uuid.UUID) bool {
	var ok bool
	g.Players, ok = removePlayer(g.Players, id)
	return ok
}

// Snapshot returns a copy that shares no mutable state with g.
func (g Game) Snapshot() Game {
	g.Players = clonePlayers(g.Players)
	if g.TournamentID != nil {
		id := *g.TournamentID
		g.TournamentID = &id
	}
	if g.CreatedAt != nil {
		at := *g.CreatedAt
		g.CreatedAt = &at
	}
	return g
}
