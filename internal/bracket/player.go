package bracket

import "github.com/google/uuid"

// PlayerRef identifies a player inside a game or tournament. Alias is only used for display.
type PlayerRef struct {
	ID    uuid.UUID `json:"id"`
	Alias string    `json:"alias,omitempty"`
}

func indexOfPlayer(players []PlayerRef, id uuid.UUID) int {
	for i, p := range players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func removePlayer(players []PlayerRef, id uuid.UUID) ([]PlayerRef, bool) {
	i := indexOfPlayer(players, id)
	if i < 0 {
		return players, false
	}
	return append(players[:i], players[i+1:]...), true
}

func clonePlayers(players []PlayerRef) []PlayerRef {
	if players == nil {
		return nil
	}
	return append(make([]PlayerRef, 0, len(players)), players...)
}
