package views

import (
	"github.com/AdamBeresnev/pong-arena/internal/bracket"
	"github.com/google/uuid"
)

type MatchRow struct {
	GameID uuid.UUID
	Home   string
	Away   string
	Status bracket.GameStatus
}

type BracketData struct {
	TournamentID uuid.UUID
	Round        int
	PlayerAmount int
	Status       bracket.TournamentStatus
	Matches      []MatchRow
	// Players not in a current-round game: everybody while waiting, a bye otherwise
	Idle []string
}

func alias(p bracket.PlayerRef) string {
	if p.Alias != "" {
		return p.Alias
	}
	return p.ID.String()[:8]
}

// PrepareBracketData flattens a tournament snapshot into rows for the bracket page.
func PrepareBracketData(t bracket.Tournament) BracketData {
	data := BracketData{
		TournamentID: t.ID,
		Round:        t.Round,
		PlayerAmount: t.PlayerAmount,
		Status:       t.Status,
		Matches:      make([]MatchRow, 0, len(t.Games)),
	}

	playing := make(map[uuid.UUID]bool, len(t.Players))
	for _, g := range t.Games {
		row := MatchRow{GameID: g.ID, Status: g.Status}
		if len(g.Players) > 0 {
			row.Home = alias(g.Players[0])
			playing[g.Players[0].ID] = true
		}
		if len(g.Players) > 1 {
			row.Away = alias(g.Players[1])
			playing[g.Players[1].ID] = true
		}
		data.Matches = append(data.Matches, row)
	}
	for _, p := range t.Players {
		if !playing[p.ID] {
			data.Idle = append(data.Idle, alias(p))
		}
	}
	return data
}
