package bracket

import (
	"fmt"

	"github.com/AdamBeresnev/pong-arena/internal/apperr"
)

type GameEvent string

const (
	// GameFilled fires once the player count satisfies the mode.
	GameFilled GameEvent = "filled"
)

type TournamentEvent string

const (
	TournamentFilled        TournamentEvent = "filled"
	TournamentRoundCleared  TournamentEvent = "round_cleared"
	TournamentWinnerDecided TournamentEvent = "winner_decided"
)

var gameTransitions = map[GameStatus]map[GameEvent]GameStatus{
	GameWaiting: {GameFilled: GameReady},
}

var tournamentTransitions = map[TournamentStatus]map[TournamentEvent]TournamentStatus{
	TournamentWaiting: {TournamentFilled: TournamentReady},
	TournamentReady: {
		TournamentRoundCleared:  TournamentReady,
		TournamentWinnerDecided: TournamentFinished,
	},
}

// NextGameStatus returns the status reached from `from` on ev.
func NextGameStatus(from GameStatus, ev GameEvent) (GameStatus, error) {
	if to, ok := gameTransitions[from][ev]; ok {
		return to, nil
	}
	return from, apperr.InvalidState(fmt.Sprintf("game cannot go from %s on %s", from, ev))
}

func NextTournamentStatus(from TournamentStatus, ev TournamentEvent) (TournamentStatus, error) {
	if to, ok := tournamentTransitions[from][ev]; ok {
		return to, nil
	}
	return from, apperr.InvalidState(fmt.Sprintf("tournament cannot go from %s on %s", from, ev))
}

// Transition applies ev to the game status.
func (g *Game) Transition(ev GameEvent) error {
	to, err := NextGameStatus(g.Status, ev)
	if err != nil {
		return err
	}
	g.Status = to
	return nil
}

// Transition applies ev to the tournament. A cleared round also bumps Round and
// re-derives PlayerAmount from the survivors.
func (t *Tournament) Transition(ev TournamentEvent) error {
	to, err := NextTournamentStatus(t.Status, ev)
	if err != nil {
		return err
	}
	t.Status = to
	if ev == TournamentRoundCleared {
		t.Round++
		t.PlayerAmount = len(t.Players)
	}
	return nil
}
