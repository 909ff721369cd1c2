package service

import "github.com/AdamBeresnev/pong-arena/internal/apperr"

var (
	ErrGameNotFound       = apperr.NotFound("game not found")
	ErrTournamentNotFound = apperr.NotFound("tournament not found")
	ErrPlayerNotFound     = apperr.NotFound("player not found")

	ErrAlreadyInGame = apperr.Conflict("player is already in another game")

	ErrNotInGame       = apperr.Forbidden("player is not part of this game")
	ErrGameStarted     = apperr.InvalidState("game already started")
	ErrGameNotReady    = apperr.InvalidState("game has not started")
	ErrInvalidGameMode = apperr.InvalidState("unknown game mode or visibility")
	ErrInvalidResult   = apperr.InvalidState("result does not match the game players")

	ErrInvalidTournamentSize = apperr.InvalidState("tournament size must be 4, 8, 16 or 32")
	ErrTournamentStarted     = apperr.InvalidState("tournament already started")
)
