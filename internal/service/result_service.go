package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/pong-arena/internal/apperr"
	"github.com/AdamBeresnev/pong-arena/internal/bracket"
	"github.com/AdamBeresnev/pong-arena/internal/store"
	"github.com/AdamBeresnev/pong-arena/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// GameLookup is the part of the game registry result recording needs.
type GameLookup interface {
	GetByID(gameID uuid.UUID) (bracket.Game, error)
	Remove(gameID uuid.UUID)
}

// ResultNotifier advances a bracket once one of its games has a recorded result.
type ResultNotifier interface {
	Update(gameID, loserID uuid.UUID) error
}

// ResultInput is a reported game outcome. In pvb_ai games the AI side is uuid.Nil.
type ResultInput struct {
	WinnerID    uuid.UUID
	LoserID     uuid.UUID
	WinnerScore int
	LoserScore  int
}

type ResultService struct {
	logger      *zap.Logger
	db          *sqlx.DB
	store       *store.ResultStore
	games       GameLookup
	tournaments ResultNotifier
}

func NewResultService(logger *zap.Logger, db *sqlx.DB, store *store.ResultStore, games GameLookup, tournaments ResultNotifier) *ResultService {
	return &ResultService{logger: logger, db: db, store: store, games: games, tournaments: tournaments}
}

// RecordResult stores the outcome of a live game, removes the game and advances its
// tournament. Reporting the same game again returns the stored result.
func (s *ResultService) RecordResult(ctx context.Context, reporterID, gameID uuid.UUID, in ResultInput) (*bracket.Result, error) {
	stored, err := s.store.GetResultByGameID(ctx, gameID)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get result: %w", err)
	}

	game, err := s.games.GetByID(gameID)
	if err != nil {
		return nil, err
	}
	if !game.HasPlayer(reporterID) {
		return nil, ErrNotInGame
	}
	if game.Status != bracket.GameReady {
		return nil, ErrGameNotReady
	}
	if err := checkResult(game, in); err != nil {
		return nil, err
	}

	result := &bracket.Result{
		ID:           uuid.New(),
		GameID:       game.ID,
		TournamentID: game.TournamentID,
		Mode:         game.Mode,
		WinnerID:     utils.PtrOrNil(in.WinnerID),
		LoserID:      utils.PtrOrNil(in.LoserID),
		WinnerScore:  in.WinnerScore,
		LoserScore:   in.LoserScore,
	}
	stored, err = s.insert(ctx, result)
	if err != nil {
		return nil, err
	}
	if stored.ID != result.ID {
		// a concurrent report of the same game won
		return stored, nil
	}

	if game.TournamentID != nil {
		err := s.tournaments.Update(game.ID, in.LoserID)
		switch {
		case apperr.IsKind(err, apperr.KindNotFound):
			s.logger.Debug("stale bracket update", zap.Stringer("game_id", game.ID))
		case err != nil:
			s.logger.Error("advance bracket",
				zap.Stringer("game_id", game.ID),
				zap.Stringer("tournament_id", *game.TournamentID),
				zap.Error(err))
		}
	}
	s.games.Remove(game.ID)

	s.logger.Info("result recorded",
		zap.Stringer("game_id", game.ID),
		zap.String("mode", string(game.Mode)),
		zap.Int("winner_score", in.WinnerScore),
		zap.Int("loser_score", in.LoserScore))
	return stored, nil
}

// insert writes the result unless the game already has one, in which case the stored
// result is returned.
func (s *ResultService) insert(ctx context.Context, result *bracket.Result) (*bracket.Result, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	existing, err := s.store.GetResultByGameIDTx(ctx, tx, result.GameID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get result: %w", err)
	}

	if err := s.store.CreateResult(ctx, tx, result); err != nil {
		return nil, fmt.Errorf("create result: %w", err)
	}
	stored, err := s.store.GetResultByGameIDTx(ctx, tx, result.GameID)
	if err != nil {
		return nil, fmt.Errorf("read back result: %w", err)
	}
	return stored, tx.Commit()
}

func checkResult(game bracket.Game, in ResultInput) error {
	invalid := ErrInvalidResult.With(apperr.Details{
		"game_id":   game.ID,
		"winner_id": in.WinnerID,
		"loser_id":  in.LoserID,
	})
	if in.WinnerScore < 0 || in.LoserScore < 0 || in.WinnerScore < in.LoserScore {
		return invalid
	}
	if game.Mode == bracket.PvBAI {
		// exactly one side is the AI
		player := game.Players[0].ID
		if (in.WinnerID == player && in.LoserID == uuid.Nil) || (in.LoserID == player && in.WinnerID == uuid.Nil) {
			return nil
		}
		return invalid
	}
	if in.WinnerID == in.LoserID || !game.HasPlayer(in.WinnerID) || !game.HasPlayer(in.LoserID) {
		return invalid
	}
	return nil
}
