package store

import (
	"context"

	"github.com/AdamBeresnev/pong-arena/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ResultStore struct {
	db *sqlx.DB
}

func NewResultStore(db *sqlx.DB) *ResultStore {
	return &ResultStore{db: db}
}

func (s *ResultStore) CreateResult(ctx context.Context, tx *sqlx.Tx, result *bracket.Result) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO results (id, game_id, tournament_id, mode, winner_id, loser_id, winner_score, loser_score)
		VALUES (:id, :game_id, :tournament_id, :mode, :winner_id, :loser_id, :winner_score, :loser_score)`, result)
	return err
}

func (s *ResultStore) GetResultByGameIDTx(ctx context.Context, tx *sqlx.Tx, gameID uuid.UUID) (*bracket.Result, error) {
	var result bracket.Result
	err := tx.GetContext(ctx, &result, "SELECT * FROM results WHERE game_id = ?", gameID)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *ResultStore) GetResultByGameID(ctx context.Context, gameID uuid.UUID) (*bracket.Result, error) {
	var result bracket.Result
	err := s.db.GetContext(ctx, &result, "SELECT * FROM results WHERE game_id = ?", gameID)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *ResultStore) GetResultsForPlayer(ctx context.Context, playerID uuid.UUID) ([]bracket.Result, error) {
	var results []bracket.Result
	err := s.db.SelectContext(ctx, &results,
		"SELECT * FROM results WHERE winner_id = ? OR loser_id = ? ORDER BY created_at DESC", playerID, playerID)
	return results, err
}

func (s *ResultStore) GetResultsForTournament(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Result, error) {
	var results []bracket.Result
	err := s.db.SelectContext(ctx, &results,
		"SELECT * FROM results WHERE tournament_id = ? ORDER BY created_at ASC", tournamentID)
	return results, err
}
