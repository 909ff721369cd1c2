package service

import (
	"context"
	"testing"

	"github.com/AdamBeresnev/pong-arena/internal/bracket"
	"github.com/AdamBeresnev/pong-arena/internal/db/dbtest"
	"github.com/AdamBeresnev/pong-arena/internal/notify"
	"github.com/AdamBeresnev/pong-arena/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type resultFixture struct {
	ctx         context.Context
	userService *UserService
	results     *store.ResultStore
	notifier    *fakeNotifier
	games       *GameRegistry
	tournaments *TournamentRegistry
	service     *ResultService
}

func newResultFixture(t *testing.T) *resultFixture {
	t.Helper()
	db := dbtest.Setup(t)
	logger := zaptest.NewLogger(t)
	userStore := store.NewUserStore(db)
	notifier := &fakeNotifier{}
	games := NewGameRegistry(logger, userStore, notifier)
	tournaments := NewTournamentRegistry(logger, userStore, notifier, games)
	results := store.NewResultStore(db)
	return &resultFixture{
		ctx:         context.Background(),
		userService: NewUserService(userStore),
		results:     results,
		notifier:    notifier,
		games:       games,
		tournaments: tournaments,
		service:     NewResultService(logger, db, results, games, tournaments),
	}
}

func (f *resultFixture) players(t *testing.T, names ...string) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		u, err := f.userService.CreateGuestUser(f.ctx, name, "")
		require.NoError(t, err)
		ids = append(ids, u.ID)
	}
	return ids
}

func TestRecordResultCasualGame(t *testing.T) {
	f := newResultFixture(t)
	ids := f.players(t, "A", "B")

	game, err := f.games.FindAvailableGame(f.ctx, ids[0])
	require.NoError(t, err)
	_, err = f.games.FindAvailableGame(f.ctx, ids[1])
	require.NoError(t, err)

	in := ResultInput{WinnerID: ids[1], LoserID: ids[0], WinnerScore: 5, LoserScore: 2}
	result, err := f.service.RecordResult(f.ctx, ids[0], game.ID, in)
	require.NoError(t, err)
	assert.Equal(t, game.ID, result.GameID)
	assert.Nil(t, result.TournamentID)
	assert.Equal(t, ids[1], *result.WinnerID)
	assert.Equal(t, 5, result.WinnerScore)

	_, err = f.games.GetByID(game.ID)
	assert.ErrorIs(t, err, ErrGameNotFound)

	retried, err := f.service.RecordResult(f.ctx, ids[1], game.ID, in)
	require.NoError(t, err)
	assert.Equal(t, result.ID, retried.ID, "a retry returns the stored result")

	history, err := f.results.GetResultsForPlayer(f.ctx, ids[0])
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRecordResultRejects(t *testing.T) {
	f := newResultFixture(t)
	ids := f.players(t, "A", "B", "C", "D")

	waiting, err := f.games.Create(f.ctx, ids[2], bracket.PvPRemote, bracket.Private, 0)
	require.NoError(t, err)
	game, err := f.games.Create(f.ctx, ids[0], bracket.PvPRemote, bracket.Private, 0)
	require.NoError(t, err)
	_, err = f.games.Join(f.ctx, game.ID, ids[1])
	require.NoError(t, err)

	testCases := []struct {
		name     string
		reporter uuid.UUID
		gameID   uuid.UUID
		in       ResultInput
		expected error
	}{
		{
			name:     "unknown game",
			reporter: ids[0],
			gameID:   uuid.New(),
			in:       ResultInput{WinnerID: ids[0], LoserID: ids[1]},
			expected: ErrGameNotFound,
		},
		{
			name:     "reporter not playing",
			reporter: ids[3],
			gameID:   game.ID,
			in:       ResultInput{WinnerID: ids[0], LoserID: ids[1]},
			expected: ErrNotInGame,
		},
		{
			name:     "game not started",
			reporter: ids[2],
			gameID:   waiting.ID,
			in:       ResultInput{WinnerID: ids[2], LoserID: ids[3]},
			expected: ErrGameNotReady,
		},
		{
			name:     "loser not in game",
			reporter: ids[0],
			gameID:   game.ID,
			in:       ResultInput{WinnerID: ids[0], LoserID: ids[3]},
			expected: ErrInvalidResult,
		},
		{
			name:     "same player on both sides",
			reporter: ids[0],
			gameID:   game.ID,
			in:       ResultInput{WinnerID: ids[0], LoserID: ids[0]},
			expected: ErrInvalidResult,
		},
		{
			name:     "loser outscored winner",
			reporter: ids[0],
			gameID:   game.ID,
			in:       ResultInput{WinnerID: ids[0], LoserID: ids[1], WinnerScore: 1, LoserScore: 3},
			expected: ErrInvalidResult,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.RecordResult(f.ctx, tc.reporter, tc.gameID, tc.in)
			assert.ErrorIs(t, err, tc.expected)
		})
	}

	_, err = f.games.GetByID(game.ID)
	assert.NoError(t, err, "rejected results leave the game alone")
}

func TestRecordResultAIGame(t *testing.T) {
	f := newResultFixture(t)
	a := f.players(t, "A")[0]

	game, err := f.games.Create(f.ctx, a, bracket.PvBAI, bracket.Private, 1)
	require.NoError(t, err)

	_, err = f.service.RecordResult(f.ctx, a, game.ID, ResultInput{WinnerID: uuid.New(), LoserID: a})
	assert.ErrorIs(t, err, ErrInvalidResult)

	result, err := f.service.RecordResult(f.ctx, a, game.ID, ResultInput{LoserID: a, WinnerScore: 5, LoserScore: 4})
	require.NoError(t, err)
	assert.Nil(t, result.WinnerID)
	assert.Equal(t, a, *result.LoserID)
	assert.Equal(t, bracket.PvBAI, result.Mode)
}

func TestRecordResultAdvancesTournament(t *testing.T) {
	f := newResultFixture(t)
	ids := f.players(t, "A", "B", "C", "D")

	var tournament bracket.Tournament
	for _, id := range ids {
		var err error
		tournament, err = f.tournaments.FindAvailableTournament(f.ctx, id, 4)
		require.NoError(t, err)
	}
	require.Len(t, tournament.Games, 2)

	report := func(game bracket.Game, winner, loser uuid.UUID) {
		t.Helper()
		result, err := f.service.RecordResult(f.ctx, winner, game.ID,
			ResultInput{WinnerID: winner, LoserID: loser, WinnerScore: 11, LoserScore: 7})
		require.NoError(t, err)
		require.NotNil(t, result.TournamentID)
		assert.Equal(t, tournament.ID, *result.TournamentID)
	}

	report(tournament.Games[0], ids[0], ids[1])
	report(tournament.Games[1], ids[2], ids[3])

	round2, err := f.tournaments.GetByID(tournament.ID)
	require.NoError(t, err)
	require.Len(t, round2.Games, 1)
	assert.Equal(t, 2, round2.Round)

	report(round2.Games[0], ids[2], ids[0])

	_, err = f.tournaments.GetByID(tournament.ID)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
	assert.Equal(t, 1, f.notifier.count(ids[2], notify.EventTournamentWinner))

	bracketResults, err := f.results.GetResultsForTournament(f.ctx, tournament.ID)
	require.NoError(t, err)
	assert.Len(t, bracketResults, 3)
}

func TestUserService(t *testing.T) {
	f := newResultFixture(t)

	_, err := f.userService.CreateGuestUser(f.ctx, "   ", "")
	assert.Error(t, err)

	u, err := f.userService.CreateGuestUser(f.ctx, " paddle ", "https://example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, "paddle", u.Username)
	require.NotNil(t, u.AvatarURL)

	renamed, err := f.userService.Rename(f.ctx, u.ID, "ball", "")
	require.NoError(t, err)
	assert.Equal(t, "ball", renamed.Username)
	assert.Nil(t, renamed.AvatarURL)

	_, err = f.userService.GetUser(f.ctx, uuid.New())
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}
