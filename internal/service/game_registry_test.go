package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/AdamBeresnev/pong-arena/internal/apperr"
	"github.com/AdamBeresnev/pong-arena/internal/bracket"
	"github.com/AdamBeresnev/pong-arena/internal/notify"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
)

type gameRegistrySuite struct {
	suite.Suite
	ctx      context.Context
	users    *fakeUsers
	notifier *fakeNotifier
	registry *GameRegistry
}

func (suite *gameRegistrySuite) SetupTest() {
	suite.ctx = context.Background()
	suite.users = newFakeUsers()
	suite.notifier = &fakeNotifier{}
	suite.registry = NewGameRegistry(zaptest.NewLogger(suite.T()), suite.users, suite.notifier)
}

func (suite *gameRegistrySuite) TestFindAvailableGameFirstFit() {
	ids := suite.users.add("A", "B")
	a, b := ids[0], ids[1]

	game, err := suite.registry.FindAvailableGame(suite.ctx, a)
	suite.Require().NoError(err)
	suite.Equal(bracket.Public, game.Visibility)
	suite.Equal(bracket.PvPRemote, game.Mode)
	suite.Equal(bracket.GameWaiting, game.Status)
	suite.Equal([]uuid.UUID{a}, playerIDs(game.Players))
	suite.Nil(game.CreatedAt)

	joined, err := suite.registry.FindAvailableGame(suite.ctx, b)
	suite.Require().NoError(err)
	suite.Equal(game.ID, joined.ID)
	suite.Equal([]uuid.UUID{a, b}, playerIDs(joined.Players))
	suite.Equal(bracket.GameReady, joined.Status)
	suite.NotNil(joined.CreatedAt)
	suite.Equal("A", joined.Players[0].Alias)

	suite.Equal(1, suite.notifier.count(a, notify.EventGameReady))
	suite.Equal(1, suite.notifier.count(b, notify.EventGameReady))
}

func (suite *gameRegistrySuite) TestFindAvailableGameReturnsCurrentGame() {
	a := suite.users.add("A")[0]

	first, err := suite.registry.FindAvailableGame(suite.ctx, a)
	suite.Require().NoError(err)
	again, err := suite.registry.FindAvailableGame(suite.ctx, a)
	suite.Require().NoError(err)

	suite.Equal(first.ID, again.ID)
	suite.Len(again.Players, 1)
}

func (suite *gameRegistrySuite) TestFindAvailableGameSkipsPrivateAndStarted() {
	ids := suite.users.add("A", "B", "C")

	private, err := suite.registry.Create(suite.ctx, ids[0], bracket.PvPRemote, bracket.Private, 0)
	suite.Require().NoError(err)
	ai, err := suite.registry.Create(suite.ctx, ids[1], bracket.PvBAI, bracket.Public, 2)
	suite.Require().NoError(err)
	suite.Equal(bracket.GameReady, ai.Status)

	game, err := suite.registry.FindAvailableGame(suite.ctx, ids[2])
	suite.Require().NoError(err)
	suite.NotEqual(private.ID, game.ID)
	suite.NotEqual(ai.ID, game.ID)
	suite.Equal([]uuid.UUID{ids[2]}, playerIDs(game.Players))
}

func (suite *gameRegistrySuite) TestCreateReturnsExistingGame() {
	a := suite.users.add("A")[0]

	first, err := suite.registry.Create(suite.ctx, a, bracket.PvPLocal, bracket.Private, 0)
	suite.Require().NoError(err)
	second, err := suite.registry.Create(suite.ctx, a, bracket.PvBAI, bracket.Public, 3)
	suite.Require().NoError(err)

	suite.Equal(first.ID, second.ID)
	suite.Equal(bracket.PvPLocal, second.Mode)
}

func (suite *gameRegistrySuite) TestCreateAIGameIsReadyAtOnce() {
	a := suite.users.add("A")[0]

	game, err := suite.registry.Create(suite.ctx, a, bracket.PvBAI, bracket.Private, 2)
	suite.Require().NoError(err)
	suite.Equal(bracket.GameReady, game.Status)
	suite.Equal(2, game.AIDifficulty)
	suite.NotNil(game.CreatedAt)
	suite.Equal(1, suite.notifier.count(a, notify.EventGameReady))
}

func (suite *gameRegistrySuite) TestCreateDropsDifficultyForPvP() {
	a := suite.users.add("A")[0]

	game, err := suite.registry.Create(suite.ctx, a, bracket.PvPRemote, bracket.Public, 3)
	suite.Require().NoError(err)
	suite.Zero(game.AIDifficulty)
}

func (suite *gameRegistrySuite) TestCreateRejectsUnknownMode() {
	a := suite.users.add("A")[0]

	_, err := suite.registry.Create(suite.ctx, a, bracket.GameMode("pvp_moon"), bracket.Public, 0)
	suite.True(apperr.IsKind(err, apperr.KindInvalidState))
}

func (suite *gameRegistrySuite) TestUnknownPlayer() {
	_, err := suite.registry.Create(suite.ctx, uuid.New(), bracket.PvPRemote, bracket.Public, 0)
	suite.ErrorIs(err, ErrPlayerNotFound)

	_, err = suite.registry.FindAvailableGame(suite.ctx, uuid.New())
	suite.ErrorIs(err, ErrPlayerNotFound)
	suite.Zero(suite.registry.games.Len())
}

func (suite *gameRegistrySuite) TestJoinIsIdempotent() {
	ids := suite.users.add("A", "B")

	game, err := suite.registry.Create(suite.ctx, ids[0], bracket.PvPRemote, bracket.Private, 0)
	suite.Require().NoError(err)

	once, err := suite.registry.Join(suite.ctx, game.ID, ids[1])
	suite.Require().NoError(err)
	twice, err := suite.registry.Join(suite.ctx, game.ID, ids[1])
	suite.Require().NoError(err)

	suite.Equal(once, twice)
	suite.Equal(1, suite.notifier.count(ids[1], notify.EventGameReady))
}

func (suite *gameRegistrySuite) TestJoinFullGameIsIgnored() {
	ids := suite.users.add("A", "B", "C")

	game, err := suite.registry.Create(suite.ctx, ids[0], bracket.PvPRemote, bracket.Private, 0)
	suite.Require().NoError(err)
	_, err = suite.registry.Join(suite.ctx, game.ID, ids[1])
	suite.Require().NoError(err)

	unchanged, err := suite.registry.Join(suite.ctx, game.ID, ids[2])
	suite.Require().NoError(err)
	suite.Equal([]uuid.UUID{ids[0], ids[1]}, playerIDs(unchanged.Players))

	_, inGame := suite.registry.GameForPlayer(ids[2])
	suite.False(inGame)
}

func (suite *gameRegistrySuite) TestJoinWhileInAnotherGame() {
	ids := suite.users.add("A", "B")

	first, err := suite.registry.Create(suite.ctx, ids[0], bracket.PvPRemote, bracket.Private, 0)
	suite.Require().NoError(err)
	other, err := suite.registry.Create(suite.ctx, ids[1], bracket.PvPRemote, bracket.Private, 0)
	suite.Require().NoError(err)

	_, err = suite.registry.Join(suite.ctx, first.ID, ids[1])
	suite.ErrorIs(err, ErrAlreadyInGame)
	suite.Equal(other.ID, apperr.DetailsOf(err)["game_id"])
}

func (suite *gameRegistrySuite) TestJoinUnknownGame() {
	a := suite.users.add("A")[0]

	_, err := suite.registry.Join(suite.ctx, uuid.New(), a)
	suite.ErrorIs(err, ErrGameNotFound)
}

func (suite *gameRegistrySuite) TestRemoveIsIdempotent() {
	ids := suite.users.add("A", "B")

	game, err := suite.registry.FindAvailableGame(suite.ctx, ids[0])
	suite.Require().NoError(err)
	_, err = suite.registry.FindAvailableGame(suite.ctx, ids[1])
	suite.Require().NoError(err)

	suite.registry.Remove(game.ID)
	suite.registry.Remove(game.ID)

	_, err = suite.registry.GetByID(game.ID)
	suite.ErrorIs(err, ErrGameNotFound)
	_, inGame := suite.registry.GameForPlayer(ids[0])
	suite.False(inGame, "removal frees the players")

	fresh, err := suite.registry.FindAvailableGame(suite.ctx, ids[0])
	suite.Require().NoError(err)
	suite.NotEqual(game.ID, fresh.ID)
}

func (suite *gameRegistrySuite) TestLeave() {
	ids := suite.users.add("A", "B", "C")

	game, err := suite.registry.FindAvailableGame(suite.ctx, ids[0])
	suite.Require().NoError(err)

	suite.ErrorIs(suite.registry.Leave(game.ID, ids[1]), ErrNotInGame)
	suite.Require().NoError(suite.registry.Leave(game.ID, ids[0]))

	_, err = suite.registry.GetByID(game.ID)
	suite.ErrorIs(err, ErrGameNotFound, "an emptied game is removed")

	started, err := suite.registry.FindAvailableGame(suite.ctx, ids[1])
	suite.Require().NoError(err)
	_, err = suite.registry.FindAvailableGame(suite.ctx, ids[2])
	suite.Require().NoError(err)
	suite.ErrorIs(suite.registry.Leave(started.ID, ids[1]), ErrGameStarted)
}

func (suite *gameRegistrySuite) TestCreateMatchCancelsOtherGames() {
	ids := suite.users.add("A", "B", "C")

	casual, err := suite.registry.Create(suite.ctx, ids[0], bracket.PvPRemote, bracket.Private, 0)
	suite.Require().NoError(err)
	_, err = suite.registry.Join(suite.ctx, casual.ID, ids[2])
	suite.Require().NoError(err)
	suite.notifier.reset()

	tournamentID := uuid.New()
	a := bracket.PlayerRef{ID: ids[0], Alias: "A"}
	b := bracket.PlayerRef{ID: ids[1], Alias: "B"}
	matchID := uuid.New()
	match := suite.registry.CreateMatch(matchID, tournamentID, a, b)

	suite.Equal(matchID, match.ID)
	suite.Equal(bracket.GameReady, match.Status)
	suite.Equal(bracket.Private, match.Visibility)
	suite.Equal(bracket.PvPRemote, match.Mode)
	suite.Equal(tournamentID, *match.TournamentID)
	suite.Equal([]uuid.UUID{ids[0], ids[1]}, playerIDs(match.Players))

	_, err = suite.registry.GetByID(casual.ID)
	suite.ErrorIs(err, ErrGameNotFound)
	suite.Equal(1, suite.notifier.count(ids[2], notify.EventGameCancelled))
	suite.Equal(1, suite.notifier.count(ids[0], notify.EventGameReady))
	suite.Equal(1, suite.notifier.count(ids[1], notify.EventGameReady))

	current, ok := suite.registry.GameForPlayer(ids[0])
	suite.True(ok)
	suite.Equal(match.ID, current.ID)
}

func (suite *gameRegistrySuite) TestSnapshotsAreDetached() {
	a := suite.users.add("A")[0]

	game, err := suite.registry.FindAvailableGame(suite.ctx, a)
	suite.Require().NoError(err)
	game.Players[0].Alias = "changed"

	fetched, err := suite.registry.GetByID(game.ID)
	suite.Require().NoError(err)
	suite.Equal("A", fetched.Players[0].Alias)
}

func TestGameRegistry(t *testing.T) {
	suite.Run(t, new(gameRegistrySuite))
}

func TestConcurrentMatchmakingKeepsSingleMembership(t *testing.T) {
	fakes := newFakeUsers()
	notifier := &fakeNotifier{}
	registry := NewGameRegistry(zaptest.NewLogger(t), fakes, notifier)
	ctx := context.Background()

	names := make([]string, 64)
	for i := range names {
		names[i] = "player"
	}
	ids := fakes.add(names...)

	var eg errgroup.Group
	for _, id := range ids {
		eg.Go(func() error {
			// retries must not move the player
			if _, err := registry.FindAvailableGame(ctx, id); err != nil {
				return err
			}
			_, err := registry.FindAvailableGame(ctx, id)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}

	seen := make(map[uuid.UUID]uuid.UUID)
	for _, gameID := range registry.games.IDs() {
		game, err := registry.GetByID(gameID)
		if err != nil {
			t.Fatal(err)
		}
		if len(game.Players) > bracket.MaxGamePlayers {
			t.Fatalf("game %s has %d players", game.ID, len(game.Players))
		}
		for _, p := range game.Players {
			if other, dup := seen[p.ID]; dup {
				t.Fatalf("player %s is in games %s and %s", p.ID, other, game.ID)
			}
			seen[p.ID] = game.ID
		}
	}
	if len(seen) != len(ids) {
		t.Fatalf("%d of %d players placed", len(seen), len(ids))
	}
	for _, id := range ids {
		if notifier.count(id, notify.EventGameReady) > 1 {
			t.Fatalf("player %s notified more than once", id)
		}
	}
}

func TestConcurrentJoinDoesNotOvershoot(t *testing.T) {
	fakes := newFakeUsers()
	registry := NewGameRegistry(zaptest.NewLogger(t), fakes, &fakeNotifier{})
	ctx := context.Background()

	owner := fakes.add("owner")[0]
	game, err := registry.Create(ctx, owner, bracket.PvPRemote, bracket.Private, 0)
	if err != nil {
		t.Fatal(err)
	}

	joiners := fakes.add("a", "b", "c", "d", "e", "f", "g", "h")
	var wg sync.WaitGroup
	for _, id := range joiners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = registry.Join(ctx, game.ID, id)
		}()
	}
	wg.Wait()

	final, err := registry.GetByID(game.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(final.Players) != 2 || final.Status != bracket.GameReady {
		t.Fatalf("game ended with %d players in %s", len(final.Players), final.Status)
	}
	placed := 0
	for _, id := range joiners {
		if _, ok := registry.GameForPlayer(id); ok {
			placed++
		}
	}
	if placed != 1 {
		t.Fatalf("%d joiners hold a game claim, want 1", placed)
	}
}

func TestLeaveRacingJoin(t *testing.T) {
	fakes := newFakeUsers()
	registry := NewGameRegistry(zaptest.NewLogger(t), fakes, &fakeNotifier{})
	ctx := context.Background()

	for range 100 {
		ids := fakes.add("owner", "joiner")
		owner, joiner := ids[0], ids[1]
		game, err := registry.Create(ctx, owner, bracket.PvPRemote, bracket.Private, 0)
		if err != nil {
			t.Fatal(err)
		}

		var eg errgroup.Group
		var leaveErr, joinErr error
		eg.Go(func() error {
			leaveErr = registry.Leave(game.ID, owner)
			return nil
		})
		eg.Go(func() error {
			_, joinErr = registry.Join(ctx, game.ID, joiner)
			return nil
		})
		_ = eg.Wait()

		_, ownerClaimed := registry.claims.Load(owner)
		_, joinerClaimed := registry.claims.Load(joiner)
		final, err := registry.GetByID(game.ID)
		if err != nil {
			// the owner left an empty game before the joiner got in
			if leaveErr != nil || !errors.Is(joinErr, ErrGameNotFound) {
				t.Fatalf("game gone but leave=%v join=%v", leaveErr, joinErr)
			}
			if ownerClaimed || joinerClaimed {
				t.Fatalf("claims outlived the game: owner=%v joiner=%v", ownerClaimed, joinerClaimed)
			}
			continue
		}
		if joinErr != nil || !errors.Is(leaveErr, ErrGameStarted) {
			t.Fatalf("game kept but leave=%v join=%v", leaveErr, joinErr)
		}
		if final.Status != bracket.GameReady || len(final.Players) != 2 {
			t.Fatalf("game ended with %d players in %s", len(final.Players), final.Status)
		}
		if !ownerClaimed || !joinerClaimed {
			t.Fatalf("players of a live game lost their claim: owner=%v joiner=%v", ownerClaimed, joinerClaimed)
		}
		registry.Remove(game.ID)
	}
}

func TestRemoveRacingJoin(t *testing.T) {
	fakes := newFakeUsers()
	registry := NewGameRegistry(zaptest.NewLogger(t), fakes, &fakeNotifier{})
	ctx := context.Background()

	for range 100 {
		ids := fakes.add("owner", "joiner")
		game, err := registry.Create(ctx, ids[0], bracket.PvPRemote, bracket.Public, 0)
		if err != nil {
			t.Fatal(err)
		}

		var eg errgroup.Group
		eg.Go(func() error {
			registry.Remove(game.ID)
			return nil
		})
		eg.Go(func() error {
			_, err := registry.Join(ctx, game.ID, ids[1])
			if err != nil && !errors.Is(err, ErrGameNotFound) {
				return err
			}
			return nil
		})
		if err := eg.Wait(); err != nil {
			t.Fatal(err)
		}

		if _, err := registry.GetByID(game.ID); !errors.Is(err, ErrGameNotFound) {
			t.Fatalf("removed game still live: %v", err)
		}
		for _, id := range ids {
			if held, ok := registry.claims.Load(id); ok {
				t.Fatalf("player %s still claims game %s", id, held)
			}
		}
	}
	if n := registry.games.Len(); n != 0 {
		t.Fatalf("%d games left", n)
	}
}
