package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AdamBeresnev/pong-arena/internal/apperr"
	"github.com/AdamBeresnev/pong-arena/internal/bracket"
	"github.com/AdamBeresnev/pong-arena/internal/notify"
	"github.com/AdamBeresnev/pong-arena/internal/store"
	users "github.com/AdamBeresnev/pong-arena/internal/user"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserLookup resolves player ids to users. It returns sql.ErrNoRows for unknown ids.
type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*users.User, error)
}

type notification struct {
	playerID uuid.UUID
	kind     notify.EventKind
	message  string
}

// GameRegistry owns the live games and matches players into them.
//
// Every game lives in its own store slot. A player's membership is claimed in
// claims before the player is added to a game, which keeps each player in at most
// one live game even when joins race. A claim always points at a game that is in
// the store, and no method holds two game slots at the same time.
type GameRegistry struct {
	logger   *zap.Logger
	users    UserLookup
	notifier notify.Notifier
	games    *store.Live[bracket.Game]
	// player id -> game id
	claims sync.Map
	now    func() time.Time
}

func NewGameRegistry(logger *zap.Logger, users UserLookup, notifier notify.Notifier) *GameRegistry {
	return &GameRegistry{
		logger:   logger,
		users:    users,
		notifier: notifier,
		games:    store.NewLive[bracket.Game](),
		now:      time.Now,
	}
}

func lookupPlayer(ctx context.Context, lookup UserLookup, playerID uuid.UUID) (bracket.PlayerRef, error) {
	user, err := lookup.GetUser(ctx, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return bracket.PlayerRef{}, apperr.Wrap(apperr.KindNotFound, ErrPlayerNotFound.Message, err).
			With(apperr.Details{"player_id": playerID})
	}
	if err != nil {
		return bracket.PlayerRef{}, fmt.Errorf("lookup player %s: %w", playerID, err)
	}
	return bracket.PlayerRef{ID: user.ID, Alias: user.Username}, nil
}

// GetByID returns a snapshot of the game.
func (r *GameRegistry) GetByID(gameID uuid.UUID) (bracket.Game, error) {
	slot, ok := r.games.Get(gameID)
	if !ok {
		return bracket.Game{}, ErrGameNotFound
	}
	game, ok := slot.Lock()
	if !ok {
		return bracket.Game{}, ErrGameNotFound
	}
	defer slot.Unlock()
	return game.Snapshot(), nil
}

// GameForPlayer returns the live game the player is in.
func (r *GameRegistry) GameForPlayer(playerID uuid.UUID) (bracket.Game, bool) {
	held, ok := r.claims.Load(playerID)
	if !ok {
		return bracket.Game{}, false
	}
	game, err := r.GetByID(held.(uuid.UUID))
	if err != nil {
		return bracket.Game{}, false
	}
	return game, true
}

// claim binds the player to gameID. It reports the game the player already holds when
// that is a different one. The holder may be in the middle of being removed, in which
// case looking it up fails and the caller retries.
func (r *GameRegistry) claim(playerID, gameID uuid.UUID) (holder uuid.UUID, ok bool) {
	for {
		held, loaded := r.claims.LoadOrStore(playerID, gameID)
		if !loaded || held.(uuid.UUID) == gameID {
			return uuid.Nil, true
		}
		if _, live := r.games.Get(held.(uuid.UUID)); live {
			return held.(uuid.UUID), false
		}
		r.claims.CompareAndDelete(playerID, held)
	}
}

func (r *GameRegistry) release(playerID, gameID uuid.UUID) {
	r.claims.CompareAndDelete(playerID, gameID)
}

// Create opens a new game with the requester as its only player. A requester who is
// already in a live game gets that game back instead.
func (r *GameRegistry) Create(ctx context.Context, requesterID uuid.UUID, mode bracket.GameMode,
	visibility bracket.Visibility, aiDifficulty int) (bracket.Game, error) {
	if !mode.Valid() || !visibility.Valid() {
		return bracket.Game{}, ErrInvalidGameMode.With(apperr.Details{"mode": mode, "visibility": visibility})
	}
	if game, ok := r.GameForPlayer(requesterID); ok {
		return game, nil
	}
	ref, err := lookupPlayer(ctx, r.users, requesterID)
	if err != nil {
		return bracket.Game{}, err
	}
	if mode != bracket.PvBAI {
		aiDifficulty = 0
	}
	return r.create(ref, mode, visibility, aiDifficulty)
}

func (r *GameRegistry) create(ref bracket.PlayerRef, mode bracket.GameMode, visibility bracket.Visibility,
	aiDifficulty int) (bracket.Game, error) {
	for {
		id := uuid.New()
		game, slot := r.games.Insert(id, bracket.Game{
			ID:           id,
			Players:      []bracket.PlayerRef{ref},
			Mode:         mode,
			Visibility:   visibility,
			Status:       bracket.GameWaiting,
			AIDifficulty: aiDifficulty,
		})
		if holder, ok := r.claim(ref.ID, id); !ok {
			r.discard(slot, id)
			if existing, err := r.GetByID(holder); err == nil {
				return existing, nil
			}
			continue
		}
		pending := r.evaluateStart(game)
		snapshot := game.Snapshot()
		slot.Unlock()

		r.logger.Debug("game created",
			zap.Stringer("game_id", id),
			zap.String("mode", string(mode)),
			zap.String("visibility", string(visibility)))
		r.send(pending)
		return snapshot, nil
	}
}

// discard drops a game nobody has seen yet. The caller holds its slot.
func (r *GameRegistry) discard(slot *store.Slot[bracket.Game], id uuid.UUID) {
	slot.Retire()
	r.games.Delete(id)
	slot.Unlock()
}

// evaluateStart moves a filled game to ready and returns the start notifications.
// The caller holds the game slot.
func (r *GameRegistry) evaluateStart(game *bracket.Game) []notification {
	if game.Status != bracket.GameWaiting || !game.IsFull() {
		return nil
	}
	if err := game.Transition(bracket.GameFilled); err != nil {
		r.logger.Error("start game", zap.Stringer("game_id", game.ID), zap.Error(err))
		return nil
	}
	startedAt := r.now()
	game.CreatedAt = &startedAt
	pending := make([]notification, 0, len(game.Players))
	for _, p := range game.Players {
		pending = append(pending, notification{
			playerID: p.ID,
			kind:     notify.EventGameReady,
			message:  fmt.Sprintf("game %s is ready", game.ID),
		})
	}
	return pending
}

func (r *GameRegistry) send(pending []notification) {
	for _, n := range pending {
		r.notifier.Notify(n.playerID, n.kind, n.message)
	}
}

// Join adds the player to the game. Joining twice, or joining a game that is full or
// already started, returns the game unchanged. A player who is in a different live
// game gets ErrAlreadyInGame.
func (r *GameRegistry) Join(ctx context.Context, gameID, playerID uuid.UUID) (bracket.Game, error) {
	current, err := r.GetByID(gameID)
	if err != nil {
		return bracket.Game{}, err
	}
	if current.HasPlayer(playerID) || current.IsFull() || current.Status != bracket.GameWaiting {
		return current, nil
	}
	if held, ok := r.claims.Load(playerID); ok && held.(uuid.UUID) != gameID {
		return bracket.Game{}, ErrAlreadyInGame.With(apperr.Details{"game_id": held})
	}
	ref, err := lookupPlayer(ctx, r.users, playerID)
	if err != nil {
		return bracket.Game{}, err
	}

	for {
		slot, ok := r.games.Get(gameID)
		if !ok {
			return bracket.Game{}, ErrGameNotFound
		}
		game, ok := slot.Lock()
		if !ok {
			return bracket.Game{}, ErrGameNotFound
		}
		if game.HasPlayer(playerID) || game.IsFull() || game.Status != bracket.GameWaiting {
			snapshot := game.Snapshot()
			slot.Unlock()
			return snapshot, nil
		}
		holder, claimed := r.claim(playerID, gameID)
		if !claimed {
			slot.Unlock()
			if _, err := r.GetByID(holder); err == nil {
				return bracket.Game{}, ErrAlreadyInGame.With(apperr.Details{"game_id": holder})
			}
			// the other game is being removed
			continue
		}
		game.AddPlayer(ref)
		pending := r.evaluateStart(game)
		snapshot := game.Snapshot()
		slot.Unlock()

		r.send(pending)
		return snapshot, nil
	}
}

// FindAvailableGame places the player into the first public waiting game with room, or
// opens a new public pvp_remote game when there is none.
func (r *GameRegistry) FindAvailableGame(ctx context.Context, playerID uuid.UUID) (bracket.Game, error) {
	if game, ok := r.GameForPlayer(playerID); ok {
		return game, nil
	}
	ref, err := lookupPlayer(ctx, r.users, playerID)
	if err != nil {
		return bracket.Game{}, err
	}

	for _, id := range r.games.IDs() {
		game, joined, err := r.tryMatch(id, ref)
		if err != nil {
			return bracket.Game{}, err
		}
		if joined {
			return game, nil
		}
	}
	return r.create(ref, bracket.PvPRemote, bracket.Public, 0)
}

// tryMatch joins ref into the game when it is still matchable. When the player turns
// out to hold a game already, that game is returned.
func (r *GameRegistry) tryMatch(id uuid.UUID, ref bracket.PlayerRef) (bracket.Game, bool, error) {
	slot, ok := r.games.Get(id)
	if !ok {
		return bracket.Game{}, false, nil
	}
	game, ok := slot.Lock()
	if !ok {
		return bracket.Game{}, false, nil
	}
	if !game.Matchable() || game.HasPlayer(ref.ID) {
		slot.Unlock()
		return bracket.Game{}, false, nil
	}
	if holder, claimed := r.claim(ref.ID, id); !claimed {
		slot.Unlock()
		existing, err := r.GetByID(holder)
		if err != nil {
			return bracket.Game{}, false, nil
		}
		return existing, true, nil
	}
	game.AddPlayer(ref)
	pending := r.evaluateStart(game)
	snapshot := game.Snapshot()
	slot.Unlock()

	r.logger.Debug("player matched", zap.Stringer("game_id", id), zap.Stringer("player_id", ref.ID))
	r.send(pending)
	return snapshot, true, nil
}

// Remove deletes the game and frees its players. Removing an unknown game is a no-op.
func (r *GameRegistry) Remove(gameID uuid.UUID) {
	r.remove(gameID)
}

func (r *GameRegistry) remove(gameID uuid.UUID) (bracket.Game, bool) {
	slot, ok := r.games.Get(gameID)
	if !ok {
		return bracket.Game{}, false
	}
	game, ok := slot.Lock()
	if !ok {
		return bracket.Game{}, false
	}
	defer slot.Unlock()
	slot.Retire()
	for _, p := range game.Players {
		r.release(p.ID, gameID)
	}
	r.games.Delete(gameID)
	return game.Snapshot(), true
}

// Leave withdraws the player from a game that has not started. An emptied game is removed.
func (r *GameRegistry) Leave(gameID, playerID uuid.UUID) error {
	slot, ok := r.games.Get(gameID)
	if !ok {
		return ErrGameNotFound
	}
	game, ok := slot.Lock()
	if !ok {
		return ErrGameNotFound
	}
	defer slot.Unlock()
	if !game.HasPlayer(playerID) {
		return ErrNotInGame
	}
	if game.Status != bracket.GameWaiting {
		return ErrGameStarted
	}
	game.RemovePlayer(playerID)
	r.release(playerID, gameID)
	if len(game.Players) == 0 {
		slot.Retire()
		r.games.Delete(gameID)
	}
	return nil
}

// CreateMatch opens the bracket game gameID for two players: private, pvp_remote and
// ready at once. Other live games of either player are cancelled first. The caller
// allocates gameID so it can record the game before anyone else sees it.
func (r *GameRegistry) CreateMatch(gameID, tournamentID uuid.UUID, a, b bracket.PlayerRef) bracket.Game {
	id := gameID
	for {
		r.cancelGameOf(a.ID)
		r.cancelGameOf(b.ID)

		tid := tournamentID
		game, slot := r.games.Insert(id, bracket.Game{
			ID:           id,
			Players:      []bracket.PlayerRef{a, b},
			Mode:         bracket.PvPRemote,
			Visibility:   bracket.Private,
			Status:       bracket.GameWaiting,
			TournamentID: &tid,
		})
		_, okA := r.claim(a.ID, id)
		_, okB := r.claim(b.ID, id)
		if !okA || !okB {
			// one of them raced into another game meanwhile
			r.release(a.ID, id)
			r.release(b.ID, id)
			r.discard(slot, id)
			continue
		}
		pending := r.evaluateStart(game)
		snapshot := game.Snapshot()
		slot.Unlock()

		r.logger.Debug("bracket match created",
			zap.Stringer("game_id", id),
			zap.Stringer("tournament_id", tournamentID))
		r.send(pending)
		return snapshot
	}
}

func (r *GameRegistry) cancelGameOf(playerID uuid.UUID) {
	held, ok := r.claims.Load(playerID)
	if !ok {
		return
	}
	game, removed := r.remove(held.(uuid.UUID))
	if !removed {
		return
	}
	r.logger.Info("game cancelled for bracket match",
		zap.Stringer("game_id", game.ID),
		zap.Stringer("player_id", playerID))
	for _, p := range game.Players {
		if p.ID == playerID {
			continue
		}
		r.notifier.Notify(p.ID, notify.EventGameCancelled,
			fmt.Sprintf("game %s was cancelled because an opponent was called to a tournament match", game.ID))
	}
}
