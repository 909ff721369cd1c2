package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/AdamBeresnev/pong-arena/internal/apperr"
	"github.com/AdamBeresnev/pong-arena/internal/bracket"
	"github.com/AdamBeresnev/pong-arena/internal/notify"
	"github.com/AdamBeresnev/pong-arena/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GameCreator materializes bracket matches.
type GameCreator interface {
	CreateMatch(gameID, tournamentID uuid.UUID, a, b bracket.PlayerRef) bracket.Game
	Remove(gameID uuid.UUID)
}

// TournamentRegistry owns the live tournaments from registration until a winner is
// decided. A tournament slot may be held while calling into the GameCreator, never the
// other way round.
type TournamentRegistry struct {
	logger      *zap.Logger
	users       UserLookup
	notifier    notify.Notifier
	games       GameCreator
	tournaments *store.Live[bracket.Tournament]
	// player id -> tournament id
	claims sync.Map
	// game id -> tournament id, current round only
	gameOwner sync.Map
}

func NewTournamentRegistry(logger *zap.Logger, users UserLookup, notifier notify.Notifier, games GameCreator) *TournamentRegistry {
	return &TournamentRegistry{
		logger:      logger,
		users:       users,
		notifier:    notifier,
		games:       games,
		tournaments: store.NewLive[bracket.Tournament](),
	}
}

func (r *TournamentRegistry) GetByID(tournamentID uuid.UUID) (bracket.Tournament, error) {
	slot, ok := r.tournaments.Get(tournamentID)
	if !ok {
		return bracket.Tournament{}, ErrTournamentNotFound
	}
	t, ok := slot.Lock()
	if !ok {
		return bracket.Tournament{}, ErrTournamentNotFound
	}
	defer slot.Unlock()
	return t.Snapshot(), nil
}

// TournamentForPlayer returns the live tournament the player is registered in.
func (r *TournamentRegistry) TournamentForPlayer(playerID uuid.UUID) (bracket.Tournament, bool) {
	held, ok := r.claims.Load(playerID)
	if !ok {
		return bracket.Tournament{}, false
	}
	t, err := r.GetByID(held.(uuid.UUID))
	if err != nil {
		return bracket.Tournament{}, false
	}
	return t, true
}

// Create opens an empty tournament for playerAmount players.
func (r *TournamentRegistry) Create(playerAmount int) (bracket.Tournament, error) {
	if !bracket.ValidTournamentSize(playerAmount) {
		return bracket.Tournament{}, ErrInvalidTournamentSize.With(apperr.Details{"player_amount": playerAmount})
	}
	t, slot := r.create(playerAmount)
	defer slot.Unlock()
	return t.Snapshot(), nil
}

// create publishes an empty tournament. Its slot is returned locked.
func (r *TournamentRegistry) create(playerAmount int) (*bracket.Tournament, *store.Slot[bracket.Tournament]) {
	fresh := bracket.NewTournament(playerAmount)
	t, slot := r.tournaments.Insert(fresh.ID, fresh)
	r.logger.Debug("tournament created", zap.Stringer("tournament_id", t.ID), zap.Int("player_amount", playerAmount))
	return t, slot
}

// FindAvailableTournament registers the player in the first waiting tournament of the
// requested size with room left, creating one when none fits. A player who is already
// registered somewhere gets that tournament back.
func (r *TournamentRegistry) FindAvailableTournament(ctx context.Context, playerID uuid.UUID, playerAmount int) (bracket.Tournament, error) {
	if !bracket.ValidTournamentSize(playerAmount) {
		return bracket.Tournament{}, ErrInvalidTournamentSize.With(apperr.Details{"player_amount": playerAmount})
	}
	if t, ok := r.TournamentForPlayer(playerID); ok {
		return t, nil
	}
	ref, err := lookupPlayer(ctx, r.users, playerID)
	if err != nil {
		return bracket.Tournament{}, err
	}

	for {
		for _, id := range r.tournaments.IDs() {
			t, joined, retry := r.tryJoin(id, ref, playerAmount)
			if retry {
				break
			}
			if joined {
				return t, nil
			}
		}
		if t, ok := r.TournamentForPlayer(playerID); ok {
			return t, nil
		}

		t, slot := r.create(playerAmount)
		if !r.claim(playerID, t.ID) {
			slot.Retire()
			r.tournaments.Delete(t.ID)
			slot.Unlock()
			continue
		}
		pending := r.join(t, ref)
		snapshot := t.Snapshot()
		slot.Unlock()
		r.send(pending)
		return snapshot, nil
	}
}

// claim registers the player for the tournament. It fails when the player is already
// registered in another live tournament. Claims left behind by removed tournaments are
// dropped.
func (r *TournamentRegistry) claim(playerID, tournamentID uuid.UUID) bool {
	for {
		held, loaded := r.claims.LoadOrStore(playerID, tournamentID)
		if !loaded || held.(uuid.UUID) == tournamentID {
			return true
		}
		if _, ok := r.tournaments.Get(held.(uuid.UUID)); ok {
			return false
		}
		r.claims.CompareAndDelete(playerID, held)
	}
}

// tryJoin registers ref in the tournament when it is joinable. retry is set when the
// player was concurrently registered elsewhere.
func (r *TournamentRegistry) tryJoin(id uuid.UUID, ref bracket.PlayerRef, playerAmount int) (snapshot bracket.Tournament, joined, retry bool) {
	slot, ok := r.tournaments.Get(id)
	if !ok {
		return bracket.Tournament{}, false, false
	}
	t, ok := slot.Lock()
	if !ok {
		return bracket.Tournament{}, false, false
	}
	if !t.Joinable(playerAmount) {
		slot.Unlock()
		return bracket.Tournament{}, false, false
	}
	if !r.claim(ref.ID, id) {
		slot.Unlock()
		return bracket.Tournament{}, false, true
	}
	pending := r.join(t, ref)
	snapshot = t.Snapshot()
	slot.Unlock()
	r.send(pending)
	return snapshot, true, false
}

// join appends the player, announces them to everyone else and starts the tournament
// once it is full. The caller holds the slot and the player's claim.
func (r *TournamentRegistry) join(t *bracket.Tournament, ref bracket.PlayerRef) []notification {
	if !t.AddPlayer(ref) {
		return nil
	}
	r.logger.Debug("player joined tournament",
		zap.Stringer("tournament_id", t.ID),
		zap.Stringer("player_id", ref.ID),
		zap.Int("players", len(t.Players)),
		zap.Int("player_amount", t.PlayerAmount))

	pending := make([]notification, 0, len(t.Players))
	for _, p := range t.Players {
		if p.ID == ref.ID {
			continue
		}
		pending = append(pending, notification{
			playerID: p.ID,
			kind:     notify.EventTournamentPlayerJoined,
			message:  fmt.Sprintf("%s joined the tournament (%d/%d)", displayName(ref), len(t.Players), t.PlayerAmount),
		})
	}
	if t.IsFull() && t.Status == bracket.TournamentWaiting {
		pending = append(pending, r.startTournament(t)...)
	}
	return pending
}

func displayName(ref bracket.PlayerRef) string {
	if ref.Alias != "" {
		return ref.Alias
	}
	return ref.ID.String()
}

// startTournament flips a full tournament to ready and pairs round one.
func (r *TournamentRegistry) startTournament(t *bracket.Tournament) []notification {
	if err := t.Transition(bracket.TournamentFilled); err != nil {
		r.logger.Error("start tournament", zap.Stringer("tournament_id", t.ID), zap.Error(err))
		return nil
	}
	r.logger.Info("tournament started", zap.Stringer("tournament_id", t.ID), zap.Int("players", len(t.Players)))

	pending := make([]notification, 0, len(t.Players))
	for _, p := range t.Players {
		pending = append(pending, notification{
			playerID: p.ID,
			kind:     notify.EventTournamentReady,
			message:  fmt.Sprintf("tournament %s is starting", t.ID),
		})
	}
	r.startRound(t)
	return pending
}

// startRound pairs the remaining players in list order and creates their games.
func (r *TournamentRegistry) startRound(t *bracket.Tournament) {
	pairs, bye := bracket.Pair(t.Players)
	if bye != nil {
		r.logger.Warn("odd player count, bye to the next round",
			zap.Stringer("tournament_id", t.ID),
			zap.Int("round", t.Round),
			zap.Stringer("player_id", bye.ID))
	}
	t.Games = make([]bracket.Game, 0, len(pairs))
	for _, pair := range pairs {
		// owned before the game is published, a result may arrive right after
		id := uuid.New()
		r.gameOwner.Store(id, t.ID)
		t.Games = append(t.Games, r.games.CreateMatch(id, t.ID, pair[0], pair[1]))
	}
	if err := t.CheckRoundStart(); err != nil {
		r.logger.Error("bracket check failed", zap.Error(err))
	}
}

// Leave removes the player from the tournament they are waiting in. It returns false
// when the player is not registered anywhere. Once a tournament started nobody can leave.
func (r *TournamentRegistry) Leave(playerID uuid.UUID) (bool, error) {
	held, ok := r.claims.Load(playerID)
	if !ok {
		return false, nil
	}
	tournamentID := held.(uuid.UUID)
	slot, ok := r.tournaments.Get(tournamentID)
	if !ok {
		r.claims.CompareAndDelete(playerID, tournamentID)
		return false, nil
	}
	t, ok := slot.Lock()
	if !ok {
		r.claims.CompareAndDelete(playerID, tournamentID)
		return false, nil
	}
	if !t.HasPlayer(playerID) {
		slot.Unlock()
		r.claims.CompareAndDelete(playerID, tournamentID)
		return false, nil
	}
	if t.Status != bracket.TournamentWaiting {
		slot.Unlock()
		return false, ErrTournamentStarted.With(apperr.Details{"tournament_id": tournamentID})
	}

	t.RemovePlayer(playerID)
	r.claims.CompareAndDelete(playerID, tournamentID)
	pending := make([]notification, 0, len(t.Players))
	for _, p := range t.Players {
		pending = append(pending, notification{
			playerID: p.ID,
			kind:     notify.EventTournamentPlayerLeft,
			message:  fmt.Sprintf("a player left the tournament (%d/%d)", len(t.Players), t.PlayerAmount),
		})
	}
	slot.Unlock()

	r.logger.Debug("player left tournament", zap.Stringer("tournament_id", tournamentID), zap.Stringer("player_id", playerID))
	r.send(pending)
	return true, nil
}

// Update eliminates the loser of a finished bracket game. When a single player is left
// they win and the tournament is removed. When the round has no games left the next
// round is paired. An unknown or already processed game yields ErrGameNotFound.
func (r *TournamentRegistry) Update(gameID, loserID uuid.UUID) error {
	owner, ok := r.gameOwner.Load(gameID)
	if !ok {
		return ErrGameNotFound
	}
	tournamentID := owner.(uuid.UUID)
	slot, ok := r.tournaments.Get(tournamentID)
	if !ok {
		r.gameOwner.CompareAndDelete(gameID, tournamentID)
		return ErrGameNotFound
	}
	t, ok := slot.Lock()
	if !ok {
		return ErrGameNotFound
	}
	i := t.GameIndex(gameID)
	if i < 0 {
		slot.Unlock()
		return ErrGameNotFound
	}
	if !t.Games[i].HasPlayer(loserID) {
		slot.Unlock()
		return ErrInvalidResult.With(apperr.Details{"game_id": gameID, "loser_id": loserID})
	}

	t.RemoveGame(gameID)
	r.gameOwner.Delete(gameID)
	r.games.Remove(gameID)
	t.RemovePlayer(loserID)
	r.claims.CompareAndDelete(loserID, tournamentID)

	var pending []notification
	switch {
	case len(t.Players) == 1:
		pending = r.finish(t)
		slot.Retire()
		r.tournaments.Delete(tournamentID)
	case len(t.Games) == 0:
		pending = r.advance(t)
	default:
		if err := t.CheckBracket(); err != nil {
			r.logger.Error("bracket check failed", zap.Error(err))
		}
	}
	slot.Unlock()

	r.send(pending)
	return nil
}

func (r *TournamentRegistry) finish(t *bracket.Tournament) []notification {
	winner := t.Players[0]
	if err := t.Transition(bracket.TournamentWinnerDecided); err != nil {
		r.logger.Error("finish tournament", zap.Stringer("tournament_id", t.ID), zap.Error(err))
	}
	r.claims.CompareAndDelete(winner.ID, t.ID)
	r.logger.Info("tournament finished",
		zap.Stringer("tournament_id", t.ID),
		zap.Int("rounds", t.Round),
		zap.Stringer("winner_id", winner.ID))
	return []notification{{
		playerID: winner.ID,
		kind:     notify.EventTournamentWinner,
		message:  fmt.Sprintf("you won tournament %s", t.ID),
	}}
}

func (r *TournamentRegistry) advance(t *bracket.Tournament) []notification {
	if err := t.Transition(bracket.TournamentRoundCleared); err != nil {
		r.logger.Error("advance round", zap.Stringer("tournament_id", t.ID), zap.Error(err))
		return nil
	}
	r.logger.Info("tournament round advanced",
		zap.Stringer("tournament_id", t.ID),
		zap.Int("round", t.Round),
		zap.Int("players", len(t.Players)))
	r.startRound(t)

	pending := make([]notification, 0, len(t.Players))
	for _, p := range t.Players {
		pending = append(pending, notification{
			playerID: p.ID,
			kind:     notify.EventTournamentRound,
			message:  fmt.Sprintf("round %d of tournament %s is starting", t.Round, t.ID),
		})
	}
	return pending
}

func (r *TournamentRegistry) send(pending []notification) {
	for _, n := range pending {
		r.notifier.Notify(n.playerID, n.kind, n.message)
	}
}
