package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/AdamBeresnev/pong-arena/internal/bracket"
	"github.com/AdamBeresnev/pong-arena/internal/httputil"
	"github.com/AdamBeresnev/pong-arena/internal/middleware"
	"github.com/AdamBeresnev/pong-arena/internal/service"
	"github.com/AdamBeresnev/pong-arena/internal/store"
	users "github.com/AdamBeresnev/pong-arena/internal/user"
	"github.com/AdamBeresnev/pong-arena/views"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var validate = validator.New()

type app struct {
	logger         *zap.Logger
	sessionManager *scs.SessionManager
	userStore      *store.UserStore
	users          *service.UserService
	games          *service.GameRegistry
	tournaments    *service.TournamentRegistry
	results        *service.ResultService
}

type createGameRequest struct {
	Mode         string `json:"mode" validate:"required,oneof=pvp_remote pvp_local pvb_ai"`
	Visibility   string `json:"visibility" validate:"required,oneof=public private"`
	AIDifficulty int    `json:"aiDifficulty" validate:"required_if=Mode pvb_ai,min=0,max=3"`
}

type tournamentRequest struct {
	PlayerAmount int `json:"playerAmount" validate:"required,oneof=4 8 16 32"`
}

type resultRequest struct {
	WinnerID    string `json:"winnerId" validate:"omitempty,uuid"`
	LoserID     string `json:"loserId" validate:"omitempty,uuid"`
	WinnerScore int    `json:"winnerScore" validate:"min=0"`
	LoserScore  int    `json:"loserScore" validate:"min=0,ltefield=WinnerScore"`
}

type guestRequest struct {
	Username  string `validate:"required,max=32"`
	AvatarURL string `validate:"omitempty,url"`
}

type profileRequest struct {
	Username  string `json:"username" validate:"required,max=32"`
	AvatarURL string `json:"avatarUrl" validate:"omitempty,url"`
}

// decode reads a JSON body into req and validates it. An empty body decodes to the
// zero request.
func decode[R any](r *http.Request, req *R) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return validate.Struct(req)
}

func parseOptionalUUID(s string) uuid.UUID {
	if s == "" {
		return uuid.Nil
	}
	return uuid.MustParse(s)
}

func (a *app) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(a.sessionManager.LoadAndSave)
	r.Use(middleware.LoadAuthenticatedUser(a.sessionManager, a.userStore))

	r.Post("/auth/guest", a.guestLogin)
	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		if err := a.sessionManager.Destroy(r.Context()); err != nil {
			httputil.InternalServerError(w, a.logger, "destroy session", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(a.logger))

		r.Get("/me", a.getProfile)
		r.Patch("/me", a.updateProfile)

		r.Post("/games", a.createGame)
		r.Post("/games/matchmaking", a.findGame)
		r.Get("/games/{id}", a.getGame)
		r.Post("/games/{id}/join", a.joinGame)
		r.Post("/games/{id}/leave", a.leaveGame)
		r.Post("/games/{id}/result", a.recordResult)

		r.Post("/tournaments/matchmaking", a.findTournament)
		r.Post("/tournaments/leave", a.leaveTournament)
		r.Get("/tournaments/{id}", a.getTournament)
		r.Get("/tournaments/{id}/bracket", a.tournamentBracket)
	})

	return r
}

func (a *app) guestLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httputil.BadRequest(w, a.logger, "Invalid form data", err)
		return
	}
	req := guestRequest{Username: r.Form.Get("username"), AvatarURL: r.Form.Get("avatar_url")}
	if err := validate.Struct(req); err != nil {
		httputil.Error(w, a.logger, "guest login", err)
		return
	}

	user, err := a.users.CreateGuestUser(r.Context(), req.Username, req.AvatarURL)
	if err != nil {
		httputil.Error(w, a.logger, "create guest user", err)
		return
	}
	if err := a.sessionManager.RenewToken(r.Context()); err != nil {
		httputil.InternalServerError(w, a.logger, "renew session token", err)
		return
	}
	a.sessionManager.Put(r.Context(), middleware.SessionUserID, user.ID.String())
	httputil.WriteJSON(w, a.logger, http.StatusCreated, map[string]any{
		"id":       user.ID,
		"username": user.Username,
	})
}

func profile(user *users.User) map[string]any {
	return map[string]any{
		"id":        user.ID,
		"username":  user.Username,
		"avatarUrl": user.AvatarURL,
	}
}

func (a *app) getProfile(w http.ResponseWriter, r *http.Request) {
	user, err := a.users.GetUser(r.Context(), currentPlayer(r))
	if err != nil {
		httputil.Error(w, a.logger, "get profile", err)
		return
	}
	httputil.WriteJSON(w, a.logger, http.StatusOK, profile(user))
}

// updateProfile renames the player. Games and tournaments they already joined keep
// the old alias.
func (a *app) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decode(r, &req); err != nil {
		httputil.BadRequest(w, a.logger, "Invalid profile", err)
		return
	}
	user, err := a.users.Rename(r.Context(), currentPlayer(r), req.Username, req.AvatarURL)
	if err != nil {
		httputil.Error(w, a.logger, "update profile", err)
		return
	}
	httputil.WriteJSON(w, a.logger, http.StatusOK, profile(user))
}

// currentPlayer is only called behind RequireAuth.
func currentPlayer(r *http.Request) uuid.UUID {
	id, _ := middleware.GetUserIDFromContext(r.Context())
	return id
}

func (a *app) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, a.logger, "Invalid id", err)
		return uuid.Nil, false
	}
	return id, true
}

func (a *app) createGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := decode(r, &req); err != nil {
		httputil.BadRequest(w, a.logger, "Invalid game request", err)
		return
	}
	game, err := a.games.Create(r.Context(), currentPlayer(r),
		bracket.GameMode(req.Mode), bracket.Visibility(req.Visibility), req.AIDifficulty)
	if err != nil {
		httputil.Error(w, a.logger, "create game", err)
		return
	}
	httputil.WriteJSON(w, a.logger, http.StatusOK, game)
}

func (a *app) findGame(w http.ResponseWriter, r *http.Request) {
	game, err := a.games.FindAvailableGame(r.Context(), currentPlayer(r))
	if err != nil {
		httputil.Error(w, a.logger, "find game", err)
		return
	}
	httputil.WriteJSON(w, a.logger, http.StatusOK, game)
}

func (a *app) getGame(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	game, err := a.games.GetByID(id)
	if err != nil {
		httputil.Error(w, a.logger, "get game", err)
		return
	}
	httputil.WriteJSON(w, a.logger, http.StatusOK, game)
}

// joinGame is the direct join path. Unlike matchmaking it refuses games the player
// cannot enter instead of handing back the unchanged game.
func (a *app) joinGame(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	playerID := currentPlayer(r)
	game, err := a.games.GetByID(id)
	if err != nil {
		httputil.Error(w, a.logger, "join game", err)
		return
	}
	if !game.HasPlayer(playerID) && (game.IsFull() || game.Status != bracket.GameWaiting) {
		httputil.Error(w, a.logger, "join game", service.ErrGameStarted)
		return
	}
	game, err = a.games.Join(r.Context(), id, playerID)
	if err != nil {
		httputil.Error(w, a.logger, "join game", err)
		return
	}
	httputil.WriteJSON(w, a.logger, http.StatusOK, game)
}

func (a *app) leaveGame(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	if err := a.games.Leave(id, currentPlayer(r)); err != nil {
		httputil.Error(w, a.logger, "leave game", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *app) recordResult(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	var req resultRequest
	if err := decode(r, &req); err != nil {
		httputil.BadRequest(w, a.logger, "Invalid result", err)
		return
	}
	result, err := a.results.RecordResult(r.Context(), currentPlayer(r), id, service.ResultInput{
		WinnerID:    parseOptionalUUID(req.WinnerID),
		LoserID:     parseOptionalUUID(req.LoserID),
		WinnerScore: req.WinnerScore,
		LoserScore:  req.LoserScore,
	})
	if err != nil {
		httputil.Error(w, a.logger, "record result", err)
		return
	}
	httputil.WriteJSON(w, a.logger, http.StatusOK, result)
}

func (a *app) findTournament(w http.ResponseWriter, r *http.Request) {
	var req tournamentRequest
	if err := decode(r, &req); err != nil {
		httputil.BadRequest(w, a.logger, "Invalid tournament request", err)
		return
	}
	t, err := a.tournaments.FindAvailableTournament(r.Context(), currentPlayer(r), req.PlayerAmount)
	if err != nil {
		httputil.Error(w, a.logger, "find tournament", err)
		return
	}
	httputil.WriteJSON(w, a.logger, http.StatusOK, t)
}

func (a *app) leaveTournament(w http.ResponseWriter, r *http.Request) {
	left, err := a.tournaments.Leave(currentPlayer(r))
	if err != nil {
		httputil.Error(w, a.logger, "leave tournament", err)
		return
	}
	httputil.WriteJSON(w, a.logger, http.StatusOK, map[string]bool{"left": left})
}

func (a *app) getTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	t, err := a.tournaments.GetByID(id)
	if err != nil {
		httputil.Error(w, a.logger, "get tournament", err)
		return
	}
	httputil.WriteJSON(w, a.logger, http.StatusOK, t)
}

func (a *app) tournamentBracket(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	t, err := a.tournaments.GetByID(id)
	if err != nil {
		httputil.Error(w, a.logger, "get tournament", err)
		return
	}
	if err := views.Render(w, r, views.TournamentBracket(views.PrepareBracketData(t))); err != nil {
		a.logger.Warn("render bracket", zap.Error(err))
	}
}
