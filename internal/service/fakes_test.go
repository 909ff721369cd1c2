package service

import (
	"context"
	"database/sql"
	"sync"

	"github.com/AdamBeresnev/pong-arena/internal/bracket"
	"github.com/AdamBeresnev/pong-arena/internal/notify"
	users "github.com/AdamBeresnev/pong-arena/internal/user"
	"github.com/google/uuid"
)

type sentNotification struct {
	PlayerID uuid.UUID
	Kind     notify.EventKind
	Message  string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *fakeNotifier) Notify(playerID uuid.UUID, kind notify.EventKind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{PlayerID: playerID, Kind: kind, Message: message})
}

// count returns how many notifications of kind the player received.
func (n *fakeNotifier) count(playerID uuid.UUID, kind notify.EventKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.PlayerID == playerID && s.Kind == kind {
			c++
		}
	}
	return c
}

func (n *fakeNotifier) ofKind(kind notify.EventKind) []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentNotification
	for _, s := range n.sent {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func (n *fakeNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*users.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[uuid.UUID]*users.User)}
}

func (f *fakeUsers) GetUser(_ context.Context, id uuid.UUID) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUsers) add(names ...string) []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		u := &users.User{ID: uuid.New(), Username: name}
		f.users[u.ID] = u
		ids = append(ids, u.ID)
	}
	return ids
}

func playerIDs(refs []bracket.PlayerRef) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	return ids
}
