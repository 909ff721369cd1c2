package store

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Slot holds one live entity behind its own lock.
type Slot[T any] struct {
	mu   sync.Mutex
	val  T
	gone bool
}

// Lock acquires the slot and returns the entity for mutation. It returns false when the
// entity was retired while the caller waited; the lock is not held in that case.
func (s *Slot[T]) Lock() (*T, bool) {
	s.mu.Lock()
	if s.gone {
		s.mu.Unlock()
		return nil, false
	}
	return &s.val, true
}

func (s *Slot[T]) Unlock() {
	s.mu.Unlock()
}

// Retire marks the entity as removed. The caller must hold the slot lock.
func (s *Slot[T]) Retire() {
	s.gone = true
}

// Live is an in-memory keyed store for entities that are mutated concurrently.
//
// Lock order is slot before index: Delete may be called while holding a slot, and
// Insert takes the index lock while holding the new slot. The index lock is never
// held while waiting for a slot, and a caller holding the index lock never blocks.
type Live[T any] struct {
	mu    sync.RWMutex
	slots map[uuid.UUID]*Slot[T]
	// insertion order, used by first-fit scans
	order []uuid.UUID
}

func NewLive[T any]() *Live[T] {
	return &Live[T]{slots: make(map[uuid.UUID]*Slot[T])}
}

// Insert publishes val and returns its slot already locked, so no other caller can
// observe the entity before the owner finishes setting it up.
func (l *Live[T]) Insert(id uuid.UUID, val T) (*T, *Slot[T]) {
	slot := &Slot[T]{val: val}
	slot.mu.Lock()
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.slots[id]; !exists {
		l.order = append(l.order, id)
	}
	l.slots[id] = slot
	return &slot.val, slot
}

func (l *Live[T]) Get(id uuid.UUID) (*Slot[T], bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	slot, ok := l.slots[id]
	return slot, ok
}

// Delete drops id from the index. Removing an unknown id is a no-op.
func (l *Live[T]) Delete(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.slots[id]; !ok {
		return
	}
	delete(l.slots, id)
	if i := slices.Index(l.order, id); i >= 0 {
		l.order = slices.Delete(l.order, i, i+1)
	}
}

// IDs returns the live ids in insertion order.
func (l *Live[T]) IDs() []uuid.UUID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.order)
}

func (l *Live[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.slots)
}
