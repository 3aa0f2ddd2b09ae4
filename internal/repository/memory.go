package repository

import (
	"context"
	"sync"
)

// MemoryCollectionStore is an in-memory CollectionStore for tests and for
// running the server without a database.
type MemoryCollectionStore struct {
	mu    sync.RWMutex
	decks map[int64][]int
}

// NewMemoryCollectionStore creates an empty in-memory store.
func NewMemoryCollectionStore() *MemoryCollectionStore {
	return &MemoryCollectionStore{decks: make(map[int64][]int)}
}

func (s *MemoryCollectionStore) DeckFor(_ context.Context, ownerID int64) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deck, ok := s.decks[ownerID]
	if !ok || len(deck) == 0 {
		return nil, ErrNoCollection
	}
	return append([]int(nil), deck...), nil
}

func (s *MemoryCollectionStore) SaveDeck(_ context.Context, ownerID int64, cardIDs []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.decks[ownerID] = append([]int(nil), cardIDs...)
	return nil
}
