// Package memory provides in-memory implementations of the game, order and
// entitlement stores.  They are safe for concurrent use and enforce the same
// uniqueness rules as the MySQL schema; they back the service when
// STORE_DRIVER=memory and are used throughout the tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/game-catalog/internal/model"
	"github.com/iliyamo/game-catalog/internal/repository"
)

// GameStore keeps the catalog in a map keyed by id.
type GameStore struct {
	mu    sync.RWMutex
	games map[string]model.Game
}

// NewGameStore creates an empty catalog.
func NewGameStore() *GameStore {
	return &GameStore{games: make(map[string]model.Game)}
}

func (s *GameStore) List(_ context.Context) ([]model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Game, 0, len(s.games))
	for _, g := range s.games {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *GameStore) Get(_ context.Context, id string) (model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.games[id]
	if !ok {
		return model.Game{}, repository.ErrGameNotFound
	}
	return g, nil
}

func (s *GameStore) Create(_ context.Context, g model.Game) (model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g.ID = uuid.NewString()
	s.games[g.ID] = g
	return g, nil
}

func (s *GameStore) Update(_ context.Context, g model.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[g.ID]; !ok {
		return repository.ErrGameNotFound
	}
	s.games[g.ID] = g
	return nil
}

func (s *GameStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.games, id)
	return nil
}

type pair struct{ userID, gameID string }

// EntitlementStore keeps library entries keyed by (user, game).
type EntitlementStore struct {
	mu      sync.RWMutex
	entries map[pair]model.Entitlement
}

// NewEntitlementStore creates an empty library.
func NewEntitlementStore() *EntitlementStore {
	return &EntitlementStore{entries: make(map[pair]model.Entitlement)}
}

func (s *EntitlementStore) Exists(_ context.Context, userID, gameID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.entries[pair{userID, gameID}]
	return ok, nil
}

func (s *EntitlementStore) Grant(_ context.Context, userID, gameID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := pair{userID, gameID}
	if _, ok := s.entries[k]; ok {
		return false, nil
	}
	s.entries[k] = model.Entitlement{
		ID:        uuid.NewString(),
		UserID:    userID,
		GameID:    gameID,
		CreatedAt: time.Now().UTC(),
	}
	return true, nil
}

func (s *EntitlementStore) ListForUser(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owned []model.Entitlement
	for k, e := range s.entries {
		if k.userID == userID {
			owned = append(owned, e)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].CreatedAt.Before(owned[j].CreatedAt)
		}
		return owned[i].GameID < owned[j].GameID
	})
	ids := make([]string, 0, len(owned))
	for _, e := range owned {
		ids = append(ids, e.GameID)
	}
	return ids, nil
}

// Count returns the number of library entries; used by tests.
func (s *EntitlementStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// OrderStore keeps orders by id plus an index of unprocessed orders per
// (user, game), mirroring the pending_key unique index of the MySQL schema.
type OrderStore struct {
	mu      sync.RWMutex
	orders  map[string]model.Order
	pending map[pair]string
}

// NewOrderStore creates an empty order store.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:  make(map[string]model.Order),
		pending: make(map[pair]string),
	}
}

func (s *OrderStore) HasUnprocessed(_ context.Context, userID, gameID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.pending[pair{userID, gameID}]
	return ok, nil
}

func (s *OrderStore) Save(_ context.Context, o model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := pair{o.UserID, o.GameID}
	if _, ok := s.pending[k]; ok {
		return repository.ErrOrderPending
	}
	o.IsProcessed = false
	s.orders[o.ID] = o
	s.pending[k] = o.ID
	return nil
}

func (s *OrderStore) MarkProcessed(_ context.Context, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return false, repository.ErrOrderNotFound
	}
	if o.IsProcessed {
		return false, nil
	}
	o.IsProcessed = true
	s.orders[orderID] = o
	k := pair{o.UserID, o.GameID}
	if s.pending[k] == orderID {
		delete(s.pending, k)
	}
	return true, nil
}

func (s *OrderStore) GetByID(_ context.Context, id string) (model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return model.Order{}, repository.ErrOrderNotFound
	}
	return o, nil
}

func (s *OrderStore) ListUnprocessedBefore(_ context.Context, cutoff time.Time) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Order
	for _, o := range s.orders {
		if !o.IsProcessed && o.CreatedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Len returns the number of stored orders; used by tests.
func (s *OrderStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}
