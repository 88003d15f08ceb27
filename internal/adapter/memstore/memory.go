package memstore

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"palate/internal/domain"
)

type ratingKey struct {
	userID string
	dishID string
}

// MemoryStore implements the dish, user and history stores in memory.
type MemoryStore struct {
	mu        sync.RWMutex
	dishes    map[string]domain.Dish
	users     map[string]domain.User
	profiles  map[string]domain.ProfileEmbedding
	ratings   map[ratingKey]domain.RatingEvent
	revisions map[string]uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		dishes:    make(map[string]domain.Dish),
		users:     make(map[string]domain.User),
		profiles:  make(map[string]domain.ProfileEmbedding),
		ratings:   make(map[ratingKey]domain.RatingEvent),
		revisions: make(map[string]uint64),
	}
}

func copyVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	return append([]float32(nil), v...)
}

func copyDish(d domain.Dish) domain.Dish {
	d.Embedding = copyVector(d.Embedding)
	if d.Taste != nil {
		t := *d.Taste
		d.Taste = &t
	}
	return d
}

func (s *MemoryStore) PutDish(dish domain.Dish) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dishes[dish.ID] = copyDish(dish)
	return nil
}

func (s *MemoryStore) GetDish(id string) (domain.Dish, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dish, ok := s.dishes[id]
	if !ok {
		return domain.Dish{}, fmt.Errorf("dish %s: %w", id, domain.ErrNotFound)
	}
	return copyDish(dish), nil
}

func (s *MemoryStore) GetDishes(ids []string) (map[string]domain.Dish, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Dish, len(ids))
	for _, id := range ids {
		if dish, ok := s.dishes[id]; ok {
			out[id] = copyDish(dish)
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteDish(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dishes[id]; !ok {
		return fmt.Errorf("dish %s: %w", id, domain.ErrNotFound)
	}
	delete(s.dishes, id)
	return nil
}

func (s *MemoryStore) ListDishes() ([]domain.Dish, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dishes := make([]domain.Dish, 0, len(s.dishes))
	for _, dish := range s.dishes {
		dishes = append(dishes, copyDish(dish))
	}
	sort.Slice(dishes, func(i, j int) bool { return dishes[i].ID < dishes[j].ID })
	return dishes, nil
}

func (s *MemoryStore) SetDishEmbedding(id string, vector []float32, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dish, ok := s.dishes[id]
	if !ok {
		return fmt.Errorf("dish %s: %w", id, domain.ErrNotFound)
	}
	dish.Embedding = copyVector(vector)
	dish.EmbeddingModel = model
	dish.UpdatedAt = time.Now().UTC()
	s.dishes[id] = dish
	return nil
}

func (s *MemoryStore) PutUser(user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *MemoryStore) GetUser(id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return user, nil
}

func (s *MemoryStore) GetProfile(userID string) (domain.ProfileEmbedding, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	p.Vector = copyVector(p.Vector)
	return p, ok, nil
}

func (s *MemoryStore) SaveProfile(profile domain.ProfileEmbedding) (domain.ProfileEmbedding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.profiles[profile.UserID]; ok {
		if current.SourceRevision > profile.SourceRevision {
			return profile, fmt.Errorf("%w: user %s stored revision %d, computed from %d",
				domain.ErrStaleProfile, profile.UserID, current.SourceRevision, profile.SourceRevision)
		}
		profile.Version = current.Version + 1
	} else {
		profile.Version = 1
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = time.Now().UTC()
	}
	profile.Vector = copyVector(profile.Vector)
	s.profiles[profile.UserID] = profile
	return profile, nil
}

func (s *MemoryStore) UpsertRating(userID, dishID string, liked bool, at time.Time) (domain.RatingEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event := domain.RatingEvent{UserID: userID, DishID: dishID, Liked: liked, Timestamp: at}
	s.ratings[ratingKey{userID, dishID}] = event
	s.revisions[userID]++
	return event, nil
}

func (s *MemoryStore) GetUserHistory(userID string) (domain.History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := domain.History{Revision: s.revisions[userID]}
	for k, event := range s.ratings {
		if k.userID == userID {
			h.Entries = append(h.Entries, event)
		}
	}
	sort.Slice(h.Entries, func(i, j int) bool {
		a, b := h.Entries[i], h.Entries[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.DishID < b.DishID
	})
	return h, nil
}

func (s *MemoryStore) ListRaters() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.revisions))
	for id := range s.revisions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
