package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"go.etcd.io/bbolt"

	"palate/internal/domain"
)

var (
	bucketDishes    = []byte("dishes")
	bucketUsers     = []byte("users")
	bucketProfiles  = []byte("profiles")
	bucketRatings   = []byte("ratings")
	bucketRevisions = []byte("revisions")
	bucketMeta      = []byte("meta")
)

// keySep separates user and dish IDs in rating keys so a user's ratings
// form one contiguous key range.
const keySep = 0x00

type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string, openTimeout time.Duration) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketDishes, bucketUsers, bucketProfiles, bucketRatings, bucketRevisions, bucketMeta}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

// Dishes

func (s *BoltStore) PutDish(dish domain.Dish) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketDishes), []byte(dish.ID), dish)
	})
}

func (s *BoltStore) GetDish(id string) (domain.Dish, error) {
	var dish domain.Dish
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDishes).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("dish %s: %w", id, domain.ErrNotFound)
		}
		return json.Unmarshal(data, &dish)
	})
	return dish, err
}

func (s *BoltStore) GetDishes(ids []string) (map[string]domain.Dish, error) {
	dishes := make(map[string]domain.Dish, len(ids))
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDishes)
		for _, id := range ids {
			data := b.Get([]byte(id))
			if data == nil {
				continue
			}
			var dish domain.Dish
			if err := json.Unmarshal(data, &dish); err != nil {
				return fmt.Errorf("decode dish %s: %w", id, err)
			}
			dishes[id] = dish
		}
		return nil
	})
	return dishes, err
}

func (s *BoltStore) DeleteDish(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDishes)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("dish %s: %w", id, domain.ErrNotFound)
		}
		return b.Delete([]byte(id))
	})
}

func (s *BoltStore) ListDishes() ([]domain.Dish, error) {
	var dishes []domain.Dish
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDishes).ForEach(func(k, v []byte) error {
			var dish domain.Dish
			if err := json.Unmarshal(v, &dish); err != nil {
				return fmt.Errorf("decode dish %s: %w", k, err)
			}
			dishes = append(dishes, dish)
			return nil
		})
	})
	return dishes, err
}

func (s *BoltStore) SetDishEmbedding(id string, vector []float32, model string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDishes)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("dish %s: %w", id, domain.ErrNotFound)
		}
		var dish domain.Dish
		if err := json.Unmarshal(data, &dish); err != nil {
			return err
		}
		dish.Embedding = vector
		dish.EmbeddingModel = model
		dish.UpdatedAt = time.Now().UTC()
		return putJSON(b, []byte(id), dish)
	})
}

// Users and profiles

func (s *BoltStore) PutUser(user domain.User) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketUsers), []byte(user.ID), user)
	})
}

func (s *BoltStore) GetUser(id string) (domain.User, error) {
	var user domain.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketUsers).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
		}
		return json.Unmarshal(data, &user)
	})
	return user, err
}

func (s *BoltStore) GetProfile(userID string) (domain.ProfileEmbedding, bool, error) {
	var profile domain.ProfileEmbedding
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketProfiles).Get([]byte(userID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &profile)
	})
	return profile, found, err
}

func (s *BoltStore) SaveProfile(profile domain.ProfileEmbedding) (domain.ProfileEmbedding, error) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketProfiles)
		if data := b.Get([]byte(profile.UserID)); data != nil {
			var current domain.ProfileEmbedding
			if err := json.Unmarshal(data, &current); err != nil {
				return err
			}
			if current.SourceRevision > profile.SourceRevision {
				return fmt.Errorf("%w: user %s stored revision %d, computed from %d",
					domain.ErrStaleProfile, profile.UserID, current.SourceRevision, profile.SourceRevision)
			}
			profile.Version = current.Version + 1
		} else {
			profile.Version = 1
		}
		if profile.UpdatedAt.IsZero() {
			profile.UpdatedAt = time.Now().UTC()
		}
		return putJSON(b, []byte(profile.UserID), profile)
	})
	return profile, err
}

// Rating history

func ratingKey(userID, dishID string) []byte {
	key := make([]byte, 0, len(userID)+len(dishID)+1)
	key = append(key, userID...)
	key = append(key, keySep)
	return append(key, dishID...)
}

func ratingPrefix(userID string) []byte {
	return append([]byte(userID), keySep)
}

func (s *BoltStore) UpsertRating(userID, dishID string, liked bool, at time.Time) (domain.RatingEvent, error) {
	event := domain.RatingEvent{UserID: userID, DishID: dishID, Liked: liked, Timestamp: at}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := putJSON(tx.Bucket(bucketRatings), ratingKey(userID, dishID), event); err != nil {
			return err
		}
		revs := tx.Bucket(bucketRevisions)
		rev := decodeRevision(revs.Get([]byte(userID))) + 1
		return revs.Put([]byte(userID), encodeRevision(rev))
	})
	return event, err
}

func (s *BoltStore) GetUserHistory(userID string) (domain.History, error) {
	var h domain.History
	err := s.db.View(func(tx *bbolt.Tx) error {
		prefix := ratingPrefix(userID)
		c := tx.Bucket(bucketRatings).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var event domain.RatingEvent
			if err := json.Unmarshal(v, &event); err != nil {
				return fmt.Errorf("decode rating %s: %w", k, err)
			}
			h.Entries = append(h.Entries, event)
		}
		h.Revision = decodeRevision(tx.Bucket(bucketRevisions).Get([]byte(userID)))
		return nil
	})
	sortHistory(h.Entries)
	return h, err
}

func (s *BoltStore) ListRaters() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRevisions).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

// sortHistory orders entries most recent first, breaking ties by dish ID.
func sortHistory(entries []domain.RatingEvent) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].DishID < entries[j].DishID
	})
}

func encodeRevision(rev uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, rev)
	return buf
}

func decodeRevision(data []byte) uint64 {
	if len(data) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}

func resetBucket(tx *bbolt.Tx, name []byte) error {
	if tx.Bucket(name) != nil {
		if err := tx.DeleteBucket(name); err != nil {
			return err
		}
	}
	_, err := tx.CreateBucket(name)
	return err
}
