package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"go.etcd.io/bbolt"

	"palate/internal/domain"
	"palate/internal/port"
)

var (
	bucketVectors = []byte("vectors")
)

// BoltVectorStore implements port.VectorIndex using BoltDB for persistence.
// Uses brute-force search over an in-memory copy of every vector.
type BoltVectorStore struct {
	db        *bbolt.DB
	dimension int
	mu        sync.RWMutex
	vectors   map[string]vectorEntry
}

type vectorEntry struct {
	vector   []float32
	metadata map[string]string
}

type storedVector struct {
	Vector   []float32         `json:"v"`
	Metadata map[string]string `json:"m,omitempty"`
}

// NewBoltVectorStore creates a BoltDB-backed vector index. It fails with
// domain.ErrDimensionMismatch if persisted vectors have a different length.
func NewBoltVectorStore(db *bbolt.DB, dimension int) (*BoltVectorStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrDimensionMismatch, dimension)
	}

	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketVectors)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vectors bucket: %w", err)
	}

	store := &BoltVectorStore{
		db:        db,
		dimension: dimension,
		vectors:   make(map[string]vectorEntry),
	}

	if err := store.loadVectors(); err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	return store, nil
}

func (s *BoltVectorStore) loadVectors() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVectors).ForEach(func(k, v []byte) error {
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("decode vector %s: %w", k, err)
			}
			if err := domain.CheckDimension(stored.Vector, s.dimension); err != nil {
				return fmt.Errorf("stored vector %s: %w", k, err)
			}
			s.vectors[string(k)] = vectorEntry{
				vector:   stored.Vector,
				metadata: stored.Metadata,
			}
			return nil
		})
	})
}

// Upsert adds or replaces vectors. The batch is rejected as a whole if any
// vector has the wrong dimension.
func (s *BoltVectorStore) Upsert(items []port.VectorItem) error {
	for _, item := range items {
		if err := domain.CheckDimension(item.Vector, s.dimension); err != nil {
			return fmt.Errorf("vector %s: %w", item.ID, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		for _, item := range items {
			if err := putJSON(b, []byte(item.ID), storedVector{Vector: item.Vector, Metadata: item.Metadata}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Cache only after the transaction commits.
	for _, item := range items {
		s.vectors[item.ID] = vectorEntry{vector: item.Vector, metadata: item.Metadata}
	}
	return nil
}

// Search finds the k nearest vectors to the query by cosine distance.
func (s *BoltVectorStore) Search(query []float32, k int) ([]port.VectorResult, error) {
	if err := domain.CheckDimension(query, s.dimension); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return rank(query, k, s.vectors), nil
}

// rank scores every entry against the query and returns the k nearest,
// ties broken by ID.
func rank(query []float32, k int, entries map[string]vectorEntry) []port.VectorResult {
	if k <= 0 || len(entries) == 0 {
		return nil
	}

	results := make([]port.VectorResult, 0, len(entries))
	for id, entry := range entries {
		results = append(results, port.VectorResult{
			ID:       id,
			Distance: domain.CosineDistance(query, entry.vector),
			Metadata: entry.metadata,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k]
}

// Delete removes vectors by their IDs. Unknown IDs are ignored.
func (s *BoltVectorStore) Delete(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		for _, id := range ids {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range ids {
		delete(s.vectors, id)
	}
	return nil
}

// Count returns the number of vectors in the index.
func (s *BoltVectorStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

func (s *BoltVectorStore) Dimension() int {
	return s.dimension
}
