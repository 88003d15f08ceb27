package memstore

import (
	"fmt"
	"sort"
	"sync"

	"palate/internal/domain"
	"palate/internal/port"
)

// VectorIndex is a brute-force in-memory port.VectorIndex.
type VectorIndex struct {
	mu        sync.RWMutex
	dimension int
	vectors   map[string][]float32
}

func NewVectorIndex(dimension int) (*VectorIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrDimensionMismatch, dimension)
	}
	return &VectorIndex{dimension: dimension, vectors: make(map[string][]float32)}, nil
}

func (x *VectorIndex) Upsert(items []port.VectorItem) error {
	for _, item := range items {
		if err := domain.CheckDimension(item.Vector, x.dimension); err != nil {
			return fmt.Errorf("vector %s: %w", item.ID, err)
		}
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, item := range items {
		x.vectors[item.ID] = copyVector(item.Vector)
	}
	return nil
}

func (x *VectorIndex) Search(query []float32, k int) ([]port.VectorResult, error) {
	if err := domain.CheckDimension(query, x.dimension); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	if k <= 0 {
		return nil, nil
	}
	results := make([]port.VectorResult, 0, len(x.vectors))
	for id, v := range x.vectors {
		results = append(results, port.VectorResult{ID: id, Distance: domain.CosineDistance(query, v)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (x *VectorIndex) Delete(ids []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, id := range ids {
		delete(x.vectors, id)
	}
	return nil
}

func (x *VectorIndex) Count() (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors), nil
}

func (x *VectorIndex) Dimension() int {
	return x.dimension
}
