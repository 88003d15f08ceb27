package memstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palate/internal/domain"
	"palate/internal/port"
)

var (
	_ port.DishStore    = (*MemoryStore)(nil)
	_ port.UserStore    = (*MemoryStore)(nil)
	_ port.HistoryStore = (*MemoryStore)(nil)
	_ port.VectorIndex  = (*VectorIndex)(nil)
)

func TestRerateKeepsOneEntry(t *testing.T) {
	s := NewMemoryStore()
	t0 := time.Now()

	_, err := s.UpsertRating("u", "d", true, t0)
	require.NoError(t, err)
	_, err = s.UpsertRating("u", "d", false, t0.Add(time.Second))
	require.NoError(t, err)

	h, err := s.GetUserHistory("u")
	require.NoError(t, err)
	require.Len(t, h.Entries, 1)
	assert.False(t, h.Entries[0].Liked)
	assert.Equal(t, uint64(2), h.Revision)
}

func TestStoredDishIsCopied(t *testing.T) {
	s := NewMemoryStore()
	emb := []float32{1, 2}
	require.NoError(t, s.PutDish(domain.Dish{ID: "d", Name: "D", Embedding: emb}))
	emb[0] = 99

	got, err := s.GetDish("d")
	require.NoError(t, err)
	assert.Equal(t, float32(1), got.Embedding[0])
}

func TestSaveProfileRejectsStale(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.SaveProfile(domain.ProfileEmbedding{UserID: "u", SourceRevision: 5})
	require.NoError(t, err)

	_, err = s.SaveProfile(domain.ProfileEmbedding{UserID: "u", SourceRevision: 4})
	assert.ErrorIs(t, err, domain.ErrStaleProfile)

	p, err := s.SaveProfile(domain.ProfileEmbedding{UserID: "u", SourceRevision: 5})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), p.Version)
}

func TestVectorIndex(t *testing.T) {
	x, err := NewVectorIndex(2)
	require.NoError(t, err)

	require.NoError(t, x.Upsert([]port.VectorItem{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{0, 1}},
	}))
	assert.ErrorIs(t, x.Upsert([]port.VectorItem{{ID: "c", Vector: []float32{1}}}), domain.ErrDimensionMismatch)

	results, err := x.Search([]float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].ID)
	assert.Equal(t, "a", results[1].ID)

	require.NoError(t, x.Delete([]string{"b"}))
	n, _ := x.Count()
	assert.Equal(t, 1, n)
}
