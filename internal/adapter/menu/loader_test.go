package menu

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palate/internal/adapter/fs"
	"palate/internal/domain"
)

const ramenMenu = `
restaurant_id: noodle-bar
taste_scale: 5
dishes:
  - name: Tonkotsu Ramen
    description: pork bone broth, chashu
    price: 14.5
    category: mains
    taste: {sweet: 1, salty: 5, sour: 1, bitter: 1, umami: 5, spicy: 3}
  - name: Gyoza
`

func TestParseConvertsFivePointTaste(t *testing.T) {
	m, err := Parse([]byte(ramenMenu))
	require.NoError(t, err)

	assert.Equal(t, "noodle-bar", m.RestaurantID)
	require.Len(t, m.Dishes, 2)

	ramen := m.Dishes[0]
	assert.Equal(t, "Tonkotsu Ramen", ramen.Name)
	assert.Equal(t, "noodle-bar", ramen.RestaurantID)
	require.NotNil(t, ramen.Taste)
	assert.Equal(t, domain.TasteVector{Sweet: 0, Salty: 1, Sour: 0, Bitter: 0, Umami: 1, Spicy: 0.5}, *ramen.Taste)

	assert.Nil(t, m.Dishes[1].Taste)
	assert.Empty(t, m.Dishes[1].Description)
}

func TestParseJSON(t *testing.T) {
	m, err := Parse([]byte(`{"restaurant_id":"cafe","dishes":[{"name":"Latte","taste":{"sweet":0.4}}]}`))
	require.NoError(t, err)
	require.Len(t, m.Dishes, 1)
	assert.Equal(t, 0.4, m.Dishes[0].Taste.Sweet)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no dishes", "restaurant_id: x\ndishes: []\n"},
		{"missing name", "dishes:\n  - description: nameless\n"},
		{"negative price", "dishes:\n  - name: a\n    price: -1\n"},
		{"canonical taste out of range", "dishes:\n  - name: a\n    taste: {spicy: 4}\n"},
		{"unknown scale", "taste_scale: 10\ndishes:\n  - name: a\n"},
		{"not yaml", "dishes: [unterminated"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.body))
			require.Error(t, err)
		})
	}

	_, err := Parse([]byte("dishes:\n  - name: a\n    taste: {spicy: 4}\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidTaste)
}

func TestLoadDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "menus"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "menus", "ramen.yaml"), []byte(ramenMenu), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "menus", "taqueria.json"),
		[]byte(`{"dishes":[{"name":"Al Pastor"}]}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# menus"), 0644))

	loader := NewLoader(fs.NewWalker([]string{"**/*.yaml", "**/*.json"}, nil))
	menus, err := loader.LoadDir(root)
	require.NoError(t, err)
	require.Len(t, menus, 2)

	assert.Equal(t, "noodle-bar", menus[0].RestaurantID)
	assert.Equal(t, "taqueria", menus[1].RestaurantID, "restaurant defaults to the file name")
	assert.Equal(t, filepath.Join(root, "menus", "taqueria.json"), menus[1].Source)
}
