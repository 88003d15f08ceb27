// Package menu reads restaurant menus from YAML or JSON files.
package menu

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"palate/internal/domain"
	"palate/internal/port"
)

// File is the on-disk menu format. JSON files parse too, since JSON is valid YAML.
//
//	restaurant_id: noodle-bar
//	taste_scale: 5
//	dishes:
//	  - name: Tonkotsu Ramen
//	    description: pork bone broth, chashu
//	    price: 14.5
//	    category: mains
//	    taste: {sweet: 1, salty: 4, sour: 1, bitter: 1, umami: 5, spicy: 2}
type File struct {
	RestaurantID string     `yaml:"restaurant_id"`
	TasteScale   int        `yaml:"taste_scale" validate:"omitempty,oneof=1 5"`
	Dishes       []FileDish `yaml:"dishes" validate:"min=1,dive"`
}

type FileDish struct {
	Name        string              `yaml:"name" validate:"required"`
	Description string              `yaml:"description"`
	Price       float64             `yaml:"price" validate:"gte=0"`
	Category    string              `yaml:"category"`
	Taste       *domain.TasteVector `yaml:"taste" validate:"-"` // checked after scale conversion
}

var validate = validator.New()

// Loader finds and parses menu files.
type Loader struct {
	walker port.FileWalker
}

func NewLoader(walker port.FileWalker) *Loader {
	return &Loader{walker: walker}
}

// LoadDir parses every menu file under root. A file that fails to parse
// aborts the load with an error naming the file.
func (l *Loader) LoadDir(root string) ([]domain.Menu, error) {
	files, err := l.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("discover menus in %s: %w", root, err)
	}

	menus := make([]domain.Menu, 0, len(files))
	for _, f := range files {
		m, err := ParseFile(f.Path)
		if err != nil {
			return nil, err
		}
		menus = append(menus, m)
	}
	return menus, nil
}

// ParseFile reads one menu file. Without a restaurant_id the file base name is used.
func ParseFile(path string) (domain.Menu, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Menu{}, err
	}
	m, err := Parse(data)
	if err != nil {
		return domain.Menu{}, fmt.Errorf("menu %s: %w", path, err)
	}
	m.Source = path
	if m.RestaurantID == "" {
		m.RestaurantID = restaurantFromPath(path)
	}
	return m, nil
}

// Parse decodes menu bytes, validates them and converts taste values to the
// canonical scale.
func Parse(data []byte) (domain.Menu, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return domain.Menu{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := validate.Struct(f); err != nil {
		return domain.Menu{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	m := domain.Menu{RestaurantID: f.RestaurantID, Dishes: make([]domain.Dish, 0, len(f.Dishes))}
	for i, d := range f.Dishes {
		dish := domain.Dish{
			RestaurantID: f.RestaurantID,
			Name:         strings.TrimSpace(d.Name),
			Description:  strings.TrimSpace(d.Description),
			Price:        d.Price,
			Category:     d.Category,
		}
		if d.Taste != nil {
			taste, err := domain.Normalize(*d.Taste, f.TasteScale)
			if err != nil {
				return domain.Menu{}, fmt.Errorf("dish %d (%s): %w", i, d.Name, err)
			}
			dish.Taste = &taste
		}
		m.Dishes = append(m.Dishes, dish)
	}
	return m, nil
}

// restaurantFromPath names a menu after its file, e.g. "/srv/menus/noodle-bar.yaml" -> "noodle-bar".
func restaurantFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
