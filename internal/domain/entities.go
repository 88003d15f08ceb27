package domain

import "time"

type Dish struct {
	ID             string       `json:"id"`
	RestaurantID   string       `json:"restaurant_id,omitempty"`
	Name           string       `json:"name"`
	Description    string       `json:"description,omitempty"`
	Price          float64      `json:"price,omitempty"`
	Category       string       `json:"category,omitempty"`
	Taste          *TasteVector `json:"taste,omitempty"`
	Embedding      []float32    `json:"embedding,omitempty"`
	EmbeddingModel string       `json:"embedding_model,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// HasEmbedding reports whether the dish carries a non-empty embedding.
func (d Dish) HasEmbedding() bool {
	return len(d.Embedding) > 0
}

// EmbeddingText is the text a dish embedding is generated from:
// the name, followed by ": description" when a description is present.
func (d Dish) EmbeddingText() string {
	return EmbeddingText(d.Name, d.Description)
}

func EmbeddingText(name, description string) string {
	if description == "" {
		return name
	}
	return name + ": " + description
}

type User struct {
	ID        string       `json:"id"`
	Name      string       `json:"name,omitempty"`
	Email     string       `json:"email,omitempty"`
	Taste     *TasteVector `json:"taste,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// RatingEvent is the current rating of one dish by one user.
// There is at most one per (UserID, DishID).
type RatingEvent struct {
	UserID    string    `json:"user_id"`
	DishID    string    `json:"dish_id"`
	Liked     bool      `json:"liked"`
	Timestamp time.Time `json:"timestamp"`
}

// History is a user's rating history together with the revision it was read at.
// Revision increases by one on every rating write for the user.
type History struct {
	Entries  []RatingEvent
	Revision uint64
}

// DishIDs returns the set of rated dish IDs.
func (h History) DishIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(h.Entries))
	for _, e := range h.Entries {
		ids[e.DishID] = struct{}{}
	}
	return ids
}

// ProfileEmbedding is the sentiment-weighted centroid of a user's rated dish embeddings.
type ProfileEmbedding struct {
	UserID         string    `json:"user_id"`
	Vector         []float32 `json:"vector"`
	Contributing   int       `json:"contributing"`
	SourceRevision uint64    `json:"source_revision"`
	Version        uint64    `json:"version"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Recommendation struct {
	Dish     Dish    `json:"dish"`
	Distance float64 `json:"distance"`
}

// TasteMatch is the similarity of a user's taste vector to a dish's.
type TasteMatch struct {
	UserID     string  `json:"user_id"`
	DishID     string  `json:"dish_id"`
	Similarity float64 `json:"similarity"`
	Percent    int     `json:"percent"`
}

// Task is a unit of deferred work handed to the scheduler.
type Task struct {
	Kind TaskKind `json:"kind"`
	Key  string   `json:"key"`
}

type TaskKind string

const (
	TaskRecomputeProfile TaskKind = "recompute_profile"
	TaskEmbedDish        TaskKind = "embed_dish"
)

// Menu is a batch of dishes extracted from one restaurant menu.
type Menu struct {
	RestaurantID string `json:"restaurant_id"`
	Source       string `json:"source,omitempty"`
	Dishes       []Dish `json:"dishes"`
}
