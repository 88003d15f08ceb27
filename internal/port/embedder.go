package port

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorIndex stores dish embeddings and answers nearest-neighbour queries.
type VectorIndex interface {
	// Upsert adds or replaces vectors in the index.
	Upsert(items []VectorItem) error

	// Search finds the k nearest vectors to the query, ordered by ascending distance.
	Search(query []float32, k int) ([]VectorResult, error)

	// Delete removes vectors by their IDs.
	Delete(ids []string) error

	// Count returns the number of vectors in the index.
	Count() (int, error)

	// Dimension returns the vector length the index accepts.
	Dimension() int
}

// VectorItem represents a vector to be stored.
type VectorItem struct {
	ID       string            // Dish ID
	Vector   []float32         // Embedding vector
	Metadata map[string]string // Optional metadata
}

// VectorResult represents a search result.
type VectorResult struct {
	ID       string            // Dish ID
	Distance float64           // Cosine distance (lower is nearer)
	Metadata map[string]string // Stored metadata
}
