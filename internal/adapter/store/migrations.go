package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/goccy/go-json"
	"go.etcd.io/bbolt"

	"palate/config"
	"palate/internal/domain"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 2

var (
	keySchemaVersion = []byte("schema_version")
	keyConfigHash    = []byte("config_hash")
)

// SchemaInfo stores schema version and configuration hash.
type SchemaInfo struct {
	Version    int    `json:"version"`
	ConfigHash string `json:"config_hash"`
}

// GetSchemaInfo retrieves the current schema info from the database.
func (s *BoltStore) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)

		if versionData := b.Get(keySchemaVersion); versionData != nil {
			if err := json.Unmarshal(versionData, &info.Version); err != nil {
				return fmt.Errorf("decode schema version: %w", err)
			}
		}
		if hashData := b.Get(keyConfigHash); hashData != nil {
			info.ConfigHash = string(hashData)
		}
		return nil
	})
	return &info, err
}

// SetSchemaInfo stores the schema info in the database.
func (s *BoltStore) SetSchemaInfo(info *SchemaInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if err := putJSON(b, keySchemaVersion, info.Version); err != nil {
			return err
		}
		return b.Put(keyConfigHash, []byte(info.ConfigHash))
	})
}

// ComputeConfigHash hashes the configuration that determines the embedding space.
// A change means stored dish embeddings and profiles are no longer comparable.
func ComputeConfigHash(cfg *config.Config) string {
	relevant := struct {
		Provider  string `json:"provider"`
		Model     string `json:"model"`
		Dimension int    `json:"dimension"`
	}{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// MigrationResult describes the result of a migration check.
type MigrationResult struct {
	NeedsMigration bool
	NeedsRebuild   bool
	OldVersion     int
	NewVersion     int
	Reason         string
}

// CheckMigration checks if migration or rebuild is needed.
func (s *BoltStore) CheckMigration(cfg *config.Config) (*MigrationResult, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &MigrationResult{
		OldVersion: info.Version,
		NewVersion: CurrentSchemaVersion,
	}

	switch {
	case info.Version == 0:
		result.NeedsMigration = true
		result.Reason = "initializing schema version"
	case info.Version < CurrentSchemaVersion:
		result.NeedsMigration = true
		result.Reason = fmt.Sprintf("schema upgrade from v%d to v%d", info.Version, CurrentSchemaVersion)
	case info.Version > CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("database created by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
		return result, nil
	}

	if info.ConfigHash != "" && info.ConfigHash != ComputeConfigHash(cfg) {
		result.NeedsRebuild = true
		result.Reason = "embedding configuration changed"
	}

	return result, nil
}

// Migrate performs any necessary schema migrations and records the config hash.
func (s *BoltStore) Migrate(cfg *config.Config) error {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return err
	}

	for v := info.Version; v < CurrentSchemaVersion; v++ {
		if err := s.runMigration(v, v+1); err != nil {
			return fmt.Errorf("migration from v%d to v%d failed: %w", v, v+1, err)
		}
	}

	return s.SetSchemaInfo(&SchemaInfo{
		Version:    CurrentSchemaVersion,
		ConfigHash: ComputeConfigHash(cfg),
	})
}

func (s *BoltStore) runMigration(from, to int) error {
	switch {
	case from == 1 && to == 2:
		// v1 had no history revisions; seed each rater's revision with their rating count.
		return s.db.Update(func(tx *bbolt.Tx) error {
			counts := make(map[string]uint64)
			err := tx.Bucket(bucketRatings).ForEach(func(_, v []byte) error {
				var event domain.RatingEvent
				if err := json.Unmarshal(v, &event); err != nil {
					return err
				}
				counts[event.UserID]++
				return nil
			})
			if err != nil {
				return err
			}
			revs := tx.Bucket(bucketRevisions)
			for userID, n := range counts {
				if revs.Get([]byte(userID)) == nil {
					if err := revs.Put([]byte(userID), encodeRevision(n)); err != nil {
						return err
					}
				}
			}
			return nil
		})
	default:
		return nil
	}
}

// Clear drops everything derived from embeddings: the vector index, every
// profile, and the embedding stored on each dish. Dishes, users and ratings stay.
// It must run before a BoltVectorStore is opened on the same database.
func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := resetBucket(tx, bucketVectors); err != nil {
			return err
		}
		if err := resetBucket(tx, bucketProfiles); err != nil {
			return err
		}

		b := tx.Bucket(bucketDishes)
		var stripped []domain.Dish
		err := b.ForEach(func(_, v []byte) error {
			var dish domain.Dish
			if err := json.Unmarshal(v, &dish); err != nil {
				return err
			}
			if dish.HasEmbedding() {
				dish.Embedding = nil
				dish.EmbeddingModel = ""
				stripped = append(stripped, dish)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, dish := range stripped {
			if err := putJSON(b, []byte(dish.ID), dish); err != nil {
				return err
			}
		}
		return nil
	})
}

// NeedsRebuild checks if embeddings must be regenerated due to config changes.
func (s *BoltStore) NeedsRebuild(cfg *config.Config) (bool, string, error) {
	result, err := s.CheckMigration(cfg)
	if err != nil {
		return false, "", err
	}
	return result.NeedsRebuild, result.Reason, nil
}
