// Package store is the source of truth for server configuration. It persists
// records as a JSON array document and is the sole writer of the compose
// manifest, which is regenerated from the active record after every write.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blockpanel/panel/internal/compose"
	"github.com/blockpanel/panel/internal/models"
	"github.com/blockpanel/panel/pkg/logger"
)

const configFileName = "servers.json"

var (
	// ErrNotFound means the requested server id has no config record
	ErrNotFound = errors.New("server config not found")

	// ErrIDExists means a create collided with an existing record
	ErrIDExists = errors.New("server id already exists")
)

// Store owns the persisted config records. Writes are serialized through the
// mutex; reads return value copies and never block behind a slow writer for
// longer than one file read.
type Store struct {
	mu           sync.RWMutex
	filePath     string
	manifestPath string
}

// New creates the store, running the one-time bootstrap if the backing file
// does not exist yet. Bootstrap is never repeated once the file is present so
// process restarts cannot reset user edits.
func New(configDir, manifestPath string) (*Store, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	s := &Store{
		filePath:     filepath.Join(configDir, configFileName),
		manifestPath: manifestPath,
	}

	if _, err := os.Stat(s.filePath); os.IsNotExist(err) {
		if err := s.bootstrap(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// bootstrap seeds the store on first run. A pre-existing manifest is imported
// best-effort; any failure falls back to the two default records.
func (s *Store) bootstrap() error {
	var records []models.ServerConfig

	if data, err := os.ReadFile(s.manifestPath); err == nil {
		if imported, impErr := compose.Import(data); impErr == nil {
			logger.Info("Imported server config from existing manifest", map[string]interface{}{
				"id": imported.ID,
			})
			records = []models.ServerConfig{*imported}
		} else {
			logger.Warn("Failed to import existing manifest, seeding defaults", map[string]interface{}{
				"error": impErr.Error(),
			})
		}
	}

	if records == nil {
		daily := models.DefaultServerConfig("daily")
		daily.Active = true
		daily.Port = 25565

		weekend := models.DefaultServerConfig("weekend")
		weekend.Port = 25566

		records = []models.ServerConfig{daily, weekend}
		logger.Info("Seeded default server configs", map[string]interface{}{
			"count": len(records),
		})
	}

	if err := s.persist(records); err != nil {
		return err
	}
	return s.regenerate(records)
}

// List returns all records in persisted order. An unreadable backing file is
// a degraded state, not a crash: the result is an empty list.
func (s *Store) List() []models.ServerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.load()
	if err != nil {
		logger.Warn("Config store unreadable, returning empty list", map[string]interface{}{
			"error": err.Error(),
		})
		return []models.ServerConfig{}
	}
	return records
}

// Get returns the record for id or ErrNotFound
func (s *Store) Get(id string) (models.ServerConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.load()
	if err != nil {
		return models.ServerConfig{}, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return models.ServerConfig{}, ErrNotFound
}

// Active returns the currently active record, if any
func (s *Store) Active() (models.ServerConfig, bool) {
	for _, rec := range s.List() {
		if rec.Active {
			return rec, true
		}
	}
	return models.ServerConfig{}, false
}

// Create validates the id, fills defaults, applies the provided fields and
// appends the record. At most one record stays active after the write.
func (s *Store) Create(id string, update *models.ServerConfigUpdate) (models.ServerConfig, error) {
	if !models.ValidID(id) {
		return models.ServerConfig{}, models.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return models.ServerConfig{}, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return models.ServerConfig{}, ErrIDExists
		}
	}

	cfg := models.DefaultServerConfig(id)
	if update != nil {
		update.ApplyTo(&cfg)
	}
	cfg.ID = id // id is immutable, partial fields cannot rename
	if err := cfg.Validate(); err != nil {
		return models.ServerConfig{}, err
	}

	if cfg.Active {
		for i := range records {
			records[i].Active = false
		}
	}
	records = append(records, cfg)

	if err := s.persist(records); err != nil {
		return models.ServerConfig{}, err
	}
	if cfg.Active {
		if err := s.regenerate(records); err != nil {
			return models.ServerConfig{}, err
		}
	}

	logger.Info("Created server config", map[string]interface{}{
		"id":     cfg.ID,
		"type":   cfg.ServerType,
		"port":   cfg.Port,
		"active": cfg.Active,
	})
	return cfg, nil
}

// Update shallow-merges the provided fields onto the record. If the merged
// record is active, every sibling is deactivated in the same persisted write,
// then the manifest is regenerated from whichever record is now active.
func (s *Store) Update(id string, update *models.ServerConfigUpdate) (models.ServerConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return models.ServerConfig{}, err
	}

	idx := -1
	for i := range records {
		if records[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.ServerConfig{}, ErrNotFound
	}

	merged := records[idx]
	if update != nil {
		update.ApplyTo(&merged)
	}
	merged.ID = id
	if err := merged.Validate(); err != nil {
		return models.ServerConfig{}, err
	}

	records[idx] = merged
	if merged.Active {
		for i := range records {
			if i != idx {
				records[i].Active = false
			}
		}
	}

	if err := s.persist(records); err != nil {
		return models.ServerConfig{}, err
	}
	if err := s.regenerate(records); err != nil {
		return models.ServerConfig{}, err
	}

	logger.Info("Updated server config", map[string]interface{}{
		"id":     merged.ID,
		"active": merged.Active,
	})
	return merged, nil
}

// Delete removes the record. Tearing down the container and data directory is
// the lifecycle controller's job; the store only forgets the config.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return false, err
	}

	kept := records[:0]
	found := false
	for _, rec := range records {
		if rec.ID == id {
			found = true
			continue
		}
		kept = append(kept, rec)
	}
	if !found {
		return false, nil
	}

	if err := s.persist(kept); err != nil {
		return false, err
	}

	logger.Info("Deleted server config", map[string]interface{}{"id": id})
	return true, nil
}

// ManifestPath returns the path of the generated manifest file
func (s *Store) ManifestPath() string {
	return s.manifestPath
}

func (s *Store) load() ([]models.ServerConfig, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config store: %w", err)
	}
	var records []models.ServerConfig
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse config store: %w", err)
	}
	return records, nil
}

// persist writes the full record list: temp file in the same directory, then
// rename, so a crash cannot leave a truncated store behind.
func (s *Store) persist(records []models.ServerConfig) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config store: %w", err)
	}
	return atomicWrite(s.filePath, append(data, '\n'))
}

// regenerate renders the manifest for the active record. With no active
// record the manifest on disk is left untouched.
func (s *Store) regenerate(records []models.ServerConfig) error {
	for _, rec := range records {
		if !rec.Active {
			continue
		}
		data, err := compose.Render(&rec)
		if err != nil {
			return err
		}
		if err := atomicWrite(s.manifestPath, data); err != nil {
			return fmt.Errorf("failed to write manifest: %w", err)
		}
		logger.Debug("Regenerated compose manifest", map[string]interface{}{
			"id":   rec.ID,
			"path": s.manifestPath,
		})
		return nil
	}
	return nil
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
