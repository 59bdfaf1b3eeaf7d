// Package record keeps local records of resolved deployment outputs.
// Records are a convenience log for listing past deployments, not a
// source of truth the engine reconciles against.
package record

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Record is one completed deployment.
type Record struct {
	ID         string    `yaml:"id"`
	App        string    `yaml:"app"`
	Region     string    `yaml:"region"`
	ServiceURL string    `yaml:"serviceUrl"`
	MetricsURL string    `yaml:"metricsUrl"`
	ImageURI   string    `yaml:"imageUri"`
	CreatedAt  time.Time `yaml:"createdAt"`
}

// Store reads and writes records under a base directory.
type Store struct {
	basePath string
}

// NewStore creates a record store. An empty path defaults to
// ~/.shipctl/deployments.
func NewStore(path string) (*Store, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".shipctl", "deployments")
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create record directory: %w", err)
	}
	return &Store{basePath: path}, nil
}

// Save writes a record, assigning an ID and timestamp if unset.
func (s *Store) Save(rec Record) (Record, error) {
	if rec.App == "" {
		return Record{}, fmt.Errorf("record has no app name")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()[:8]
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	data, err := yaml.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("failed to marshal record: %w", err)
	}

	fullPath := s.path(rec.App, rec.ID)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return Record{}, err
	}

	// Write to temp file first, then rename for atomicity
	tempFile, err := os.CreateTemp(filepath.Dir(fullPath), ".shipctl-record-*")
	if err != nil {
		return Record{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	_, err = tempFile.Write(data)
	if closeErr := tempFile.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return Record{}, fmt.Errorf("failed to write record: %w", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return Record{}, fmt.Errorf("failed to save record: %w", err)
	}

	return rec, nil
}

// List returns all records, newest first.
func (s *Store) List() ([]Record, error) {
	var records []Record

	err := filepath.Walk(s.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".yaml") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var rec Record
		if err := yaml.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("failed to parse record %s: %w", path, err)
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// ListApp returns records for one app, newest first.
func (s *Store) ListApp(app string) ([]Record, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	var records []Record
	for _, rec := range all {
		if rec.App == app {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Delete removes a record. Deleting a missing record is not an error.
func (s *Store) Delete(app, id string) error {
	if err := os.Remove(s.path(app, id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

func (s *Store) path(app, id string) string {
	return filepath.Join(s.basePath, app, id+".yaml")
}
