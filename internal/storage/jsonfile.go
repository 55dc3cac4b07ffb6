package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"timetrack-backend/internal/common"
	"timetrack-backend/internal/domain"
)

// documentSchema is the structural contract for the persisted data file.
// The projects key is optional here because legacy files predate it; the
// migration in OpenFileStore backfills it.
const documentSchema = `{
	"type": "object",
	"required": ["todos", "users"],
	"properties": {
		"todos": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "item", "owner"],
				"properties": {
					"id": {"type": "integer"},
					"item": {"type": "string"},
					"status": {"type": "boolean"},
					"timeSpent": {"type": "integer", "minimum": 0},
					"timerRunning": {"type": "boolean"},
					"last_started_at": {"type": ["number", "null"]},
					"owner": {"type": "string"},
					"project_id": {"type": ["string", "null"]}
				}
			}
		},
		"users": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "email", "password"]
			}
		},
		"projects": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "name", "owner"]
			}
		},
		"total_seconds": {"type": "integer"}
	}
}`

var compiledDocumentSchema = jsonschema.MustCompileString("document.json", documentSchema)

// FileStore persists the document as one pretty-printed JSON file. A single
// mutex is held across the full read-modify-write span of Update.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// OpenFileStore opens (or creates) the data file at path. Legacy files
// missing the projects collection are migrated in place before the store is
// handed out; files that fail schema validation are rejected.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := s.write(domain.NewDocument()); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", common.ErrUnavailable, path, err)
	}

	var probe any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("data file %s is not valid JSON: %w", path, err)
	}
	if err := compiledDocumentSchema.Validate(probe); err != nil {
		return nil, fmt.Errorf("data file %s failed schema validation: %w", path, err)
	}

	// One-time migration for files written before projects existed.
	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("data file %s: %w", path, err)
	}
	if doc.Projects == nil {
		doc.Projects = []*domain.Project{}
		if err := s.write(&doc); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *FileStore) read() (*domain.Document, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", common.ErrUnavailable, s.path, err)
	}
	doc := domain.NewDocument()
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", common.ErrUnavailable, s.path, err)
	}
	if doc.Todos == nil {
		doc.Todos = []*domain.Todo{}
	}
	if doc.Users == nil {
		doc.Users = []*domain.User{}
	}
	if doc.Projects == nil {
		doc.Projects = []*domain.Project{}
	}
	return doc, nil
}

func (s *FileStore) write(doc *domain.Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding document: %v", common.ErrUnavailable, err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", common.ErrUnavailable, s.path, err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) Update(ctx context.Context, fn func(*domain.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.write(doc)
}

func (s *FileStore) Health() map[string]string {
	stats := make(map[string]string)
	info, err := os.Stat(s.path)
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("data file unavailable: %v", err)
		return stats
	}
	stats["status"] = "up"
	stats["message"] = "It's healthy"
	stats["data_file"] = s.path
	stats["size_bytes"] = strconv.FormatInt(info.Size(), 10)
	return stats
}

func (s *FileStore) Close() error {
	return nil
}
