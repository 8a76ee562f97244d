// Package store implements OpenDuck's durable configuration store: one
// JSON document holding query history, saved queries, and connection
// descriptors. Every mutation is a full load-modify-save of the
// document.
//
// The store serializes its own mutators, so goroutines within one
// process cannot interleave a load-modify-save. Concurrent writers from
// other processes are not guarded; the workbench assumes a single
// process owns the document.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultFileName is the document file name inside the workspace.
const DefaultFileName = "openduck.json"

// HistoryEntry records one executed query attempt.
type HistoryEntry struct {
	SQL       string    `json:"sql"`
	Timestamp time.Time `json:"timestamp"`
}

// SavedQuery is a named query, unique by name.
type SavedQuery struct {
	Name      string    `json:"name"`
	SQL       string    `json:"sql"`
	Timestamp time.Time `json:"timestamp"`
}

// ConnectionDescriptor is the persisted description of how to reach an
// external backend. Runtime handles are never persisted; they are
// rebuilt from descriptors at startup.
type ConnectionDescriptor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"` // "embedded-bridge" or "direct"
	Driver      string `json:"driver"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	User        string `json:"user"`
	Password    string `json:"password"`
	Database    string `json:"database"`
}

// Descriptor types.
const (
	TypeBridge = "embedded-bridge"
	TypeDirect = "direct"
)

// Document is the whole persisted state.
type Document struct {
	History      []HistoryEntry         `json:"history"`
	SavedQueries []SavedQuery           `json:"saved_queries"`
	Connections  []ConnectionDescriptor `json:"connections"`
}

// CorruptError indicates the on-disk document could not be decoded.
// The store never overwrites a corrupt document.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("config store %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Store is the single-document configuration store.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// New creates a store backed by the given file path.
// If logger is nil, a discard logger is used.
func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{path: path, logger: logger, now: time.Now}
}

// Path returns the document file path.
func (s *Store) Path() string { return s.path }

// Load reads the document from disk. A missing file is not an error:
// the empty document is created, persisted immediately, and returned.
func (s *Store) Load() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save atomically overwrites the whole document.
func (s *Store) Save(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(doc)
}

// AppendHistory appends a trimmed SQL attempt to the history.
func (s *Store) AppendHistory(sql string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	doc.History = append(doc.History, HistoryEntry{
		SQL:       strings.TrimSpace(sql),
		Timestamp: s.now(),
	})
	return s.save(doc)
}

// UpsertSavedQuery creates or replaces the saved query with the given
// name. Saving under an existing name overwrites in place.
func (s *Store) UpsertSavedQuery(name, sql string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	entry := SavedQuery{Name: name, SQL: strings.TrimSpace(sql), Timestamp: s.now()}
	replaced := false
	for i := range doc.SavedQueries {
		if doc.SavedQueries[i].Name == name {
			doc.SavedQueries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		doc.SavedQueries = append(doc.SavedQueries, entry)
	}
	return s.save(doc)
}

// UpsertConnection creates or replaces the descriptor with the same id.
func (s *Store) UpsertConnection(desc ConnectionDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	replaced := false
	for i := range doc.Connections {
		if doc.Connections[i].ID == desc.ID {
			doc.Connections[i] = desc
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Connections = append(doc.Connections, desc)
	}
	return s.save(doc)
}

// DeleteConnection removes the descriptor with the given id.
// Deleting an unknown id is a no-op.
func (s *Store) DeleteConnection(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	kept := doc.Connections[:0]
	for _, c := range doc.Connections {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	doc.Connections = kept
	return s.save(doc)
}

func (s *Store) load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		doc := &Document{
			History:      []HistoryEntry{},
			SavedQueries: []SavedQuery{},
			Connections:  []ConnectionDescriptor{},
		}
		if err := s.save(doc); err != nil {
			return nil, err
		}
		s.logger.Debug("created empty config store", slog.String("path", s.path))
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config store: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &CorruptError{Path: s.path, Err: err}
	}
	return &doc, nil
}

// save writes the document to a temp file in the same directory and
// renames it over the target, so a crash mid-write never leaves a
// truncated document.
func (s *Store) save(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".openduck-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write config store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace config store: %w", err)
	}
	return nil
}
