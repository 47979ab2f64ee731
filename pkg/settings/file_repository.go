package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const optionsFileName = "options.json"

// FileOptionStore keeps every option in one JSON object on disk.
type FileOptionStore struct {
	dataDir string
	options map[string]json.RawMessage
	mutex   sync.RWMutex
}

func NewFileOptionStore(dataDir string) (*FileOptionStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	s := &FileOptionStore{dataDir: dataDir, options: make(map[string]json.RawMessage)}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	return s, nil
}

func (s *FileOptionStore) Get(ctx context.Context, name string) ([]byte, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	v, ok := s.options[name]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *FileOptionStore) Put(ctx context.Context, name string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("option %s is not valid JSON", name)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	prev, existed := s.options[name]
	s.options[name] = append(json.RawMessage(nil), value...)
	if err := s.save(); err != nil {
		if existed {
			s.options[name] = prev
		} else {
			delete(s.options, name)
		}
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (s *FileOptionStore) load() error {
	data, err := os.ReadFile(filepath.Join(s.dataDir, optionsFileName))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &s.options)
}

func (s *FileOptionStore) save() error {
	jsonData, err := json.MarshalIndent(s.options, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	tempFile := filepath.Join(s.dataDir, optionsFileName+".tmp")
	if err := os.WriteFile(tempFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, filepath.Join(s.dataDir, optionsFileName)); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
