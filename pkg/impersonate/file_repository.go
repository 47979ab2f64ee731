package impersonate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tendant/simple-secure/pkg/principal"
)

const recordsFileName = "impersonation_records.json"

// FileRepository keeps records in a JSON file so switched sessions survive restarts.
type FileRepository struct {
	dataDir string
	records map[principal.ID]Record
	mutex   sync.Mutex
}

func NewFileRepository(dataDir string) (*FileRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	repo := &FileRepository{dataDir: dataDir, records: make(map[principal.ID]Record)}
	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	return repo, nil
}

func (r *FileRepository) Get(ctx context.Context, id principal.ID) (Record, bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	rec, ok := r.records[id]
	return rec, ok, nil
}

func (r *FileRepository) Begin(ctx context.Context, rec Record) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, exists := r.records[rec.PrincipalID]; exists {
		return ErrRecordExists
	}
	r.records[rec.PrincipalID] = rec
	if err := r.save(); err != nil {
		delete(r.records, rec.PrincipalID)
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (r *FileRepository) Clear(ctx context.Context, id principal.ID) (Record, bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return Record{}, false, nil
	}
	delete(r.records, id)
	if err := r.save(); err != nil {
		r.records[id] = rec
		return Record{}, false, fmt.Errorf("failed to save: %w", err)
	}
	return rec, true, nil
}

func (r *FileRepository) load() error {
	data, err := os.ReadFile(filepath.Join(r.dataDir, recordsFileName))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	for _, rec := range records {
		r.records[rec.PrincipalID] = rec
	}
	return nil
}

// save writes records to file atomically
func (r *FileRepository) save() error {
	records := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		records = append(records, rec)
	}
	jsonData, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	tempFile := filepath.Join(r.dataDir, recordsFileName+".tmp")
	if err := os.WriteFile(tempFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, filepath.Join(r.dataDir, recordsFileName)); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
