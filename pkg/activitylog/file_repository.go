package activitylog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const logsFileName = "activity_logs.json"

// FileRepository persists entries to a JSON file in dataDir. Reads are served
// from memory; every mutation rewrites the file atomically.
type FileRepository struct {
	dataDir string
	mem     *InMemoryRepository
	mutex   sync.Mutex
}

type logsData struct {
	NextID  int64   `json:"next_id"`
	Entries []Entry `json:"entries"`
}

func NewFileRepository(dataDir string) (*FileRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	repo := &FileRepository{dataDir: dataDir, mem: NewInMemoryRepository()}
	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	return repo, nil
}

func (r *FileRepository) Insert(ctx context.Context, e Entry) (Entry, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	saved, err := r.mem.Insert(ctx, e)
	if err != nil {
		return Entry{}, err
	}
	if err := r.save(); err != nil {
		return Entry{}, fmt.Errorf("failed to save: %w", err)
	}
	return saved, nil
}

func (r *FileRepository) Find(ctx context.Context, f Filter, limit, offset int) ([]Entry, error) {
	return r.mem.Find(ctx, f, limit, offset)
}

func (r *FileRepository) Count(ctx context.Context, f Filter) (int, error) {
	return r.mem.Count(ctx, f)
}

func (r *FileRepository) DistinctEvents(ctx context.Context, limit int) ([]string, error) {
	return r.mem.DistinctEvents(ctx, limit)
}

func (r *FileRepository) Truncate(ctx context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if err := r.mem.Truncate(ctx); err != nil {
		return err
	}
	return r.save()
}

func (r *FileRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	n, err := r.mem.DeleteBefore(ctx, cutoff)
	if err != nil || n == 0 {
		return n, err
	}
	return n, r.save()
}

func (r *FileRepository) load() error {
	filePath := filepath.Join(r.dataDir, logsFileName)
	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var d logsData
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	if d.NextID < 1 {
		d.NextID = 1
	}
	r.mem.restore(d.Entries, d.NextID)
	return nil
}

// save writes entries to file atomically
func (r *FileRepository) save() error {
	entries, nextID := r.mem.snapshot()
	jsonData, err := json.MarshalIndent(logsData{NextID: nextID, Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tempFile := filepath.Join(r.dataDir, logsFileName+".tmp")
	if err := os.WriteFile(tempFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, filepath.Join(r.dataDir, logsFileName)); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
