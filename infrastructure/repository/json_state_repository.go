package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/domain/repository"
)

// JSONStateRepository persists pipeline state in a single JSON file
type JSONStateRepository struct {
	mu   sync.Mutex
	path string
}

// NewJSONStateRepository creates a state repository. An empty path selects
// ~/.config/autoloadwatch/state.json.
func NewJSONStateRepository(path string) *JSONStateRepository {
	if path == "" {
		homeDir, _ := os.UserHomeDir()
		path = filepath.Join(homeDir, ".config", "autoloadwatch", "state.json")
	}
	return &JSONStateRepository{path: path}
}

var _ repository.StateRepository = (*JSONStateRepository)(nil)

// Path returns the state file path
func (r *JSONStateRepository) Path() string {
	return r.path
}

// Load returns the stored state. A missing file yields an empty state.
func (r *JSONStateRepository) Load() (*repository.PipelineState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Update applies fn to the current state and writes it back
func (r *JSONStateRepository) Update(fn func(state *repository.PipelineState)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.load()
	if err != nil {
		return err
	}
	fn(state)
	return r.save(state)
}

func (r *JSONStateRepository) load() (*repository.PipelineState, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return &repository.PipelineState{}, nil
	}
	if err != nil {
		return nil, domain.ErrFileOperationWithCause("read state", r.path, err)
	}

	state := &repository.PipelineState{}
	if len(data) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, domain.ErrFileOperationWithCause("parse state", r.path, err)
	}
	return state, nil
}

func (r *JSONStateRepository) save(state *repository.PipelineState) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return domain.ErrFileOperationWithCause("create state directory", filepath.Dir(r.path), err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// 一時ファイルに書き込んでからアトミックに置き換え
	tmpFile := r.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return domain.ErrFileOperationWithCause("write state", tmpFile, err)
	}
	if err := os.Rename(tmpFile, r.path); err != nil {
		_ = os.Remove(tmpFile)
		return domain.ErrFileOperationWithCause("replace state", r.path, err)
	}
	return nil
}
