package repository

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/domain/repository"
)

func TestJSONStateRepository_LoadMissing(t *testing.T) {
	repo := NewJSONStateRepository(filepath.Join(t.TempDir(), "nested", "state.json"))

	state, err := repo.Load()
	require.NoError(t, err)
	assert.Nil(t, state.LastSyncAt)
	assert.Empty(t, state.LastError)
}

func TestJSONStateRepository_UpdateAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	repo := NewJSONStateRepository(path)

	synced := time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Update(func(s *repository.PipelineState) {
		s.LastSyncAt = &synced
		s.JobName = "collect-metrics"
	}))
	require.NoError(t, repo.Update(func(s *repository.PipelineState) {
		s.LastError = "boom"
	}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	reloaded, err := NewJSONStateRepository(path).Load()
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastSyncAt)
	assert.True(t, synced.Equal(*reloaded.LastSyncAt))
	assert.Equal(t, "collect-metrics", reloaded.JobName)
	assert.Equal(t, "boom", reloaded.LastError)
}

func TestJSONStateRepository_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewJSONStateRepository(path).Load()
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeFileOperation))
}

func TestJSONStateRepository_ConcurrentUpdates(t *testing.T) {
	repo := NewJSONStateRepository(filepath.Join(t.TempDir(), "state.json"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.Update(func(s *repository.PipelineState) {
				s.LastRunError += "x"
			})
		}()
	}
	wg.Wait()

	state, err := repo.Load()
	require.NoError(t, err)
	assert.Equal(t, "xxxxxxxxxx", state.LastRunError)
}
