package versions

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	lockmem "github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/adapters/lock/memory"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/adapters/storage/memory"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
)

func newManager() (*Manager, *memory.Store) {
	store := memory.NewStore()
	return NewManager(store, lockmem.NewLocker(), zap.NewNop()), store
}

func TestSnapshot_NumbersFromOne(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	v1, err := m.Snapshot(ctx, "p-1", "u-1", map[string]any{"pages": 1}, "first")
	require.NoError(t, err)
	assert.Equal(t, 1, v1.VersionNumber)
	assert.Equal(t, "u-1", v1.CreatedBy)
	assert.Equal(t, "first", v1.Changelog)

	v2, err := m.Snapshot(ctx, "p-1", "u-1", map[string]any{"pages": 2}, "")
	require.NoError(t, err)
	assert.Equal(t, 2, v2.VersionNumber)

	other, err := m.Snapshot(ctx, "p-2", "u-1", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 1, other.VersionNumber)
	assert.NotNil(t, other.DataSnapshot)

	list, err := m.List(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []int{1, 2}, []int{list[0].VersionNumber, list[1].VersionNumber})
}

func TestSnapshot_CopiesData(t *testing.T) {
	m, _ := newManager()
	data := map[string]any{"panels": []any{map[string]any{"text": "hi"}}}

	v, err := m.Snapshot(context.Background(), "p-1", "u-1", data, "")
	require.NoError(t, err)

	data["panels"].([]any)[0].(map[string]any)["text"] = "changed"
	data["new"] = true

	list, err := m.List(context.Background(), "p-1")
	require.NoError(t, err)
	stored := list[0].DataSnapshot
	assert.Equal(t, "hi", stored["panels"].([]any)[0].(map[string]any)["text"])
	assert.NotContains(t, stored, "new")
	assert.Equal(t, v.ID, list[0].ID)
}

func TestSnapshot_ConcurrentNumbersAreGapless(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	const n = 25
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := m.Snapshot(ctx, "p-1", "u-1", map[string]any{}, "")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers = append(numbers, v.VersionNumber)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Ints(numbers)
	require.Len(t, numbers, n)
	for i, got := range numbers {
		assert.Equal(t, i+1, got)
	}
}

// conflictingRepo simulates a writer that bypasses the lock
type conflictingRepo struct {
	*memory.Store
	conflicts int
}

func (r *conflictingRepo) CreateProjectVersion(ctx context.Context, v *domain.ProjectVersion) error {
	if r.conflicts > 0 {
		r.conflicts--
		return domain.ErrVersionConflict
	}
	return r.Store.CreateProjectVersion(ctx, v)
}

func TestSnapshot_RetriesConflicts(t *testing.T) {
	repo := &conflictingRepo{Store: memory.NewStore(), conflicts: 2}
	m := NewManager(repo, lockmem.NewLocker(), zap.NewNop())

	v, err := m.Snapshot(context.Background(), "p-1", "u-1", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 1, v.VersionNumber)

	repo.conflicts = conflictRetries + 1
	_, err = m.Snapshot(context.Background(), "p-1", "u-1", nil, "")
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
}

type failingLocker struct{}

func (failingLocker) Lock(ctx context.Context, key string) (func(), error) {
	return nil, errors.New("lock service down")
}

func TestSnapshot_LockFailure(t *testing.T) {
	store := memory.NewStore()
	m := NewManager(store, failingLocker{}, zap.NewNop())

	_, err := m.Snapshot(context.Background(), "p-1", "u-1", nil, "")
	require.Error(t, err)

	list, err := store.ListProjectVersions(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}
