package category

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_storefront/internal/domain"
)

type mockSource struct {
	m       sync.Mutex
	records []domain.Category
	err     error
	calls   int32
}

func (s *mockSource) ListCategories(context.Context) ([]domain.Category, error) {
	s.m.Lock()
	defer s.m.Unlock()
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func (s *mockSource) callCount() int32 {
	return atomic.LoadInt32(&s.calls)
}

func TestCache_ServesCachedForestWithinTTL(t *testing.T) {
	source := &mockSource{records: []domain.Category{{ID: 1, Name: "Root"}}}
	cache := NewCache(source, time.Minute)
	ctx := context.Background()

	first, err := cache.Forest(ctx)
	require.NoError(t, err)
	second, err := cache.Forest(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(1), source.callCount())
	assert.Equal(t, first, second)
}

func TestCache_RebuildsAfterInvalidate(t *testing.T) {
	source := &mockSource{records: []domain.Category{{ID: 1, Name: "Root"}}}
	cache := NewCache(source, time.Minute)
	ctx := context.Background()

	_, err := cache.Forest(ctx)
	require.NoError(t, err)

	source.m.Lock()
	source.records = []domain.Category{{ID: 1, Name: "Renamed"}}
	source.m.Unlock()
	cache.Invalidate()

	forest, err := cache.Forest(ctx)
	require.NoError(t, err)
	require.Len(t, forest, 1)
	assert.Equal(t, "Renamed", forest[0].Name)
	assert.Equal(t, int32(2), source.callCount())
}

func TestCache_ConcurrentReadersShareOneBuild(t *testing.T) {
	source := &mockSource{records: []domain.Category{{ID: 1, Name: "Root"}}}
	cache := NewCache(source, time.Minute)
	ctx := context.Background()

	const readers = 25
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Forest(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), source.callCount())
}

func TestCache_ServesStaleForestWhenSourceFails(t *testing.T) {
	source := &mockSource{records: []domain.Category{{ID: 1, Name: "Root"}}}
	cache := NewCache(source, 10*time.Millisecond)
	ctx := context.Background()

	_, err := cache.Forest(ctx)
	require.NoError(t, err)

	source.m.Lock()
	source.err = errors.New("catalog down")
	source.m.Unlock()
	time.Sleep(20 * time.Millisecond)

	// The expired forest is still better than no navigation at all.
	forest, err := cache.Forest(ctx)
	require.NoError(t, err)
	require.Len(t, forest, 1)
	assert.Equal(t, "Root", forest[0].Name)
}

func TestCache_ErrorWithoutCachedForest(t *testing.T) {
	source := &mockSource{err: errors.New("catalog down")}
	cache := NewCache(source, time.Minute)

	forest, err := cache.Forest(context.Background())
	assert.Error(t, err)
	assert.Nil(t, forest)
}
