package cart

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/fjod/go_storefront/internal/kv"
)

// Manager hands out one Store per guest session, loading persisted state
// and healing missing snapshots on first access.
type Manager struct {
	kv      kv.Store
	catalog Catalog
	remote  RemoteCart

	mu     sync.Mutex
	stores map[string]*Store
	sfg    singleflight.Group // collapses concurrent first loads per session
}

func NewManager(kvs kv.Store, catalog Catalog, remote RemoteCart) *Manager {
	return &Manager{
		kv:      kvs,
		catalog: catalog,
		remote:  remote,
		stores:  make(map[string]*Store),
	}
}

// Store returns the session's cart store, loading it on first access.
// Concurrent requests for the same fresh session share one load.
func (m *Manager) Store(ctx context.Context, sessionID string) *Store {
	m.mu.Lock()
	if s, ok := m.stores[sessionID]; ok {
		m.mu.Unlock()
		return s
	}
	m.mu.Unlock()

	v, _, _ := m.sfg.Do(sessionID, func() (interface{}, error) {
		s := NewStore(sessionID, m.kv, m.catalog, m.remote)
		s.Load(ctx)
		if err := s.ReconcileSnapshots(ctx); err != nil {
			log.Printf("cart %s: snapshot reconcile after load: %v", sessionID, err)
		}

		m.mu.Lock()
		m.stores[sessionID] = s
		m.mu.Unlock()
		return s, nil
	})

	return v.(*Store)
}

// ClearSession empties a session's cart whether or not it is currently
// loaded. Used when an order for the session completes.
func (m *Manager) ClearSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	s, loaded := m.stores[sessionID]
	m.mu.Unlock()

	if loaded {
		return s.Clear(ctx)
	}

	// Not in memory: wipe the persisted state directly.
	s = NewStore(sessionID, m.kv, m.catalog, m.remote)
	if err := m.kv.Delete(ctx, s.linesKey()); err != nil {
		return err
	}
	return m.kv.Delete(ctx, s.snapshotsKey())
}

// Close waits for every loaded store's in-flight mirror calls.
func (m *Manager) Close() {
	m.mu.Lock()
	stores := make([]*Store, 0, len(m.stores))
	for _, s := range m.stores {
		stores = append(stores, s)
	}
	m.mu.Unlock()

	for _, s := range stores {
		s.Close()
	}
}
