package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/kv"
)

// Catalog is the product lookup the store needs to backfill missing
// snapshots. Consumers define this interface, not the sqlite implementation.
type Catalog interface {
	FetchProduct(ctx context.Context, productID int64) (*domain.Product, error)
	FetchVariant(ctx context.Context, productID, variantID int64) (*domain.Variant, error)
}

// RemoteCart mirrors local mutations to the commerce backend's cart.
// Every call is best-effort: failures are logged and never rolled back.
type RemoteCart interface {
	AddItem(ctx context.Context, customerID string, productID int64, quantity int, variantID int64) error
	UpdateItem(ctx context.Context, customerID, lineKey string, quantity int) error
	RemoveItem(ctx context.Context, customerID, lineKey string) error
	Clear(ctx context.Context, customerID string) error
}

const (
	// MirrorTimeout bounds each fire-and-forget background call, both
	// remote mirroring and snapshot healing.
	MirrorTimeout = 5 * time.Second

	// SnapshotMaxAge is how old a cached snapshot may get before
	// ReconcileSnapshots refreshes it from the catalog.
	SnapshotMaxAge = 15 * time.Minute
)

// Store is the single source of truth for one session's cart: the quantity
// map, the snapshot cache that prices it, write-through persistence of both,
// and best-effort mirroring to the remote cart.
//
// The in-memory state is authoritative. Persistence and mirror failures are
// logged and never surfaced to the caller.
type Store struct {
	sessionID string

	mu        sync.Mutex
	guestID   string
	lines     map[domain.LineKey]int
	snapshots map[domain.LineKey]domain.LineSnapshot

	kv      kv.Store
	catalog Catalog
	remote  RemoteCart

	wg sync.WaitGroup // in-flight mirror and heal calls
}

func NewStore(sessionID string, kvs kv.Store, catalog Catalog, remote RemoteCart) *Store {
	return &Store{
		sessionID: sessionID,
		lines:     make(map[domain.LineKey]int),
		snapshots: make(map[domain.LineKey]domain.LineSnapshot),
		kv:        kvs,
		catalog:   catalog,
		remote:    remote,
	}
}

func (s *Store) linesKey() string     { return "cart:" + s.sessionID + ":lines" }
func (s *Store) snapshotsKey() string { return "cart:" + s.sessionID + ":snapshots" }
func (s *Store) guestKey() string     { return "cart:" + s.sessionID + ":guest" }

// Load populates the store from durable storage. Corrupt or unreadable
// state degrades to an empty cart rather than failing: the cart must stay
// usable even when storage is misbehaving.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if raw, err := s.kv.Get(ctx, s.linesKey()); err == nil {
		var stored map[string]int
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			log.Printf("cart %s: discarding corrupt quantity map: %v", s.sessionID, err)
		} else {
			for k, qty := range stored {
				key, err := domain.ParseLineKey(k)
				if err != nil || qty <= 0 {
					log.Printf("cart %s: dropping invalid stored line %q (qty %d)", s.sessionID, k, qty)
					continue
				}
				s.lines[key] = qty
			}
		}
	} else if !errors.Is(err, kv.ErrNotFound) {
		log.Printf("cart %s: failed to load quantity map: %v", s.sessionID, err)
	}

	if raw, err := s.kv.Get(ctx, s.snapshotsKey()); err == nil {
		var stored map[string]domain.LineSnapshot
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			log.Printf("cart %s: discarding corrupt snapshot cache: %v", s.sessionID, err)
		} else {
			for k, snap := range stored {
				key, err := domain.ParseLineKey(k)
				if err != nil {
					continue
				}
				// Only keep snapshots for lines that still exist.
				if _, ok := s.lines[key]; ok {
					s.snapshots[key] = snap
				}
			}
		}
	} else if !errors.Is(err, kv.ErrNotFound) {
		log.Printf("cart %s: failed to load snapshot cache: %v", s.sessionID, err)
	}

	s.loadOrCreateGuestID(ctx)
}

// loadOrCreateGuestID restores the persisted guest identifier used for
// remote mirroring, generating it once if absent. Caller holds s.mu.
func (s *Store) loadOrCreateGuestID(ctx context.Context) {
	if id, err := s.kv.Get(ctx, s.guestKey()); err == nil {
		s.guestID = id
		return
	} else if !errors.Is(err, kv.ErrNotFound) {
		log.Printf("cart %s: failed to load guest id: %v", s.sessionID, err)
	}

	s.guestID = uuid.NewString()
	if err := s.kv.Set(ctx, s.guestKey(), s.guestID); err != nil {
		log.Printf("cart %s: failed to persist guest id: %v", s.sessionID, err)
	}
}

// AddLine validates and adds one unit of (product, optional variant) to the
// cart, caching the supplied snapshot data. A nil product snapshot is a hard
// local failure: a line without pricing data cannot be rendered.
func (s *Store) AddLine(ctx context.Context, productID, variantID int64, prod *domain.ProductSnapshot, variant *domain.VariantSnapshot) error {
	if prod == nil {
		return reject(ErrProductUnavailable, "this product is currently unavailable")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.LineKey{ProductID: productID, VariantID: variantID}
	newQty := s.lines[key] + 1

	if err := validate(prod, variantID != 0, newQty); err != nil {
		return err
	}

	s.lines[key] = newQty
	s.snapshots[key] = domain.LineSnapshot{
		Product:    *prod,
		Variant:    variant,
		CapturedAt: time.Now(),
	}
	s.persist(ctx)

	s.mirror("add", func(ctx context.Context, customerID string) error {
		return s.remote.AddItem(ctx, customerID, productID, newQty, variantID)
	})
	return nil
}

// SetQuantity sets a line's quantity. Zero removes the line and its
// snapshot; an increase re-runs the validation policy against the cached
// snapshot before applying.
func (s *Store) SetQuantity(ctx context.Context, productID, variantID int64, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("quantity must not be negative, got %d", quantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.LineKey{ProductID: productID, VariantID: variantID}
	current := s.lines[key]

	if quantity == 0 {
		if current == 0 {
			return nil
		}
		delete(s.lines, key)
		delete(s.snapshots, key)
		s.persist(ctx)

		s.mirror("remove", func(ctx context.Context, customerID string) error {
			return s.remote.RemoveItem(ctx, customerID, key.String())
		})
		return nil
	}

	if quantity > current {
		if snap, ok := s.snapshots[key]; ok {
			if err := validate(&snap.Product, snap.Variant != nil || variantID != 0, quantity); err != nil {
				return err
			}
		}
	}

	s.lines[key] = quantity
	s.persist(ctx)

	// A line created here has no snapshot yet and would price at zero
	// until one is fetched.
	if _, ok := s.snapshots[key]; !ok {
		s.heal()
	}

	s.mirror("update", func(ctx context.Context, customerID string) error {
		return s.remote.UpdateItem(ctx, customerID, key.String(), quantity)
	})
	return nil
}

// Count returns the sum of all line quantities.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, qty := range s.lines {
		total += qty
	}
	return total
}

// Total returns the cart total, truncated to 2 decimal places: the sum over
// all lines of effective unit price times quantity. Lines without a snapshot
// contribute nothing until ReconcileSnapshots heals them.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for key, qty := range s.lines {
		snap, ok := s.snapshots[key]
		if !ok {
			continue
		}
		total = total.Add(snap.UnitPrice().Mul(decimal.NewFromInt(int64(qty))))
	}
	return total.Truncate(2)
}

// Lines returns the cart contents ordered by line key.
func (s *Store) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]domain.CartLine, 0, len(s.lines))
	for key, qty := range s.lines {
		lines = append(lines, domain.CartLine{Key: key, Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Key.ProductID != lines[j].Key.ProductID {
			return lines[i].Key.ProductID < lines[j].Key.ProductID
		}
		return lines[i].Key.VariantID < lines[j].Key.VariantID
	})
	return lines
}

// SnapshotFor returns the cached snapshot for a line, if present.
func (s *Store) SnapshotFor(key domain.LineKey) (domain.LineSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[key]
	return snap, ok
}

// Clear empties the cart and wipes its persisted state. The guest
// identifier survives: it is generated once per session.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = make(map[domain.LineKey]int)
	s.snapshots = make(map[domain.LineKey]domain.LineSnapshot)

	if err := s.kv.Delete(ctx, s.linesKey()); err != nil {
		log.Printf("cart %s: failed to wipe quantity map: %v", s.sessionID, err)
	}
	if err := s.kv.Delete(ctx, s.snapshotsKey()); err != nil {
		log.Printf("cart %s: failed to wipe snapshot cache: %v", s.sessionID, err)
	}

	s.mirror("clear", func(ctx context.Context, customerID string) error {
		return s.remote.Clear(ctx, customerID)
	})
	return nil
}

// ReconcileSnapshots backfills snapshots for lines that lack one and
// refreshes snapshots older than SnapshotMaxAge. It never replaces a
// snapshot that changed while the catalog fetch was in flight, so a
// concurrent AddLine always wins.
func (s *Store) ReconcileSnapshots(ctx context.Context) error {
	type target struct {
		key  domain.LineKey
		seen time.Time // zero when the snapshot was missing
	}

	s.mu.Lock()
	var targets []target
	for key := range s.lines {
		snap, ok := s.snapshots[key]
		if !ok {
			targets = append(targets, target{key: key})
			continue
		}
		if time.Since(snap.CapturedAt) > SnapshotMaxAge {
			targets = append(targets, target{key: key, seen: snap.CapturedAt})
		}
	}
	s.mu.Unlock()

	if len(targets) == 0 {
		return nil
	}

	var errs []error
	healed := false
	for _, tgt := range targets {
		snap, err := s.fetchSnapshot(ctx, tgt.key)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %s: %w", tgt.key, err))
			continue
		}

		s.mu.Lock()
		if _, stillThere := s.lines[tgt.key]; stillThere {
			existing, ok := s.snapshots[tgt.key]
			// Fill a missing snapshot, or refresh one that is untouched
			// since we inspected it.
			if !ok && tgt.seen.IsZero() || ok && existing.CapturedAt.Equal(tgt.seen) {
				s.snapshots[tgt.key] = snap
				healed = true
			}
		}
		s.mu.Unlock()
	}

	if healed {
		s.mu.Lock()
		s.persist(ctx)
		s.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (s *Store) fetchSnapshot(ctx context.Context, key domain.LineKey) (domain.LineSnapshot, error) {
	prod, err := s.catalog.FetchProduct(ctx, key.ProductID)
	if err != nil {
		return domain.LineSnapshot{}, err
	}

	snap := domain.LineSnapshot{
		Product:    prod.Snapshot(),
		CapturedAt: time.Now(),
	}
	if key.VariantID != 0 {
		variant, err := s.catalog.FetchVariant(ctx, key.ProductID, key.VariantID)
		if err != nil {
			return domain.LineSnapshot{}, err
		}
		vs := variant.Snapshot()
		snap.Variant = &vs
	}
	return snap, nil
}

// Close waits for in-flight mirror and heal calls to finish.
func (s *Store) Close() {
	s.wg.Wait()
}

// validate applies the quantity-increase policy. requested is the total
// quantity the line would hold after the mutation.
func validate(prod *domain.ProductSnapshot, hasVariant bool, requested int) error {
	if prod.RequiresVariant && !hasVariant {
		return reject(ErrVariantRequired, "please choose an option before adding this product")
	}
	if prod.StockStatus == domain.StockOutOfStock {
		return reject(ErrOutOfStock, fmt.Sprintf("%s is out of stock", prod.Name))
	}
	if prod.StockManaged && requested > prod.StockQuantity {
		return reject(ErrInsufficientStock,
			fmt.Sprintf("only %d of %s available", prod.StockQuantity, prod.Name))
	}
	return nil
}

// persist writes the full quantity map, then the full snapshot cache,
// through to durable storage. Failures are logged: the in-memory state
// stays authoritative and the next load reconciles any divergence.
// Caller holds s.mu.
func (s *Store) persist(ctx context.Context) {
	lines := make(map[string]int, len(s.lines))
	for key, qty := range s.lines {
		lines[key.String()] = qty
	}
	data, err := json.Marshal(lines)
	if err != nil {
		log.Printf("cart %s: failed to marshal quantity map: %v", s.sessionID, err)
	} else if err := s.kv.Set(ctx, s.linesKey(), string(data)); err != nil {
		log.Printf("cart %s: failed to persist quantity map: %v", s.sessionID, err)
	}

	snapshots := make(map[string]domain.LineSnapshot, len(s.snapshots))
	for key, snap := range s.snapshots {
		snapshots[key.String()] = snap
	}
	data, err = json.Marshal(snapshots)
	if err != nil {
		log.Printf("cart %s: failed to marshal snapshot cache: %v", s.sessionID, err)
	} else if err := s.kv.Set(ctx, s.snapshotsKey(), string(data)); err != nil {
		log.Printf("cart %s: failed to persist snapshot cache: %v", s.sessionID, err)
	}
}

// heal dispatches a snapshot reconcile without blocking the caller, for
// mutations that leave a line without pricing data. Caller holds s.mu.
func (s *Store) heal() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), MirrorTimeout)
		defer cancel()
		if err := s.ReconcileSnapshots(ctx); err != nil {
			log.Printf("cart %s: snapshot reconcile: %v", s.sessionID, err)
		}
	}()
}

// mirror dispatches a best-effort remote cart call without blocking the
// caller. The result is only ever logged. Caller holds s.mu.
func (s *Store) mirror(op string, call func(ctx context.Context, customerID string) error) {
	if s.remote == nil {
		return
	}
	customerID := s.guestID

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), MirrorTimeout)
		defer cancel()
		if err := call(ctx, customerID); err != nil {
			log.Printf("cart %s: remote %s failed: %v", s.sessionID, op, err)
		}
	}()
}
