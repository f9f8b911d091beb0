// Package registry implements the discount registry: CRUD, code lookup, and
// validity checks over a mapping of id to discount record persisted wholesale
// under a single option key.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/commercekit/discount-registry/internal/model"
	"github.com/commercekit/discount-registry/internal/store"
)

// optionKey is the fixed key the whole registry mapping is stored under.
const optionKey = "discount_registry"

// Registry is a CRUD and validation facade over the persisted discount
// mapping. Every operation is a full-mapping load (and store, for mutations)
// against the backing option store.
//
// The mutex serializes mutations within this process only. Two processes
// sharing one backing store can interleave load-mutate-store cycles and
// silently clobber each other's updates; deployments that mutate from more
// than one process need external coordination.
type Registry struct {
	store store.OptionStore
	now   func() time.Time
	mu    sync.Mutex
}

// New creates a Registry over the given option store.
func New(s store.OptionStore) *Registry {
	return &Registry{store: s, now: time.Now}
}

// NewWithClock creates a Registry with a custom time source.
// Primarily used for testing expiry and start-date behavior.
func NewWithClock(s store.OptionStore, now func() time.Time) *Registry {
	return &Registry{store: s, now: now}
}

// Init declares the registry's option key in the backing store. Idempotent;
// call once on startup.
func (r *Registry) Init(ctx context.Context) error {
	if err := r.store.Declare(ctx, optionKey); err != nil {
		return fmt.Errorf("declare registry option: %w", err)
	}
	return nil
}

// load reads the full mapping from the store. An absent or empty option value
// is an empty registry, not an error.
func (r *Registry) load(ctx context.Context) (map[int]model.Discount, error) {
	value, found, err := r.store.Get(ctx, optionKey)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	if !found || len(value) == 0 {
		return map[int]model.Discount{}, nil
	}

	var discounts map[int]model.Discount
	if err := json.Unmarshal(value, &discounts); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	if discounts == nil {
		// A declared-but-never-written key stores JSON null.
		discounts = map[int]model.Discount{}
	}
	return discounts, nil
}

// save writes the full mapping back to the store.
func (r *Registry) save(ctx context.Context, discounts map[int]model.Discount) error {
	value, err := json.Marshal(discounts)
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := r.store.Set(ctx, optionKey, value); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	return nil
}

// GetAll returns the full id-to-discount mapping, empty if nothing has been
// persisted yet.
func (r *Registry) GetAll(ctx context.Context) (map[int]model.Discount, error) {
	return r.load(ctx)
}

// Get returns the discount stored under id.
// Returns ErrDiscountNotFound if the id is unknown.
func (r *Registry) Get(ctx context.Context, id int) (*model.Discount, error) {
	discounts, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	d, ok := discounts[id]
	if !ok {
		return nil, ErrDiscountNotFound
	}
	return &d, nil
}

// GetByCode returns the lowest id whose record's code matches, with the
// record. Duplicate codes are not prevented; scanning ids in ascending order
// keeps the first-match behavior deterministic.
// Returns ErrDiscountNotFound if no record carries the code.
func (r *Registry) GetByCode(ctx context.Context, code string) (int, *model.Discount, error) {
	discounts, err := r.load(ctx)
	if err != nil {
		return 0, nil, err
	}
	id, d := findByCode(discounts, code)
	if d == nil {
		return 0, nil, ErrDiscountNotFound
	}
	return id, d, nil
}

// Exists reports whether a discount is stored under id. Store failures
// degrade to false.
func (r *Registry) Exists(ctx context.Context, id int) bool {
	discounts, err := r.load(ctx)
	if err != nil {
		log.Error().Err(err).Int("discount_id", id).Msg("exists check failed to load registry")
		return false
	}
	_, ok := discounts[id]
	return ok
}

// Store upserts a discount. With a non-nil id that is already present the
// record is updated in place; otherwise it is appended under a fresh id
// (highest existing id + 1, starting at 1). Returns the id the record was
// stored under. Negative usage counts are normalized to zero.
func (r *Registry) Store(ctx context.Context, d model.Discount, id *int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	discounts, err := r.load(ctx)
	if err != nil {
		return 0, err
	}

	if d.Uses < 0 {
		d.Uses = 0
	}

	target := 0
	if id != nil {
		if _, ok := discounts[*id]; ok {
			target = *id
		}
	}
	if target == 0 {
		target = nextID(discounts)
	}

	discounts[target] = d
	if err := r.save(ctx, discounts); err != nil {
		return 0, err
	}
	return target, nil
}

// Remove deletes the discount stored under id. Removing an unknown id is a
// no-op, not an error.
func (r *Registry) Remove(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	discounts, err := r.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := discounts[id]; !ok {
		return nil
	}
	delete(discounts, id)
	return r.save(ctx, discounts)
}

// SetStatus updates the status of the discount stored under id. Any status
// string is accepted. Returns false if the id is unknown or persisting fails.
func (r *Registry) SetStatus(ctx context.Context, id int, status model.DiscountStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	discounts, err := r.load(ctx)
	if err != nil {
		log.Error().Err(err).Int("discount_id", id).Msg("status update failed to load registry")
		return false
	}
	d, ok := discounts[id]
	if !ok {
		return false
	}
	d.Status = status
	discounts[id] = d
	if err := r.save(ctx, discounts); err != nil {
		log.Error().Err(err).Int("discount_id", id).Msg("status update failed to persist")
		return false
	}
	return true
}

// IsActive reports whether the discount under id has active status and has
// not expired. Unknown ids are not active.
func (r *Registry) IsActive(ctx context.Context, id int) bool {
	d, err := r.Get(ctx, id)
	if err != nil {
		return false
	}
	return d.Status == model.StatusActive && !d.Expired(r.now())
}

// IsExpired reports whether the discount under id has an expiration date more
// than the grace window in the past. Unknown ids are not expired.
func (r *Registry) IsExpired(ctx context.Context, id int) bool {
	d, err := r.Get(ctx, id)
	if err != nil {
		return false
	}
	return d.Expired(r.now())
}

// HasStarted reports whether the discount under id has reached its start
// date (or has none). Unknown ids have not started.
func (r *Registry) HasStarted(ctx context.Context, id int) bool {
	d, err := r.Get(ctx, id)
	if err != nil {
		return false
	}
	return d.Started(r.now())
}

// IsMaxedOut reports whether the discount under id has reached its usage cap.
// Discounts without a cap are never maxed out.
func (r *Registry) IsMaxedOut(ctx context.Context, id int) bool {
	d, err := r.Get(ctx, id)
	if err != nil {
		return false
	}
	return d.MaxedOut()
}

// IsValid reports whether code resolves to a discount that is active, within
// its validity window, and under its usage cap. Unknown codes and store
// failures degrade to false.
func (r *Registry) IsValid(ctx context.Context, code string) bool {
	discounts, err := r.load(ctx)
	if err != nil {
		log.Error().Err(err).Str("code", code).Msg("validity check failed to load registry")
		return false
	}
	_, d := findByCode(discounts, code)
	if d == nil {
		return false
	}
	now := r.now()
	return d.Status == model.StatusActive &&
		!d.Expired(now) &&
		!d.MaxedOut() &&
		d.Started(now)
}

// ApplyDiscount returns basePrice with the code's discount applied. An
// unknown code leaves the price unchanged; callers that need to distinguish
// that case run IsValid first. The result is not clamped at zero.
func (r *Registry) ApplyDiscount(ctx context.Context, code string, basePrice float64) float64 {
	discounts, err := r.load(ctx)
	if err != nil {
		log.Error().Err(err).Str("code", code).Msg("apply failed to load registry")
		return basePrice
	}
	_, d := findByCode(discounts, code)
	if d == nil {
		return basePrice
	}
	return d.Apply(basePrice)
}

// IncrementUsage records one redemption of code and persists the new count.
// Returns the count after the increment.
// Returns ErrDiscountNotFound if the code is unknown.
func (r *Registry) IncrementUsage(ctx context.Context, code string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	discounts, err := r.load(ctx)
	if err != nil {
		return 0, err
	}
	id, d := findByCode(discounts, code)
	if d == nil {
		return 0, ErrDiscountNotFound
	}
	if d.Uses < 0 {
		d.Uses = 0
	}
	d.Uses++
	discounts[id] = *d
	if err := r.save(ctx, discounts); err != nil {
		return 0, err
	}
	return d.Uses, nil
}

// findByCode returns the lowest id whose record carries code, or (0, nil).
func findByCode(discounts map[int]model.Discount, code string) (int, *model.Discount) {
	ids := make([]int, 0, len(discounts))
	for id := range discounts {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if d := discounts[id]; d.Code == code {
			return id, &d
		}
	}
	return 0, nil
}

// nextID returns the append id for a new record: highest existing id + 1.
func nextID(discounts map[int]model.Discount) int {
	next := 1
	for id := range discounts {
		if id >= next {
			next = id + 1
		}
	}
	return next
}
