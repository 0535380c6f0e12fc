// Package spawncache implements a named-category object pooling cache: it
// stores pre-instantiated reusable entities under categories, hands them out
// on checkout, tracks active leases, and accepts returns back into
// availability.
package spawncache

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/spawnforge/spawncache/errs"
	"github.com/spawnforge/spawncache/internal/snapshot"
	"github.com/spawnforge/spawncache/lib/async"
)

const component = "pool"

// Pool owns the category table and the lease table. All operations are safe
// for concurrent use; populate completions land from worker goroutines.
type Pool struct {
	mu         sync.RWMutex
	categories map[string][]*Item
	leases     map[*Item]Lease

	cloner    Cloner
	workers   *async.Pool
	limiter   *rate.Limiter
	metrics   *Metrics
	onDiscard func(*Item)
	logger    *log.Logger
	now       func() time.Time
	closed    atomic.Bool
}

// PoolOption configures a Pool at construction time.
type PoolOption func(*poolOptions)

type poolOptions struct {
	workers    int
	queue      int
	cloneRate  float64
	cloneBurst int
	metrics    *Metrics
	onDiscard  func(*Item)
	logger     *log.Logger
	clock      func() time.Time
}

// WithWorkers sets the clone worker count and queue depth.
func WithWorkers(workers, queue int) PoolOption {
	return func(o *poolOptions) {
		if workers > 0 {
			o.workers = workers
		}
		if queue >= 0 {
			o.queue = queue
		}
	}
}

// WithCloneRate throttles clone execution to the given sustained rate and
// burst. A rate of zero leaves cloning unthrottled.
func WithCloneRate(perSecond float64, burst int) PoolOption {
	return func(o *poolOptions) {
		o.cloneRate = perSecond
		if burst > 0 {
			o.cloneBurst = burst
		}
	}
}

// WithMetrics attaches prometheus instrumentation to the pool.
func WithMetrics(m *Metrics) PoolOption {
	return func(o *poolOptions) { o.metrics = m }
}

// WithOnDiscard registers a hook invoked for every item dropped by Remove,
// letting the host release entity resources explicitly.
func WithOnDiscard(fn func(*Item)) PoolOption {
	return func(o *poolOptions) { o.onDiscard = fn }
}

// WithLogger overrides the logger used for operational warnings.
func WithLogger(logger *log.Logger) PoolOption {
	return func(o *poolOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the lease timestamp source, primarily for testing.
func WithClock(clock func() time.Time) PoolOption {
	return func(o *poolOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// New constructs a pool backed by the provided clone collaborator.
func New(cloner Cloner, opts ...PoolOption) (*Pool, error) {
	if cloner == nil {
		return nil, errs.New(component, errs.CodeInvalid, errs.WithMessage("cloner must be provided"))
	}

	options := poolOptions{
		workers:    4,
		queue:      64,
		cloneRate:  0,
		cloneBurst: 1,
		logger:     log.Default(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	workers, err := async.NewPool(options.workers, options.queue)
	if err != nil {
		return nil, err
	}

	p := new(Pool)
	p.categories = make(map[string][]*Item)
	p.leases = make(map[*Item]Lease)
	p.cloner = cloner
	p.workers = workers
	p.metrics = options.metrics
	p.onDiscard = options.onDiscard
	p.logger = options.logger
	p.now = options.clock
	if options.cloneRate > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(options.cloneRate), options.cloneBurst)
	}
	return p, nil
}

// CreateCategory registers an empty available list under name. Creating an
// existing category fails without touching its state.
func (p *Pool) CreateCategory(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errs.New(component, errs.CodeInvalid, errs.WithMessage("category name must be non-empty"))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.categories[name]; exists {
		return errs.CategoryExists(component, name)
	}
	p.categories[name] = nil
	p.metrics.setAvailable(name, 0)
	return nil
}

// Checkout removes the first available item from the category and records a
// lease held by holder. The boolean reports whether an item was available;
// an empty category is not an error.
func (p *Pool) Checkout(category, holder string) (*Item, bool, error) {
	category = strings.TrimSpace(category)
	holder = strings.TrimSpace(holder)
	if category == "" || holder == "" {
		return nil, false, errs.New(component, errs.CodeInvalid,
			errs.WithMessage("category and holder must be non-empty"))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	items, exists := p.categories[category]
	if !exists {
		return nil, false, errs.CategoryNotFound(component, category)
	}
	if len(items) == 0 {
		return nil, false, nil
	}

	item := items[0]
	p.categories[category] = items[1:]
	p.leases[item] = Lease{Category: category, Holder: holder, CheckedOutAt: p.now()}
	p.metrics.observeCheckout(category)
	p.metrics.setAvailable(category, len(p.categories[category]))
	return item, true, nil
}

// CheckoutBatch removes up to count items from the front of the category.
// Every returned item carries a lease, exactly as with single checkout.
func (p *Pool) CheckoutBatch(category, holder string, count int) ([]*Item, error) {
	category = strings.TrimSpace(category)
	holder = strings.TrimSpace(holder)
	if category == "" || holder == "" {
		return nil, errs.New(component, errs.CodeInvalid,
			errs.WithMessage("category and holder must be non-empty"))
	}
	if count < 0 {
		return nil, errs.New(component, errs.CodeInvalid,
			errs.WithMessage("count must not be negative"), errs.WithCategory(category))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	items, exists := p.categories[category]
	if !exists {
		return nil, errs.CategoryNotFound(component, category)
	}
	if count > len(items) {
		count = len(items)
	}
	if count == 0 {
		return nil, nil
	}

	checkedOut := make([]*Item, count)
	copy(checkedOut, items[:count])
	p.categories[category] = items[count:]
	at := p.now()
	for _, item := range checkedOut {
		p.leases[item] = Lease{Category: category, Holder: holder, CheckedOutAt: at}
		p.metrics.observeCheckout(category)
	}
	p.metrics.setAvailable(category, len(p.categories[category]))
	return checkedOut, nil
}

// Remove discards up to count items from the front of the category's
// available list, invoking the discard hook for each. It returns how many
// items were actually discarded; exhausting the list early is not an error.
func (p *Pool) Remove(category string, count int) (int, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return 0, errs.New(component, errs.CodeInvalid, errs.WithMessage("category name must be non-empty"))
	}
	if count <= 0 {
		return 0, errs.New(component, errs.CodeInvalid,
			errs.WithMessage("count must be positive"), errs.WithCategory(category))
	}

	p.mu.Lock()
	items, exists := p.categories[category]
	if !exists {
		p.mu.Unlock()
		return 0, errs.CategoryNotFound(component, category)
	}
	if len(items) == 0 {
		p.mu.Unlock()
		p.logger.Printf("pool: remove on empty category %q", category)
		return 0, nil
	}
	if count > len(items) {
		count = len(items)
	}
	discarded := make([]*Item, count)
	copy(discarded, items[:count])
	p.categories[category] = items[count:]
	p.metrics.setAvailable(category, len(p.categories[category]))
	p.mu.Unlock()

	// Hook runs outside the lock: it belongs to the host and may re-enter
	// the pool.
	for _, item := range discarded {
		p.metrics.observeDiscard(category)
		if p.onDiscard != nil {
			p.onDiscard(item)
		}
	}
	return count, nil
}

// Return releases a checked-out item back to the end of its origin
// category's available list.
func (p *Pool) Return(item *Item) error {
	if item == nil {
		return errs.New(component, errs.CodeInvalid, errs.WithMessage("item must not be nil"))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	lease, leased := p.leases[item]
	if !leased {
		p.logger.Printf("pool: return of item %s without an active lease", item.id)
		return errs.New(component, errs.CodeItemNotInUse, errs.WithItem(item.id.String()))
	}
	if _, exists := p.categories[lease.Category]; !exists {
		p.logger.Printf("pool: return of item %s to missing category %q", item.id, lease.Category)
		return errs.CategoryNotFound(component, lease.Category)
	}

	delete(p.leases, item)
	p.categories[lease.Category] = append(p.categories[lease.Category], item)
	p.metrics.observeReturn(lease.Category, p.now().Sub(lease.CheckedOutAt))
	p.metrics.setAvailable(lease.Category, len(p.categories[lease.Category]))
	return nil
}

// Available reports how many items the category currently has ready.
func (p *Pool) Available(category string) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	items, exists := p.categories[strings.TrimSpace(category)]
	if !exists {
		return 0, errs.CategoryNotFound(component, category)
	}
	return len(items), nil
}

// InUse reports the number of active leases across all categories.
func (p *Pool) InUse() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.leases)
}

// Categories lists registered category names in lexical order.
func (p *Pool) Categories() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.categories))
	for name := range p.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot captures the current pool state for inspection and export.
func (p *Pool) Snapshot() snapshot.State {
	p.mu.RLock()
	defer p.mu.RUnlock()

	taken := p.now()
	state := snapshot.State{TakenAt: taken}

	names := make([]string, 0, len(p.categories))
	for name := range p.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		items := p.categories[name]
		cs := snapshot.CategoryState{Name: name, Available: len(items)}
		for _, item := range items {
			cs.ItemIDs = append(cs.ItemIDs, item.id.String())
		}
		state.Categories = append(state.Categories, cs)
	}

	for item, lease := range p.leases {
		state.Leases = append(state.Leases, snapshot.LeaseState{
			ItemID:       item.id.String(),
			Category:     lease.Category,
			Holder:       lease.Holder,
			CheckedOutAt: lease.CheckedOutAt,
			Age:          taken.Sub(lease.CheckedOutAt),
		})
	}
	sort.Slice(state.Leases, func(i, j int) bool {
		return state.Leases[i].ItemID < state.Leases[j].ItemID
	})
	return state
}

// Close stops the populate workers, waiting for scheduled clones to land or
// the context to expire. Pool state remains readable after Close; only
// Populate is rejected.
func (p *Pool) Close(ctx context.Context) error {
	p.closed.Store(true)
	return p.workers.Shutdown(ctx)
}
