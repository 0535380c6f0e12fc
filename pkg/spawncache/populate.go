package spawncache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spawnforge/spawncache/errs"
)

// Ticket tracks one Populate call. Clones land asynchronously; Wait blocks
// until every scheduled clone has either landed in the category or failed.
type Ticket struct {
	mu      sync.Mutex
	pending int
	added   int
	errors  []error
	done    chan struct{}
}

func newTicket(total int) *Ticket {
	t := &Ticket{
		pending: total,
		done:    make(chan struct{}),
	}
	if total <= 0 {
		close(t.done)
	}
	return t
}

func (t *Ticket) complete(err error) {
	t.mu.Lock()
	if err != nil {
		t.errors = append(t.errors, err)
	} else {
		t.added++
	}
	t.pending--
	finished := t.pending == 0
	t.mu.Unlock()
	if finished {
		close(t.done)
	}
}

// Wait blocks until all scheduled clones have completed or ctx is done. It
// returns the joined clone failures, if any.
func (t *Ticket) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("populate wait: %w", ctx.Err())
	case <-t.done:
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return errors.Join(t.errors...)
}

// Added reports how many clones have landed so far.
func (t *Ticket) Added() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.added
}

// Populate schedules count clones of template for the category and returns a
// ticket. Clones land in the available list as they complete; callers that do
// not wait on the ticket must tolerate Checkout finding nothing yet. Clone
// failures are not retried and surface only through the ticket.
func (p *Pool) Populate(ctx context.Context, category string, template any, count int) (*Ticket, error) {
	if p.closed.Load() {
		return nil, errs.New(component, errs.CodeUnavailable, errs.WithMessage("pool is closed"))
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, errs.New(component, errs.CodeInvalid, errs.WithMessage("category name must be non-empty"))
	}
	if template == nil {
		return nil, errs.New(component, errs.CodeInvalid,
			errs.WithMessage("template must not be nil"), errs.WithCategory(category))
	}
	if count < 0 {
		return nil, errs.New(component, errs.CodeInvalid,
			errs.WithMessage("count must not be negative"), errs.WithCategory(category))
	}

	p.mu.RLock()
	_, exists := p.categories[category]
	p.mu.RUnlock()
	if !exists {
		return nil, errs.CategoryNotFound(component, category)
	}

	ticket := newTicket(count)
	for i := 0; i < count; i++ {
		if err := p.workers.Submit(ctx, func(taskCtx context.Context) error {
			ticket.complete(p.cloneOne(taskCtx, category, template))
			return nil
		}); err != nil {
			ticket.complete(fmt.Errorf("schedule clone for %q: %w", category, err))
		}
	}
	return ticket, nil
}

func (p *Pool) cloneOne(ctx context.Context, category string, template any) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			p.metrics.observeClone(category, false)
			return fmt.Errorf("clone throttle: %w", err)
		}
	}

	entity, err := p.cloner.Clone(ctx, template)
	if err != nil {
		p.metrics.observeClone(category, false)
		return errs.New("populate", errs.CodeCloneFailed,
			errs.WithCategory(category), errs.WithCause(err))
	}

	item := newItem(category, entity)
	p.mu.Lock()
	if _, exists := p.categories[category]; !exists {
		p.mu.Unlock()
		p.metrics.observeClone(category, false)
		return errs.CategoryNotFound("populate", category)
	}
	p.categories[category] = append(p.categories[category], item)
	p.metrics.setAvailable(category, len(p.categories[category]))
	p.mu.Unlock()
	p.metrics.observeClone(category, true)
	return nil
}
