package spawncache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Cloner is the outbound collaborator that duplicates a template entity.
// The pool never inspects entities; it only stores and hands out the handles
// wrapping them.
type Cloner interface {
	Clone(ctx context.Context, template any) (any, error)
}

// ClonerFunc adapts a plain function to the Cloner interface.
type ClonerFunc func(ctx context.Context, template any) (any, error)

// Clone implements Cloner.
func (f ClonerFunc) Clone(ctx context.Context, template any) (any, error) {
	return f(ctx, template)
}

// Item is the pool-owned handle for one reusable entity. Identity is pointer
// identity; the id exists for log and snapshot correlation only.
type Item struct {
	id       uuid.UUID
	category string
	entity   any
}

func newItem(category string, entity any) *Item {
	return &Item{
		id:       uuid.New(),
		category: category,
		entity:   entity,
	}
}

// ID returns the item's correlation id.
func (it *Item) ID() uuid.UUID { return it.id }

// Category returns the name of the category the item was populated into.
func (it *Item) Category() string { return it.category }

// Entity returns the opaque entity reference produced by the Cloner.
func (it *Item) Entity() any { return it.entity }

// Lease records who currently holds a checked-out item and where it came from.
type Lease struct {
	Category     string
	Holder       string
	CheckedOutAt time.Time
}
