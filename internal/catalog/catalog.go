package catalog

import (
	"strings"
	"sync/atomic"

	"github.com/mbs-billing-assistant/internal/domain"
)

// Catalog is an immutable, indexed snapshot of the MBS schedule. It is built
// once by the Loader and shared read-only across requests; a schedule update
// produces a whole new Catalog published through Store.Swap.
type Catalog struct {
	version    string
	items      []*domain.CodeDefinition
	byItem     map[string]*domain.CodeDefinition
	byCategory map[domain.Category][]*domain.CodeDefinition
}

// Item returns the definition for an item number.
func (c *Catalog) Item(itemNumber string) (*domain.CodeDefinition, bool) {
	item, ok := c.byItem[itemNumber]
	return item, ok
}

// ItemsByCategory returns all items of a category in load order.
func (c *Catalog) ItemsByCategory(category domain.Category) []*domain.CodeDefinition {
	return c.byCategory[category]
}

// Items returns all items in load order.
func (c *Catalog) Items() []*domain.CodeDefinition {
	return c.items
}

// Version identifies the snapshot, for cache keys and logging.
func (c *Catalog) Version() string {
	return c.version
}

// Len returns the number of items in the catalog.
func (c *Catalog) Len() int {
	return len(c.items)
}

// Search returns items filtered by category and by a case-insensitive needle
// matched against the item number and description. Empty filters match all.
func (c *Catalog) Search(category domain.Category, needle string) []*domain.CodeDefinition {
	needle = strings.ToLower(needle)

	var out []*domain.CodeDefinition
	for _, item := range c.items {
		if category != "" && item.Category != category {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(item.Description), needle) &&
			!strings.Contains(strings.ToLower(item.ItemNumber), needle) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Store holds the current catalog snapshot. Reads are lock-free; a reload
// swaps the whole pointer so in-flight requests observe either the old or the
// new schedule in full.
type Store struct {
	current atomic.Pointer[Catalog]
}

// NewStore creates a store publishing the given initial snapshot.
func NewStore(initial *Catalog) *Store {
	s := &Store{}
	s.current.Store(initial)
	return s
}

// Snapshot returns the currently published catalog.
func (s *Store) Snapshot() *Catalog {
	return s.current.Load()
}

// Swap publishes a new catalog snapshot.
func (s *Store) Swap(next *Catalog) {
	s.current.Store(next)
}
