// Package catalog holds the normalized event collection and answers
// list/lookup queries over it.
package catalog

import (
	"errors"
	"sync"
	"time"

	"confsched/internal/model"
)

// ErrNotFound is returned by Get for an unknown event ID.
var ErrNotFound = errors.New("event not found")

// Catalog is the current event set. A refresh swaps the whole slice; the
// events themselves are never modified.
type Catalog struct {
	mu       sync.RWMutex
	events   []model.Event
	byID     map[int]int
	loadedAt time.Time
	loadErr  error
	raw      []byte
}

func New() *Catalog {
	return &Catalog{byID: make(map[int]int)}
}

// Replace installs a freshly loaded event set. raw is the primary source
// payload kept for passthrough; it may be nil.
func (c *Catalog) Replace(events []model.Event, raw []byte) {
	byID := make(map[int]int, len(events))
	for i, ev := range events {
		byID[ev.ID] = i
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = events
	c.byID = byID
	c.raw = raw
	c.loadedAt = time.Now()
	c.loadErr = nil
}

// Fail records a failed load. The catalog is left empty so callers see an
// empty list instead of stale data from a different source layout.
func (c *Catalog) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
	c.byID = make(map[int]int)
	c.raw = nil
	c.loadedAt = time.Now()
	c.loadErr = err
}

// All returns every event in catalog order.
func (c *Catalog) All() []model.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Event{}, c.events...)
}

// Get returns the event with the given ID or ErrNotFound.
func (c *Catalog) Get(id int) (model.Event, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return model.Event{}, ErrNotFound
	}
	return c.events[i], nil
}

// Filter returns events whose type is in types, in catalog order. An empty
// types list matches everything.
func (c *Catalog) Filter(types []model.EventType) []model.Event {
	all := c.All()
	if len(types) == 0 {
		return all
	}
	allowed := make(map[model.EventType]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	out := make([]model.Event, 0, len(all))
	for _, ev := range all {
		if _, ok := allowed[ev.Type]; ok {
			out = append(out, ev)
		}
	}
	return out
}

// Len returns the number of loaded events.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}

// Raw returns the primary source payload of the last successful load.
func (c *Catalog) Raw() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.raw
}

// Status reports when the catalog was last (re)loaded and the error of the
// last load, if it failed.
func (c *Catalog) Status() (time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt, c.loadErr
}
