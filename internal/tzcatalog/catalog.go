// Package tzcatalog resolves free-form timezone labels to locations.
//
// Resolution is an exact database lookup followed by a case-insensitive
// substring scan over a lexicographically ordered list of zone names, so the
// same label always resolves to the same zone.
package tzcatalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrUnresolvable is returned when a label matches no zone.
var ErrUnresolvable = errors.New("unresolvable timezone")

// Loader loads a location by its exact IANA name.
type Loader func(name string) (*time.Location, error)

// OrderedCatalog is safe for concurrent use.
type OrderedCatalog struct {
	names []string
	load  Loader

	mu       sync.Mutex
	resolved map[string]*time.Location
}

// New builds a catalog over names. A nil loader means time.LoadLocation.
func New(names []string, load Loader) *OrderedCatalog {
	if load == nil {
		load = time.LoadLocation
	}

	sorted := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	return &OrderedCatalog{
		names:    sorted,
		load:     load,
		resolved: make(map[string]*time.Location),
	}
}

// NewStatic builds a catalog over a fixed list of names using time.LoadLocation.
func NewStatic(names ...string) *OrderedCatalog {
	return New(names, nil)
}

// Names returns the catalog's zone names in scan order.
func (c *OrderedCatalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Resolve maps label to a location. The exact lookup goes straight to the
// loader; on a miss the first catalog name containing label (ignoring case)
// is used.
func (c *OrderedCatalog) Resolve(label string) (*time.Location, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, fmt.Errorf("%w: empty label", ErrUnresolvable)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if loc, ok := c.resolved[label]; ok {
		return loc, nil
	}

	loc, err := c.lookup(label)
	if err != nil {
		return nil, err
	}
	c.resolved[label] = loc
	return loc, nil
}

func (c *OrderedCatalog) lookup(label string) (*time.Location, error) {
	// "Local" would silently pick up the host's zone.
	if label != "Local" {
		if loc, err := c.load(label); err == nil {
			return loc, nil
		}
	}

	needle := strings.ToLower(label)
	for _, name := range c.names {
		if !strings.Contains(strings.ToLower(name), needle) {
			continue
		}
		loc, err := c.load(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %q matched %q but it failed to load: %v", ErrUnresolvable, label, name, err)
		}
		return loc, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnresolvable, label)
}
