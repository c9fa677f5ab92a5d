package policy

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Route overrides the default policy for paths matching Pattern.
type Route struct {
	Pattern  string
	Disabled bool
	Policy   Policy
}

// Snapshot is an immutable view of the process-wide policy configuration.
type Snapshot struct {
	// Enabled attaches Default to requests that match no route.
	Enabled bool
	Default Policy
	// Routes are evaluated in order, first match wins. A matching route
	// applies even when Enabled is false.
	Routes []Route

	Source   string
	Hash     string
	LoadedAt time.Time
}

// NewSnapshot validates route patterns and returns a snapshot.
func NewSnapshot(enabled bool, def Policy, routes ...Route) (*Snapshot, error) {
	for i, rt := range routes {
		if rt.Pattern == "" {
			return nil, fmt.Errorf("%w: route %d has an empty pattern", ErrInvalidOptions, i)
		}
		if !doublestar.ValidatePattern(rt.Pattern) {
			return nil, fmt.Errorf("%w: route %d has an invalid pattern %q", ErrInvalidOptions, i, rt.Pattern)
		}
	}
	return &Snapshot{
		Enabled:  enabled,
		Default:  def,
		Routes:   append([]Route(nil), routes...),
		LoadedAt: time.Now().UTC(),
	}, nil
}

// Resolve returns the policy for requestPath and whether one applies.
func (s *Snapshot) Resolve(requestPath string) (Policy, bool) {
	if s == nil {
		return Policy{}, false
	}

	cleaned := cleanPath(requestPath)
	for _, rt := range s.Routes {
		if ok, _ := doublestar.Match(rt.Pattern, cleaned); !ok {
			continue
		}
		if rt.Disabled {
			return Policy{}, false
		}
		return rt.Policy, true
	}

	if !s.Enabled {
		return Policy{}, false
	}
	return s.Default, true
}

// WithDefault returns a copy of s whose default policy is def. Routes keep
// their already-resolved policies.
func (s *Snapshot) WithDefault(def Policy) *Snapshot {
	next := *s
	next.Default = def
	next.Routes = append([]Route(nil), s.Routes...)
	next.LoadedAt = time.Now().UTC()
	return &next
}

// SnapshotView is the JSON shape of a Snapshot.
type SnapshotView struct {
	Enabled  bool        `json:"enabled"`
	Default  Options     `json:"default"`
	Routes   []RouteView `json:"routes"`
	Source   string      `json:"source,omitempty"`
	Hash     string      `json:"hash,omitempty"`
	LoadedAt time.Time   `json:"loaded_at"`
}

// RouteView is the JSON shape of a Route.
type RouteView struct {
	Pattern  string   `json:"pattern"`
	Disabled bool     `json:"disabled"`
	Policy   *Options `json:"policy,omitempty"`
}

// View returns the serializable form of s.
func (s *Snapshot) View() SnapshotView {
	routes := make([]RouteView, 0, len(s.Routes))
	for _, rt := range s.Routes {
		rv := RouteView{Pattern: rt.Pattern, Disabled: rt.Disabled}
		if !rt.Disabled {
			opts := rt.Policy.Options()
			rv.Policy = &opts
		}
		routes = append(routes, rv)
	}
	return SnapshotView{
		Enabled:  s.Enabled,
		Default:  s.Default.Options(),
		Routes:   routes,
		Source:   s.Source,
		Hash:     s.Hash,
		LoadedAt: s.LoadedAt,
	}
}

// Store holds the current Snapshot. Readers never lock; writers swap in a
// whole new Snapshot.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore creates a Store. A nil initial snapshot means policies are disabled.
func NewStore(initial *Snapshot) *Store {
	s := &Store{}
	if initial == nil {
		initial = &Snapshot{Default: Default(), LoadedAt: time.Now().UTC()}
	}
	s.current.Store(initial)
	return s
}

// Load returns the current snapshot.
func (s *Store) Load() *Snapshot {
	return s.current.Load()
}

// Swap installs next and returns the previous snapshot.
func (s *Store) Swap(next *Snapshot) *Snapshot {
	return s.current.Swap(next)
}

// Update applies fn to the current snapshot and installs the result,
// retrying if another writer swapped in between.
func (s *Store) Update(fn func(*Snapshot) (*Snapshot, error)) (*Snapshot, error) {
	for {
		prev := s.current.Load()
		next, err := fn(prev)
		if err != nil {
			return nil, err
		}
		if s.current.CompareAndSwap(prev, next) {
			return next, nil
		}
	}
}

// Resolve returns the policy for requestPath under the current snapshot.
func (s *Store) Resolve(requestPath string) (Policy, bool) {
	return s.Load().Resolve(requestPath)
}
