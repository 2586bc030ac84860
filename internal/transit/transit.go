// Package transit holds the passenger-facing entities: platforms, routes and the
// arrival records derived from generated timetables. Routes refer to platforms by id
// only; the Store owns both and prunes dangling references on sync.
package transit

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/cxd309/railsim/internal/geometry"
	"github.com/cxd309/railsim/internal/rail"
)

var (
	ErrPlatformNotFound = errors.New("platform not found")
	ErrRouteNotFound    = errors.New("route not found")
)

// Platform is a stopping place on a platform rail.
type Platform struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	Name        string `json:"name" yaml:"name"`
	RailID      string `json:"rail_id" yaml:"railId" validate:"required"`
	DwellMillis int64  `json:"dwell_millis" yaml:"dwellMillis" validate:"gte=0"`

	// set on sync
	Position geometry.Position `json:"-" yaml:"-"`
	rail     *rail.Rail
}

// Rail returns the platform rail as of the last sync.
func (p *Platform) Rail() *rail.Rail { return p.rail }

// RoutePlatform is one stop of a route. CustomDestination overrides the displayed
// destination from this stop on.
type RoutePlatform struct {
	PlatformID        string `json:"platform_id" yaml:"platformId" validate:"required"`
	CustomDestination string `json:"custom_destination,omitempty" yaml:"customDestination"`
}

// Route is an ordered list of stops.
type Route struct {
	ID        string             `json:"id" yaml:"id" validate:"required"`
	Name      string             `json:"name" yaml:"name"`
	Platforms []RoutePlatform    `json:"platforms" yaml:"platforms" validate:"dive"`
	Mode      rail.TransportMode `json:"mode,omitempty" yaml:"mode"`
	Hidden    bool               `json:"hidden,omitempty" yaml:"hidden"`

	// Durations[i] is the travel time in ms from stop i to stop i+1, filled in when a
	// depot serving the route finishes generation.
	Durations []int64 `json:"durations,omitempty" yaml:"-"`
}

// Destination is the destination shown at stop index i.
func (r *Route) Destination(i int, s *Store) string {
	for j := i; j >= 0 && j < len(r.Platforms); j-- {
		if d := r.Platforms[j].CustomDestination; d != "" {
			return d
		}
	}
	if len(r.Platforms) == 0 {
		return ""
	}
	if p, err := s.Platform(r.Platforms[len(r.Platforms)-1].PlatformID); err == nil {
		return p.Name
	}
	return ""
}

// ArrivalInfo is one scheduled call of a vehicle at a platform.
type ArrivalInfo struct {
	RouteID         string `json:"route_id"`
	RouteName       string `json:"route_name"`
	Destination     string `json:"destination"`
	PlatformID      string `json:"platform_id"`
	DepotID         string `json:"depot_id"`
	SidingID        string `json:"siding_id"`
	DepartureIndex  int    `json:"departure_index"`
	StopIndex       int    `json:"stop_index"`
	ArrivalMillis   int64  `json:"arrival"`
	DepartureMillis int64  `json:"departure"`
	Terminating     bool   `json:"terminating,omitempty"`
}

// Ride is one vehicle hop between consecutive stops. For time-independent rides the
// departure is zero and the arrival is the duration.
type Ride struct {
	RouteID         string `json:"route_id"`
	FromPlatformID  string `json:"from_platform_id"`
	ToPlatformID    string `json:"to_platform_id"`
	DepartureMillis int64  `json:"departure"`
	ArrivalMillis   int64  `json:"arrival"`
}

// Duration is the riding time in ms.
func (r Ride) Duration() int64 { return r.ArrivalMillis - r.DepartureMillis }

// StopRef identifies a stop of a generated depot path.
type StopRef struct {
	PlatformID  string `json:"platform_id"`
	RouteID     string `json:"route_id"`
	Destination string `json:"destination"`
}

// VehiclePlatformRouteInfo describes the stops around a vehicle's current stop.
// Missing neighbours are nil.
type VehiclePlatformRouteInfo struct {
	Previous *StopRef `json:"previous,omitempty"`
	This     *StopRef `json:"this,omitempty"`
	Next     *StopRef `json:"next,omitempty"`
}

// Store is the arena of platforms and routes keyed by id.
type Store struct {
	platforms map[string]*Platform
	routes    map[string]*Route
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{platforms: make(map[string]*Platform), routes: make(map[string]*Route)}
}

// AddPlatform inserts p. Returns an error if its id is taken.
func (s *Store) AddPlatform(p *Platform) error {
	if _, exists := s.platforms[p.ID]; exists {
		return fmt.Errorf("platform %q already exists", p.ID)
	}
	s.platforms[p.ID] = p
	return nil
}

// AddRoute inserts r. Returns an error if its id is taken.
func (s *Store) AddRoute(r *Route) error {
	if _, exists := s.routes[r.ID]; exists {
		return fmt.Errorf("route %q already exists", r.ID)
	}
	s.routes[r.ID] = r
	return nil
}

// RemovePlatform deletes a platform. Routes keep their stale stops until the next
// Sync.
func (s *Store) RemovePlatform(id string) error {
	if _, ok := s.platforms[id]; !ok {
		return fmt.Errorf("%w: %q", ErrPlatformNotFound, id)
	}
	delete(s.platforms, id)
	return nil
}

// Platform looks up a platform by id.
func (s *Store) Platform(id string) (*Platform, error) {
	p, ok := s.platforms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPlatformNotFound, id)
	}
	return p, nil
}

// Route looks up a route by id.
func (s *Store) Route(id string) (*Route, error) {
	r, ok := s.routes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRouteNotFound, id)
	}
	return r, nil
}

// Platforms returns every platform ordered by id.
func (s *Store) Platforms() []*Platform {
	out := make([]*Platform, 0, len(s.platforms))
	for _, id := range slices.Sorted(maps.Keys(s.platforms)) {
		out = append(out, s.platforms[id])
	}
	return out
}

// Routes returns every route ordered by id.
func (s *Store) Routes() []*Route {
	out := make([]*Route, 0, len(s.routes))
	for _, id := range slices.Sorted(maps.Keys(s.routes)) {
		out = append(out, s.routes[id])
	}
	return out
}

// SyncResult counts what a Sync removed.
type SyncResult struct {
	Platforms  []string
	RouteStops int
}

// Sync binds platforms to their rails and prunes references that no longer
// resolve: platforms whose rail is gone, then route stops naming missing platforms.
func (s *Store) Sync(network *rail.Network) SyncResult {
	var res SyncResult
	for _, p := range s.Platforms() {
		r, err := network.Rail(p.RailID)
		if err != nil {
			delete(s.platforms, p.ID)
			res.Platforms = append(res.Platforms, p.ID)
			continue
		}
		p.rail = r
		p.Position = r.Geometry().PositionAt(r.Length()/2, false).Round()
	}
	for _, r := range s.routes {
		before := len(r.Platforms)
		r.Platforms = slices.DeleteFunc(r.Platforms, func(rp RoutePlatform) bool {
			_, ok := s.platforms[rp.PlatformID]
			return !ok
		})
		if removed := before - len(r.Platforms); removed > 0 {
			res.RouteStops += removed
			r.Durations = nil
		}
	}
	return res
}
