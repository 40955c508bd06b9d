package livetrack

import (
	"sync"

	"fleetconsole.org/livemap/internal/telemetry"
)

// RouteTable is the per-view trail of distinct positions for each vehicle.
// Only the owning view's publish step appends; readers may call in from
// HTTP handlers concurrently.
//
// Trails are unbounded: a view left mounted for days keeps every distinct
// position it has seen.
type RouteTable struct {
	mu     sync.RWMutex
	routes map[string][]telemetry.RoutePoint
}

func NewRouteTable() *RouteTable {
	return &RouteTable{routes: make(map[string][]telemetry.RoutePoint)}
}

// Append adds point to the vehicle's trail unless it sits on the same
// coordinates as the last stored point. It reports whether the point was stored.
func (t *RouteTable) Append(vehicleID string, point telemetry.RoutePoint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	route := t.routes[vehicleID]
	if n := len(route); n > 0 && route[n-1].SamePlace(point) {
		return false
	}
	t.routes[vehicleID] = append(route, point)
	return true
}

// RouteFor returns a copy of the vehicle's trail in insertion order. Unknown
// ids yield an empty, non-nil slice.
func (t *RouteTable) RouteFor(vehicleID string) []telemetry.RoutePoint {
	t.mu.RLock()
	defer t.mu.RUnlock()

	route := t.routes[vehicleID]
	out := make([]telemetry.RoutePoint, len(route))
	copy(out, route)
	return out
}

// VehicleIDs lists every vehicle with a trail, in no particular order.
func (t *RouteTable) VehicleIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.routes))
	for id := range t.routes {
		ids = append(ids, id)
	}
	return ids
}

// Points is the total number of stored points across all trails.
func (t *RouteTable) Points() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, route := range t.routes {
		n += len(route)
	}
	return n
}

func (t *RouteTable) clear() {
	t.mu.Lock()
	t.routes = make(map[string][]telemetry.RoutePoint)
	t.mu.Unlock()
}
