package livetrack

import (
	"sync"
	"time"

	"fleetconsole.org/livemap/internal/telemetry"
)

// Update is what a view hands its listener after each accepted cycle.
type Update struct {
	ViewID   string
	Seq      uint64
	At       time.Time
	Vehicles []telemetry.Vehicle
	Routes   *RouteTable
}

// Listener receives updates serially. It runs while the poll handle is
// locked, so it must not unmount its own view synchronously.
type Listener func(Update)

// View is one mounted map: its latest vehicle set, its route table and the
// poll loop that feeds them. All three live exactly as long as the mount.
type View struct {
	id       string
	routes   *RouteTable
	listener Listener
	handle   *Handle
	mounted  time.Time

	mu        sync.RWMutex
	vehicles  []telemetry.Vehicle
	seq       uint64
	updatedAt time.Time
}

func newView(id string, listener Listener) *View {
	return &View{
		id:       id,
		routes:   NewRouteTable(),
		listener: listener,
		mounted:  time.Now(),
		vehicles: []telemetry.Vehicle{},
	}
}

// publish replaces the rendered set wholesale and extends the trails.
func (v *View) publish(seq uint64, vehicles []telemetry.Vehicle) {
	now := time.Now()

	v.mu.Lock()
	v.vehicles = vehicles
	v.seq = seq
	v.updatedAt = now
	v.mu.Unlock()

	for _, vehicle := range vehicles {
		v.routes.Append(vehicle.ID, vehicle.Point())
	}

	if v.listener != nil {
		v.listener(Update{
			ViewID:   v.id,
			Seq:      seq,
			At:       now,
			Vehicles: vehicles,
			Routes:   v.routes,
		})
	}
}

func (v *View) ID() string { return v.id }

func (v *View) MountedAt() time.Time { return v.mounted }

func (v *View) Routes() *RouteTable { return v.routes }

// Vehicles returns a copy of the most recently published collection.
func (v *View) Vehicles() []telemetry.Vehicle {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]telemetry.Vehicle, len(v.vehicles))
	copy(out, v.vehicles)
	return out
}

// Vehicle looks up one vehicle in the latest collection.
func (v *View) Vehicle(id string) (telemetry.Vehicle, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, vehicle := range v.vehicles {
		if vehicle.ID == id {
			return vehicle, true
		}
	}
	return telemetry.Vehicle{}, false
}

// Seq is the sequence number of the rendered collection; zero before the
// first cycle lands.
func (v *View) Seq() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.seq
}

func (v *View) UpdatedAt() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.updatedAt
}

// Stale counts cycles whose results arrived after a newer cycle's.
func (v *View) Stale() uint64 {
	if v.handle == nil {
		return 0
	}
	return v.handle.Stale()
}
