package engine

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/cxd309/railsim/internal/config"
	"github.com/cxd309/railsim/internal/depot"
	"github.com/cxd309/railsim/internal/directions"
	"github.com/cxd309/railsim/internal/geometry"
	"github.com/cxd309/railsim/internal/logger"
	"github.com/cxd309/railsim/internal/pathfind"
	"github.com/cxd309/railsim/internal/rail"
	"github.com/cxd309/railsim/internal/transit"
	"github.com/cxd309/railsim/internal/vehicle"
)

// World is the context of one simulated world. Every component reaches the rail
// network, the entity store and the search queues through it. A World is not safe
// for concurrent use; drive it from a single goroutine.
type World struct {
	cfg        config.SimulationConfig
	log        logger.Logger
	network    *rail.Network
	store      *transit.Store
	queue      *pathfind.Queue
	depots     []*depot.Depot
	directions *directions.Engine
}

// NewWorld builds the network, entities and depots of a scenario and starts path
// generation for every depot. Generation runs on later ticks.
func NewWorld(input SimulationInput, cfg config.SimulationConfig, log logger.Logger) (*World, error) {
	if log == nil {
		log = logger.Nop()
	}
	if err := config.ValidateSimulation(cfg); err != nil {
		return nil, err
	}
	network, err := rail.NewNetwork(input.Rails)
	if err != nil {
		return nil, fmt.Errorf("building network: %w", err)
	}
	w := &World{
		cfg:     cfg,
		log:     log,
		network: network,
		store:   transit.NewStore(),
		queue:   pathfind.NewQueue(log),
	}
	for i := range input.Platforms {
		p := input.Platforms[i]
		if err := w.store.AddPlatform(&p); err != nil {
			return nil, err
		}
	}
	for i := range input.Routes {
		r := input.Routes[i]
		r.Platforms = slices.Clone(r.Platforms)
		if err := w.store.AddRoute(&r); err != nil {
			return nil, err
		}
	}
	w.syncStore()

	for _, d := range input.Depots {
		dep, err := depot.New(d, depot.Env{
			Network: network,
			Store:   w.store,
			Queue:   w.queue,
			Config:  cfg,
			Log:     log,
		})
		if err != nil {
			return nil, fmt.Errorf("creating depot: %w", err)
		}
		w.depots = append(w.depots, dep)
	}
	w.directions = directions.New(w.store, w.rideSources, cfg, log)
	for _, d := range w.depots {
		w.generate(d)
	}
	return w, nil
}

func (w *World) Network() *rail.Network { return w.network }
func (w *World) Store() *transit.Store { return w.store }
func (w *World) Depots() []*depot.Depot { return w.depots }
func (w *World) Directions() *directions.Engine { return w.directions }

// Depot returns the depot with the given id.
func (w *World) Depot(id string) (*depot.Depot, bool) {
	for _, d := range w.depots {
		if d.ID == id {
			return d, true
		}
	}
	return nil, false
}

// Generate restarts path generation for a depot.
func (w *World) Generate(depotID string) error {
	d, ok := w.Depot(depotID)
	if !ok {
		return fmt.Errorf("depot %q not found", depotID)
	}
	w.generate(d)
	return nil
}

func (w *World) generate(d *depot.Depot) {
	d.Generate(func(status depot.Status) {
		if status == depot.StatusAborted {
			w.log.Debug("depot generation aborted", "depot", d.ID)
			return
		}
		fields := []any{"depot", d.ID, "status", status}
		if status == depot.StatusPathNotFound {
			from, to := d.FailedPlatforms()
			fields = append(fields, "from", from, "to", to)
		}
		w.log.Info("depot generation finished", fields...)
		w.directions.Invalidate()
	})
}

// AddRail inserts a rail; adjacency is rebuilt on the next tick.
func (w *World) AddRail(d rail.Data) error {
	r, err := rail.New(d)
	if err != nil {
		return fmt.Errorf("adding rail: %w", err)
	}
	return w.network.Add(r)
}

// RemoveRail deletes a rail. On the next tick platforms on it are pruned and every
// depot drops its generated paths.
func (w *World) RemoveRail(id string) error {
	if err := w.network.Remove(id); err != nil {
		return fmt.Errorf("removing rail: %w", err)
	}
	return nil
}

// AddJourneyRequest queues a directions request.
func (w *World) AddJourneyRequest(start, end geometry.Position, startMillis int64, callback func([]directions.Segment)) {
	w.directions.AddRequest(start, end, startMillis, callback)
}

// Tick advances the world to game time now (ms), dt seconds after the previous tick.
//
// Order within a tick: sync a changed network, start a new reservation generation,
// run queued path searches, move depot vehicles, then plan journeys. Journeys wait
// while any depot is generating, since its rides are not known yet.
func (w *World) Tick(now int64, dt float64) {
	if w.network.Dirty() {
		w.sync()
	}
	w.network.TickReservations()
	w.queue.Tick(w.cfg.PathfindingBudget())
	for _, d := range w.depots {
		d.Tick(now, dt)
	}
	if !w.generating() {
		w.directions.Tick(w.cfg.DirectionsBudget())
	}
}

func (w *World) generating() bool {
	for _, d := range w.depots {
		if d.Generating() {
			return true
		}
	}
	return false
}

// sync rebuilds adjacency after rails changed. Generated depot paths may run over
// removed rails, so every depot is invalidated.
func (w *World) sync() {
	w.network.Sync()
	w.syncStore()
	for _, d := range w.depots {
		d.Invalidate()
	}
	w.directions.Invalidate()
	w.log.Info("network synced", "version", w.network.Version(), "rails", len(w.network.Rails()))
}

func (w *World) syncStore() {
	res := w.store.Sync(w.network)
	if len(res.Platforms) > 0 || res.RouteStops > 0 {
		w.log.Warn("pruned dangling references", "platforms", res.Platforms, "routeStops", res.RouteStops)
	}
}

func (w *World) rideSources() []directions.RideSource {
	out := make([]directions.RideSource, len(w.depots))
	for i, d := range w.depots {
		out[i] = d
	}
	return out
}

// Vehicles snapshots every live vehicle, depot by depot.
func (w *World) Vehicles() []vehicle.Snapshot {
	var out []vehicle.Snapshot
	for _, d := range w.depots {
		for _, v := range d.Vehicles() {
			out = append(out, v.Snapshot())
		}
	}
	return out
}

// Arrivals lists up to maxCount upcoming calls at a platform across all depots.
func (w *World) Arrivals(now int64, platformID string, maxCount int) []transit.ArrivalInfo {
	var out []transit.ArrivalInfo
	for _, d := range w.depots {
		out = append(out, d.Arrivals(now, platformID, maxCount)...)
	}
	slices.SortStableFunc(out, func(a, b transit.ArrivalInfo) int { return cmp.Compare(a.ArrivalMillis, b.ArrivalMillis) })
	if maxCount >= 0 && len(out) > maxCount {
		out = out[:maxCount]
	}
	return out
}

// DepotStatuses reports each depot's generation outcome.
func (w *World) DepotStatuses() []DepotStatus {
	out := make([]DepotStatus, len(w.depots))
	for i, d := range w.depots {
		out[i] = DepotStatus{
			ID:         d.ID,
			Status:     d.GenerationStatus(),
			Departures: len(d.Departures()),
			Vehicles:   len(d.Vehicles()),
		}
	}
	return out
}
