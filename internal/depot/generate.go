package depot

import (
	"slices"

	"github.com/cxd309/railsim/internal/pathfind"
	"github.com/cxd309/railsim/internal/rail"
	"github.com/cxd309/railsim/internal/vehicle"
)

// generation is one in-flight run of Generate. Stop pairs are searched one after the
// other because each search starts in the direction the previous one arrived in.
type generation struct {
	stops      []stop
	sidings    []int
	onComplete func(Status)

	main     rail.Path
	stopAt   []int
	closing  rail.Path
	toFirst  map[int]rail.Path
	fromLast map[int]rail.Path
	pending  int
}

// Generate rebuilds the path through every stop of the depot's routes and then the
// sidings' paths and departures. Searches run on the world's finder queue, so the
// outcome arrives through onComplete on a later tick. A generation already in flight
// is aborted first and its callback receives StatusAborted.
func (d *Depot) Generate(onComplete func(Status)) {
	d.abort()
	d.reset()
	d.status = StatusNone

	g := &generation{
		onComplete: onComplete,
		toFirst:    make(map[int]rail.Path),
		fromLast:   make(map[int]rail.Path),
	}
	d.gen = g
	for i, s := range d.sidings {
		if r, err := d.env.Network.Rail(s.RailID); err == nil && r.IsValid() {
			g.sidings = append(g.sidings, i)
		}
	}
	if len(g.sidings) == 0 {
		d.complete(g, StatusNoSidings)
		return
	}
	g.stops = d.resolveStops()
	if len(g.stops) < 2 {
		d.complete(g, StatusTwoPlatformsRequired)
		return
	}
	d.log.Info("generating depot path", "stops", len(g.stops), "sidings", len(g.sidings))
	d.findPair(g, 0)
}

// resolveStops flattens the depot's routes into platform calls, skipping platforms
// that are unknown or unbound and merging consecutive calls at the same platform.
func (d *Depot) resolveStops() []stop {
	var stops []stop
	for _, id := range d.RouteIDs {
		r, err := d.env.Store.Route(id)
		if err != nil {
			d.log.Warn("depot route missing", "route", id)
			continue
		}
		for j, rp := range r.Platforms {
			p, err := d.env.Store.Platform(rp.PlatformID)
			if err != nil || p.Rail() == nil {
				continue
			}
			ref := routeRef{route: r, index: j}
			if n := len(stops); n > 0 && stops[n-1].platform == p {
				stops[n-1].refs = append(stops[n-1].refs, ref)
				continue
			}
			stops = append(stops, stop{platform: p, refs: []routeRef{ref}})
		}
	}
	return stops
}

func (d *Depot) options() pathfind.Options {
	return pathfind.Options{
		Mode:        d.Mode,
		RemoteSpeed: d.env.Config.RemoteConnectionSpeed,
		MaxTurnArc:  d.env.Config.MaxTurnArcLength,
	}
}

// findPair queues the search from stop i to the next one. Pair len(stops)-1 is the
// closing pair of a looping depot, back to the first stop.
func (d *Depot) findPair(g *generation, i int) {
	n := len(g.stops)
	from, to := g.stops[i], g.stops[(i+1)%n]
	opts := d.options()
	if i > 0 {
		opts.StartDirection = pathfind.DirectionOf(g.main[len(g.main)-1].Reversed)
	}
	closing := i == n-1
	if closing {
		opts.GoalDirection = pathfind.DirectionOf(g.main[0].Reversed)
	}
	search := pathfind.NewRailFinder(d.env.Network, from.platform.Rail(), to.platform.Rail(), opts)
	d.env.Queue.Add(d.owner(), search, func(path rail.Path) {
		if d.gen != g {
			return
		}
		switch {
		case closing:
			g.closing = path
		case i == 0:
			g.main = path
			g.stopAt = []int{0, len(path) - 1}
		default:
			g.main = g.main.Concat(path[1:])
			g.stopAt = append(g.stopAt, len(g.main)-1)
		}
		switch {
		case i+1 < n-1 || (i+1 == n-1 && d.RepeatInfinitely):
			d.findPair(g, i+1)
		default:
			d.markStops(g)
			d.findSidingPaths(g)
		}
	}, func() {
		if d.gen != g {
			return
		}
		d.failedFrom, d.failedTo = from.platform.ID, to.platform.ID
		d.complete(g, StatusPathNotFound)
	})
}

func (d *Depot) markStops(g *generation) {
	for k, idx := range g.stopAt {
		markStop(g.main, idx, k, g.stops[k])
	}
}

func markStop(p rail.Path, idx, k int, s stop) {
	p[idx].StopIndex = k
	p[idx].DwellMillis = s.platform.DwellMillis
}

// findSidingPaths queues, for every siding, the run out to the first stop and,
// unless the depot loops, the run back in from the last stop.
func (d *Depot) findSidingPaths(g *generation) {
	first, last := g.main[0], g.main[len(g.main)-1]
	for _, si := range g.sidings {
		s := d.sidings[si]
		sidingRail, err := d.env.Network.Rail(s.RailID)
		if err != nil {
			continue
		}
		out := d.options()
		out.GoalDirection = pathfind.DirectionOf(first.Reversed)
		d.queueSidingSearch(g, pathfind.NewRailFinder(d.env.Network, sidingRail, first.Rail, out), g.toFirst, si)
		if !d.RepeatInfinitely {
			back := d.options()
			back.StartDirection = pathfind.DirectionOf(last.Reversed)
			d.queueSidingSearch(g, pathfind.NewRailFinder(d.env.Network, last.Rail, sidingRail, back), g.fromLast, si)
		}
	}
	if g.pending == 0 {
		d.finishGeneration(g)
	}
}

func (d *Depot) queueSidingSearch(g *generation, search pathfind.Search, into map[int]rail.Path, si int) {
	g.pending++
	done := func() {
		g.pending--
		if g.pending == 0 {
			d.finishGeneration(g)
		}
	}
	d.env.Queue.Add(d.owner(), search, func(path rail.Path) {
		if d.gen != g {
			return
		}
		into[si] = path
		done()
	}, func() {
		if d.gen != g {
			return
		}
		d.log.Warn("no path for siding", "siding", d.sidings[si].ID)
		done()
	})
}

// vehiclePath joins the siding run, the main path and either the closing pair (a
// loop between the two calls at the first stop) or the run back to the siding.
func (d *Depot) vehiclePath(g *generation, si int) (rail.Path, int, int, bool) {
	out, ok := g.toFirst[si]
	if !ok {
		return nil, 0, 0, false
	}
	full := slices.Clone(out)
	repeat1 := len(full) - 1
	markStop(full, repeat1, 0, g.stops[0])
	full = full.Concat(g.main[1:])
	if d.RepeatInfinitely {
		full = full.Concat(g.closing[1:])
		repeat2 := len(full) - 1
		markStop(full, repeat2, 0, g.stops[0])
		return full, repeat1, repeat2, true
	}
	back, ok := g.fromLast[si]
	if !ok {
		return nil, 0, 0, false
	}
	return full.Concat(back[1:]), vehicle.NoRepeat, vehicle.NoRepeat, true
}

func (d *Depot) finishGeneration(g *generation) {
	ready := 0
	for _, si := range g.sidings {
		s := d.sidings[si]
		path, r1, r2, ok := d.vehiclePath(g, si)
		if !ok {
			continue
		}
		if err := s.SetPath(path, r1, r2); err != nil {
			d.log.Warn("siding path rejected", "siding", s.ID, "error", err)
			continue
		}
		ready++
	}
	if ready == 0 {
		d.failedFrom, d.failedTo = d.sidings[g.sidings[0]].ID, g.stops[0].platform.ID
		d.complete(g, StatusPathNotFound)
		return
	}
	d.stops, d.main, d.stopAt = g.stops, g.main, g.stopAt
	for k, idx := range d.stopAt {
		pd := d.main[idx]
		_, arrive := pd.Rail.Headings(pd.From())
		d.facing[d.stops[k].platform.ID] = arrive
	}
	d.updateDurations()
	d.generateDepartures()
	d.complete(g, StatusSuccessful)
}

// updateDurations fills each route's inter-stop travel times from the first ready
// siding's stop-time table.
func (d *Depot) updateDurations() {
	times := d.stopTimesByStop()
	if times == nil {
		return
	}
	for k := 0; k+1 < len(d.stops); k++ {
		a, okA := times[k]
		b, okB := times[k+1]
		if !okA || !okB {
			continue
		}
		for _, ra := range d.stops[k].refs {
			for _, rb := range d.stops[k+1].refs {
				if ra.route != rb.route || rb.index != ra.index+1 {
					continue
				}
				r := ra.route
				if len(r.Durations) != len(r.Platforms)-1 {
					r.Durations = make([]int64, max(0, len(r.Platforms)-1))
				}
				r.Durations[ra.index] = b.ArrivalOffset - a.DepartureOffset
			}
		}
	}
}

func (d *Depot) complete(g *generation, status Status) {
	if d.gen == g {
		d.gen = nil
	}
	d.status = status
	switch status {
	case StatusSuccessful:
		d.log.Info("depot generated", "departures", len(d.departures))
	case StatusPathNotFound:
		d.log.Warn("depot path not found", "from", d.failedFrom, "to", d.failedTo)
	default:
		d.log.Info("depot generation finished", "status", string(status))
	}
	if g.onComplete != nil {
		g.onComplete(status)
	}
}

// abort cancels the generation in flight, if any, and fails its callback.
func (d *Depot) abort() {
	g := d.gen
	if g == nil {
		return
	}
	d.gen = nil
	d.env.Queue.Cancel(d.owner())
	d.log.Info("depot generation superseded")
	if g.onComplete != nil {
		g.onComplete(StatusAborted)
	}
}
