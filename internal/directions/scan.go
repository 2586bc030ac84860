package directions

import (
	"cmp"
	"math"
	"slices"

	"github.com/cxd309/railsim/internal/transit"
)

const (
	scanPrefetch = iota
	scanInit
	scanRides
	scanDone
)

// label is the best known arrival at a platform by one kind of leg. fromWalk says
// which label of the leg's origin platform it continues.
type label struct {
	seg      Segment
	at       int64
	fromWalk bool
}

// scan is the state of one request: rides are fetched one source per step, then
// relaxed one ride per step in departure order.
//
// Each platform keeps two labels. ride holds arrivals on a vehicle and walk holds
// arrivals on foot. Walks only leave from the ride label, so a journey never chains
// two walks.
type scan struct {
	req   Request
	phase int
	i     int
	rides []transit.Ride

	ride    map[string]label
	walk    map[string]label
	best    int64 // arrival at the destination found so far
	journey []Segment
}

func newScan(req Request) *scan {
	s := &scan{req: req}
	s.reset()
	return s
}

func (s *scan) reset() {
	s.phase, s.i = scanPrefetch, 0
	s.rides = nil
	s.ride = make(map[string]label)
	s.walk = make(map[string]label)
	s.best = math.MaxInt64
	s.journey = nil
}

// step does one unit of work and reports whether the journey is final.
func (s *scan) step(e *Engine) bool {
	switch s.phase {
	case scanPrefetch:
		sources := e.sources()
		if s.i < len(sources) {
			s.rides = append(s.rides, sources[s.i].Rides(s.req.StartMillis, s.req.StartMillis+e.cfg.DirectionsHorizonMillis)...)
			s.i++
			return false
		}
		slices.SortStableFunc(s.rides, func(a, b transit.Ride) int { return cmp.Compare(a.DepartureMillis, b.DepartureMillis) })
		s.phase = scanInit
	case scanInit:
		s.walkFromStart(e)
		s.phase, s.i = scanRides, 0
	case scanRides:
		if s.i < len(s.rides) && s.rides[s.i].DepartureMillis < s.best {
			s.relaxRide(e, s.rides[s.i])
			s.i++
			return false
		}
		s.journey = s.reconstruct(e)
		s.phase = scanDone
	}
	return s.phase == scanDone
}

// earliest is the first time a passenger can be at a platform, and whether that is
// on foot.
func (s *scan) earliest(id string) (int64, bool, bool) {
	r, byRide := s.ride[id]
	w, byWalk := s.walk[id]
	switch {
	case byRide && (!byWalk || r.at <= w.at):
		return r.at, false, true
	case byWalk:
		return w.at, true, true
	}
	return 0, false, false
}

// walkFromStart seeds every platform within walking distance of the start, and the
// direct walk if the destination itself is that close.
func (s *scan) walkFromStart(e *Engine) {
	start := s.req.StartMillis
	if d := s.req.Start.Distance(s.req.End); d <= e.cfg.MaxWalkingDistance {
		s.best = start + e.walkMillis(d)
	}
	var seeded []string
	for id, p := range e.graph.platforms {
		d := s.req.Start.Distance(p.Position)
		if d > e.cfg.MaxWalkingDistance {
			continue
		}
		arrive := start + e.walkMillis(d)
		s.walk[id] = label{
			seg: Segment{ToPlatformID: id, DepartureMillis: start, ArrivalMillis: arrive, WalkingDistance: d},
			at:  arrive,
		}
		seeded = append(seeded, id)
	}
	slices.Sort(seeded)
	for _, id := range seeded {
		s.spread(e, id)
	}
	s.updateBest(e)
}

// relaxRide takes ride r if it can be caught and improves the ride arrival at its
// end.
func (s *scan) relaxRide(e *Engine, r transit.Ride) {
	at, onFoot, ok := s.earliest(r.FromPlatformID)
	if !ok || at > r.DepartureMillis {
		return
	}
	if prev, ok := s.ride[r.ToPlatformID]; ok && prev.at <= r.ArrivalMillis {
		return
	}
	s.ride[r.ToPlatformID] = label{
		seg: Segment{
			RouteID:         r.RouteID,
			FromPlatformID:  r.FromPlatformID,
			ToPlatformID:    r.ToPlatformID,
			DepartureMillis: r.DepartureMillis,
			ArrivalMillis:   r.ArrivalMillis,
		},
		at:       r.ArrivalMillis,
		fromWalk: onFoot,
	}
	s.spread(e, r.ToPlatformID)
	s.updateBest(e)
}

// spread relaxes time-independent hops breadth first from a platform whose arrival
// just improved. Continuous rides leave from either label and improve the ride
// label; walks leave from the ride label and improve the walk label.
func (s *scan) spread(e *Engine, from string) {
	queue := []string{from}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, ed := range e.graph.edges[u] {
			var (
				at     int64
				onFoot bool
				target = s.ride
			)
			if ed.routeID != "" {
				var ok bool
				if at, onFoot, ok = s.earliest(u); !ok {
					continue
				}
			} else {
				r, ok := s.ride[u]
				if !ok {
					continue
				}
				at, target = r.at, s.walk
			}
			arrive := at + ed.duration
			if prev, ok := target[ed.to]; ok && prev.at <= arrive {
				continue
			}
			target[ed.to] = label{
				seg: Segment{
					RouteID:         ed.routeID,
					FromPlatformID:  u,
					ToPlatformID:    ed.to,
					DepartureMillis: at,
					ArrivalMillis:   arrive,
					WalkingDistance: ed.distance,
				},
				at:       arrive,
				fromWalk: onFoot,
			}
			queue = append(queue, ed.to)
		}
	}
}

// updateBest lowers the destination arrival bound, used to stop the scan early.
func (s *scan) updateBest(e *Engine) {
	if _, at, _, ok := s.bestPlatform(e); ok && at < s.best {
		s.best = at
	}
}

// bestPlatform is the platform from which walking on gives the earliest arrival at
// the destination, and whether its walk label is the one used. A walk label only
// qualifies when the destination is on the platform.
func (s *scan) bestPlatform(e *Engine) (string, int64, bool, bool) {
	var (
		bestID   string
		bestAt   = int64(math.MaxInt64)
		bestWalk bool
		found    bool
	)
	consider := func(id string, at int64, onFoot bool) {
		if at < bestAt || (at == bestAt && (id < bestID || (id == bestID && !onFoot))) {
			bestID, bestAt, bestWalk, found = id, at, onFoot, true
		}
	}
	for id, l := range s.ride {
		if d := e.graph.platforms[id].Position.Distance(s.req.End); d <= e.cfg.MaxWalkingDistance {
			consider(id, l.at+e.walkMillis(d), false)
		}
	}
	for id, l := range s.walk {
		if e.graph.platforms[id].Position.Distance(s.req.End) == 0 {
			consider(id, l.at, true)
		}
	}
	return bestID, bestAt, bestWalk, found
}

// reconstruct follows the labels back from the best platform.
func (s *scan) reconstruct(e *Engine) []Segment {
	id, at, onFoot, ok := s.bestPlatform(e)
	direct := s.req.Start.Distance(s.req.End)
	if direct <= e.cfg.MaxWalkingDistance && (!ok || s.req.StartMillis+e.walkMillis(direct) <= at) {
		return []Segment{{
			DepartureMillis: s.req.StartMillis,
			ArrivalMillis:   s.req.StartMillis + e.walkMillis(direct),
			WalkingDistance: direct,
		}}
	}
	if !ok {
		return nil
	}
	var legs []Segment
	for cur, walked := id, onFoot; ; {
		labels := s.ride
		if walked {
			labels = s.walk
		}
		l, ok := labels[cur]
		if !ok || len(legs) > len(s.ride)+len(s.walk) {
			return nil
		}
		legs = append(legs, l.seg)
		if l.seg.FromPlatformID == "" {
			break
		}
		cur, walked = l.seg.FromPlatformID, l.fromWalk
	}
	slices.Reverse(legs)
	if legs[0].WalkingDistance == 0 && !legs[0].IsRide() {
		legs = legs[1:]
	}
	if len(legs) == 0 {
		return nil
	}
	last := legs[len(legs)-1]
	if d := e.graph.platforms[id].Position.Distance(s.req.End); d > 0 {
		legs = append(legs, Segment{
			FromPlatformID:  id,
			DepartureMillis: last.ArrivalMillis,
			ArrivalMillis:   at,
			WalkingDistance: d,
		})
	}
	return legs
}
