package depot

import (
	"cmp"
	"slices"

	"github.com/cxd309/railsim/internal/siding"
	"github.com/cxd309/railsim/internal/transit"
)

// stopTimesByStop maps depot stop index to the first call in the first ready siding's
// table.
func (d *Depot) stopTimesByStop() map[int]siding.StopTime {
	for _, s := range d.sidings {
		if !s.Ready() {
			continue
		}
		out := make(map[int]siding.StopTime)
		for _, st := range s.StopTimes() {
			if _, seen := out[st.StopIndex]; !seen {
				out[st.StopIndex] = st
			}
		}
		return out
	}
	return nil
}

// routeAt is the route a vehicle calling at stop k runs on, with k's index in it.
// A stop shared by two routes belongs to the one that continues to the next stop.
func (d *Depot) routeAt(k int) (routeRef, bool) {
	if k < 0 || k >= len(d.stops) {
		return routeRef{}, false
	}
	refs := d.stops[k].refs
	if k+1 < len(d.stops) {
		for _, ra := range refs {
			for _, rb := range d.stops[k+1].refs {
				if ra.route == rb.route && rb.index == ra.index+1 {
					return ra, true
				}
			}
		}
	}
	if len(refs) == 0 {
		return routeRef{}, false
	}
	return refs[len(refs)-1], true
}

func (d *Depot) stopRef(k int) *transit.StopRef {
	if d.RepeatInfinitely && len(d.stops) > 0 {
		k = (k + len(d.stops)) % len(d.stops)
	}
	ref, ok := d.routeAt(k)
	if !ok {
		return nil
	}
	return &transit.StopRef{
		PlatformID:  d.stops[k].platform.ID,
		RouteID:     ref.route.ID,
		Destination: ref.route.Destination(ref.index, d.env.Store),
	}
}

// VehiclePlatformRouteInfo describes the calls before, at and after stop index k.
func (d *Depot) VehiclePlatformRouteInfo(k int) transit.VehiclePlatformRouteInfo {
	return transit.VehiclePlatformRouteInfo{
		Previous: d.stopRef(k - 1),
		This:     d.stopRef(k),
		Next:     d.stopRef(k + 1),
	}
}

// Arrivals lists up to maxCount calls at platformID that have not yet departed at
// now, earliest first. Each departure is projected onto the next occurrence of its
// time of day.
func (d *Depot) Arrivals(now int64, platformID string, maxCount int) []transit.ArrivalInfo {
	day := d.env.Config.MillisPerGameDay
	var out []transit.ArrivalInfo
	for _, s := range d.sidings {
		if !s.Ready() {
			continue
		}
		lead := s.LeadMillis()
		for i, dep := range s.Departures() {
			for _, st := range s.StopTimes() {
				if st.StopIndex < 0 || st.StopIndex >= len(d.stops) || d.stops[st.StopIndex].platform.ID != platformID {
					continue
				}
				leaves := now + mod(dep-lead+st.DepartureOffset-now, day)
				info := transit.ArrivalInfo{
					PlatformID:      platformID,
					DepotID:         d.ID,
					SidingID:        s.ID,
					DepartureIndex:  i,
					StopIndex:       st.StopIndex,
					ArrivalMillis:   leaves - (st.DepartureOffset - st.ArrivalOffset),
					DepartureMillis: leaves,
					Terminating:     !d.RepeatInfinitely && st.StopIndex == len(d.stops)-1,
				}
				if ref, ok := d.routeAt(st.StopIndex); ok {
					info.RouteID = ref.route.ID
					info.RouteName = ref.route.Name
					info.Destination = ref.route.Destination(ref.index, d.env.Store)
				}
				out = append(out, info)
			}
		}
	}
	slices.SortFunc(out, func(a, b transit.ArrivalInfo) int {
		if c := cmp.Compare(a.ArrivalMillis, b.ArrivalMillis); c != 0 {
			return c
		}
		return cmp.Compare(a.SidingID, b.SidingID)
	})
	if maxCount >= 0 && len(out) > maxCount {
		out = out[:maxCount]
	}
	return out
}

// Rides lists the scheduled hops between consecutive calls departing in [from, to).
// Depots of continuous-movement transport have none; see IndependentRides.
func (d *Depot) Rides(from, to int64) []transit.Ride {
	if d.Mode.ContinuousMovement() || to <= from {
		return nil
	}
	day := d.env.Config.MillisPerGameDay
	var out []transit.Ride
	for _, s := range d.sidings {
		st := s.StopTimes()
		if !s.Ready() || len(st) < 2 {
			continue
		}
		lead := s.LeadMillis()
		for _, dep := range s.Departures() {
			for _, base := range dayStarts(from, to, day) {
				spawn := base + dep - lead
				for k := 0; k+1 < len(st); k++ {
					leave := spawn + st[k].DepartureOffset
					if leave < from || leave >= to {
						continue
					}
					out = append(out, d.ride(st[k], st[k+1], leave, spawn+st[k+1].ArrivalOffset))
				}
			}
		}
	}
	slices.SortFunc(out, func(a, b transit.Ride) int { return cmp.Compare(a.DepartureMillis, b.DepartureMillis) })
	return out
}

// IndependentRides lists the hops of a continuous-movement depot as durations.
func (d *Depot) IndependentRides() []transit.Ride {
	if !d.Mode.ContinuousMovement() {
		return nil
	}
	for _, s := range d.sidings {
		st := s.StopTimes()
		if !s.Ready() || len(st) < 2 {
			continue
		}
		var out []transit.Ride
		for k := 0; k+1 < len(st); k++ {
			out = append(out, d.ride(st[k], st[k+1], 0, st[k+1].ArrivalOffset-st[k].DepartureOffset))
		}
		return out
	}
	return nil
}

func (d *Depot) ride(a, b siding.StopTime, leave, arrive int64) transit.Ride {
	r := transit.Ride{
		FromPlatformID:  d.stops[a.StopIndex].platform.ID,
		ToPlatformID:    d.stops[b.StopIndex].platform.ID,
		DepartureMillis: leave,
		ArrivalMillis:   arrive,
	}
	if ref, ok := d.routeAt(a.StopIndex); ok {
		r.RouteID = ref.route.ID
	}
	return r
}

// dayStarts lists the starts of the game days whose departures can leave in
// [from, to). Without a positive day length the timetable runs once from zero.
func dayStarts(from, to, day int64) []int64 {
	if day <= 0 {
		return []int64{0}
	}
	var out []int64
	for base := floorTo(from, day) - day; base < to; base += day {
		out = append(out, base)
	}
	return out
}

func mod(a, m int64) int64 {
	if m <= 0 {
		return a
	}
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

func floorTo(a, m int64) int64 { return a - mod(a, m) }
