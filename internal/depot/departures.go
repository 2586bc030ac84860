package depot

import (
	"cmp"
	"math/rand/v2"
	"slices"

	"github.com/cxd309/railsim/internal/siding"
)

const (
	hourMillis = 60 * 60 * 1000
	dayMillis  = 24 * hourMillis
	// frequencies count departures per this many ms
	frequencyWindow = 4 * hourMillis
)

// FrequencyDepartures lays out departures hour by hour. In hour h with frequency f the
// interval is 14 400 000 / f ms and departures are placed greedily from the later of
// the hour start and one interval after the previous departure, up to the next hour.
// Times are then scaled from a 24 hour day into day ms.
func FrequencyDepartures(frequencies []int, day int64) []int64 {
	var out []int64
	last := int64(-1) << 40
	for h, f := range frequencies {
		if h >= 24 {
			break
		}
		if f <= 0 {
			continue
		}
		interval := max(1, frequencyWindow/int64(f))
		start, end := int64(h)*hourMillis, int64(h+1)*hourMillis
		for t := max(start, last+interval); t < end; t += interval {
			out = append(out, scaleToDay(t, day))
			last = t
		}
	}
	return out
}

// ContinuousDepartures spaces departures evenly over the game day.
func ContinuousDepartures(interval, day int64) []int64 {
	if interval <= 0 || day <= 0 {
		return nil
	}
	var out []int64
	for t := int64(0); t < day; t += interval {
		out = append(out, t)
	}
	return out
}

// RealTimeDepartures folds a literal list into the game day, sorted and deduplicated.
func RealTimeDepartures(list []int64, day int64) []int64 {
	out := make([]int64, 0, len(list))
	for _, t := range list {
		if day > 0 {
			t %= day
			if t < 0 {
				t += day
			}
		}
		out = append(out, t)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func scaleToDay(t, day int64) int64 {
	if day <= 0 || day == dayMillis {
		return t
	}
	return t * day / dayMillis
}

func (d *Depot) generateDepartures() {
	day := d.env.Config.MillisPerGameDay
	var table []int64
	switch {
	case d.Mode.ContinuousMovement():
		table = ContinuousDepartures(d.env.Config.ContinuousMovementMillis, day)
	case d.UseRealTime:
		table = RealTimeDepartures(d.RealTimeDepartures, day)
	default:
		table = FrequencyDepartures(d.Frequencies, day)
	}
	d.departures = d.assign(table)
}

// assign offers each departure to the sidings in order, starting from the siding that
// took the previous one, and keeps the departures some siding accepted.
func (d *Depot) assign(table []int64) []int64 {
	order := d.sidingOrder()
	if len(order) == 0 {
		return nil
	}
	for _, s := range order {
		s.ClearDepartures()
	}
	d.lastSiding %= len(order)
	var accepted []int64
	for _, t := range table {
		for k := range order {
			i := (d.lastSiding + k) % len(order)
			if order[i].AddDeparture(t) {
				d.lastSiding = i
				accepted = append(accepted, t)
				break
			}
		}
	}
	if skipped := len(table) - len(accepted); skipped > 0 {
		d.log.Warn("departures not served by any siding", "skipped", skipped, "offered", len(table))
	}
	return accepted
}

// sidingOrder is the ready sidings shuffled with the configured seed, then stably
// sorted by their time to the first stop so ties do not always favour the same one.
func (d *Depot) sidingOrder() []*siding.Siding {
	var ready []*siding.Siding
	for _, s := range d.sidings {
		if s.Ready() && len(s.StopTimes()) > 0 {
			ready = append(ready, s)
		}
	}
	seed := uint64(d.env.Config.ShuffleSeed)
	rng := rand.New(rand.NewPCG(seed, seed))
	rng.Shuffle(len(ready), func(i, j int) { ready[i], ready[j] = ready[j], ready[i] })
	slices.SortStableFunc(ready, func(a, b *siding.Siding) int {
		return cmp.Compare(a.StopTimes()[0].ArrivalOffset, b.StopTimes()[0].ArrivalOffset)
	})
	return ready
}
