package rail

import (
	"slices"

	"github.com/google/uuid"
)

type claim struct {
	rail  *Rail
	color string
}

// IsBlocked reports whether vehicle may not enter r. A rail without signal colours is
// never blocked. Otherwise any holder other than vehicle, in this tick's or the
// previous tick's reservations, blocks it.
//
// With reserve set and the rail free, vehicle claims every colour of r on r and on
// every rail reachable through rails sharing one of those colours. The claim is all
// or nothing: if any reached rail holds one of the colours for another vehicle,
// nothing is written and the rail is reported blocked.
func (r *Rail) IsBlocked(vehicle uuid.UUID, reserve bool) bool {
	if len(r.Colors) == 0 {
		return false
	}
	if r.heldByOther(vehicle, r.Colors) {
		return true
	}
	if !reserve {
		return false
	}
	claims, ok := r.collectClaims(vehicle)
	if !ok {
		return true
	}
	for _, c := range claims {
		c.rail.blocked[c.color] = vehicle
	}
	return false
}

// collectClaims walks the signal block around r with an explicit stack.
func (r *Rail) collectClaims(vehicle uuid.UUID) ([]claim, bool) {
	visited := map[*Rail]bool{r: true}
	stack := []*Rail{r}
	var claims []claim
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		shared := sharedColors(r.Colors, cur.Colors)
		if cur.heldByOther(vehicle, shared) {
			return nil, false
		}
		for _, c := range shared {
			claims = append(claims, claim{rail: cur, color: c})
		}
		for _, next := range cur.connected {
			if visited[next] || len(sharedColors(r.Colors, next.Colors)) == 0 {
				continue
			}
			visited[next] = true
			stack = append(stack, next)
		}
	}
	return claims, true
}

func (r *Rail) heldByOther(vehicle uuid.UUID, colors []string) bool {
	for _, c := range colors {
		if id, ok := r.blocked[c]; ok && id != vehicle {
			return true
		}
		if id, ok := r.blockedPrev[c]; ok && id != vehicle {
			return true
		}
	}
	return false
}

// Holder returns the vehicle holding color on r, looking at this tick first.
func (r *Rail) Holder(color string) (uuid.UUID, bool) {
	if id, ok := r.blocked[color]; ok {
		return id, true
	}
	id, ok := r.blockedPrev[color]
	return id, ok
}

// ReservedBy reports whether vehicle holds any colour on r.
func (r *Rail) ReservedBy(vehicle uuid.UUID) bool {
	for _, c := range r.Colors {
		if id, ok := r.Holder(c); ok && id == vehicle {
			return true
		}
	}
	return false
}

// rotate moves this tick's reservations into the previous generation.
func (r *Rail) rotate() {
	r.blockedPrev, r.blocked = r.blocked, r.blockedPrev
	clear(r.blocked)
}

// release drops every reservation held by vehicle.
func (r *Rail) release(vehicle uuid.UUID) {
	for _, m := range []map[string]uuid.UUID{r.blocked, r.blockedPrev} {
		for c, id := range m {
			if id == vehicle {
				delete(m, c)
			}
		}
	}
}

// sharedColors intersects two sorted colour lists.
func sharedColors(a, b []string) []string {
	var out []string
	for _, c := range b {
		if _, found := slices.BinarySearch(a, c); found {
			out = append(out, c)
		}
	}
	return out
}
