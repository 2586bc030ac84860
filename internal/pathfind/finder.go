// Package pathfind searches the rail network for paths between two rails.
//
// The search is a greedy single-attempt walk, not Dijkstra: from the last node of the
// current attempt it commits to the admissible edge with the best progress per
// second, backtracks on dead ends and keeps looking for strictly faster paths after
// each success. Every call to Step does one move so the work can be spread over many
// ticks.
package pathfind

import "math"

// Edge is a move to Node taking Duration seconds.
type Edge[N comparable] struct {
	Node     N
	Duration float64
}

// Graph is what the finder needs to know about the searched space.
type Graph[N comparable] interface {
	// Edges lists the moves out of n in a stable order.
	Edges(n N) []Edge[N]
	// Remaining estimates the distance from n to the goal, in metres.
	Remaining(n N) float64
	IsGoal(n N) bool
}

type visit[N comparable] struct {
	node N
	time float64
}

// minDuration keeps zero-length edges from scoring infinitely.
const minDuration = 1e-6

// Finder is a resumable greedy search over a Graph.
type Finder[N comparable] struct {
	graph Graph[N]
	start N

	attempt []visit[N]
	// time each node was reached at, within this attempt and ever
	local  map[N]float64
	global map[N]float64

	best     []N
	bestTime float64
	steps    int
	done     bool
}

// NewFinder starts a search at start.
func NewFinder[N comparable](g Graph[N], start N) *Finder[N] {
	f := &Finder[N]{
		graph:    g,
		start:    start,
		global:   map[N]float64{start: 0},
		bestTime: math.Inf(1),
	}
	f.restart()
	return f
}

func (f *Finder[N]) restart() {
	f.attempt = []visit[N]{{node: f.start}}
	f.local = map[N]float64{f.start: 0}
}

// Step makes one move and reports whether the search has finished.
func (f *Finder[N]) Step() bool {
	if f.done {
		return true
	}
	f.steps++
	last := f.attempt[len(f.attempt)-1]
	before := f.graph.Remaining(last.node)

	var next visit[N]
	bestScore := math.Inf(-1)
	found := false
	for _, e := range f.graph.Edges(last.node) {
		total := last.time + e.Duration
		if total >= f.bestTime {
			continue
		}
		if t, ok := f.global[e.Node]; ok && t <= total {
			continue
		}
		if t, ok := f.local[e.Node]; ok && t <= total {
			continue
		}
		score := (before - f.graph.Remaining(e.Node)) / math.Max(e.Duration, minDuration)
		if !found || score > bestScore {
			next = visit[N]{node: e.Node, time: total}
			bestScore = score
			found = true
		}
	}

	if !found {
		f.attempt = f.attempt[:len(f.attempt)-1]
		if len(f.attempt) == 0 {
			f.done = true
		}
		return f.done
	}

	f.global[next.node] = next.time
	f.local[next.node] = next.time
	f.attempt = append(f.attempt, next)
	if f.graph.IsGoal(next.node) {
		if next.time < f.bestTime {
			f.bestTime = next.time
			f.best = f.best[:0]
			for _, v := range f.attempt {
				f.best = append(f.best, v.node)
			}
		}
		f.restart()
	}
	return false
}

// Run steps until the search finishes or maxSteps moves were made. A non-positive
// maxSteps means no limit.
func (f *Finder[N]) Run(maxSteps int) bool {
	for i := 0; maxSteps <= 0 || i < maxSteps; i++ {
		if f.Step() {
			return true
		}
	}
	return f.done
}

// Done reports whether the search space is exhausted.
func (f *Finder[N]) Done() bool { return f.done }

// Found reports whether any path to a goal has been recorded.
func (f *Finder[N]) Found() bool { return f.best != nil }

// Best returns the fastest path found so far, start included, and its duration.
func (f *Finder[N]) Best() ([]N, float64) { return f.best, f.bestTime }

// Steps is the number of moves made so far.
func (f *Finder[N]) Steps() int { return f.steps }
