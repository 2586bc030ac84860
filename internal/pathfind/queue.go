package pathfind

import (
	"slices"
	"time"

	"github.com/cxd309/railsim/internal/logger"
	"github.com/cxd309/railsim/internal/rail"
)

// Search is a resumable rail search.
type Search interface {
	Step() bool
	Result() (rail.Path, bool)
}

type job struct {
	owner     string
	search    Search
	onSuccess func(rail.Path)
	onFail    func()
}

// Queue runs searches one at a time within a wall-clock budget per tick, so one hard
// search never stalls the world. A search that never finishes keeps the head of the
// queue and consumes the whole budget of every tick.
type Queue struct {
	jobs []*job
	log  logger.Logger
	now  func() time.Time
}

// NewQueue returns an empty queue.
func NewQueue(log logger.Logger) *Queue {
	return &Queue{log: log, now: time.Now}
}

// Add queues a search for owner. Exactly one of the callbacks runs when it finishes.
func (q *Queue) Add(owner string, s Search, onSuccess func(rail.Path), onFail func()) {
	q.jobs = append(q.jobs, &job{owner: owner, search: s, onSuccess: onSuccess, onFail: onFail})
}

// Cancel drops every pending search of owner without running its callbacks.
func (q *Queue) Cancel(owner string) {
	q.jobs = slices.DeleteFunc(q.jobs, func(j *job) bool { return j.owner == owner })
}

// Len is the number of pending searches.
func (q *Queue) Len() int { return len(q.jobs) }

// Tick advances the head search until budget is spent, moving on to the next search
// whenever one finishes. At least one step is made when work is pending.
func (q *Queue) Tick(budget time.Duration) {
	deadline := q.now().Add(budget)
	stepped := false
	for len(q.jobs) > 0 {
		j := q.jobs[0]
		done := false
		for !done && (!stepped || q.now().Before(deadline)) {
			done = j.search.Step()
			stepped = true
		}
		if !done {
			return
		}
		q.jobs = q.jobs[1:]
		path, ok := j.search.Result()
		if ok {
			q.log.Debug("path found", "owner", j.owner, "elements", len(path), "length", path.Length())
			if j.onSuccess != nil {
				j.onSuccess(path)
			}
		} else {
			q.log.Debug("path not found", "owner", j.owner)
			if j.onFail != nil {
				j.onFail()
			}
		}
	}
}
