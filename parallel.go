package abac

import (
	"runtime"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
)

// ParallelStrategy partitions the user population across worker goroutines.
// Each worker runs the hoisted per-user evaluation over its own chunk and
// collects matches locally; the chunks are merged and emitted on the calling
// goroutine once every worker finishes, so emit never runs concurrently.
// Merge order follows chunk completion and is not deterministic.
type ParallelStrategy[N comparable, V Value[V]] struct {
	// Workers caps the goroutine count. Zero means GOMAXPROCS.
	Workers int
	// OnProgress, when set, receives the running count of users processed
	// and the total in scope. Workers call it concurrently.
	OnProgress func(done, total int64)
}

func (ParallelStrategy[N, V]) Name() string { return StrategyParallel }

func (s ParallelStrategy[N, V]) Enumerate(p *Policy[N, V], rule *Rule[N, V], maxUsers int, emit func(Match)) error {
	users := p.BoundedUsers(maxUsers)
	if len(users) == 0 {
		return nil
	}

	resources := make([]Entity[N, V], 0, len(p.Resources))
	for _, resource := range p.Resources {
		ok, err := entityConditionsHold(rule.ResourceConditions, resource)
		if err != nil {
			return err
		}
		if ok {
			resources = append(resources, resource)
		}
	}

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(users) {
		workers = len(users)
	}
	chunk := (len(users) + workers - 1) / workers

	results := make(chan []Match, workers)
	var processed atomic.Int64
	wp := pool.New().WithErrors().WithMaxGoroutines(workers)
	for start := 0; start < len(users); start += chunk {
		end := start + chunk
		if end > len(users) {
			end = len(users)
		}
		part := users[start:end]
		wp.Go(func() error {
			var local []Match
			for _, user := range part {
				ok, err := entityConditionsHold(rule.UserConditions, user)
				if err != nil {
					return err
				}
				if ok {
					for _, resource := range resources {
						ok, err := comparisonsHold(rule, user, resource)
						if err != nil {
							return err
						}
						if ok {
							local = append(local, Match{UserID: user.ID(), ResourceID: resource.ID()})
						}
					}
				}
				done := processed.Add(1)
				if s.OnProgress != nil {
					s.OnProgress(done, int64(len(users)))
				}
			}
			results <- local
			return nil
		})
	}
	err := wp.Wait()
	close(results)
	if err != nil {
		return err
	}
	for local := range results {
		for _, m := range local {
			emit(m)
		}
	}
	return nil
}
