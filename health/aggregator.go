package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Report is the aggregate of all registered checks. Overall is the worst
// individual status.
type Report struct {
	Overall Status
	Results []Result
}

// Aggregator runs registered checkers and folds their results into one
// report.
type Aggregator struct {
	mu       sync.Mutex
	checkers []Checker
}

// NewAggregator creates an aggregator with the given checkers.
func NewAggregator(checkers ...Checker) *Aggregator {
	return &Aggregator{checkers: checkers}
}

// Register adds a checker.
func (a *Aggregator) Register(c Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkers = append(a.checkers, c)
}

// Check runs every checker in parallel and returns the combined report.
// Results are sorted by component name.
func (a *Aggregator) Check(ctx context.Context) Report {
	a.mu.Lock()
	checkers := make([]Checker, len(a.checkers))
	copy(checkers, a.checkers)
	a.mu.Unlock()

	results := make([]Result, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := c.Check(ctx)
			if res.Component == "" {
				res.Component = c.Name()
			}
			if res.CheckedAt.IsZero() {
				res.CheckedAt = time.Now()
			}
			results[i] = res
		}()
	}
	wg.Wait()

	report := Report{Overall: StatusHealthy, Results: results}
	for _, res := range results {
		if res.Status > report.Overall {
			report.Overall = res.Status
		}
	}
	sort.Slice(report.Results, func(i, j int) bool {
		return report.Results[i].Component < report.Results[j].Component
	})
	return report
}
