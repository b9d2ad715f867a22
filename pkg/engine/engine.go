// Package engine sequences one recommendation request: cache lookup, pool
// build, scoring, constrained solve, cache write.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/mhartmann/staffing-recommender-go/pkg/cache"
	"github.com/mhartmann/staffing-recommender-go/pkg/fetching"
	"github.com/mhartmann/staffing-recommender-go/pkg/metrics"
	"github.com/mhartmann/staffing-recommender-go/pkg/models"
	"github.com/mhartmann/staffing-recommender-go/pkg/optimizer"
	"github.com/mhartmann/staffing-recommender-go/pkg/pool"
	"github.com/mhartmann/staffing-recommender-go/pkg/scoring"
)

// Scorer is the abnormality model capability the engine is constructed with.
// Injected so tests can substitute a deterministic stub.
type Scorer interface {
	Score(rows []models.CandidateRow) []models.ScoredCandidateRow
	Explain(row models.CandidateRow) []models.Contribution
}

// Fetcher supplies the engine's inputs for a planning date. The open sets are
// the collaborator's call (including any sampling); the engine takes them as
// given.
type Fetcher interface {
	DayInputs(ctx context.Context, date time.Time) (fetching.DayInputs, error)
}

// Options tune one engine instance
type Options struct {
	// PlanningDate is the date recommendations are computed for. Zero means
	// "today" at each request.
	PlanningDate time.Time

	// SolveTimeout caps one optimizer run. Zero disables the cap.
	SolveTimeout time.Duration

	// MaxConcurrentSolves bounds how many solves run at once; further
	// requests queue. Zero means 1.
	MaxConcurrentSolves int64
}

// Engine is safe for concurrent use; the cache is the only shared mutable
// state and serializes itself.
type Engine struct {
	fetcher Fetcher
	scorer  Scorer
	solver  *optimizer.Solver
	cache   *cache.Cache
	slots   *semaphore.Weighted
	opts    Options
	log     zerolog.Logger
}

// Explanation is the per-feature breakdown for one concrete pairing
type Explanation struct {
	Row           models.ScoredCandidateRow `json:"row"`
	Contributions []models.Contribution     `json:"contributions"`
}

// New wires an engine from its collaborators
func New(fetcher Fetcher, scorer Scorer, store *cache.Cache, opts Options, log zerolog.Logger) *Engine {
	if opts.MaxConcurrentSolves < 1 {
		opts.MaxConcurrentSolves = 1
	}
	return &Engine{
		fetcher: fetcher,
		scorer:  scorer,
		solver:  optimizer.New(),
		cache:   store,
		slots:   semaphore.NewWeighted(opts.MaxConcurrentSolves),
		opts:    opts,
		log:     log.With().Str("component", "engine").Logger(),
	}
}

// Recommend computes (or replays) the recommendation for one constraint set.
// Semantically equivalent constraint sets hit the cache regardless of list
// ordering. An infeasible outcome comes back with Feasible=false and is never
// cached, since a later request may see a different sampled pool.
func (e *Engine) Recommend(ctx context.Context, hc models.HardConstraints) (models.Output, error) {
	if output, ok := e.cache.Lookup(hc); ok {
		metrics.CacheHits.Inc()
		e.log.Debug().Str("hash", cache.Hash(hc)).Msg("cache hit")
		return output, nil
	}
	metrics.CacheMisses.Inc()

	inputs, err := e.fetcher.DayInputs(ctx, e.planningDate())
	if err != nil {
		return models.Output{}, err
	}

	rows := pool.Build(inputs.Employees, inputs.Clients, inputs.OpenEmployeeIDs, inputs.OpenClientIDs)
	scored := e.scorer.Score(rows)

	result, err := e.solve(ctx, scored, hc)
	if err != nil {
		return models.Output{}, err
	}

	output := models.Output{
		AssignmentInfo: result,
		ScoredPool:     scored,
		Employees: fetching.ResolveIDs(inputs.OpenEmployeeIDs, inputs.Employees,
			func(emp models.Employee) string { return emp.ID }),
		Clients: fetching.ResolveIDs(inputs.OpenClientIDs, inputs.Clients,
			func(c models.Client) string { return c.ID }),
	}

	if !result.Feasible {
		metrics.InfeasibleSolves.Inc()
		e.log.Info().Msg("no feasible solution found")
		return output, nil
	}

	e.cache.Store(hc, output)
	e.log.Info().
		Int("pairs", len(result.Pairs)).
		Float64("objective", result.ObjectiveValue).
		Bool("constrained", !hc.IsZero()).
		Msg("recommendation computed")
	return output, nil
}

// Explain returns the model's per-feature contributions for one pairing.
// Strictly a side channel: it never feeds the optimizer, and it only runs for
// pairings a caller explicitly asks about.
func (e *Engine) Explain(ctx context.Context, employeeID, clientID string) (Explanation, error) {
	inputs, err := e.fetcher.DayInputs(ctx, e.planningDate())
	if err != nil {
		return Explanation{}, err
	}

	var emp *models.Employee
	for i := range inputs.Employees {
		if inputs.Employees[i].ID == employeeID {
			emp = &inputs.Employees[i]
			break
		}
	}
	if emp == nil {
		return Explanation{}, fmt.Errorf("unknown employee %q", employeeID)
	}
	var client *models.Client
	for i := range inputs.Clients {
		if inputs.Clients[i].ID == clientID {
			client = &inputs.Clients[i]
			break
		}
	}
	if client == nil {
		return Explanation{}, fmt.Errorf("unknown client %q", clientID)
	}

	row, ok := pool.BuildRow(*emp, *client)
	if !ok {
		return Explanation{}, fmt.Errorf("employee %q has no travel time for school %q", employeeID, client.School)
	}

	scored := e.scorer.Score([]models.CandidateRow{row})
	return Explanation{
		Row:           scored[0],
		Contributions: e.scorer.Explain(row),
	}, nil
}

// Cache exposes the cache for the history/clear endpoints
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// FeatureNames returns the trained feature ordering, for response metadata
func (e *Engine) FeatureNames() []string {
	return scoring.FeatureNames
}

func (e *Engine) solve(ctx context.Context, scored []models.ScoredCandidateRow, hc models.HardConstraints) (models.AssignmentResult, error) {
	// The solve is the dominant cost; bound how many run at once so bursts
	// queue instead of oversubscribing the solver.
	if err := e.slots.Acquire(ctx, 1); err != nil {
		return models.AssignmentResult{}, fmt.Errorf("waiting for solver slot: %w", err)
	}
	defer e.slots.Release(1)

	solveCtx := ctx
	if e.opts.SolveTimeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, e.opts.SolveTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := e.solver.Solve(solveCtx, scored, hc)
	metrics.SolveDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, models.ErrSolverTimeout) {
			metrics.SolverTimeouts.Inc()
			e.log.Warn().Dur("budget", e.opts.SolveTimeout).Msg("solver timed out")
		}
		return models.AssignmentResult{}, err
	}
	return result, nil
}

func (e *Engine) planningDate() time.Time {
	if e.opts.PlanningDate.IsZero() {
		return time.Now()
	}
	return e.opts.PlanningDate
}
