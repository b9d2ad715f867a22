// Package optimizer solves the constrained one-to-one assignment of employees
// to clients over a scored candidate pool.
package optimizer

import (
	"context"
	"errors"
	"sort"

	"github.com/mhartmann/staffing-recommender-go/pkg/models"
)

// checkInterval is how many search nodes pass between context checks
const checkInterval = 1024

// Solver finds the assignment that covers as many open clients as possible
// and, among assignments of equal size, maximizes the total abnormality score
// (more normal = better). Ties in the objective are broken by lexicographic
// (employee ID, client ID) order, so repeated solves of the same input are
// bit-identical.
type Solver struct{}

// New creates a solver. Solves share no state; a single Solver is safe for
// concurrent use.
func New() *Solver {
	return &Solver{}
}

type pairKey struct {
	employee string
	client   string
}

// Solve returns the optimal assignment, or Feasible=false when no assignment
// satisfies the hard constraints. A forced pair whose endpoints are absent
// from the pool, conflicting forced pairs, and a forced id with no eligible
// row all make the problem infeasible rather than being silently dropped.
// Cancellation of ctx aborts the search with models.ErrSolverTimeout when the
// budget ran out.
func (s *Solver) Solve(ctx context.Context, pool []models.ScoredCandidateRow, hc models.HardConstraints) (models.AssignmentResult, error) {
	infeasible := models.AssignmentResult{Feasible: false}

	rows := make([]models.ScoredCandidateRow, len(pool))
	copy(rows, pool)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EmployeeID != rows[j].EmployeeID {
			return rows[i].EmployeeID < rows[j].EmployeeID
		}
		return rows[i].ClientID < rows[j].ClientID
	})

	rowByKey := make(map[pairKey]models.ScoredCandidateRow, len(rows))
	for _, r := range rows {
		rowByKey[pairKey{r.EmployeeID, r.ClientID}] = r
	}

	// Banned pairs apply in either orientation; pair-internal order carries
	// no meaning after normalization.
	banned := make(map[pairKey]bool, len(hc.BannedAssignments)*2)
	for _, p := range hc.BannedAssignments {
		banned[pairKey{p[0], p[1]}] = true
		banned[pairKey{p[1], p[0]}] = true
	}

	// Resolve forced pairs against the pool and pre-assign them.
	forcedSeen := make(map[pairKey]bool)
	usedEmployee := make(map[string]bool)
	usedClient := make(map[string]bool)
	var chosen []models.ScoredCandidateRow
	for _, p := range hc.ForcedAssignments {
		row, ok := rowByKey[pairKey{p[0], p[1]}]
		if !ok {
			row, ok = rowByKey[pairKey{p[1], p[0]}]
		}
		if !ok {
			return infeasible, nil
		}
		key := pairKey{row.EmployeeID, row.ClientID}
		if banned[key] {
			return infeasible, nil
		}
		if forcedSeen[key] {
			continue
		}
		if usedEmployee[row.EmployeeID] || usedClient[row.ClientID] {
			// two forced pairs share an endpoint
			return infeasible, nil
		}
		forcedSeen[key] = true
		usedEmployee[row.EmployeeID] = true
		usedClient[row.ClientID] = true
		chosen = append(chosen, row)
	}

	// Remaining searchable rows, grouped per employee in sorted order.
	rowsByEmployee := make(map[string][]models.ScoredCandidateRow)
	var employees []string
	for _, r := range rows {
		key := pairKey{r.EmployeeID, r.ClientID}
		if banned[key] || usedEmployee[r.EmployeeID] || usedClient[r.ClientID] {
			continue
		}
		if _, ok := rowsByEmployee[r.EmployeeID]; !ok {
			employees = append(employees, r.EmployeeID)
		}
		rowsByEmployee[r.EmployeeID] = append(rowsByEmployee[r.EmployeeID], r)
	}

	mustAssign := make(map[string]bool, len(hc.ForcedEmployees))
	for _, id := range hc.ForcedEmployees {
		if usedEmployee[id] {
			continue
		}
		if len(rowsByEmployee[id]) == 0 {
			return infeasible, nil
		}
		mustAssign[id] = true
	}

	mustCover := make(map[string]bool, len(hc.ForcedClients))
	for _, id := range hc.ForcedClients {
		if usedClient[id] {
			continue
		}
		eligible := false
		for _, eid := range employees {
			for _, r := range rowsByEmployee[eid] {
				if r.ClientID == id {
					eligible = true
					break
				}
			}
			if eligible {
				break
			}
		}
		if !eligible {
			return infeasible, nil
		}
		mustCover[id] = true
	}

	search := searcher{
		employees:      employees,
		rowsByEmployee: rowsByEmployee,
		mustAssign:     mustAssign,
		mustCover:      mustCover,
		usedClient:     usedClient,
		bestCount:      -1,
	}
	search.computeBounds()

	if err := search.run(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return infeasible, models.ErrSolverTimeout
		}
		return infeasible, err
	}
	if search.bestCount < 0 {
		return infeasible, nil
	}

	chosen = append(chosen, search.bestPairs...)
	sort.Slice(chosen, func(i, j int) bool {
		if chosen[i].EmployeeID != chosen[j].EmployeeID {
			return chosen[i].EmployeeID < chosen[j].EmployeeID
		}
		return chosen[i].ClientID < chosen[j].ClientID
	})

	objective := 0.0
	for _, p := range chosen {
		objective += p.AbnormalityScore
	}

	return models.AssignmentResult{
		Pairs:          chosen,
		ObjectiveValue: objective,
		Feasible:       true,
	}, nil
}

// searcher carries the depth-first branch-and-bound state for one solve
type searcher struct {
	employees      []string
	rowsByEmployee map[string][]models.ScoredCandidateRow
	mustAssign     map[string]bool
	mustCover      map[string]bool
	usedClient     map[string]bool

	// suffix bounds per employee index: how many assignments and how much
	// score the remainder of the search can still add at most
	maxCountFrom []int
	maxScoreFrom []float64

	current   []models.ScoredCandidateRow
	score     float64
	covered   int
	nodes     int
	bestCount int
	bestScore float64
	bestPairs []models.ScoredCandidateRow
}

func (s *searcher) computeBounds() {
	n := len(s.employees)
	s.maxCountFrom = make([]int, n+1)
	s.maxScoreFrom = make([]float64, n+1)
	for i := n - 1; i >= 0; i-- {
		best := 0.0
		for _, r := range s.rowsByEmployee[s.employees[i]] {
			if r.AbnormalityScore > best {
				best = r.AbnormalityScore
			}
		}
		s.maxCountFrom[i] = s.maxCountFrom[i+1] + 1
		s.maxScoreFrom[i] = s.maxScoreFrom[i+1] + best
	}
}

func (s *searcher) run(ctx context.Context) error {
	return s.visit(ctx, 0)
}

func (s *searcher) visit(ctx context.Context, idx int) error {
	s.nodes++
	if s.nodes%checkInterval == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	count := len(s.current)
	if idx == len(s.employees) {
		if s.covered < len(s.mustCover) {
			return nil
		}
		if count > s.bestCount || (count == s.bestCount && s.score > s.bestScore) {
			s.bestCount = count
			s.bestScore = s.score
			s.bestPairs = append(s.bestPairs[:0], s.current...)
		}
		return nil
	}

	// Bound: even assigning every remaining employee cannot beat the
	// incumbent.
	boundCount := count + s.maxCountFrom[idx]
	if boundCount < s.bestCount {
		return nil
	}
	if boundCount == s.bestCount && s.score+s.maxScoreFrom[idx] <= s.bestScore {
		return nil
	}

	employee := s.employees[idx]
	for _, row := range s.rowsByEmployee[employee] {
		if s.usedClient[row.ClientID] {
			continue
		}
		s.usedClient[row.ClientID] = true
		if s.mustCover[row.ClientID] {
			s.covered++
		}
		s.current = append(s.current, row)
		s.score += row.AbnormalityScore

		if err := s.visit(ctx, idx+1); err != nil {
			return err
		}

		s.score -= row.AbnormalityScore
		s.current = s.current[:len(s.current)-1]
		if s.mustCover[row.ClientID] {
			s.covered--
		}
		s.usedClient[row.ClientID] = false
	}

	// Skipping is allowed unless the employee is forced; a forced employee
	// with every eligible client taken makes this branch a dead end.
	if s.mustAssign[employee] {
		return nil
	}
	return s.visit(ctx, idx+1)
}
