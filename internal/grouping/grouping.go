// Package grouping splits a set of scored members into balanced groups.
//
// Every function here is deterministic: ties are broken by user id so the same
// input always yields the same plan.
package grouping

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"
)

type Strategy string

const (
	Snake       Strategy = "snake"
	Complement  Strategy = "complement"
	Leaderboard Strategy = "leaderboard"
)

var (
	ErrNoMembers        = errors.New("no members to group")
	ErrInvalidGroupSize = errors.New("group count or size must be positive")
	ErrTooManyGroups    = errors.New("more groups than members")
	ErrUnknownStrategy  = errors.New("unknown grouping strategy")
)

// Member is one person to place. Competencies are keyed by category id, in percent.
type Member struct {
	UserID       string
	Name         string
	Score        float64
	Competencies map[uint]float64
}

type Group struct {
	Index        int
	Members      []Member
	Leader       string
	AverageScore float64
	Variance     float64
}

type Plan struct {
	Strategy         Strategy
	Groups           []Group
	BalanceScore     float64
	MeanOfAverages   float64
	StdDevOfAverages float64
	Swaps            int
}

type Options struct {
	GroupCount int
	GroupSize  int
	Strategy   Strategy
	Rebalance  bool
	MaxSwaps   int
}

const defaultMaxSwaps = 1000

// GroupCount resolves how many groups to build for n members. An explicit count
// wins over a target size.
func GroupCount(n int, opts Options) (int, error) {
	if n == 0 {
		return 0, ErrNoMembers
	}
	k := opts.GroupCount
	if k == 0 && opts.GroupSize > 0 {
		k = (n + opts.GroupSize - 1) / opts.GroupSize
	}
	if k < 1 {
		return 0, ErrInvalidGroupSize
	}
	if k > n {
		return 0, fmt.Errorf("%w: %d groups for %d members", ErrTooManyGroups, k, n)
	}
	return k, nil
}

// Build produces a grouping plan for members according to opts.
func Build(members []Member, opts Options) (*Plan, error) {
	k, err := GroupCount(len(members), opts)
	if err != nil {
		return nil, err
	}

	var groups []Group
	switch opts.Strategy {
	case Snake, Leaderboard, "":
		groups = SnakeDistribute(members, k)
	case Complement:
		groups = ComplementMatch(members, k)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, opts.Strategy)
	}

	plan := &Plan{Strategy: opts.Strategy}
	if plan.Strategy == "" {
		plan.Strategy = Snake
	}

	if opts.Rebalance {
		maxSwaps := opts.MaxSwaps
		if maxSwaps <= 0 {
			maxSwaps = defaultMaxSwaps
		}
		plan.Swaps = Rebalance(groups, maxSwaps)
	}

	for i := range groups {
		finalize(&groups[i])
	}
	plan.Groups = groups

	averages := lo.Map(groups, func(g Group, _ int) float64 { return g.AverageScore })
	plan.MeanOfAverages = round2(Mean(averages))
	plan.StdDevOfAverages = round2(math.Sqrt(Variance(averages)))
	plan.BalanceScore = BalanceScore(groups)
	return plan, nil
}

// SortByScore orders members by score descending, then user id ascending.
func SortByScore(members []Member) []Member {
	sorted := make([]Member, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].UserID < sorted[j].UserID
	})
	return sorted
}

// SnakeDistribute deals members ranked by score into k groups going
// 0..k-1 then k-1..0, so strong and weak picks alternate between groups.
func SnakeDistribute(members []Member, k int) []Group {
	groups := newGroups(k)
	for i, m := range SortByScore(members) {
		round, pos := i/k, i%k
		idx := pos
		if round%2 == 1 {
			idx = k - 1 - pos
		}
		groups[idx].Members = append(groups[idx].Members, m)
	}
	return groups
}

// ComplementMatch seeds each group with one of the k strongest members, then
// repeatedly gives the smallest group the remaining member that best covers
// the categories where that group is weakest.
func ComplementMatch(members []Member, k int) []Group {
	sorted := SortByScore(members)
	groups := newGroups(k)
	for i := 0; i < k; i++ {
		groups[i].Members = append(groups[i].Members, sorted[i])
	}
	remaining := sorted[k:]

	for len(remaining) > 0 {
		target := pickSmallestGroup(groups)
		profile := competencyProfile(groups[target].Members)

		best := 0
		bestGain := complementGain(remaining[0], profile)
		for i := 1; i < len(remaining); i++ {
			gain := complementGain(remaining[i], profile)
			// remaining is score-sorted so earlier entries already win ties
			if gain > bestGain+1e-9 {
				best, bestGain = i, gain
			}
		}

		groups[target].Members = append(groups[target].Members, remaining[best])
		remaining = append(remaining[:best:best], remaining[best+1:]...)
	}
	return groups
}

func pickSmallestGroup(groups []Group) int {
	target := 0
	for i := 1; i < len(groups); i++ {
		a, b := groups[i], groups[target]
		if len(a.Members) != len(b.Members) {
			if len(a.Members) < len(b.Members) {
				target = i
			}
			continue
		}
		if meanScore(a.Members) < meanScore(b.Members)-1e-9 {
			target = i
		}
	}
	return target
}

// competencyProfile is the per-category mean of members; a missing category counts as 0.
func competencyProfile(members []Member) map[uint]float64 {
	profile := map[uint]float64{}
	for _, m := range members {
		for c, v := range m.Competencies {
			profile[c] += v / float64(len(members))
		}
	}
	return profile
}

// complementGain sums how far m exceeds the group mean in each category.
func complementGain(m Member, profile map[uint]float64) float64 {
	var gain float64
	for c, v := range m.Competencies {
		if d := v - profile[c]; d > 0 {
			gain += d
		}
	}
	return gain
}

// Rebalance applies the best variance-reducing swap between two groups until
// no swap improves the spread of group averages or maxSwaps is reached.
// Group sizes never change. It returns the number of swaps performed.
//
// Candidate swaps are scored from per-group score sums, so a pass over all
// member pairs costs O(n^2) regardless of the number of groups.
func Rebalance(groups []Group, maxSwaps int) int {
	k := float64(len(groups))
	if len(groups) < 2 {
		return 0
	}

	sums := make([]float64, len(groups))
	for g := range groups {
		sums[g] = lo.SumBy(groups[g].Members, func(m Member) float64 { return m.Score })
	}
	avg := func(g int) float64 {
		if len(groups[g].Members) == 0 {
			return 0
		}
		return sums[g] / float64(len(groups[g].Members))
	}

	swaps := 0
	for swaps < maxSwaps {
		// population variance of averages is sumSq/k - (sum/k)^2
		var sumAvg, sumSq float64
		for g := range groups {
			a := avg(g)
			sumAvg += a
			sumSq += a * a
		}
		current := sumSq/k - (sumAvg/k)*(sumAvg/k)

		bestDelta := 0.0
		var bi, bj, bx, by int
		found := false

		for i := 0; i < len(groups); i++ {
			ni := float64(len(groups[i].Members))
			ai := avg(i)
			for j := i + 1; j < len(groups); j++ {
				nj := float64(len(groups[j].Members))
				aj := avg(j)
				for x, mx := range groups[i].Members {
					for y, my := range groups[j].Members {
						d := my.Score - mx.Score
						if d == 0 {
							continue
						}
						ai2 := ai + d/ni
						aj2 := aj - d/nj
						s := sumAvg - ai - aj + ai2 + aj2
						sq := sumSq - ai*ai - aj*aj + ai2*ai2 + aj2*aj2
						delta := sq/k - (s/k)*(s/k) - current

						if delta < bestDelta-1e-9 {
							bestDelta = delta
							bi, bj, bx, by = i, j, x, y
							found = true
						}
					}
				}
			}
		}

		if !found {
			break
		}
		d := groups[bj].Members[by].Score - groups[bi].Members[bx].Score
		groups[bi].Members[bx], groups[bj].Members[by] = groups[bj].Members[by], groups[bi].Members[bx]
		sums[bi] += d
		sums[bj] -= d
		swaps++
	}
	return swaps
}

// BalanceScore rates how even group averages are, 100 being identical.
// It is 100*(1 - stddev/mean) clamped to [0,100].
func BalanceScore(groups []Group) float64 {
	if len(groups) < 2 {
		return 100
	}
	averages := groupAverages(groups)
	mean := Mean(averages)
	if mean == 0 {
		return 100
	}
	score := 100 * (1 - math.Sqrt(Variance(averages))/mean)
	return round2(math.Max(0, math.Min(100, score)))
}

func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return lo.Sum(values) / float64(len(values))
}

// Variance is the population variance of values.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	var sum float64
	for _, v := range values {
		sum += (v - mean) * (v - mean)
	}
	return sum / float64(len(values))
}

func newGroups(k int) []Group {
	groups := make([]Group, k)
	for i := range groups {
		groups[i].Index = i
	}
	return groups
}

func groupAverages(groups []Group) []float64 {
	return lo.Map(groups, func(g Group, _ int) float64 { return meanScore(g.Members) })
}

func meanScore(members []Member) float64 {
	return Mean(lo.Map(members, func(m Member, _ int) float64 { return m.Score }))
}

// finalize computes group stats and marks the top scorer as leader.
func finalize(g *Group) {
	g.Members = SortByScore(g.Members)
	scores := lo.Map(g.Members, func(m Member, _ int) float64 { return m.Score })
	g.AverageScore = round2(Mean(scores))
	g.Variance = round2(Variance(scores))
	if len(g.Members) > 0 {
		g.Leader = g.Members[0].UserID
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
