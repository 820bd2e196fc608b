package scheduler

import (
	"math"
	"sort"

	"github.com/example/conference-scheduler/internal/domain"
)

const neutralScore = 0.5

func (v *Validator) score(s domain.Schedule) Report {
	counts := v.trackCounts(s)

	roomFit := v.roomFit(s)
	diversity := trackDiversity(counts)
	variety := topicVariety(counts, v.policy.TopicWindow)

	w := v.policy.Weights
	roomFit.Weight = w.RoomFit
	diversity.Weight = w.TrackDiversity
	variety.Weight = w.TopicVariety

	soft := []SoftScore{roomFit, diversity, variety}
	var sum, weights float64
	for _, score := range soft {
		sum += score.Score * score.Weight
		weights += score.Weight
	}

	doublings := 0
	for _, slot := range counts {
		for _, n := range slot {
			if n > 1 {
				doublings += n - 1
			}
		}
	}

	return Report{
		Soft:           soft,
		Total:          sum / weights,
		TrackDoublings: doublings,
		TrackCounts:    counts,
	}
}

// trackCounts builds one track histogram per slot, counting each distinct
// session once.
func (v *Validator) trackCounts(s domain.Schedule) []map[string]int {
	out := make([]map[string]int, s.SlotCount())
	for slot := range out {
		counts := make(map[string]int)
		seen := make(map[string]struct{})
		for _, id := range s.Slot(slot) {
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if track := v.catalog.TrackOf(id); track != "" {
				counts[track]++
			}
		}
		out[slot] = counts
	}
	return out
}

// roomFit is the Spearman rank correlation between session draw and room
// capacity within each slot, mapped from [-1,1] onto [0,1]. Slots with fewer
// than two drawn sessions, or no draw spread, score neutral and are left out
// of the average.
func (v *Validator) roomFit(s domain.Schedule) SoftScore {
	perSlot := make([]float64, s.SlotCount())
	var total float64
	var scored int

	for slot := range perSlot {
		perSlot[slot] = neutralScore
		var draws, capacity []float64
		for room, id := range s.Slot(slot) {
			if id == "" {
				continue
			}
			draw, ok := v.catalog.DrawOf(id)
			if !ok {
				continue
			}
			draws = append(draws, draw)
			// Rank 1 is the largest room, so negate to make bigger mean higher.
			capacity = append(capacity, -float64(v.grid.Room(room).Rank))
		}
		if len(draws) < 2 {
			continue
		}
		rho, ok := pearson(averageRanks(draws), averageRanks(capacity))
		if !ok {
			continue
		}
		perSlot[slot] = (rho + 1) / 2
		total += perSlot[slot]
		scored++
	}

	score := neutralScore
	if scored > 0 {
		score = total / float64(scored)
	}
	return SoftScore{Rule: RuleRoomFit, Score: score, PerSlot: perSlot}
}

// trackDiversity scores each slot as 1 - same-track pairs / all pairs.
func trackDiversity(counts []map[string]int) SoftScore {
	perSlot := make([]float64, len(counts))
	var total float64
	for slot, histogram := range counts {
		n := 0
		collisions := 0
		for _, c := range histogram {
			n += c
			collisions += c * (c - 1) / 2
		}
		perSlot[slot] = 1
		if pairs := n * (n - 1) / 2; pairs > 0 {
			perSlot[slot] = 1 - float64(collisions)/float64(pairs)
		}
		total += perSlot[slot]
	}

	score := 1.0
	if len(counts) > 0 {
		score = total / float64(len(counts))
	}
	return SoftScore{Rule: RuleTrackDiversity, Score: score, PerSlot: perSlot}
}

// topicVariety penalises the same track recurring within window following
// slots. Each slot's entry compares it against the slots after it.
func topicVariety(counts []map[string]int, window int) SoftScore {
	perSlot := make([]float64, len(counts))
	var same, cross int
	for i := range counts {
		var slotSame, slotCross int
		for j := i + 1; j <= i+window && j < len(counts); j++ {
			slotCross += sessionsIn(counts[i]) * sessionsIn(counts[j])
			for track, n := range counts[i] {
				slotSame += n * counts[j][track]
			}
		}
		perSlot[i] = 1
		if slotCross > 0 {
			perSlot[i] = 1 - float64(slotSame)/float64(slotCross)
		}
		same += slotSame
		cross += slotCross
	}

	score := 1.0
	if cross > 0 {
		score = 1 - float64(same)/float64(cross)
	}
	return SoftScore{Rule: RuleTopicVariety, Score: score, PerSlot: perSlot}
}

func sessionsIn(histogram map[string]int) int {
	n := 0
	for _, c := range histogram {
		n += c
	}
	return n
}

// averageRanks assigns 1-based ascending ranks, averaging ties.
func averageRanks(values []float64) []float64 {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })

	ranks := make([]float64, len(values))
	for i := 0; i < len(order); {
		j := i
		for j+1 < len(order) && values[order[j+1]] == values[order[i]] {
			j++
		}
		rank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = rank
		}
		i = j + 1
	}
	return ranks
}

// pearson returns the correlation coefficient, or false when either series
// has no variance.
func pearson(x, y []float64) (float64, bool) {
	n := float64(len(x))
	var mx, my float64
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= n
	my /= n

	var cov, vx, vy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0, false
	}
	r := cov / math.Sqrt(vx*vy)
	return math.Max(-1, math.Min(1, r)), true
}
