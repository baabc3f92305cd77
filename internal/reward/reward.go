// Package reward computes the credit transfer for a finished game.
package reward

import "math"

const (
	// BaseReward is the reward before efficiency, skill and stake scaling.
	BaseReward = 50

	minStones   = 9
	skillSpread = 200.0
)

// Compute returns the unsigned reward for a winner holding cw credits over
// a loser holding cl credits after stones placements. It is never below 1.
func Compute(cw, cl, stones int) int {
	s := stones
	if s < minStones {
		s = minStones
	}
	efficiency := 1 / math.Sqrt(float64(s))

	avg := float64(cw+cl) / 2
	scale := math.Log(2*avg+10) / 5

	diff := math.Abs(float64(cw-cl)) / skillSpread
	skill := 1 + diff
	if cw >= cl {
		skill = 1 / (1 + diff)
	}

	x := BaseReward * efficiency * skill * scale
	if math.IsNaN(x) || x < 1 {
		return 1
	}
	return int(math.RoundToEven(x))
}

// Settle returns the winner and loser deltas. The loser never drops below
// zero credits.
func Settle(cw, cl, stones int) (winner, loser int) {
	r := Compute(cw, cl, stones)
	loss := r
	if floor := max(cl, 0); loss > floor {
		loss = floor
	}
	return r, -loss
}
