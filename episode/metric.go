package episode

import "math"

// OptimalTime is the time to traverse a path of the given length at 2 m/s.
func OptimalTime(pathLength float64) float64 {
	return pathLength / 2
}

// NavigationMetric scores an episode as optimal / clip(actual, 4*optimal, 8*optimal) when it
// succeeded and 0 otherwise. The result lies in [0.125, 0.25] for successes. A degenerate
// path with no positive optimal time scores 0.
func NavigationMetric(success bool, pathLength, actualTime float64) float64 {
	optimal := OptimalTime(pathLength)
	if !success || !(optimal > 0) {
		return 0
	}
	clipped := math.Min(math.Max(actualTime, 4*optimal), 8*optimal)
	return optimal / clipped
}
