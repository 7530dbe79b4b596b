package rules

// DetectSkew returns the skew ratio of a set of partition sizes: how far the
// largest partition sits above the average, relative to the largest. The
// result is in [0, 1); an empty or all-zero set has no skew.
func DetectSkew(sizes []int64) float64 {
	if len(sizes) == 0 {
		return 0
	}

	var total, largest int64
	for _, s := range sizes {
		total += s
		if s > largest {
			largest = s
		}
	}
	if largest <= 0 {
		return 0
	}

	avg := float64(total) / float64(len(sizes))
	return (float64(largest) - avg) / float64(largest)
}

// MitigationStrategies lists remedies for the given skew ratio, stronger
// ones for heavier skew.
func MitigationStrategies(ratio float64) []string {
	switch {
	case ratio < 0.2:
		return []string{"No significant skew detected"}
	case ratio < 0.5:
		return []string{
			"Use salting for join operations",
			"Consider pre-filtering data",
		}
	default:
		return []string{
			"Repartition data with even distribution",
			"Use two-stage join strategy",
			"Consider adaptive partitioning",
		}
	}
}
