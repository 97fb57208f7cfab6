package economy

import "sort"

// sortedSum adds vals in ascending order, so any permutation of the same
// values gives a bit-identical total. It sorts vals in place.
func sortedSum(vals []float64) float64 {
	sort.Float64s(vals)
	var total float64
	for _, v := range vals {
		total += v
	}
	return total
}
