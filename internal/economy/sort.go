package economy

import (
	"sort"
	"strings"
)

// NaturalLess orders strings so that embedded numbers compare by value:
// "0-10" < "11-20" < "50+", "1.9.0" < "1.10.0". Labels with no digits
// sort after numeric ones.
func NaturalLess(a, b string) bool {
	for a != "" && b != "" {
		ac, arest, anum := nextChunk(a)
		bc, brest, bnum := nextChunk(b)
		switch {
		case anum && bnum:
			if c := compareDigits(ac, bc); c != 0 {
				return c < 0
			}
		case anum != bnum:
			return anum
		default:
			if ac != bc {
				return ac < bc
			}
		}
		a, b = arest, brest
	}
	return len(a) < len(b)
}

// SortNatural sorts values in place using NaturalLess.
func SortNatural(values []string) {
	sort.SliceStable(values, func(i, j int) bool { return NaturalLess(values[i], values[j]) })
}

func nextChunk(s string) (chunk, rest string, numeric bool) {
	numeric = isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == numeric {
		i++
	}
	return s[:i], s[i:], numeric
}

func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// distinctNatural returns the unique values in natural order.
func distinctNatural(values map[string]struct{}) []string {
	out := make([]string, 0, len(values))
	for v := range values {
		out = append(out, v)
	}
	SortNatural(out)
	return out
}
