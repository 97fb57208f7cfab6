package economy

import "math"

type bucket struct {
	min   float64
	label string
}

var firstChapterBuckets = []bucket{
	{0, "0-10"},
	{11, "11-20"},
	{21, "21-50"},
	{51, "50+"},
}

var lastBalanceBuckets = []bucket{
	{0, "0-100"},
	{101, "101-300"},
	{301, "301-500"},
	{501, "501-1000"},
	{1001, "1001-3000"},
	{3001, "3001-5000"},
	{5001, "5000+"},
}

// BucketFirstChapter labels the first chapter a player reached on a day.
func BucketFirstChapter(v float64) string {
	return bucketLabel(v, firstChapterBuckets)
}

// BucketLastBalance labels a player's closing balance for a day.
func BucketLastBalance(v float64) string {
	return bucketLabel(v, lastBalanceBuckets)
}

// bucketLabel finds the half-open interval holding v. Anything that fits
// nowhere, negatives and NaN included, lands in the open-ended top bucket.
func bucketLabel(v float64, buckets []bucket) string {
	last := buckets[len(buckets)-1]
	if math.IsNaN(v) {
		return last.label
	}
	for i := 0; i < len(buckets)-1; i++ {
		if v >= buckets[i].min && v < buckets[i+1].min {
			return buckets[i].label
		}
	}
	return last.label
}
