// Package util
//
// This file implements the statistics used by GetInfo: a size histogram with
// exponential buckets for value sizes and a small summary type for arbitrary
// samples (e.g. remaining TTLs).
//
// Both are intended for sampled data: a store reports estimates computed from a
// bounded number of entries instead of scanning everything.
package util

import (
	"math"
	"sort"
)

// ----------------------------------------------------------------------------
// Stats
// ----------------------------------------------------------------------------

type Stats struct {
	Count        int     `json:"count"`
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	Median       float64 `json:"median"`
}

// NewStats computes count, mean, median, standard deviation (population), min
// and max of values. The input slice is not modified.
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))

	var sumSquaredDiffs float64
	for _, v := range sorted {
		diff := v - mean
		sumSquaredDiffs += diff * diff
	}

	var median float64
	if n := len(sorted); n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return Stats{
		Count:        len(sorted),
		StdDeviation: math.Sqrt(sumSquaredDiffs / float64(len(sorted))),
		Min:          sorted[0],
		Max:          sorted[len(sorted)-1],
		Mean:         mean,
		Median:       median,
	}
}

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// sizeBoundaries are the upper bounds of the histogram buckets, from 16 bytes
// to 4 GB. A final implicit bucket takes everything larger.
var sizeBoundaries = []int{
	16, 64, 256, 1024, 4096, // Bytes: 16B to 4KB
	16384, 65536, 262144, 1048576, // KB range: 16KB to 1MB
	4194304, 16777216, 67108864, // MB range: 4MB to 64MB
	268435456, 1073741824, 4294967296, // Above 256MB to 4GB
}

// SizeHistogram tracks the distribution of value sizes in exponential buckets.
//
// Not thread-safe: it is filled and read within a single GetInfo call.
type SizeHistogram struct {
	buckets []int64 // Count of items in each bucket
	count   int64   // Total number of samples
	sum     int64   // Sum of all sampled sizes
}

// NewSizeHistogram creates an empty histogram
func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{
		buckets: make([]int64, len(sizeBoundaries)+1),
	}
}

// AddSample adds a size sample to the histogram
func (h *SizeHistogram) AddSample(size int) {
	bucketIndex := sort.SearchInts(sizeBoundaries, size)
	h.buckets[bucketIndex]++
	h.count++
	h.sum += int64(size)
}

// Count returns the total number of samples
func (h *SizeHistogram) Count() int64 {
	return h.count
}

// AverageSize returns the average size across all samples
func (h *SizeHistogram) AverageSize() int {
	if h.count == 0 {
		return 0
	}
	return int(h.sum / h.count)
}

// MedianEstimate estimates the median size based on the histogram
func (h *SizeHistogram) MedianEstimate() int {
	return h.PercentileEstimate(50)
}

// PercentileEstimate returns an estimate for the given percentile (0-100).
// The estimate is the midpoint of the bucket containing the percentile.
func (h *SizeHistogram) PercentileEstimate(percentile int) int {
	if h.count == 0 || percentile < 0 || percentile > 100 {
		return 0
	}

	targetCount := int64(math.Ceil(float64(h.count) * float64(percentile) / 100.0))
	cumulativeCount := int64(0)

	for i, count := range h.buckets {
		cumulativeCount += count
		if cumulativeCount >= targetCount {
			switch {
			case i == 0:
				// first bucket: half of the boundary
				return sizeBoundaries[0] / 2
			case i < len(sizeBoundaries):
				return (sizeBoundaries[i-1] + sizeBoundaries[i]) / 2
			default:
				// overflow bucket: 2x the last boundary
				return sizeBoundaries[len(sizeBoundaries)-1] * 2
			}
		}
	}

	return int(h.sum / h.count)
}
