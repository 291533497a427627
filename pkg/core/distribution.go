package core

import (
	"fmt"
	"math"
	"sort"
)

// Distribution is a discrete distribution over elements, proportional to
// a non-negative weight per element. It supports O(log n) sampling and exact
// probability-mass lookup, and is used both to pick light sources by power
// and to resample candidate light sub-paths at cache points.
type Distribution[T any] struct {
	elements []T
	cdf      []float64 // length len(elements)+1, cdf[0] = 0, cdf[n] = 1
	total    float64
}

// NewDistribution builds a distribution over elements weighted by weight.
// The elements slice is referenced, not copied.
func NewDistribution[T any](elements []T, weight func(T) float64) *Distribution[T] {
	d := &Distribution[T]{}
	d.Rebuild(elements, weight)
	return d
}

// Rebuild replaces the contents of the distribution, reusing its CDF storage
func (d *Distribution[T]) Rebuild(elements []T, weight func(T) float64) {
	d.elements = elements
	if cap(d.cdf) < len(elements)+1 {
		d.cdf = make([]float64, len(elements)+1)
	}
	d.cdf = d.cdf[:len(elements)+1]

	sum := 0.0
	d.cdf[0] = 0
	for i, e := range elements {
		w := weight(e)
		if w < 0 || math.IsNaN(w) {
			panic(fmt.Sprintf("distribution weight %d must be non-negative, got %v", i, w))
		}
		sum += w
		d.cdf[i+1] = sum
	}
	d.total = sum

	if sum > 0 {
		inv := 1 / sum
		for i := 1; i < len(d.cdf); i++ {
			d.cdf[i] *= inv
		}
		d.cdf[len(d.cdf)-1] = 1
	}
}

// DistributionSample is the result of drawing from a Distribution
type DistributionSample[T any] struct {
	Value T
	Index int
	PMF   float64
}

// Sample draws one element with probability proportional to its weight.
// It returns false when the distribution is empty or all weights are zero.
func (d *Distribution[T]) Sample(sampler Sampler) (DistributionSample[T], bool) {
	return d.SampleAt(sampler.Get1D())
}

// SampleAt selects the element whose CDF bucket contains u in [0, 1)
func (d *Distribution[T]) SampleAt(u float64) (DistributionSample[T], bool) {
	if d.total <= 0 || len(d.elements) == 0 {
		return DistributionSample[T]{}, false
	}

	// upper bound: first cdf entry strictly greater than u; zero-mass buckets are never selected
	i := sort.Search(len(d.cdf), func(k int) bool { return d.cdf[k] > u }) - 1
	i = max(0, min(i, len(d.elements)-1))

	return DistributionSample[T]{Value: d.elements[i], Index: i, PMF: d.PMF(i)}, true
}

// PMF returns the probability mass of element i
func (d *Distribution[T]) PMF(i int) float64 {
	if d.total <= 0 {
		return 0
	}
	return d.cdf[i+1] - d.cdf[i]
}

// NormalizationConstant returns the raw sum of weights
func (d *Distribution[T]) NormalizationConstant() float64 {
	return d.total
}
