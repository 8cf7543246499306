// Package logits converts decoder logits into sampled token ids: truncation
// by temperature, top-k and top-p, then a draw from a pluggable randomness
// source.
package logits

import "math"

// SamplerConfig configures the behaviour of a Sampler. Zero values select
// the defaults: temperature 1, no top-k truncation, no top-p truncation.
type SamplerConfig struct {
	Temperature float32
	TopK        int
	TopP        float32
}

// Sampler draws token ids from logits vectors. It keeps its shortlist
// buffers between calls so the per-step cost is allocation-free after the
// first sample.
type Sampler struct {
	src    Source
	cfg    SamplerConfig
	topIdx []int
	topVal []float32
	prob   []float64
}

// NewSampler returns a sampler drawing from the provided source.
func NewSampler(cfg SamplerConfig, src Source) *Sampler {
	if cfg.Temperature <= 0 {
		cfg.Temperature = 1
	}
	if cfg.TopP <= 0 || cfg.TopP > 1 {
		cfg.TopP = 1
	}
	return &Sampler{src: src, cfg: cfg}
}

// Sample draws a single index from the provided logits vector:
//
//  1. Logits are scaled by the inverse temperature.
//  2. The k highest logits are shortlisted, ties broken by ascending index.
//     k <= 0 or k >= len(logits) shortlists everything.
//  3. A softmax over the shortlist is computed with max subtraction for
//     numerical stability.
//  4. If TopP < 1 the shortlist is cut at the smallest prefix whose
//     cumulative probability reaches TopP, and the prefix is renormalised.
//  5. A value from the randomness source selects an index from the result.
//
// TopK == 1 short-circuits to argmax: greedy decoding, unaffected by
// temperature and TopP.
func (s *Sampler) Sample(logits []float32) int {
	if s.cfg.TopK == 1 {
		return argmax(logits)
	}

	invTemp := float32(1.0) / s.cfg.Temperature

	k := s.cfg.TopK
	if k <= 0 || k > len(logits) {
		k = len(logits)
	}
	topIdx, topVal := s.topK(logits, k, invTemp)
	if len(topVal) == 0 {
		return 0
	}

	maxv := topVal[0]
	if cap(s.prob) < len(topVal) {
		s.prob = make([]float64, len(topVal))
	}
	prob := s.prob[:len(topVal)]
	var sum float64
	for i := range topVal {
		e := math.Exp(float64(topVal[i] - maxv))
		prob[i] = e
		sum += e
	}
	if sum == 0 {
		return topIdx[0]
	}
	invSum := 1.0 / sum
	for i := range prob {
		prob[i] *= invSum
	}

	// Nucleus cut: smallest prefix with cumulative probability >= TopP.
	// The shortlist is sorted descending, so this is a prefix scan.
	cut := len(prob)
	if s.cfg.TopP < 1 {
		var c float64
		for i := range prob {
			c += prob[i]
			if float32(c) >= s.cfg.TopP {
				cut = i + 1
				break
			}
		}
		var kept float64
		for i := 0; i < cut; i++ {
			kept += prob[i]
		}
		if kept > 0 {
			scale := 1.0 / kept
			for i := 0; i < cut; i++ {
				prob[i] *= scale
			}
		}
	}

	r := s.src.Float64()
	var c float64
	for i := 0; i < cut; i++ {
		c += prob[i]
		if r < c {
			return topIdx[i]
		}
	}
	return topIdx[cut-1]
}

// argmax returns the index of the maximum value in the slice, the lowest
// index on ties. If the slice is empty it panics.
func argmax(x []float32) int {
	if len(x) == 0 {
		panic("argmax: empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}

// topK returns the indices and values of the k largest elements in logits,
// scaled by invTemp. The returned slices are ordered from largest to
// smallest by value, ascending index on equal values. This is an O(V*K)
// insertion pass, fine for the vocabulary sizes involved.
func (s *Sampler) topK(logits []float32, k int, invTemp float32) ([]int, []float32) {
	if cap(s.topIdx) < k+1 {
		s.topIdx = make([]int, 0, k+1)
		s.topVal = make([]float32, 0, k+1)
	}
	topIdx := s.topIdx[:0]
	topVal := s.topVal[:0]

	for i, l := range logits {
		v := l * invTemp

		pos := len(topVal)
		for pos > 0 && topVal[pos-1] < v {
			pos--
		}
		if pos >= k {
			continue
		}

		topIdx = append(topIdx, 0)
		topVal = append(topVal, 0)
		copy(topIdx[pos+1:], topIdx[pos:])
		copy(topVal[pos+1:], topVal[pos:])
		topIdx[pos] = i
		topVal[pos] = v

		if len(topVal) > k {
			topIdx = topIdx[:k]
			topVal = topVal[:k]
		}
	}
	s.topIdx = topIdx
	s.topVal = topVal
	return topIdx, topVal
}
