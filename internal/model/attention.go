package model

import (
	"math"

	"github.com/VOICEVOX/e2k/internal/tensor"
)

// Attention is multi-head scaled dot-product attention with the query, key
// and value projections packed into a single input projection, rows ordered
// q, k, v.
type Attention struct {
	Heads   int
	InProj  Linear // [3D x D]
	OutProj Linear // [D x D]
}

// Dim returns the model width the attention operates on.
func (a *Attention) Dim() int {
	return a.OutProj.W.R
}

// attnScratch holds per-call attention buffers: the projected query, the
// per-head score vector and the concatenated head contexts.
type attnScratch struct {
	q      []float32
	scores []float32
	ctx    []float32
}

func newAttnScratch(dim, srcLen int) attnScratch {
	return attnScratch{
		q:      make([]float32, dim),
		scores: make([]float32, srcLen),
		ctx:    make([]float32, dim),
	}
}

// ProjectKV projects every encoder context vector through the key and value
// parts of the input projection. Done once per inference call; decode steps
// only re-project the query.
func (a *Attention) ProjectKV(enc [][]float32) (keys, values [][]float32) {
	dim := a.Dim()
	keys = make([][]float32, len(enc))
	values = make([][]float32, len(enc))
	for t, x := range enc {
		k := make([]float32, dim)
		v := make([]float32, dim)
		a.projectPart(k, x, dim)
		a.projectPart(v, x, 2*dim)
		keys[t] = k
		values[t] = v
	}
	return keys, values
}

// projectPart applies rows [off, off+dim) of the packed input projection.
func (a *Attention) projectPart(dst, x []float32, off int) {
	dim := a.Dim()
	for r := 0; r < dim; r++ {
		row := a.InProj.W.Row(off + r)
		dst[r] = tensor.Dot(row, x) + a.InProj.B[off+r]
	}
}

// Forward computes the attention-weighted summary of the values for one
// query vector and writes it into dst. Per head, scores are the scaled dot
// products of the query and key slices, normalised with a softmax over the
// source positions. With no source positions the summary is the projected
// zero context.
func (a *Attention) Forward(dst, query []float32, keys, values [][]float32, s *attnScratch) {
	dim := a.Dim()
	headDim := dim / a.Heads
	scale := float32(1.0 / math.Sqrt(float64(headDim)))

	a.projectPart(s.q, query, 0)
	for i := range s.ctx {
		s.ctx[i] = 0
	}
	if len(keys) > 0 {
		scores := s.scores[:len(keys)]
		for h := 0; h < a.Heads; h++ {
			lo, hi := h*headDim, (h+1)*headDim
			for t := range keys {
				scores[t] = tensor.Dot(s.q[lo:hi], keys[t][lo:hi]) * scale
			}
			tensor.Softmax(scores)
			for t := range values {
				tensor.Axpy(s.ctx[lo:hi], scores[t], values[t][lo:hi])
			}
		}
	}
	a.OutProj.Forward(dst, s.ctx)
}
