package model

import "github.com/VOICEVOX/e2k/internal/tensor"

// Linear is an affine projection y = W*x + b.
type Linear struct {
	W tensor.Mat // [out x in]
	B []float32  // [out]
}

// Forward writes W*x + b into dst. dst must have length W.R.
func (l *Linear) Forward(dst, x []float32) {
	tensor.MatVec(dst, &l.W, x)
	tensor.Add(dst, l.B)
}

// GRUCell is a gated recurrent unit. The input and hidden weight matrices
// hold the reset, update and candidate gates stacked along the rows in that
// order, matching the layout trained models are exported with.
type GRUCell struct {
	Wih tensor.Mat // [3H x in]
	Whh tensor.Mat // [3H x H]
	Bih []float32  // [3H]
	Bhh []float32  // [3H]
}

// Hidden returns the hidden-state width of the cell.
func (c *GRUCell) Hidden() int {
	return c.Whh.C
}

// gruScratch holds the per-step gate activations so the decode loop does not
// allocate. gi and gh are each sized 3H.
type gruScratch struct {
	gi []float32
	gh []float32
}

func newGRUScratch(hidden int) gruScratch {
	return gruScratch{
		gi: make([]float32, 3*hidden),
		gh: make([]float32, 3*hidden),
	}
}

// Step advances the hidden state in place given one input vector:
//
//	r = sigmoid(Wir*x + bir + Whr*h + bhr)
//	z = sigmoid(Wiz*x + biz + Whz*h + bhz)
//	n = tanh(Win*x + bin + r*(Whn*h + bhn))
//	h' = (1-z)*n + z*h
func (c *GRUCell) Step(h, x []float32, s *gruScratch) {
	hid := c.Hidden()
	tensor.MatVec(s.gi, &c.Wih, x)
	tensor.Add(s.gi, c.Bih)
	tensor.MatVec(s.gh, &c.Whh, h)
	tensor.Add(s.gh, c.Bhh)
	for i := 0; i < hid; i++ {
		r := tensor.Sigmoid(s.gi[i] + s.gh[i])
		z := tensor.Sigmoid(s.gi[hid+i] + s.gh[hid+i])
		n := tensor.Tanh(s.gi[2*hid+i] + r*s.gh[2*hid+i])
		h[i] = (1-z)*n + z*h[i]
	}
}
