package model

import (
	"github.com/VOICEVOX/e2k/internal/tensor"
	"github.com/VOICEVOX/e2k/internal/vocab"
)

// NewRandom builds a model with reproducible pseudo-random weights over the
// given vocabulary tables. It exists for tests and tooling that need a
// structurally valid model without trained weights; the same seed always
// produces the same model.
func NewRandom(kind Kind, src, dst *vocab.Table, dim, heads int, seed int64) *Model {
	m := &Model{
		Kind:     kind,
		Dim:      dim,
		Heads:    heads,
		SrcVocab: src,
		DstVocab: dst,
		SrcEmb:   tensor.NewMat(src.Size(), dim),
		DstEmb:   tensor.NewMat(dst.Size(), dim),
		EncFwd:   randomGRU(dim, dim, seed+1),
		EncBwd:   randomGRU(dim, dim, seed+2),
		EncFC:    randomLinear(dim, 2*dim, seed+3),
		PreDec:   randomGRU(dim, dim, seed+4),
		Attn: Attention{
			Heads:   heads,
			InProj:  randomLinear(3*dim, dim, seed+5),
			OutProj: randomLinear(dim, dim, seed+6),
		},
		PostDec: randomGRU(dim, 2*dim, seed+7),
		Out:     randomLinear(dst.Size(), dim, seed+8),
	}
	tensor.FillRand(&m.SrcEmb, seed+9)
	tensor.FillRand(&m.DstEmb, seed+10)
	return m
}

func randomGRU(hidden, input int, seed int64) GRUCell {
	c := GRUCell{
		Wih: tensor.NewMat(3*hidden, input),
		Whh: tensor.NewMat(3*hidden, hidden),
		Bih: make([]float32, 3*hidden),
		Bhh: make([]float32, 3*hidden),
	}
	tensor.FillRand(&c.Wih, seed)
	tensor.FillRand(&c.Whh, seed+100)
	tensor.FillRandVec(c.Bih, seed+200)
	tensor.FillRandVec(c.Bhh, seed+300)
	return c
}

func randomLinear(out, in int, seed int64) Linear {
	l := Linear{
		W: tensor.NewMat(out, in),
		B: make([]float32, out),
	}
	tensor.FillRand(&l.W, seed)
	tensor.FillRandVec(l.B, seed+100)
	return l
}
