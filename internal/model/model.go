// Package model holds the immutable weight tensors of a transliteration
// model and the forward-pass layers that consume them: a bidirectional GRU
// encoder with a fused projection, and an autoregressive decoder built from
// two GRUs around a multi-head attention over the encoder contexts.
//
// A Model is read-only after Load and safe to share across concurrent
// inference calls; all mutable state lives in the per-call Decoder.
package model

import (
	"github.com/VOICEVOX/e2k/internal/tensor"
	"github.com/VOICEVOX/e2k/internal/vocab"
)

// Kind identifies the model's input front end.
type Kind string

const (
	// KindC2K consumes ASCII characters.
	KindC2K Kind = "c2k"
	// KindP2K consumes English phonemes.
	KindP2K Kind = "p2k"
)

// Model is the full weight set of one transliteration model plus its
// vocabulary tables.
type Model struct {
	Kind  Kind
	Dim   int
	Heads int

	SrcVocab *vocab.Table
	DstVocab *vocab.Table

	SrcEmb tensor.Mat // [srcVocab x D]
	DstEmb tensor.Mat // [dstVocab x D]

	EncFwd GRUCell // input D, hidden D
	EncBwd GRUCell // input D, hidden D
	EncFC  Linear  // [D x 2D]

	PreDec  GRUCell   // input D, hidden D
	Attn    Attention // D, Heads heads
	PostDec GRUCell   // input 2D, hidden D
	Out     Linear    // [dstVocab x D]
}

// Encode runs the bidirectional encoder over a token sequence and returns
// one fused context vector per input position. An empty sequence yields an
// empty context.
func (m *Model) Encode(tokens []int) [][]float32 {
	n := len(tokens)
	if n == 0 {
		return nil
	}
	d := m.Dim

	scratch := newGRUScratch(d)
	fwd := make([][]float32, n)
	h := make([]float32, d)
	for t := 0; t < n; t++ {
		m.EncFwd.Step(h, m.SrcEmb.Row(tokens[t]), &scratch)
		fwd[t] = append([]float32(nil), h...)
	}

	bwd := make([][]float32, n)
	for i := range h {
		h[i] = 0
	}
	for t := n - 1; t >= 0; t-- {
		m.EncBwd.Step(h, m.SrcEmb.Row(tokens[t]), &scratch)
		bwd[t] = append([]float32(nil), h...)
	}

	cat := make([]float32, 2*d)
	out := make([][]float32, n)
	for t := 0; t < n; t++ {
		copy(cat[:d], fwd[t])
		copy(cat[d:], bwd[t])
		ctx := make([]float32, d)
		m.EncFC.Forward(ctx, cat)
		for i := range ctx {
			ctx[i] = tensor.Tanh(ctx[i])
		}
		out[t] = ctx
	}
	return out
}

// Decoder is the mutable state of one autoregressive decode: both GRU
// hidden states, the projected attention keys and values, and the scratch
// buffers reused across steps. It belongs to a single inference call and is
// discarded with it.
type Decoder struct {
	m *Model

	keys   [][]float32
	values [][]float32

	h1 []float32 // pre-decoder hidden
	h2 []float32 // post-decoder hidden

	gru     gruScratch
	attn    attnScratch
	attnOut []float32
	cat     []float32
	logits  []float32
}

// NewDecoder prepares a decoder over the given encoder contexts. Both GRU
// hidden states start at zero; the encoder contexts reach the decoder only
// through attention.
func (m *Model) NewDecoder(enc [][]float32) *Decoder {
	d := m.Dim
	keys, values := m.Attn.ProjectKV(enc)
	return &Decoder{
		m:       m,
		keys:    keys,
		values:  values,
		h1:      make([]float32, d),
		h2:      make([]float32, d),
		gru:     newGRUScratch(d),
		attn:    newAttnScratch(d, len(enc)),
		attnOut: make([]float32, d),
		cat:     make([]float32, 2*d),
		logits:  make([]float32, m.Out.W.R),
	}
}

// Step advances the decoder by one position conditioned on the previous
// output token and returns the logits over the output vocabulary. The
// returned slice is reused by the next step.
func (d *Decoder) Step(prevToken int) []float32 {
	m := d.m
	m.PreDec.Step(d.h1, m.DstEmb.Row(prevToken), &d.gru)
	m.Attn.Forward(d.attnOut, d.h1, d.keys, d.values, &d.attn)
	copy(d.cat[:m.Dim], d.h1)
	copy(d.cat[m.Dim:], d.attnOut)
	m.PostDec.Step(d.h2, d.cat, &d.gru)
	m.Out.Forward(d.logits, d.h2)
	return d.logits
}
