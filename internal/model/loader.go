package model

import (
	"strconv"

	"github.com/goccy/go-json"

	"github.com/VOICEVOX/e2k/internal/archive"
	"github.com/VOICEVOX/e2k/internal/safetensors"
	"github.com/VOICEVOX/e2k/internal/tensor"
	"github.com/VOICEVOX/e2k/internal/vocab"
)

// Tensor names inside the archive. These follow the exported training
// checkpoint layout and must not be renamed.
const (
	tSrcEmb = "e_emb.weight"
	tDstEmb = "k_emb.weight"

	tEncWih  = "encoder.weight_ih_l0"
	tEncWhh  = "encoder.weight_hh_l0"
	tEncBih  = "encoder.bias_ih_l0"
	tEncBhh  = "encoder.bias_hh_l0"
	tEncWihR = "encoder.weight_ih_l0_reverse"
	tEncWhhR = "encoder.weight_hh_l0_reverse"
	tEncBihR = "encoder.bias_ih_l0_reverse"
	tEncBhhR = "encoder.bias_hh_l0_reverse"

	tEncFCW = "encoder_fc.0.weight"
	tEncFCB = "encoder_fc.0.bias"

	tPreWih = "pre_decoder.weight_ih_l0"
	tPreWhh = "pre_decoder.weight_hh_l0"
	tPreBih = "pre_decoder.bias_ih_l0"
	tPreBhh = "pre_decoder.bias_hh_l0"

	tAttnInW  = "attn.in_proj_weight"
	tAttnInB  = "attn.in_proj_bias"
	tAttnOutW = "attn.out_proj.weight"
	tAttnOutB = "attn.out_proj.bias"

	tPostWih = "post_decoder.weight_ih_l0"
	tPostWhh = "post_decoder.weight_hh_l0"
	tPostBih = "post_decoder.bias_ih_l0"
	tPostBhh = "post_decoder.bias_hh_l0"

	tOutW = "fc.weight"
	tOutB = "fc.bias"
)

// Metadata keys inside the archive.
const (
	metaKind     = "kind"
	metaHeads    = "heads"
	metaSrcVocab = "src_vocab"
	metaDstVocab = "dst_vocab"
)

// Load deserialises a model archive into an immutable Model. The archive is
// unwrapped, decompressed and validated eagerly: every tensor is fetched,
// every shape is checked against the dimensions derived from the embedding
// tables, and the vocabulary tables must agree with them. Any inconsistency
// returns an *archive.FormatError; a Model that loads is safe to use without
// further shape checks.
func Load(data []byte) (*Model, error) {
	payload, err := archive.Unpack(data)
	if err != nil {
		return nil, err
	}
	st, err := safetensors.Parse(payload)
	if err != nil {
		return nil, archive.Errorf("%w", err)
	}

	kind := Kind(st.Metadata[metaKind])
	if kind != KindC2K && kind != KindP2K {
		return nil, archive.Errorf("unknown model kind %q", st.Metadata[metaKind])
	}
	heads, err := strconv.Atoi(st.Metadata[metaHeads])
	if err != nil || heads <= 0 {
		return nil, archive.Errorf("invalid head count %q", st.Metadata[metaHeads])
	}

	srcTable, err := loadTable(st, metaSrcVocab)
	if err != nil {
		return nil, err
	}
	dstTable, err := loadTable(st, metaDstVocab)
	if err != nil {
		return nil, err
	}

	ld := loader{st: st}
	srcEmb := ld.mat(tSrcEmb, srcTable.Size(), -1)
	dim := srcEmb.C
	if ld.err == nil && (dim <= 0 || dim%heads != 0) {
		return nil, archive.Errorf("embedding width %d not divisible by %d heads", dim, heads)
	}

	m := &Model{
		Kind:     kind,
		Dim:      dim,
		Heads:    heads,
		SrcVocab: srcTable,
		DstVocab: dstTable,
		SrcEmb:   srcEmb,
		DstEmb:   ld.mat(tDstEmb, dstTable.Size(), dim),
		EncFwd:   ld.gru(tEncWih, tEncWhh, tEncBih, tEncBhh, dim, dim),
		EncBwd:   ld.gru(tEncWihR, tEncWhhR, tEncBihR, tEncBhhR, dim, dim),
		EncFC:    ld.linear(tEncFCW, tEncFCB, dim, 2*dim),
		PreDec:   ld.gru(tPreWih, tPreWhh, tPreBih, tPreBhh, dim, dim),
		Attn: Attention{
			Heads:   heads,
			InProj:  ld.linear(tAttnInW, tAttnInB, 3*dim, dim),
			OutProj: ld.linear(tAttnOutW, tAttnOutB, dim, dim),
		},
		PostDec: ld.gru(tPostWih, tPostWhh, tPostBih, tPostBhh, dim, 2*dim),
		Out:     ld.linear(tOutW, tOutB, dstTable.Size(), dim),
	}
	if ld.err != nil {
		return nil, ld.err
	}
	return m, nil
}

func loadTable(st *safetensors.File, key string) (*vocab.Table, error) {
	raw, ok := st.Metadata[key]
	if !ok {
		return nil, archive.Errorf("missing %s table", key)
	}
	var symbols []string
	if err := json.Unmarshal([]byte(raw), &symbols); err != nil {
		return nil, archive.Errorf("parse %s table: %w", key, err)
	}
	table, err := vocab.NewTable(symbols)
	if err != nil {
		return nil, archive.Errorf("%s table: %w", key, err)
	}
	return table, nil
}

// loader accumulates the first tensor error so the shape of the whole load
// stays linear instead of nesting per-tensor error checks.
type loader struct {
	st  *safetensors.File
	err error
}

// mat fetches a 2D tensor with the expected row and column counts. Either
// expectation may be -1 to accept what the archive declares.
func (l *loader) mat(name string, rows, cols int) tensor.Mat {
	if l.err != nil {
		return tensor.Mat{}
	}
	values, info, err := l.st.ReadTensorF32(name)
	if err != nil {
		l.err = archive.Errorf("%w", err)
		return tensor.Mat{}
	}
	if len(info.Shape) != 2 {
		l.err = archive.Errorf("tensor %s: expected 2 dims, have %d", name, len(info.Shape))
		return tensor.Mat{}
	}
	r, c := info.Shape[0], info.Shape[1]
	if (rows >= 0 && r != rows) || (cols >= 0 && c != cols) {
		l.err = archive.Errorf("tensor %s: shape [%d %d] does not match expected [%d %d]", name, r, c, rows, cols)
		return tensor.Mat{}
	}
	return tensor.NewMatFromData(r, c, values)
}

// vec fetches a 1D tensor of the expected length.
func (l *loader) vec(name string, length int) []float32 {
	if l.err != nil {
		return nil
	}
	values, info, err := l.st.ReadTensorF32(name)
	if err != nil {
		l.err = archive.Errorf("%w", err)
		return nil
	}
	if len(info.Shape) != 1 || info.Shape[0] != length {
		l.err = archive.Errorf("tensor %s: shape %v does not match expected [%d]", name, info.Shape, length)
		return nil
	}
	return values
}

func (l *loader) gru(wih, whh, bih, bhh string, hidden, input int) GRUCell {
	return GRUCell{
		Wih: l.mat(wih, 3*hidden, input),
		Whh: l.mat(whh, 3*hidden, hidden),
		Bih: l.vec(bih, 3*hidden),
		Bhh: l.vec(bhh, 3*hidden),
	}
}

func (l *loader) linear(w, b string, out, in int) Linear {
	return Linear{
		W: l.mat(w, out, in),
		B: l.vec(b, out),
	}
}
