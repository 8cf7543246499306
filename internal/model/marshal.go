package model

import (
	"strconv"

	"github.com/goccy/go-json"

	"github.com/VOICEVOX/e2k/internal/archive"
	"github.com/VOICEVOX/e2k/internal/safetensors"
	"github.com/VOICEVOX/e2k/internal/tensor"
)

// MarshalArchive serialises the model back into an archive that Load
// accepts. Weight values survive a marshal/load round trip bit-identically.
func (m *Model) MarshalArchive(compress bool) ([]byte, error) {
	srcSymbols, err := json.Marshal(m.SrcVocab.Symbols())
	if err != nil {
		return nil, err
	}
	dstSymbols, err := json.Marshal(m.DstVocab.Symbols())
	if err != nil {
		return nil, err
	}
	metadata := map[string]string{
		metaKind:     string(m.Kind),
		metaHeads:    strconv.Itoa(m.Heads),
		metaSrcVocab: string(srcSymbols),
		metaDstVocab: string(dstSymbols),
	}

	tensors := []safetensors.Tensor{
		matTensor(tSrcEmb, m.SrcEmb),
		matTensor(tDstEmb, m.DstEmb),
		matTensor(tEncWih, m.EncFwd.Wih),
		matTensor(tEncWhh, m.EncFwd.Whh),
		vecTensor(tEncBih, m.EncFwd.Bih),
		vecTensor(tEncBhh, m.EncFwd.Bhh),
		matTensor(tEncWihR, m.EncBwd.Wih),
		matTensor(tEncWhhR, m.EncBwd.Whh),
		vecTensor(tEncBihR, m.EncBwd.Bih),
		vecTensor(tEncBhhR, m.EncBwd.Bhh),
		matTensor(tEncFCW, m.EncFC.W),
		vecTensor(tEncFCB, m.EncFC.B),
		matTensor(tPreWih, m.PreDec.Wih),
		matTensor(tPreWhh, m.PreDec.Whh),
		vecTensor(tPreBih, m.PreDec.Bih),
		vecTensor(tPreBhh, m.PreDec.Bhh),
		matTensor(tAttnInW, m.Attn.InProj.W),
		vecTensor(tAttnInB, m.Attn.InProj.B),
		matTensor(tAttnOutW, m.Attn.OutProj.W),
		vecTensor(tAttnOutB, m.Attn.OutProj.B),
		matTensor(tPostWih, m.PostDec.Wih),
		matTensor(tPostWhh, m.PostDec.Whh),
		vecTensor(tPostBih, m.PostDec.Bih),
		vecTensor(tPostBhh, m.PostDec.Bhh),
		matTensor(tOutW, m.Out.W),
		vecTensor(tOutB, m.Out.B),
	}

	payload, err := safetensors.Encode(tensors, metadata)
	if err != nil {
		return nil, err
	}
	return archive.Pack(payload, compress)
}

func matTensor(name string, m tensor.Mat) safetensors.Tensor {
	return safetensors.Tensor{Name: name, Shape: []int{m.R, m.C}, Values: m.Data}
}

func vecTensor(name string, v []float32) safetensors.Tensor {
	return safetensors.Tensor{Name: name, Shape: []int{len(v)}, Values: v}
}
