package safetensors

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/goccy/go-json"
)

// Tensor is a named F32 tensor to be written into an archive.
type Tensor struct {
	Name   string
	Shape  []int
	Values []float32
}

// Encode serialises tensors and optional metadata into a safetensors blob.
// Tensors are laid out in name order and the header is built with sorted
// keys, so encoding the same inputs always yields the same bytes and a
// parse/encode round trip is bit-identical.
func Encode(tensors []Tensor, metadata map[string]string) ([]byte, error) {
	sorted := append([]Tensor(nil), tensors...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	header := make(map[string]any, len(sorted)+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}

	var payload bytes.Buffer
	for _, t := range sorted {
		n, err := numElements(t.Shape)
		if err != nil {
			return nil, fmt.Errorf("safetensors: tensor %s: %w", t.Name, err)
		}
		if n != len(t.Values) {
			return nil, fmt.Errorf("safetensors: tensor %s: shape needs %d values, have %d", t.Name, n, len(t.Values))
		}
		if _, dup := header[t.Name]; dup {
			return nil, fmt.Errorf("safetensors: duplicate tensor %s", t.Name)
		}
		start := int64(payload.Len())
		var scratch [4]byte
		for _, v := range t.Values {
			binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(v))
			payload.Write(scratch[:])
		}
		header[t.Name] = tensorHeader{
			DType:       "F32",
			Shape:       t.Shape,
			DataOffsets: []int64{start, int64(payload.Len())},
		}
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("safetensors: marshal header: %w", err)
	}

	out := make([]byte, 0, 8+len(headerBytes)+payload.Len())
	out = binary.LittleEndian.AppendUint64(out, uint64(len(headerBytes)))
	out = append(out, headerBytes...)
	out = append(out, payload.Bytes()...)
	return out, nil
}
