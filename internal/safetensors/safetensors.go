// Package safetensors reads and writes the safetensors tensor archive
// format: an 8-byte little-endian header length, a JSON table describing
// dtype, shape and data offsets per tensor, then the raw tensor payload.
// Archives here are held fully in memory since they arrive as embedded or
// caller-loaded blobs.
package safetensors

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/goccy/go-json"
)

const metadataKey = "__metadata__"

type TensorInfo struct {
	DType string
	Shape []int
	Start int64
	End   int64
}

// File is a parsed archive. The tensor payload is referenced, not copied.
type File struct {
	Metadata map[string]string
	tensors  map[string]TensorInfo
	data     []byte
}

type tensorHeader struct {
	DType       string  `json:"dtype"`
	Shape       []int   `json:"shape"`
	DataOffsets []int64 `json:"data_offsets"`
}

// Parse decodes an archive held in memory. Offsets are validated against the
// payload length so a truncated archive fails here rather than at tensor
// access time.
func Parse(data []byte) (*File, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("safetensors: truncated header length")
	}
	headerLen := binary.LittleEndian.Uint64(data)
	if headerLen > uint64(len(data)-8) {
		return nil, fmt.Errorf("safetensors: header length %d exceeds archive size", headerLen)
	}
	headerBytes := data[8 : 8+headerLen]
	payload := data[8+headerLen:]

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &raw); err != nil {
		return nil, fmt.Errorf("safetensors: parse header: %w", err)
	}

	f := &File{
		tensors: make(map[string]TensorInfo, len(raw)),
		data:    payload,
	}
	if msg, ok := raw[metadataKey]; ok {
		if err := json.Unmarshal(msg, &f.Metadata); err != nil {
			return nil, fmt.Errorf("safetensors: parse metadata: %w", err)
		}
		delete(raw, metadataKey)
	}

	for name, msg := range raw {
		var th tensorHeader
		if err := json.Unmarshal(msg, &th); err != nil {
			return nil, fmt.Errorf("safetensors: parse tensor %s: %w", name, err)
		}
		if len(th.DataOffsets) != 2 {
			return nil, fmt.Errorf("safetensors: tensor %s: invalid data_offsets", name)
		}
		start, end := th.DataOffsets[0], th.DataOffsets[1]
		if start < 0 || end < start || end > int64(len(payload)) {
			return nil, fmt.Errorf("safetensors: tensor %s: offsets [%d,%d) outside payload of %d bytes", name, start, end, len(payload))
		}
		f.tensors[name] = TensorInfo{
			DType: th.DType,
			Shape: th.Shape,
			Start: start,
			End:   end,
		}
	}
	return f, nil
}

// Tensor returns the descriptor for a tensor by name.
func (f *File) Tensor(name string) (TensorInfo, bool) {
	t, ok := f.tensors[name]
	return t, ok
}

// TensorNames returns the archive's tensor names in sorted order.
func (f *File) TensorNames() []string {
	names := make([]string, 0, len(f.tensors))
	for name := range f.tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadTensorF32 decodes a tensor's values. Only F32 storage is supported;
// the models this package serves are trained and exported in full precision.
func (f *File) ReadTensorF32(name string) ([]float32, TensorInfo, error) {
	t, ok := f.tensors[name]
	if !ok {
		return nil, TensorInfo{}, fmt.Errorf("safetensors: tensor not found: %s", name)
	}
	n, err := numElements(t.Shape)
	if err != nil {
		return nil, TensorInfo{}, fmt.Errorf("safetensors: tensor %s: %w", name, err)
	}
	if t.DType != "F32" {
		return nil, TensorInfo{}, fmt.Errorf("safetensors: tensor %s: unsupported dtype %s", name, t.DType)
	}
	raw := f.data[t.Start:t.End]
	if len(raw) != n*4 {
		return nil, TensorInfo{}, fmt.Errorf("safetensors: tensor %s: have %d bytes, shape needs %d", name, len(raw), n*4)
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, t, nil
}

func numElements(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("empty shape")
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("invalid dim %d", d)
		}
		if n > (int(^uint(0)>>1))/d {
			return 0, fmt.Errorf("tensor too large")
		}
		n *= d
	}
	return n, nil
}
