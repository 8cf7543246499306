// Package archive implements the outer model container: a fixed magic, a
// format version, a flags byte and the safetensors payload, optionally
// brotli-compressed. The container exists so a loader can reject foreign or
// incompatible blobs before touching tensor data.
package archive

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

const (
	magic = "E2KM"

	// FormatVersion is the container version this package reads and writes.
	FormatVersion = 1

	flagBrotli = 1 << 0

	headerSize = len(magic) + 2 + 1
)

// FormatError reports a corrupt, truncated or version-incompatible model
// archive. Loading never degrades to a partial model; the first
// inconsistency aborts the load.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	return "model archive: " + e.Reason
}

func (e *FormatError) Unwrap() error { return e.Err }

// Errorf builds a FormatError. An %w verb in the format sets the wrapped
// error; the reason string always carries the full formatted message.
func Errorf(format string, args ...any) *FormatError {
	wrapped := fmt.Errorf(format, args...)
	var inner error
	if u, ok := wrapped.(interface{ Unwrap() error }); ok {
		inner = u.Unwrap()
	}
	return &FormatError{Reason: wrapped.Error(), Err: inner}
}

// Pack wraps a payload in the container, compressing it when requested.
func Pack(payload []byte, compress bool) ([]byte, error) {
	var flags byte
	body := payload
	if compress {
		flags |= flagBrotli
		var buf bytes.Buffer
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(payload); err != nil {
			return nil, fmt.Errorf("archive: compress payload: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("archive: compress payload: %w", err)
		}
		body = buf.Bytes()
	}
	out := make([]byte, 0, headerSize+len(body))
	out = append(out, magic...)
	out = append(out, byte(FormatVersion), byte(FormatVersion>>8))
	out = append(out, flags)
	out = append(out, body...)
	return out, nil
}

// Unpack validates the container and returns the decompressed payload.
// Decompression is eager and complete; a truncated compressed stream is
// detected here, not later.
func Unpack(data []byte) ([]byte, error) {
	if len(data) < headerSize {
		return nil, Errorf("truncated: %d bytes, header needs %d", len(data), headerSize)
	}
	if string(data[:len(magic)]) != magic {
		return nil, Errorf("bad magic %q", data[:len(magic)])
	}
	version := uint16(data[4]) | uint16(data[5])<<8
	if version != FormatVersion {
		return nil, Errorf("unsupported format version %d (supported: %d)", version, FormatVersion)
	}
	flags := data[6]
	if unknown := flags &^ byte(flagBrotli); unknown != 0 {
		return nil, Errorf("unknown flags 0x%02x", unknown)
	}
	body := data[headerSize:]
	if flags&flagBrotli == 0 {
		return body, nil
	}
	payload, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
	if err != nil {
		return nil, Errorf("decompress payload: %w", err)
	}
	return payload, nil
}
