package e2k

import (
	"log/slog"

	"github.com/VOICEVOX/e2k/internal/inference"
	"github.com/VOICEVOX/e2k/internal/logger"
	"github.com/VOICEVOX/e2k/internal/logits"
)

// Source supplies sampling randomness: successive values in [0,1). A Source
// may additionally implement Observe(token int) to fold each emitted token
// into its state, as the deterministic fallback does.
type Source interface {
	Float64() float64
}

// NewSeededSource returns a reproducible pseudo-random Source.
func NewSeededSource(seed int64) Source {
	return logits.NewSeededSource(seed)
}

// NewHashSource returns the deterministic Source used on targets without an
// entropy source: every draw hashes the given input together with the step
// index and the tokens emitted so far.
func NewHashSource(input string) Source {
	return logits.NewHashSource(input)
}

// LoadOption configures model loading.
type LoadOption func(*loadOptions)

type loadOptions struct {
	log logger.Logger
}

// WithLogHandler routes the engine's structured logs to the given slog
// handler. Without it the library stays silent.
func WithLogHandler(h slog.Handler) LoadOption {
	return func(o *loadOptions) {
		o.log = logger.New(h)
	}
}

func resolveLoadOptions(opts []LoadOption) loadOptions {
	cfg := loadOptions{log: logger.Discard()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// InferOption configures one Infer call.
type InferOption func(*inferOptions)

type inferOptions struct {
	maxLength     int
	temperature   float64
	topK          int
	topP          float64
	source        Source
	deterministic bool
}

// WithMaxLength caps the number of output kana. Reaching the cap is a
// normal termination, not an error. Non-positive values select
// DefaultMaxLength.
func WithMaxLength(n int) InferOption {
	return func(o *inferOptions) { o.maxLength = n }
}

// WithTemperature rescales the logits before sampling; values above 1
// flatten the distribution, values below sharpen it. The default 1 leaves
// the distribution untouched.
func WithTemperature(t float64) InferOption {
	return func(o *inferOptions) { o.temperature = t }
}

// WithTopK keeps only the k most probable tokens before drawing. k = 1 is
// greedy decoding; non-positive k or k at least the vocabulary size
// disables the truncation. Default: no truncation.
func WithTopK(k int) InferOption {
	return func(o *inferOptions) { o.topK = k }
}

// WithTopP keeps the smallest set of most probable tokens whose cumulative
// probability reaches p, renormalised. The default 1 disables the
// truncation.
func WithTopP(p float64) InferOption {
	return func(o *inferOptions) { o.topP = p }
}

// WithSource substitutes the sampling randomness for this call.
func WithSource(src Source) InferOption {
	return func(o *inferOptions) { o.source = src }
}

// WithDeterministicSampling forces the hash-based fallback source even when
// secure randomness is available, making the output a pure function of the
// input and the sampling configuration.
func WithDeterministicSampling() InferOption {
	return func(o *inferOptions) { o.deterministic = true }
}

func resolveRequest(input string, opts []InferOption) inference.Request {
	var cfg inferOptions
	for _, opt := range opts {
		opt(&cfg)
	}
	req := inference.Request{
		MaxLength:   cfg.maxLength,
		Temperature: float32(cfg.temperature),
		TopK:        cfg.topK,
		TopP:        float32(cfg.topP),
	}
	switch {
	case cfg.source != nil:
		req.Source = cfg.source
	case cfg.deterministic:
		req.Source = logits.NewHashSource(input)
	}
	return req
}
