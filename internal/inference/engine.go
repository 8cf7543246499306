// Package inference runs the autoregressive decode loop: encode the input
// tokens once, then repeatedly step the decoder and sample until the end
// token appears or the output budget is spent. All mutable state lives in a
// per-call session, so one Engine serves concurrent calls over a shared
// read-only model.
package inference

import (
	"github.com/google/uuid"

	"github.com/VOICEVOX/e2k/internal/logger"
	"github.com/VOICEVOX/e2k/internal/logits"
	"github.com/VOICEVOX/e2k/internal/model"
	"github.com/VOICEVOX/e2k/internal/vocab"
)

// DefaultMaxLength is the output token budget used when a request does not
// set one.
const DefaultMaxLength = 32

// Request carries the resolved per-call decoding parameters.
type Request struct {
	// MaxLength is the hard cap on emitted output tokens. Zero or negative
	// selects DefaultMaxLength.
	MaxLength int

	Temperature float32
	TopK        int
	TopP        float32

	// Source supplies sampling randomness. Nil selects the platform default
	// conditioned on the input: secure randomness where available, the
	// deterministic hash fallback otherwise.
	Source logits.Source
}

// Engine decodes over one model.
type Engine struct {
	m   *model.Model
	log logger.Logger
}

// New returns an engine over the given model. A nil log discards.
func New(m *model.Model, log logger.Logger) *Engine {
	if log == nil {
		log = logger.Discard()
	}
	return &Engine{m: m, log: log}
}

// Run transliterates one input token sequence. srcTokens are the input
// symbol ids without the start/end markers, which Run adds itself; input is
// the original text, used only to condition the fallback randomness. The
// returned tokens contain no reserved ids.
//
// An empty input returns an empty output without touching the model.
func (e *Engine) Run(srcTokens []int, input string, req Request) []int {
	if len(srcTokens) == 0 {
		return nil
	}

	maxLength := req.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	source := req.Source
	if source == nil {
		source = logits.DefaultSource(input)
	}
	observer, _ := source.(logits.Observer)

	log := e.log.With("session", uuid.NewString())
	log.Debug("decode start", "kind", e.m.Kind, "input_tokens", len(srcTokens), "max_length", maxLength)

	wrapped := make([]int, 0, len(srcTokens)+2)
	wrapped = append(wrapped, vocab.SosID)
	wrapped = append(wrapped, srcTokens...)
	wrapped = append(wrapped, vocab.EosID)

	enc := e.m.Encode(wrapped)
	dec := e.m.NewDecoder(enc)
	sampler := logits.NewSampler(logits.SamplerConfig{
		Temperature: req.Temperature,
		TopK:        req.TopK,
		TopP:        req.TopP,
	}, source)

	out := make([]int, 0, maxLength)
	prev := vocab.SosID
	sawEos := false
	for step := 0; step < maxLength; step++ {
		lg := dec.Step(prev)
		maskReserved(lg)
		tok := sampler.Sample(lg)
		if tok == vocab.EosID {
			sawEos = true
			break
		}
		out = append(out, tok)
		if observer != nil {
			observer.Observe(tok)
		}
		prev = tok
	}

	log.Debug("decode done", "output_tokens", len(out), "eos", sawEos)
	return out
}

// maskReserved removes the tokens that must never appear in output (pad,
// start, unknown) from the distribution. End stays eligible; it is the stop
// signal.
func maskReserved(lg []float32) {
	const negInf = float32(-3.4028235e38)
	lg[vocab.PadID] = negInf
	lg[vocab.SosID] = negInf
	lg[vocab.UnkID] = negInf
}
