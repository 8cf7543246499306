// Package e2k transliterates English into katakana with a small
// character-level sequence-to-sequence model, executed by a self-contained
// inference engine. No ML runtime is involved: the forward pass is plain
// float32 arithmetic, which keeps the package embeddable in constrained and
// sandboxed targets.
//
// Two front ends share the engine: C2K consumes a spelled word, P2K
// consumes English (ARPABET) phonemes. Both load their weights from a model
// archive, either from bytes the caller embeds or from a file path.
//
//	c2k, err := e2k.LoadC2KFile("c2k.e2k")
//	if err != nil {
//		...
//	}
//	kana := c2k.Infer("constants")
//
// A loaded model is immutable and safe for concurrent Infer calls.
package e2k

import (
	"fmt"
	"os"
	"strings"

	"github.com/VOICEVOX/e2k/internal/archive"
	"github.com/VOICEVOX/e2k/internal/inference"
	"github.com/VOICEVOX/e2k/internal/model"
	"github.com/VOICEVOX/e2k/internal/vocab"
)

// DefaultMaxLength is the output budget applied when an Infer call does not
// set one.
const DefaultMaxLength = inference.DefaultMaxLength

// C2K transliterates spelled words into katakana.
type C2K struct {
	m   *model.Model
	eng *inference.Engine
}

// P2K transliterates English phoneme sequences into katakana.
type P2K struct {
	m   *model.Model
	eng *inference.Engine
}

// LoadC2K deserialises a character-model archive. It returns a
// *ModelFormatError when the archive is corrupt, truncated, incompatible or
// holds a model of the wrong kind.
func LoadC2K(data []byte, opts ...LoadOption) (*C2K, error) {
	m, eng, err := load(data, model.KindC2K, opts)
	if err != nil {
		return nil, err
	}
	return &C2K{m: m, eng: eng}, nil
}

// LoadC2KFile reads a character-model archive from disk.
func LoadC2KFile(path string, opts ...LoadOption) (*C2K, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model archive: %w", err)
	}
	return LoadC2K(data, opts...)
}

// LoadP2K deserialises a phoneme-model archive.
func LoadP2K(data []byte, opts ...LoadOption) (*P2K, error) {
	m, eng, err := load(data, model.KindP2K, opts)
	if err != nil {
		return nil, err
	}
	return &P2K{m: m, eng: eng}, nil
}

// LoadP2KFile reads a phoneme-model archive from disk.
func LoadP2KFile(path string, opts ...LoadOption) (*P2K, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model archive: %w", err)
	}
	return LoadP2K(data, opts...)
}

func load(data []byte, kind model.Kind, opts []LoadOption) (*model.Model, *inference.Engine, error) {
	cfg := resolveLoadOptions(opts)
	m, err := model.Load(data)
	if err != nil {
		return nil, nil, err
	}
	if m.Kind != kind {
		return nil, nil, archive.Errorf("model kind %q, want %q", m.Kind, kind)
	}
	return m, inference.New(m, cfg.log), nil
}

// Infer transliterates one word. It is total over any input: unknown
// characters map to the unknown token and the empty word maps to the empty
// string. The result never exceeds the configured maximum length in kana.
func (c *C2K) Infer(word string, opts ...InferOption) string {
	word = vocab.NormalizeWord(word)
	tokens := make([]int, 0, len(word))
	for _, r := range word {
		tokens = append(tokens, c.m.SrcVocab.TokenOf(string(r)))
	}
	return detokenize(c.m, c.eng.Run(tokens, word, resolveRequest(word, opts)))
}

// Infer transliterates one phoneme sequence, e.g.
// {"K", "AA1", "N", "S", "T", "AH0", "N", "T", "S"}. Unknown phonemes map
// to the unknown token; an empty sequence maps to the empty string.
func (p *P2K) Infer(phonemes []string, opts ...InferOption) string {
	tokens := make([]int, 0, len(phonemes))
	for _, ph := range phonemes {
		tokens = append(tokens, p.m.SrcVocab.TokenOf(ph))
	}
	input := strings.Join(phonemes, " ")
	return detokenize(p.m, p.eng.Run(tokens, input, resolveRequest(input, opts)))
}

func detokenize(m *model.Model, tokens []int) string {
	var sb strings.Builder
	for _, tok := range tokens {
		sb.WriteString(m.DstVocab.SymbolOf(tok))
	}
	return sb.String()
}
