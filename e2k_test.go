package e2k_test

import (
	"errors"
	"os"
	"testing"
	"unicode/utf8"

	"github.com/VOICEVOX/e2k"
	"github.com/VOICEVOX/e2k/internal/model"
	"github.com/VOICEVOX/e2k/internal/vocab"
)

// testArchive serialises a small random model of the given kind. With
// suppressEos the end token's output bias is pushed down so decoding always
// runs to the length cap.
func testArchive(t *testing.T, kind model.Kind, seed int64, suppressEos bool) []byte {
	t.Helper()
	src := vocab.ASCIIEntries
	if kind == model.KindP2K {
		src = vocab.EnPhones
	}
	m := model.NewRandom(kind, vocab.MustTable(src), vocab.MustTable(vocab.Kanas), 16, 4, seed)
	if suppressEos {
		m.Out.B[vocab.EosID] = -20
	}
	data, err := m.MarshalArchive(true)
	if err != nil {
		t.Fatalf("marshal test model: %v", err)
	}
	return data
}

func loadC2K(t *testing.T, seed int64, suppressEos bool) *e2k.C2K {
	t.Helper()
	c, err := e2k.LoadC2K(testArchive(t, model.KindC2K, seed, suppressEos))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return c
}

// TestInferEmptyInput verifies that the empty word maps to the empty
// string.
func TestInferEmptyInput(t *testing.T) {
	c := loadC2K(t, 1, false)
	if got := c.Infer(""); got != "" {
		t.Fatalf("Infer(\"\") = %q, want \"\"", got)
	}
}

// TestInferMaxLength verifies that output never exceeds the configured cap
// and that the default cap applies when none is given.
func TestInferMaxLength(t *testing.T) {
	c := loadC2K(t, 2, true)
	for _, limit := range []int{1, 3, 10} {
		got := c.Infer("pneumonoultramicroscopicsilicovolcanoconiosis",
			e2k.WithMaxLength(limit), e2k.WithTopK(1))
		if n := utf8.RuneCountInString(got); n != limit {
			t.Fatalf("limit %d: output %q has %d kana", limit, got, n)
		}
	}
	got := c.Infer("word", e2k.WithTopK(1))
	if n := utf8.RuneCountInString(got); n > e2k.DefaultMaxLength {
		t.Fatalf("default cap exceeded: %d kana", n)
	}
}

// TestInferTruncationDiffers verifies that a capped result differs from the
// unlimited one for an input whose natural output is longer than the cap.
func TestInferTruncationDiffers(t *testing.T) {
	c := loadC2K(t, 3, true)
	const word = "pneumonoultramicroscopicsilicovolcanoconiosis"
	limited := c.Infer(word, e2k.WithMaxLength(10), e2k.WithTopK(1))
	unlimited := c.Infer(word, e2k.WithTopK(1))
	if limited == unlimited {
		t.Fatalf("limited and unlimited outputs both %q", limited)
	}
	if n := utf8.RuneCountInString(limited); n != 10 {
		t.Fatalf("limited output has %d kana, want 10", n)
	}
}

// TestInferDeterministic verifies that repeated calls with the hash-based
// source and a fixed configuration reproduce the same output.
func TestInferDeterministic(t *testing.T) {
	c := loadC2K(t, 4, false)
	opts := []e2k.InferOption{
		e2k.WithTemperature(2),
		e2k.WithDeterministicSampling(),
	}
	first := c.Infer("constants", opts...)
	for i := 0; i < 5; i++ {
		if got := c.Infer("constants", opts...); got != first {
			t.Fatalf("call %d produced %q, first produced %q", i, got, first)
		}
	}
}

// TestInferGreedyEquivalence verifies that top-k = 1 ignores temperature
// and top-p.
func TestInferGreedyEquivalence(t *testing.T) {
	c := loadC2K(t, 5, false)
	base := c.Infer("greedy", e2k.WithTopK(1))
	for _, opts := range [][]e2k.InferOption{
		{e2k.WithTopK(1), e2k.WithTemperature(9)},
		{e2k.WithTopK(1), e2k.WithTopP(0.01)},
		{e2k.WithTopK(1), e2k.WithTemperature(0.1), e2k.WithTopP(0.5)},
	} {
		if got := c.Infer("greedy", opts...); got != base {
			t.Fatalf("greedy output changed under %v: %q vs %q", opts, got, base)
		}
	}
}

// TestInferFullDistributionEquivalence verifies that an oversized top-k and
// top-p = 1 are no-ops: with the same randomness they match the untruncated
// default.
func TestInferFullDistributionEquivalence(t *testing.T) {
	c := loadC2K(t, 6, false)
	a := c.Infer("vocab", e2k.WithSource(e2k.NewSeededSource(17)))
	b := c.Infer("vocab",
		e2k.WithTopK(100000), e2k.WithTopP(1),
		e2k.WithSource(e2k.NewSeededSource(17)))
	if a != b {
		t.Fatalf("no-op truncation changed output: %q vs %q", a, b)
	}
}

// TestInferUnknownCharacters verifies silent unknown substitution: inputs
// full of unmapped characters still transliterate without error.
func TestInferUnknownCharacters(t *testing.T) {
	c := loadC2K(t, 7, false)
	got := c.Infer("Ω漢字!?", e2k.WithTopK(1))
	for _, r := range got {
		if string(r) == vocab.UnkSymbol {
			t.Fatalf("unknown marker leaked into output %q", got)
		}
	}
	// Case folding happens before lookup, so case must not matter.
	if c.Infer("WORD", e2k.WithTopK(1)) != c.Infer("word", e2k.WithTopK(1)) {
		t.Fatal("case changed the output")
	}
}

// TestInferOutputAlphabet verifies that every output rune is a symbol of
// the katakana table.
func TestInferOutputAlphabet(t *testing.T) {
	c := loadC2K(t, 8, false)
	table := vocab.MustTable(vocab.Kanas)
	got := c.Infer("alphabet", e2k.WithTemperature(3), e2k.WithDeterministicSampling())
	for _, r := range got {
		if table.TokenOf(string(r)) == vocab.UnkID {
			t.Fatalf("output rune %q is not katakana", r)
		}
	}
}

// TestP2KInfer exercises the phoneme front end: empty input, unknown
// phonemes and determinism.
func TestP2KInfer(t *testing.T) {
	p, err := e2k.LoadP2K(testArchive(t, model.KindP2K, 9, false))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := p.Infer(nil); got != "" {
		t.Fatalf("Infer(nil) = %q, want \"\"", got)
	}
	phones := []string{"K", "AA1", "N", "BOGUS", "S"}
	a := p.Infer(phones, e2k.WithTopK(1))
	b := p.Infer(phones, e2k.WithTopK(1))
	if a != b {
		t.Fatalf("greedy phoneme inference diverged: %q vs %q", a, b)
	}
	if a == "" {
		t.Fatal("phoneme inference produced no output")
	}
}

// TestLoadErrors covers the ModelFormatError surface: garbage bytes,
// truncated archives and a kind mismatch.
func TestLoadErrors(t *testing.T) {
	var fmtErr *e2k.ModelFormatError

	if _, err := e2k.LoadC2K([]byte("garbage")); !errors.As(err, &fmtErr) {
		t.Fatalf("garbage: got %v, want *ModelFormatError", err)
	}

	data := testArchive(t, model.KindC2K, 10, false)
	if _, err := e2k.LoadC2K(data[:len(data)/2]); !errors.As(err, &fmtErr) {
		t.Fatalf("truncated: got %v, want *ModelFormatError", err)
	}
	if _, err := e2k.LoadP2K(data); !errors.As(err, &fmtErr) {
		t.Fatalf("kind mismatch: got %v, want *ModelFormatError", err)
	}
	if _, err := e2k.LoadC2KFile("testdata/does-not-exist.e2k"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// TestLoadConcurrentUse verifies that one loaded model serves parallel
// Infer calls; with greedy sampling all results must agree.
func TestLoadConcurrentUse(t *testing.T) {
	c := loadC2K(t, 11, false)
	want := c.Infer("concurrent", e2k.WithTopK(1))
	done := make(chan string, 8)
	for i := 0; i < 8; i++ {
		go func() {
			done <- c.Infer("concurrent", e2k.WithTopK(1))
		}()
	}
	for i := 0; i < 8; i++ {
		if got := <-done; got != want {
			t.Fatalf("concurrent call produced %q, want %q", got, want)
		}
	}
}

// TestReferenceScenarios checks the released character model against known
// transliterations. It needs the trained weights and skips unless the
// E2K_MODEL environment variable points at the archive.
func TestReferenceScenarios(t *testing.T) {
	path := os.Getenv("E2K_MODEL")
	if path == "" {
		t.Skip("E2K_MODEL not set; skipping trained-model scenarios")
	}
	c, err := e2k.LoadC2KFile(path)
	if err != nil {
		t.Fatalf("load %s: %v", path, err)
	}

	cases := map[string]string{
		"kanalizer": "カナライザー",
		"constants": "コンスタンツ",
		"":          "",
	}
	for word, want := range cases {
		if got := c.Infer(word, e2k.WithTopK(1)); got != want {
			t.Fatalf("Infer(%q) = %q, want %q", word, got, want)
		}
	}

	const long = "pneumonoultramicroscopicsilicovolcanoconiosis"
	limited := c.Infer(long, e2k.WithTopK(1), e2k.WithMaxLength(10))
	unlimited := c.Infer(long, e2k.WithTopK(1))
	if utf8.RuneCountInString(limited) != 10 {
		t.Fatalf("limited output %q does not have 10 kana", limited)
	}
	if limited == unlimited {
		t.Fatal("limited and unlimited outputs agree")
	}
}
