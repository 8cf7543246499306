package logits

import (
	crand "crypto/rand"
	"encoding/binary"
	"hash/fnv"
	"math/rand"
)

// Source supplies the random values the sampler draws with. Implementations
// return values in [0,1) and are not required to be safe for concurrent use;
// every inference call owns its own Source.
type Source interface {
	Float64() float64
}

// Observer is implemented by sources that condition their output on the
// tokens accepted so far. The decode loop feeds every emitted token back
// through Observe.
type Observer interface {
	Observe(token int)
}

// secureSource draws from the operating system's entropy source.
type secureSource struct{}

// NewSecureSource returns a Source backed by crypto/rand, or an error when
// the platform provides no entropy.
func NewSecureSource() (Source, error) {
	var probe [8]byte
	if _, err := crand.Read(probe[:]); err != nil {
		return nil, err
	}
	return secureSource{}, nil
}

func (secureSource) Float64() float64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		// The constructor verified entropy is available; a later failure is
		// an environment invariant violation, not a recoverable condition.
		panic("logits: entropy source failed after probe: " + err.Error())
	}
	return float53(binary.LittleEndian.Uint64(buf[:]))
}

// seededSource is a reproducible pseudo-random source for tests and callers
// that want seeded sampling.
type seededSource struct {
	rng *rand.Rand
}

// NewSeededSource returns a deterministic Source seeded with the given
// value.
func NewSeededSource(seed int64) Source {
	return &seededSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *seededSource) Float64() float64 {
	return s.rng.Float64()
}

// HashSource is the deterministic fallback for targets without an entropy
// source. Every draw hashes the original input together with the draw index
// and the output tokens observed so far, so identical inputs always sample
// identically while different inputs, steps and prefixes diverge.
type HashSource struct {
	seed uint64
	acc  uint64
	step uint64
}

// NewHashSource builds a HashSource conditioned on the inference input.
func NewHashSource(input string) *HashSource {
	h := fnv.New64a()
	_, _ = h.Write([]byte(input))
	return &HashSource{seed: h.Sum64(), acc: fnvOffset}
}

const (
	fnvOffset = 14695981039346656037
	fnvPrime  = 1099511628211
)

// Observe folds an accepted output token into the source state.
func (s *HashSource) Observe(token int) {
	s.acc = mix(s.acc, uint64(int64(token)))
}

// Float64 returns the next deterministic value in [0,1).
func (s *HashSource) Float64() float64 {
	v := mix(mix(s.seed, s.acc), s.step)
	s.step++
	return float53(v)
}

// mix folds eight bytes of v into an FNV-1a state.
func mix(state, v uint64) uint64 {
	for i := 0; i < 8; i++ {
		state ^= v & 0xff
		state *= fnvPrime
		v >>= 8
	}
	return state
}

// float53 maps the top 53 bits of v onto [0,1).
func float53(v uint64) float64 {
	return float64(v>>11) / (1 << 53)
}

// DefaultSource returns the secure source where the platform provides one
// and the deterministic hash fallback otherwise. The fallback is a
// supported mode, not an error: output becomes reproducible and
// input-dependent instead of random.
func DefaultSource(input string) Source {
	if src, err := NewSecureSource(); err == nil {
		return src
	}
	return NewHashSource(input)
}
