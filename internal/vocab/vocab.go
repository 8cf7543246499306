// Package vocab holds the static token tables used by the transliteration
// models: one symbol table for each model input (ASCII characters or English
// phonemes) and one for the katakana output. Token ids are stable; the first
// four ids of every table are reserved for the pad, start, end and unknown
// markers.
package vocab

import "fmt"

// Reserved token ids, shared by every table.
const (
	PadID = 0
	SosID = 1
	EosID = 2
	UnkID = 3
)

// Reserved token symbols.
const (
	PadSymbol = "<pad>"
	SosSymbol = "<sos>"
	EosSymbol = "<eos>"
	UnkSymbol = "<unk>"
)

// Table is an immutable bidirectional mapping between symbols and token ids.
// Lookup of an unrecognised symbol yields UnkID; lookup of an out-of-range id
// panics, since ids only ever come from the model's own output projection.
type Table struct {
	symbols []string
	index   map[string]int
}

// NewTable builds a table from an ordered symbol list. The list must start
// with the four reserved symbols and contain no duplicates.
func NewTable(symbols []string) (*Table, error) {
	if len(symbols) < 4 ||
		symbols[PadID] != PadSymbol || symbols[SosID] != SosSymbol ||
		symbols[EosID] != EosSymbol || symbols[UnkID] != UnkSymbol {
		return nil, fmt.Errorf("vocab: table must begin with %s %s %s %s", PadSymbol, SosSymbol, EosSymbol, UnkSymbol)
	}
	t := &Table{
		symbols: append([]string(nil), symbols...),
		index:   make(map[string]int, len(symbols)),
	}
	for i, s := range t.symbols {
		if _, dup := t.index[s]; dup {
			return nil, fmt.Errorf("vocab: duplicate symbol %q", s)
		}
		t.index[s] = i
	}
	return t, nil
}

// MustTable is NewTable for the built-in tables, where a failure is a
// programming error.
func MustTable(symbols []string) *Table {
	t, err := NewTable(symbols)
	if err != nil {
		panic(err)
	}
	return t
}

// TokenOf maps a symbol to its token id, or UnkID if the symbol is not in
// the table. It never fails.
func (t *Table) TokenOf(symbol string) int {
	if id, ok := t.index[symbol]; ok {
		return id
	}
	return UnkID
}

// SymbolOf maps a token id back to its symbol.
func (t *Table) SymbolOf(id int) string {
	if id < 0 || id >= len(t.symbols) {
		panic(fmt.Sprintf("vocab: token id %d out of range [0,%d)", id, len(t.symbols)))
	}
	return t.symbols[id]
}

// Size returns the number of tokens in the table, reserved ids included.
func (t *Table) Size() int {
	return len(t.symbols)
}

// Symbols returns a copy of the ordered symbol list.
func (t *Table) Symbols() []string {
	return append([]string(nil), t.symbols...)
}
