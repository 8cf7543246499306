package vocab

import "strings"

// ASCIIEntries lists the input symbols of the character model: lower-case
// letters, digits and the word-internal punctuation that survives
// normalisation. Order determines token ids and must not change between a
// trained model and this table.
var ASCIIEntries = buildASCIIEntries()

func buildASCIIEntries() []string {
	entries := []string{PadSymbol, SosSymbol, EosSymbol, UnkSymbol}
	for c := 'a'; c <= 'z'; c++ {
		entries = append(entries, string(c))
	}
	for c := '0'; c <= '9'; c++ {
		entries = append(entries, string(c))
	}
	entries = append(entries, "'", "-", ".")
	return entries
}

// EnPhones lists the input symbols of the phoneme model: the ARPABET set,
// vowels carrying their stress digit.
var EnPhones = buildEnPhones()

func buildEnPhones() []string {
	vowels := []string{
		"AA", "AE", "AH", "AO", "AW", "AY", "EH", "ER",
		"EY", "IH", "IY", "OW", "OY", "UH", "UW",
	}
	consonants := []string{
		"B", "CH", "D", "DH", "F", "G", "HH", "JH", "K", "L", "M", "N",
		"NG", "P", "R", "S", "SH", "T", "TH", "V", "W", "Y", "Z", "ZH",
	}
	phones := []string{PadSymbol, SosSymbol, EosSymbol, UnkSymbol}
	for _, v := range vowels {
		phones = append(phones, v+"0", v+"1", v+"2")
	}
	phones = append(phones, consonants...)
	return phones
}

// Kanas lists the output symbols: the katakana syllabary including small
// kana, voiced and semi-voiced rows, ヴ and the long-vowel mark.
var Kanas = buildKanas()

func buildKanas() []string {
	const kana = "ァアィイゥウェエォオカガキギクグケゲコゴサザシジスズセゼソゾ" +
		"タダチヂッツヅテデトドナニヌネノハバパヒビピフブプヘベペホボポ" +
		"マミムメモャヤュユョヨラリルレロヮワヲンヴー"
	kanas := []string{PadSymbol, SosSymbol, EosSymbol, UnkSymbol}
	for _, r := range kana {
		kanas = append(kanas, string(r))
	}
	return kanas
}

// NormalizeWord lower-cases an input word for the character model. The
// per-character unknown substitution happens at tokenisation, not here.
func NormalizeWord(word string) string {
	return strings.ToLower(word)
}
