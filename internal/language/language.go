// Package language maps human-readable language keys to the codes expected
// by the Tesseract and Google Vision recognizers.
package language

import "sort"

// Entry pairs the two engine-specific codes for one language.
type Entry struct {
	TesseractCode string
	VisionCode    string
}

// DefaultKey is used when a caller supplies an unknown or empty key.
const DefaultKey = "English (eng)"

var table = map[string]Entry{
	"English (eng)":                        {"eng", "en"},
	"Sanskrit – IAST / Devanagari (san)":   {"san", "sa"},
	"Hindi (hin)":                          {"hin", "hi"},
	"Marathi (mar)":                        {"mar", "mr"},
	"Nepali (nep)":                         {"nep", "ne"},
	"Konkani (kok)":                        {"kok", "kok"},
	"Gujarati (guj)":                       {"guj", "gu"},
	"Punjabi – Gurmukhi (pan)":             {"pan", "pa"},
	"Bengali (ben)":                        {"ben", "bn"},
	"Assamese (asm)":                       {"asm", "as"},
	"Odia (ori)":                           {"ori", "or"},
	"Telugu (tel)":                         {"tel", "te"},
	"Kannada (kan)":                        {"kan", "kn"},
	"Tamil (tam)":                          {"tam", "ta"},
	"Malayalam (mal)":                      {"mal", "ml"},
	"Sinhala (sin)":                        {"sin", "si"},
}

// Lookup returns the entry for key, falling back to English for unknown keys.
func Lookup(key string) Entry {
	if e, ok := table[key]; ok {
		return e
	}
	return table[DefaultKey]
}

// Known reports whether key is present in the table.
func Known(key string) bool {
	_, ok := table[key]
	return ok
}

// DisplayKeys returns all display keys in sorted order.
func DisplayKeys() []string {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
