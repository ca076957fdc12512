// Package lang is the engine's language table: whisper.cpp language ids,
// their short codes and English names.
package lang

import "strings"

// Auto requests language detection instead of a fixed language.
const Auto = "auto"

// Language is one entry of the table.
type Language struct {
	ID   int
	Code string
	Name string
}

// table is ordered by id; the index of an entry is its id.
var table = []Language{
	{0, "en", "english"}, {1, "zh", "chinese"}, {2, "de", "german"}, {3, "es", "spanish"},
	{4, "ru", "russian"}, {5, "ko", "korean"}, {6, "fr", "french"}, {7, "ja", "japanese"},
	{8, "pt", "portuguese"}, {9, "tr", "turkish"}, {10, "pl", "polish"}, {11, "ca", "catalan"},
	{12, "nl", "dutch"}, {13, "ar", "arabic"}, {14, "sv", "swedish"}, {15, "it", "italian"},
	{16, "id", "indonesian"}, {17, "hi", "hindi"}, {18, "fi", "finnish"}, {19, "vi", "vietnamese"},
	{20, "he", "hebrew"}, {21, "uk", "ukrainian"}, {22, "el", "greek"}, {23, "ms", "malay"},
	{24, "cs", "czech"}, {25, "ro", "romanian"}, {26, "da", "danish"}, {27, "hu", "hungarian"},
	{28, "ta", "tamil"}, {29, "no", "norwegian"}, {30, "th", "thai"}, {31, "ur", "urdu"},
	{32, "hr", "croatian"}, {33, "bg", "bulgarian"}, {34, "lt", "lithuanian"}, {35, "la", "latin"},
	{36, "mi", "maori"}, {37, "ml", "malayalam"}, {38, "cy", "welsh"}, {39, "sk", "slovak"},
	{40, "te", "telugu"}, {41, "fa", "persian"}, {42, "lv", "latvian"}, {43, "bn", "bengali"},
	{44, "sr", "serbian"}, {45, "az", "azerbaijani"}, {46, "sl", "slovenian"}, {47, "kn", "kannada"},
	{48, "et", "estonian"}, {49, "mk", "macedonian"}, {50, "br", "breton"}, {51, "eu", "basque"},
	{52, "is", "icelandic"}, {53, "hy", "armenian"}, {54, "ne", "nepali"}, {55, "mn", "mongolian"},
	{56, "bs", "bosnian"}, {57, "kk", "kazakh"}, {58, "sq", "albanian"}, {59, "sw", "swahili"},
	{60, "gl", "galician"}, {61, "mr", "marathi"}, {62, "pa", "punjabi"}, {63, "si", "sinhala"},
	{64, "km", "khmer"}, {65, "sn", "shona"}, {66, "yo", "yoruba"}, {67, "so", "somali"},
	{68, "af", "afrikaans"}, {69, "oc", "occitan"}, {70, "ka", "georgian"}, {71, "be", "belarusian"},
	{72, "tg", "tajik"}, {73, "sd", "sindhi"}, {74, "gu", "gujarati"}, {75, "am", "amharic"},
	{76, "yi", "yiddish"}, {77, "lo", "lao"}, {78, "uz", "uzbek"}, {79, "fo", "faroese"},
	{80, "ht", "haitian creole"}, {81, "ps", "pashto"}, {82, "tk", "turkmen"}, {83, "nn", "nynorsk"},
	{84, "mt", "maltese"}, {85, "sa", "sanskrit"}, {86, "lb", "luxembourgish"}, {87, "my", "myanmar"},
	{88, "bo", "tibetan"}, {89, "tl", "tagalog"}, {90, "mg", "malagasy"}, {91, "as", "assamese"},
	{92, "tt", "tatar"}, {93, "haw", "hawaiian"}, {94, "ln", "lingala"}, {95, "ha", "hausa"},
	{96, "ba", "bashkir"}, {97, "jw", "javanese"}, {98, "su", "sundanese"}, {99, "yue", "cantonese"},
}

var (
	byCode = make(map[string]int, len(table))
	byName = make(map[string]int, len(table))
)

func init() {
	for _, l := range table {
		byCode[l.Code] = l.ID
		byName[l.Name] = l.ID
	}
}

// ID returns the id for a short code ("de") or an English name ("German"),
// or -1 when s is not in the table. [Auto] is not a language and yields -1.
// Codes are matched exactly; names ignore case.
func ID(s string) int {
	if id, ok := byCode[s]; ok {
		return id
	}
	if id, ok := byName[strings.ToLower(s)]; ok {
		return id
	}
	return -1
}

// IsKnown reports whether ID(s) finds an entry.
func IsKnown(s string) bool { return ID(s) >= 0 }

// Code returns the short code for id, or "" when out of range.
func Code(id int) string {
	if id < 0 || id >= len(table) {
		return ""
	}
	return table[id].Code
}

// MaxID is the largest valid id.
func MaxID() int { return len(table) - 1 }

// All returns a copy of the table in id order.
func All() []Language {
	out := make([]Language, len(table))
	copy(out, table)
	return out
}
