package store

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// normalizeText applies the tokenization policy shared by indexing and
// querying: Unicode NFC normalization plus case folding, no stemming, no
// diacritic stripping. The corpus is predominantly Chinese and English
// prose; diacritic folding would corrupt the former for no benefit to the
// latter, so it is deliberately not applied here (the FTS5 unicode61
// tokenizer is configured with remove_diacritics=0 to match).
func normalizeText(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}
