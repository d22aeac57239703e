// Package winnow turns canonical source text into a compact fingerprint set: k-gram
// extraction, Rabin-Karp rolling hashes and winnowing selection.
package winnow

import "unicode/utf8"

// KGrams returns every contiguous run of k characters in text, in order. Lengths are
// counted in runes. The result is empty when text is empty, k <= 0 or k exceeds the text
// length. The returned strings share memory with text.
func KGrams(text string, k int) []string {
	if text == "" || k <= 0 {
		return nil
	}

	// offsets[i] is the byte offset of rune i; the final entry is len(text).
	offsets := make([]int, 0, len(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	n := len(offsets)
	offsets = append(offsets, len(text))

	if k > n {
		return nil
	}

	grams := make([]string, 0, n-k+1)
	for i := 0; i+k <= n; i++ {
		grams = append(grams, text[offsets[i]:offsets[i+k]])
	}
	return grams
}

// runeLen is utf8.RuneCountInString, named for readability at call sites.
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
