package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// delims is an opening/closing pair for a block comment.
type delims struct {
	open, close string
}

// dialect describes the lexical surface of one language family. Every variant runs the
// same five passes over it: strip comments and literals, rename macros, pad punctuation,
// collapse whitespace, rename identifiers.
type dialect struct {
	lineComment    string
	blockComments  []delims
	stringQuotes   string
	stringPrefixes map[string]bool
	rawPrefixes    map[string]bool
	charQuote      byte
	digitSeparator byte
	macros         bool
	punct          string
	reserved       map[string]struct{}
}

var macroDefinition = regexp.MustCompile(`#[ \t]*define[ \t]+[A-Za-z_][A-Za-z0-9_]*`)

func (d *dialect) canonicalize(text string) CanonicalText {
	if text == "" {
		return ""
	}
	out := d.stripCommentsAndLiterals(text)
	if d.macros {
		out = macroDefinition.ReplaceAllLiteralString(out, "#define "+MacroPlaceholder)
	}
	out = d.padPunctuation(out)
	out = strings.Join(strings.Fields(out), " ")
	return CanonicalText(d.renameIdentifiers(out))
}

// stripCommentsAndLiterals removes comments and replaces literal bodies with placeholders
// in a single left-to-right pass, so comment markers inside literals and quotes inside
// comments are never misread.
func (d *dialect) stripCommentsAndLiterals(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))

	for i := 0; i < len(text); {
		if end, ok := d.blockCommentAt(text, i); ok {
			sb.WriteByte(' ')
			i = end
			continue
		}

		if d.lineComment != "" && strings.HasPrefix(text[i:], d.lineComment) {
			nl := strings.IndexByte(text[i:], '\n')
			if nl < 0 {
				break
			}
			i += nl
			continue
		}

		c := text[i]
		switch {
		case strings.IndexByte(d.stringQuotes, c) >= 0:
			i = skipQuoted(text, i, c)
			sb.WriteString(`"` + StringPlaceholder + `"`)
		case d.charQuote != 0 && c == d.charQuote:
			i = skipQuoted(text, i, c)
			sb.WriteByte(c)
			sb.WriteString(CharPlaceholder)
			sb.WriteByte(c)
		case isDigit(c):
			j := d.scanNumber(text, i)
			sb.WriteString(text[i:j])
			i = j
		case isIdentChar(c):
			j := scanWord(text, i)
			if d.rawPrefixes[text[i:j]] {
				if end, ok := skipRawString(text, j); ok {
					sb.WriteString(`"` + StringPlaceholder + `"`)
					i = end
					continue
				}
			}
			// Literal prefixes (r"", f'', L"", u8"") belong to the literal, not to the
			// identifier stream.
			if j < len(text) && d.stringPrefixes[strings.ToLower(text[i:j])] && d.opensLiteral(text[j]) {
				i = j
				continue
			}
			sb.WriteString(text[i:j])
			i = j
		default:
			sb.WriteByte(c)
			i++
		}
	}

	return sb.String()
}

// blockCommentAt reports whether a block comment opens at i and returns the offset just
// past its closing delimiter. Unterminated comments run to the end of the text.
func (d *dialect) blockCommentAt(text string, i int) (int, bool) {
	for _, b := range d.blockComments {
		if !strings.HasPrefix(text[i:], b.open) {
			continue
		}
		start := i + len(b.open)
		end := strings.Index(text[start:], b.close)
		if end < 0 {
			return len(text), true
		}
		return start + end + len(b.close), true
	}
	return 0, false
}

// maxRawDelimiter is the longest d-char sequence a C++ raw string may use.
const maxRawDelimiter = 16

// skipRawString recognises a C++ raw string R"delim(...)delim" whose opening quote is at
// i and returns the offset just past it. Quotes and backslashes inside the body are
// literal. An unterminated raw string runs to the end of the text.
func skipRawString(text string, i int) (int, bool) {
	if i >= len(text) || text[i] != '"' {
		return 0, false
	}
	open := strings.IndexByte(text[i+1:], '(')
	if open < 0 || open > maxRawDelimiter {
		return 0, false
	}
	delim := text[i+1 : i+1+open]
	if strings.ContainsAny(delim, " ()\\\t\v\f\n\"") {
		return 0, false
	}
	body := i + 1 + open + 1
	closing := ")" + delim + `"`
	end := strings.Index(text[body:], closing)
	if end < 0 {
		return len(text), true
	}
	return body + end + len(closing), true
}

func (d *dialect) opensLiteral(c byte) bool {
	return strings.IndexByte(d.stringQuotes, c) >= 0 || (d.charQuote != 0 && c == d.charQuote)
}

// scanNumber consumes a numeric literal including suffixes, exponents and, when the
// dialect has one, digit separators such as 1'000'000.
func (d *dialect) scanNumber(text string, i int) int {
	j := i
	for j < len(text) {
		c := text[j]
		if isIdentChar(c) {
			j++
			continue
		}
		if d.digitSeparator != 0 && c == d.digitSeparator && j+1 < len(text) && isHexDigit(text[j+1]) {
			j++
			continue
		}
		break
	}
	return j
}

// skipQuoted returns the offset just past the literal opened by quote at i. Backslash
// escapes are honoured; an unterminated literal stops at the end of its line.
func skipQuoted(text string, i int, quote byte) int {
	j := i + 1
	for j < len(text) {
		switch text[j] {
		case '\\':
			j += 2
			continue
		case quote:
			return j + 1
		case '\n':
			return j
		}
		j++
	}
	return len(text)
}

func (d *dialect) padPunctuation(text string) string {
	var sb strings.Builder
	sb.Grow(len(text) * 2)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if strings.IndexByte(d.punct, c) >= 0 {
			sb.WriteByte(' ')
			sb.WriteByte(c)
			sb.WriteByte(' ')
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// renameIdentifiers replaces every user identifier with _vN, numbered by first occurrence.
// The mapping lives only for this call.
func (d *dialect) renameIdentifiers(text string) string {
	seen := make(map[string]string)

	var sb strings.Builder
	sb.Grow(len(text))
	for i := 0; i < len(text); {
		if !isIdentChar(text[i]) {
			sb.WriteByte(text[i])
			i++
			continue
		}
		j := scanWord(text, i)
		word := text[i:j]
		i = j

		if isDigit(word[0]) {
			sb.WriteString(word)
			continue
		}
		if _, ok := d.reserved[word]; ok {
			sb.WriteString(word)
			continue
		}
		placeholder, ok := seen[word]
		if !ok {
			placeholder = identifierPrefix + strconv.Itoa(len(seen)+1)
			seen[word] = placeholder
		}
		sb.WriteString(placeholder)
	}
	return sb.String()
}

func scanWord(text string, i int) int {
	j := i
	for j < len(text) && isIdentChar(text[j]) {
		j++
	}
	return j
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// isIdentChar treats bytes of multi-byte UTF-8 sequences as identifier characters so that
// non-ASCII names stay whole.
func isIdentChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || isDigit(c) || c >= 0x80
}

func wordSet(groups ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, g := range groups {
		for _, w := range g {
			set[w] = struct{}{}
		}
	}
	return set
}
