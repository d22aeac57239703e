// Package normalize canonicalizes source text so that submissions differing only in
// identifier names, literal contents, comments or layout produce the same text.
package normalize

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Language identifies a source language variant.
type Language string

// Supported languages.
const (
	LangC       Language = "c"
	LangCPP     Language = "cpp"
	LangPython  Language = "python"
	LangUnknown Language = "unknown"
)

// CanonicalText is the output of normalization. It contains no comments, no literal
// contents and no user identifier names.
type CanonicalText string

// String returns the text as a plain string.
func (c CanonicalText) String() string {
	return string(c)
}

// Placeholder tokens inserted by normalization.
const (
	StringPlaceholder = "_STR"
	CharPlaceholder   = "_C"
	MacroPlaceholder  = "_MACRO"

	// identifierPrefix is followed by a 1-based first-occurrence counter.
	identifierPrefix = "_v"
)

// ErrUnsupportedLanguage is matched by errors.Is for any UnsupportedLanguageError.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// UnsupportedLanguageError reports a language without a registered normalizer.
type UnsupportedLanguageError struct {
	Language Language
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("unsupported language: %q", string(e.Language))
}

// Is reports whether target is ErrUnsupportedLanguage.
func (e *UnsupportedLanguageError) Is(target error) bool {
	return target == ErrUnsupportedLanguage
}

// Normalizer canonicalizes the text of one language variant.
// Implementations must be safe for concurrent use and keep no state between calls.
type Normalizer interface {
	Normalize(text string) CanonicalText
}

var (
	registryMu sync.RWMutex
	registry   = map[Language]Normalizer{}
)

func init() {
	clike := NewCLike()
	Register(LangC, clike)
	Register(LangCPP, clike)
	Register(LangPython, NewPython())
}

// Register binds a normalizer to a language, replacing any previous binding.
func Register(lang Language, n Normalizer) {
	registryMu.Lock()
	registry[ParseLanguage(string(lang))] = n
	registryMu.Unlock()
}

// Lookup returns the normalizer registered for lang.
func Lookup(lang Language) (Normalizer, error) {
	registryMu.RLock()
	n, ok := registry[ParseLanguage(string(lang))]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnsupportedLanguageError{Language: lang}
	}
	return n, nil
}

// Supported returns the registered languages in sorted order.
func Supported() []Language {
	registryMu.RLock()
	defer registryMu.RUnlock()
	langs := make([]Language, 0, len(registry))
	for l := range registry {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// Normalize canonicalizes text using the normalizer registered for lang.
func Normalize(lang Language, text string) (CanonicalText, error) {
	n, err := Lookup(lang)
	if err != nil {
		return "", err
	}
	return n.Normalize(text), nil
}

// ParseLanguage maps a user-supplied language name or alias to a Language.
// Unknown names are returned lower-cased so that errors echo what was asked for.
func ParseLanguage(s string) Language {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "c", "h":
		return LangC
	case "cpp", "c++", "cc", "cxx", "hpp":
		return LangCPP
	case "python", "py", "python3":
		return LangPython
	case "":
		return LangUnknown
	default:
		return Language(v)
	}
}

// DetectLanguage determines the language from a file path.
func DetectLanguage(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".c", ".h":
		return LangC
	case ".cpp", ".cc", ".cxx", ".hpp", ".hxx", ".hh":
		return LangCPP
	case ".py", ".pyw", ".pyi":
		return LangPython
	default:
		return LangUnknown
	}
}
