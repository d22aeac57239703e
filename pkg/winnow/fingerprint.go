package winnow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/panbanda/winnow/pkg/normalize"
)

const (
	// DefaultK is the default k-gram length, in characters of canonical text.
	DefaultK = 25
	// DefaultW is the default winnowing window, in hashes.
	DefaultW = 21
	// DefaultBase is the default rolling-hash radix.
	DefaultBase = 256
	// DefaultPrime is the default rolling-hash modulus. It keeps every hash below 2^32.
	DefaultPrime = 1_000_000_007

	maxBase = 1 << 24
)

// ErrInvalidParams is matched by errors.Is for any parameter validation failure.
var ErrInvalidParams = errors.New("invalid fingerprint parameters")

// Params are the fingerprinting parameters. K and W may be non-positive; such values
// produce empty fingerprint sets rather than errors.
type Params struct {
	K     int    `json:"k" yaml:"k" toml:"k"`
	W     int    `json:"w" yaml:"w" toml:"w"`
	Base  uint32 `json:"base" yaml:"base" toml:"base"`
	Prime uint32 `json:"prime" yaml:"prime" toml:"prime"`
}

// DefaultParams returns k=25, w=21, base=256 and prime=1_000_000_007.
func DefaultParams() Params {
	return Params{K: DefaultK, W: DefaultW, Base: DefaultBase, Prime: DefaultPrime}
}

// Validate checks the hash parameters. Base must be in [1, 2^24) and prime at least 2 so
// intermediate products stay within 64 bits.
func (p Params) Validate() error {
	if p.Prime < 2 {
		return fmt.Errorf("%w: prime must be at least 2, got %d", ErrInvalidParams, p.Prime)
	}
	if p.Base == 0 || p.Base >= maxBase {
		return fmt.Errorf("%w: base must be in [1, %d), got %d", ErrInvalidParams, maxBase, p.Base)
	}
	return nil
}

// GuaranteeThreshold is the shortest shared canonical substring that is always detected.
func (p Params) GuaranteeThreshold() int {
	if p.K <= 0 || p.W <= 0 {
		return 0
	}
	return p.K + p.W - 1
}

func (p Params) String() string {
	return fmt.Sprintf("k=%d w=%d base=%d prime=%d", p.K, p.W, p.Base, p.Prime)
}

// Result is the full output of fingerprinting one document.
type Result struct {
	Canonical    normalize.CanonicalText
	Digest       uint64
	Fingerprints *FingerprintSet
}

// Fingerprinter runs normalize, k-gram, hash and winnow over documents. It holds no
// mutable state and is safe for concurrent use.
type Fingerprinter struct {
	params Params
}

// NewFingerprinter validates p and returns a Fingerprinter using it.
func NewFingerprinter(p Params) (*Fingerprinter, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Fingerprinter{params: p}, nil
}

// Params returns the parameters in use.
func (f *Fingerprinter) Params() Params {
	return f.params
}

// Fingerprint returns the fingerprint set of text in language lang.
func (f *Fingerprinter) Fingerprint(text string, lang normalize.Language) (*FingerprintSet, error) {
	res, err := f.Analyze(text, lang)
	if err != nil {
		return nil, err
	}
	return res.Fingerprints, nil
}

// Analyze fingerprints text and also returns its canonical form and an xxhash digest of
// it. Two documents with the same digest are identical after normalization.
func (f *Fingerprinter) Analyze(text string, lang normalize.Language) (*Result, error) {
	canonical, err := normalize.Normalize(lang, PrepareText(text))
	if err != nil {
		return nil, err
	}

	hashes, err := RollingHash(KGrams(canonical.String(), f.params.K), f.params.Base, f.params.Prime)
	if err != nil {
		return nil, fmt.Errorf("hash k-grams: %w", err)
	}

	return &Result{
		Canonical:    canonical,
		Digest:       xxhash.Sum64String(canonical.String()),
		Fingerprints: SelectFingerprints(hashes, f.params.W),
	}, nil
}

// Fingerprint runs the pipeline with the default base and prime.
func Fingerprint(text string, lang normalize.Language, k, w int) (*FingerprintSet, error) {
	f := &Fingerprinter{params: Params{K: k, W: w, Base: DefaultBase, Prime: DefaultPrime}}
	return f.Fingerprint(text, lang)
}

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// PrepareText puts raw text into Unicode NFC and converts CRLF and CR line endings to LF,
// so byte-level encoding differences do not leak into fingerprints.
func PrepareText(text string) string {
	if text == "" {
		return ""
	}
	return lineEndings.Replace(norm.NFC.String(text))
}
