package slug

import (
	"crypto/rand"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// foldAccents strips combining marks so "Café" slugifies to "cafe".
var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Option configures slug generation.
type Option func(*settings)

type settings struct {
	maxLength    int
	suffixLength int
}

// MaxLength truncates the generated slug (before any suffix) to n runes.
func MaxLength(n int) Option {
	return func(s *settings) { s.maxLength = n }
}

// WithSuffix appends a random alphanumeric suffix of the given length,
// separated by a hyphen, to reduce collision probability.
func WithSuffix(length int) Option {
	return func(s *settings) { s.suffixLength = length }
}

// Make converts an arbitrary display name into a URL-safe slug:
// accents folded, lowercased, non-alphanumeric runs collapsed to single
// hyphens, leading/trailing hyphens trimmed.
func Make(name string, opts ...Option) string {
	s := &settings{}
	for _, opt := range opts {
		opt(s)
	}

	folded, _, err := transform.String(foldAccents, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	prevHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}

	out := strings.TrimRight(b.String(), "-")

	if s.maxLength > 0 && len(out) > s.maxLength {
		out = strings.TrimRight(out[:s.maxLength], "-")
	}

	if s.suffixLength > 0 {
		suffix := randomSuffix(s.suffixLength)
		if out == "" {
			return suffix
		}
		return out + "-" + suffix
	}

	return out
}

func randomSuffix(length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return strings.Repeat("0", length)
	}
	for i, b := range buf {
		buf[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return string(buf)
}
