// Package keyexpr implements key expressions: hierarchical, '/'-delimited,
// wildcard-capable addresses of the pub/sub namespace.
//
// A key expression is a sequence of non-empty chunks. Within it:
//
//	*   matches exactly one chunk
//	**  matches zero or more chunks
//	$*  matches any run of characters inside a single chunk
//
// Chunks starting with '@' are verbatim: they are only matched by an identical chunk,
// never by a wildcard. The characters '#' and '?' are reserved, and '$' may only
// appear as part of '$*'.
//
// Parse canonicalizes its input, so two expressions with the same match-set
// that differ only in wildcard spelling compare equal with Equal.
package keyexpr

import (
	"fmt"
	"strings"
)

const (
	// Separator delimits chunks.
	Separator = "/"

	singleWild = "*"
	doubleWild = "**"
	subWild    = "$*"
	verbatim   = '@'
)

// KeyExpr is an immutable, canonical key expression.
type KeyExpr struct {
	s string
}

// Parse validates s and returns its canonical form.
func Parse(s string) (KeyExpr, error) {
	if s == "" {
		return KeyExpr{}, fmt.Errorf("empty key expression")
	}
	if strings.HasPrefix(s, Separator) || strings.HasSuffix(s, Separator) {
		return KeyExpr{}, fmt.Errorf("key expression %q must not start or end with '/'", s)
	}

	chunks := strings.Split(s, Separator)
	for i, c := range chunks {
		if err := validateChunk(c); err != nil {
			return KeyExpr{}, fmt.Errorf("invalid key expression %q: %w", s, err)
		}
		chunks[i] = canonicalChunk(c)
	}

	return KeyExpr{s: strings.Join(canonicalChunks(chunks), Separator)}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) KeyExpr {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

// String returns the canonical textual form.
func (k KeyExpr) String() string {
	return k.s
}

// IsZero reports whether k is the zero value (not a valid expression).
func (k KeyExpr) IsZero() bool {
	return k.s == ""
}

// Equal reports whether k and o are the same canonical expression.
func (k KeyExpr) Equal(o KeyExpr) bool {
	return k.s == o.s
}

// Chunks returns the chunks of k.
func (k KeyExpr) Chunks() []string {
	if k.s == "" {
		return nil
	}
	return strings.Split(k.s, Separator)
}

// IsWild reports whether k contains any wildcard.
func (k KeyExpr) IsWild() bool {
	return strings.Contains(k.s, singleWild)
}

// Join returns k followed by suffix, canonicalized. Leading separators of
// suffix are dropped; a trailing one makes the result invalid.
func (k KeyExpr) Join(suffix string) (KeyExpr, error) {
	suffix = strings.TrimLeft(suffix, Separator)
	if suffix == "" {
		return k, nil
	}
	if k.s == "" {
		return Parse(suffix)
	}
	return Parse(k.s + Separator + suffix)
}

// StripPrefix removes the chunks of prefix from the start of k. It returns the
// remainder (possibly empty) and true when k equals or extends prefix chunk-wise.
// Wildcards are compared literally.
func (k KeyExpr) StripPrefix(prefix string) (string, bool) {
	prefix = strings.Trim(prefix, Separator)
	if prefix == "" {
		return k.s, true
	}
	if k.s == prefix {
		return "", true
	}
	if strings.HasPrefix(k.s, prefix+Separator) {
		return k.s[len(prefix)+1:], true
	}
	return "", false
}

// Intersects reports whether there exists at least one concrete key matched by both k and o.
func (k KeyExpr) Intersects(o KeyExpr) bool {
	if k.s == "" || o.s == "" {
		return false
	}
	if k.s == o.s {
		return true
	}
	return intersectChunks(k.Chunks(), o.Chunks())
}

// Includes reports whether every key matched by o is also matched by k.
func (k KeyExpr) Includes(o KeyExpr) bool {
	if k.s == "" || o.s == "" {
		return false
	}
	if k.s == o.s {
		return true
	}
	return includeChunks(k.Chunks(), o.Chunks())
}

// MarshalText implements encoding.TextMarshaler.
func (k KeyExpr) MarshalText() ([]byte, error) {
	return []byte(k.s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *KeyExpr) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func validateChunk(c string) error {
	if c == "" {
		return fmt.Errorf("empty chunk")
	}
	if c == singleWild || c == doubleWild {
		return nil
	}
	for i := 0; i < len(c); i++ {
		switch c[i] {
		case '#', '?':
			return fmt.Errorf("chunk %q contains reserved character %q", c, c[i])
		case '$':
			if i+1 >= len(c) || c[i+1] != '*' {
				return fmt.Errorf("chunk %q contains '$' not followed by '*'", c)
			}
			i++
		case '*':
			return fmt.Errorf("chunk %q mixes '*' with other characters (use '$*')", c)
		}
	}
	if c[0] == verbatim && strings.Contains(c, subWild) {
		return fmt.Errorf("verbatim chunk %q must not contain wildcards", c)
	}
	return nil
}

func canonicalChunk(c string) string {
	for strings.Contains(c, subWild+subWild) {
		c = strings.ReplaceAll(c, subWild+subWild, subWild)
	}
	if c == subWild {
		return singleWild
	}
	return c
}

// canonicalChunks collapses "**/**" into "**" and moves "*" in front of an adjacent "**".
func canonicalChunks(chunks []string) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		n := len(out)
		switch {
		case c == doubleWild && n > 0 && out[n-1] == doubleWild:
			continue
		case c == singleWild && n > 0 && out[n-1] == doubleWild:
			// bubble the '*' before every trailing '**' run
			i := n - 1
			for i > 0 && out[i-1] == doubleWild {
				i--
			}
			out = append(out, "")
			copy(out[i+1:], out[i:n])
			out[i] = singleWild
		default:
			out = append(out, c)
		}
	}
	return out
}

func isVerbatim(c string) bool {
	return len(c) > 0 && c[0] == verbatim
}

func intersectChunks(a, b []string) bool {
	for {
		switch {
		case len(a) == 0 && len(b) == 0:
			return true
		case len(a) > 0 && a[0] == doubleWild:
			if intersectChunks(a[1:], b) {
				return true
			}
			if len(b) == 0 || isVerbatim(b[0]) {
				return false
			}
			b = b[1:]
			continue
		case len(b) > 0 && b[0] == doubleWild:
			a, b = b, a
			continue
		case len(a) == 0 || len(b) == 0:
			return false
		}

		if !intersectChunk(a[0], b[0]) {
			return false
		}
		a, b = a[1:], b[1:]
	}
}

func intersectChunk(a, b string) bool {
	if a == b {
		return true
	}
	if isVerbatim(a) || isVerbatim(b) {
		return false
	}
	if a == singleWild || b == singleWild {
		return true
	}
	return intersectPattern(a, b)
}

// intersectPattern reports whether two chunk patterns using '$*' share a concrete match.
func intersectPattern(a, b string) bool {
	switch {
	case a == "" && b == "":
		return true
	case strings.HasPrefix(a, subWild):
		if intersectPattern(a[len(subWild):], b) {
			return true
		}
		if b == "" {
			return false
		}
		return intersectPattern(a, b[unitLen(b):])
	case strings.HasPrefix(b, subWild):
		return intersectPattern(b, a)
	case a == "" || b == "":
		return false
	case a[0] != b[0]:
		return false
	default:
		return intersectPattern(a[1:], b[1:])
	}
}

func unitLen(p string) int {
	if strings.HasPrefix(p, subWild) {
		return len(subWild)
	}
	return 1
}

func includeChunks(a, b []string) bool {
	switch {
	case len(a) == 0:
		return len(b) == 0
	case a[0] == doubleWild:
		if includeChunks(a[1:], b) {
			return true
		}
		if len(b) == 0 || isVerbatim(b[0]) {
			return false
		}
		return includeChunks(a, b[1:])
	case len(b) == 0 || b[0] == doubleWild:
		return false
	}
	if !includeChunk(a[0], b[0]) {
		return false
	}
	return includeChunks(a[1:], b[1:])
}

func includeChunk(a, b string) bool {
	if a == b {
		return true
	}
	if isVerbatim(a) || isVerbatim(b) {
		return false
	}
	if a == singleWild {
		return true
	}
	if b == singleWild {
		return false
	}
	return includePattern(a, b)
}

// includePattern reports whether pattern a matches every string matched by pattern b.
func includePattern(a, b string) bool {
	switch {
	case a == "":
		return b == ""
	case strings.HasPrefix(a, subWild):
		if includePattern(a[len(subWild):], b) {
			return true
		}
		if b == "" {
			return false
		}
		return includePattern(a, b[unitLen(b):])
	case b == "" || strings.HasPrefix(b, subWild):
		return false
	case a[0] != b[0]:
		return false
	default:
		return includePattern(a[1:], b[1:])
	}
}
