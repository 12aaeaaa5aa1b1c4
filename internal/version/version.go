// Package version implements RPM's rpmvercmp total ordering over
// (epoch, version, release) triples.
package version

import "strings"

// Ordering is the result of comparing two triples.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

// Triple is a parsed (epoch, version, release) version identity. Epoch
// absent is represented as a nil pointer upstream and coerced to 0 here.
type Triple struct {
	Epoch   int64
	Version string
	Release string
}

// Compare orders two triples: epoch first, then version segment, then
// release segment, stopping at the first non-equal component.
func Compare(a, b Triple) Ordering {
	if a.Epoch != b.Epoch {
		if a.Epoch < b.Epoch {
			return Less
		}
		return Greater
	}
	if o := compareSegments(a.Version, b.Version); o != Equal {
		return o
	}
	return compareSegments(a.Release, b.Release)
}

// CompareSegments exposes the per-segment algorithm directly, for callers
// comparing a single version or release string in isolation (dependency
// version bounds carry no epoch/release split).
func CompareSegments(a, b string) Ordering {
	return compareSegments(a, b)
}

// BareVersion strips an optional "epoch:" prefix and an optional
// "-release" suffix from a composed version string, leaving just the
// version segment for callers (dependency filters) that compare against
// a bound carrying no epoch or release of its own.
func BareVersion(composed string) string {
	if i := strings.IndexByte(composed, ':'); i >= 0 {
		composed = composed[i+1:]
	}
	if i := strings.LastIndexByte(composed, '-'); i >= 0 {
		composed = composed[:i]
	}
	return composed
}

func isAlnum(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// compareSegments is rpmvercmp's per-segment comparison: skip separator
// runs, apply the tilde pre-release rule, then alternate numeric/alpha
// token comparison until one side exhausts.
func compareSegments(a, b string) Ordering {
	ar, br := []rune(a), []rune(b)
	ai, bi := 0, 0

	for {
		for ai < len(ar) && !isAlnum(ar[ai]) && ar[ai] != '~' {
			ai++
		}
		for bi < len(br) && !isAlnum(br[bi]) && br[bi] != '~' {
			bi++
		}

		aTilde := ai < len(ar) && ar[ai] == '~'
		bTilde := bi < len(br) && br[bi] == '~'

		if aTilde && bTilde {
			ai++
			bi++
			continue
		}
		if aTilde {
			return Less
		}
		if bTilde {
			return Greater
		}

		aEmpty := ai >= len(ar)
		bEmpty := bi >= len(br)
		if aEmpty && bEmpty {
			return Equal
		}
		if aEmpty {
			return Less
		}
		if bEmpty {
			return Greater
		}

		aDigit := isDigit(ar[ai])
		bDigit := isDigit(br[bi])

		if aDigit && !bDigit {
			return Greater
		}
		if !aDigit && bDigit {
			return Less
		}

		if aDigit {
			start := ai
			for ai < len(ar) && isDigit(ar[ai]) {
				ai++
			}
			bstart := bi
			for bi < len(br) && isDigit(br[bi]) {
				bi++
			}
			if o := compareNumeric(string(ar[start:ai]), string(br[bstart:bi])); o != Equal {
				return o
			}
			continue
		}

		start := ai
		for ai < len(ar) && isAlnum(ar[ai]) && !isDigit(ar[ai]) {
			ai++
		}
		bstart := bi
		for bi < len(br) && isAlnum(br[bi]) && !isDigit(br[bi]) {
			bi++
		}
		as, bs := string(ar[start:ai]), string(br[bstart:bi])
		switch strings.Compare(as, bs) {
		case 0:
			continue
		case -1:
			return Less
		default:
			return Greater
		}
	}
}

// compareNumeric compares two digit runs as integers, ignoring leading
// zeros; a longer digit run (after stripping zeros) is greater.
func compareNumeric(a, b string) Ordering {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return Less
		}
		return Greater
	}
	switch strings.Compare(a, b) {
	case 0:
		return Equal
	case -1:
		return Less
	default:
		return Greater
	}
}
