package entity

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// pool of fresh transformer chains
var chainPool = sync.Pool{
	New: func() any {
		// order matters and mirrors the documented pipeline
		return transform.Chain(
			norm.NFKC,
			cases.Fold(),                       // unicode case folding
			runes.Remove(runes.In(unicode.Mn)), // strip combining marks
			runes.Remove(runes.In(unicode.Cf)), // strip format chars ZWJ ZWNJ FEFF etc
			width.Fold,                         // map fullwidth forms to ASCII
		)
	},
}

// Noise rules. Applied in declaration order; the order is part of the contract
// because later rules assume earlier prefixes are gone
var (
	// "123 main st, miami" -> "miami"
	reAddrSegment = regexp.MustCompile(`^\d+[a-z]?\s+[^,]*,\s*`)

	// "1234 elm street" -> "elm street" (no comma form)
	reAddrNumber = regexp.MustCompile(`^\d+[a-z]?\s+`)

	// "suite 210 acme" / "unit b acme" -> "acme"
	reUnitPrefix = regexp.MustCompile(`^(?:suite|ste|unit|apt|bldg)\s*[\w-]+\s+`)

	// "orlando 32801" / "orlando 32801-1234" -> "orlando"
	reTrailZip = regexp.MustCompile(`\s+\d{5}(?:-\d{4})?$`)

	// "elm street" -> "elm"
	reTrailStreet = regexp.MustCompile(
		`\s+(?:street|st|avenue|ave|road|rd|boulevard|blvd|drive|dr|lane|ln|highway|hwy|parkway|pkwy)\.?$`)

	// company only: "walmart #1234" -> "walmart"
	reStoreNumber = regexp.MustCompile(`\s*#\s*\d+$`)

	// company only: "acme corp" / "acme inc." -> "acme"
	reCorpSuffix = regexp.MustCompile(
		`[\s,]+(?:inc|incorporated|llc|l\.l\.c|corp|corporation|co|company|ltd|limited|lp|llp|plc)\.?$`)

	// secondary form: "nashville-davidson metropolitan government" -> "nashville"
	reMetroQualifier = regexp.MustCompile(`\s+(?:metropolitan|metro|consolidated|unified)\s+government.*$`)
	reParenthetical  = regexp.MustCompile(`\s*\([^)]*\)`)
)

// Normalize runs the full pipeline for an entity type and returns the
// normalized alias key form of raw
func Normalize(t Type, raw string) string {
	s := fold(raw)
	if s == "" {
		return ""
	}

	switch t {
	case TypeCompany:
		s = reStoreNumber.ReplaceAllString(s, "")
		// apply twice so "acme co inc" collapses fully
		s = reCorpSuffix.ReplaceAllString(s, "")
		s = reCorpSuffix.ReplaceAllString(s, "")
	case TypeCity:
		s = reAddrSegment.ReplaceAllString(s, "")
		s = reUnitPrefix.ReplaceAllString(s, "")
		s = reTrailZip.ReplaceAllString(s, "")
		if reAddrNumber.MatchString(s) {
			s = reAddrNumber.ReplaceAllString(s, "")
			s = reTrailStreet.ReplaceAllString(s, "")
		}
	case TypeState:
		// states only need the fold; code/name mapping happens in states.go
	}

	return collapseSpaces(s)
}

// Simplified derives the secondary lookup form tried after a direct alias miss.
// It strips metro-government style qualifiers, parentheticals, and hyphenated
// tails ("winston-salem" stays, "nashville-davidson" simplifies when the
// qualifier rule already fired). Returns "" when no simpler form exists
func Simplified(t Type, normalized string) string {
	s := normalized
	s = reParenthetical.ReplaceAllString(s, "")
	stripped := reMetroQualifier.ReplaceAllString(s, "")
	if stripped != s {
		// the hyphenated tail belongs to the government qualifier form
		if i := strings.IndexByte(stripped, '-'); i > 0 {
			stripped = stripped[:i]
		}
	}
	s = collapseSpaces(stripped)
	if s == "" || s == normalized {
		return ""
	}
	return s
}

// fold repairs UTF-8 and runs the pooled x/text transform chain
func fold(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")

	tr := chainPool.Get().(transform.Transformer)
	ns, _, _ := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)

	return ns
}

// collapseSpaces converts whitespace runs to a single ASCII space and trims
func collapseSpaces(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inWS := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWS = true
			continue
		}
		if inWS && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inWS = false
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), " ,.")
}
