package entity

import "strings"

// stateByName maps folded full names to USPS codes
// codes double as the deterministic state slug (lowercased)
var stateByName = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID",
	"illinois": "IL", "indiana": "IN", "iowa": "IA", "kansas": "KS",
	"kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY",
	"district of columbia": "DC", "puerto rico": "PR", "guam": "GU",
	"american samoa": "AS", "virgin islands": "VI", "northern mariana islands": "MP",
}

// stateCodes is the set of valid USPS codes derived from stateByName
var stateCodes = func() map[string]struct{} {
	out := make(map[string]struct{}, len(stateByName))
	for _, c := range stateByName {
		out[c] = struct{}{}
	}
	return out
}()

// StateCode resolves a raw state reference (code or full name) to a USPS code.
// Well-formed codes resolve without any alias lookup; this is the
// deterministic synthesis path, not the alias path
func StateCode(raw string) (string, bool) {
	s := collapseSpaces(fold(raw))
	if s == "" {
		return "", false
	}
	if len(s) == 2 {
		up := strings.ToUpper(s)
		if _, ok := stateCodes[up]; ok {
			return up, true
		}
		return "", false
	}
	if c, ok := stateByName[s]; ok {
		return c, true
	}
	return "", false
}

// StateSlug returns the canonical slug for a USPS code
func StateSlug(code string) string { return strings.ToLower(code) }
