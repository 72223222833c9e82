// Package entity provides the deterministic name normalization and slug rules
// used by the resolver
// Pipeline order for a raw name
// 1 UTF-8 repair drop invalid bytes
// 2 Unicode NFKC normalization case folding width fold strip combining marks
// 3 Noise rules in fixed order
//   address-number prefix -> unit/suite prefix -> trailing ZIP -> trailing street suffix
//   plus per-type rules (store numbers and corporate suffixes for companies)
// 4 Collapse whitespace and trim
package entity

// Type classifies the canonical entities the pipeline resolves
type Type string

const (
	// TypeCompany is a regulated company or establishment
	TypeCompany Type = "company"

	// TypeCity is a municipality
	TypeCity Type = "city"

	// TypeState is a US state or territory
	TypeState Type = "state"
)

// Valid reports whether t is one of the known entity types
func (t Type) Valid() bool {
	switch t {
	case TypeCompany, TypeCity, TypeState:
		return true
	}
	return false
}
