package service

import (
	"context"
	"testing"

	"finewatch/internal/core/entity"
	"finewatch/internal/core/schemareg"
	"finewatch/internal/services/ingest/domain"
	resolvedom "finewatch/internal/services/resolve/domain"
)

const testPack = `
version: 1
datasets:
  - key: osha_v1
    source: osha
    variant: v1
    natural_key: natural_key
    fields:
      - key: natural_key
        headers: [activity_nr]
      - key: company
        headers: [estab_name]
      - key: city
        headers: [site_city]
      - key: state
        headers: [site_state]
      - key: date
        headers: [open_date]
      - key: penalty
        headers: [total_current_penalty]
      - key: title
        headers: [insp_type_desc]
      - key: illness_skin
        headers: [c7a, total_skin_disorders]
  - key: nokey_v1
    source: epa
    variant: v1
    fields:
      - key: company
        headers: [fac_name]
      - key: city
        headers: [fac_city]
      - key: state
        headers: [fac_state]
      - key: date
        headers: [settlement_date]
`

// fakeResolver resolves against a static alias map the way the real service
// does: normalized form, with deterministic state synthesis
type fakeResolver struct {
	aliases map[string]string
}

func (f *fakeResolver) Resolve(_ context.Context, t entity.Type, raw, scope string) (resolvedom.Resolution, error) {
	if t == entity.TypeState {
		if code, ok := entity.StateCode(raw); ok {
			return resolvedom.Resolution{Slug: entity.StateSlug(code), Matched: true}, nil
		}
		return resolvedom.Resolution{}, nil
	}
	key := string(t) + ":" + entity.Normalize(t, raw)
	if scope != "" {
		key += "|" + scope
	}
	if slug, ok := f.aliases[key]; ok {
		return resolvedom.Resolution{Slug: slug, Matched: true}, nil
	}
	return resolvedom.Resolution{}, nil
}

func testResolver() *fakeResolver {
	return &fakeResolver{aliases: map[string]string{
		"company:acme":        "acme-corp",
		"city:new york|ny":    "new-york-ny",
		"city:springfield|il": "springfield-il",
	}}
}

func testNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	reg, err := schemareg.LoadBytes([]byte(testPack))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	return NewNormalizer(reg, testResolver())
}

func rawRow(fields map[string]string) domain.RawRow {
	return domain.RawRow{DatasetKey: "osha_v1", Fields: fields}
}

func acmeRow() map[string]string {
	return map[string]string{
		"activity_nr":           "A-1001",
		"estab_name":            "ACME CORP",
		"site_city":             "NEW YORK 10001",
		"site_state":            "NY",
		"open_date":             "2024-03-01",
		"total_current_penalty": "$1,200.50",
		"insp_type_desc":        "Complaint",
		"C7A":                   "3",
	}
}

func TestNormalizeCanonicalEvent(t *testing.T) {
	t.Parallel()

	n := testNormalizer(t)
	out, err := n.Normalize(context.Background(), rawRow(acmeRow()))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	ev := out.Event
	if ev == nil {
		t.Fatalf("expected event, got %+v", out.Quarantine)
	}

	if ev.CompanySlug != "acme-corp" {
		t.Fatalf("CompanySlug = %q", ev.CompanySlug)
	}
	if ev.City != "NEW YORK" {
		t.Fatalf("City = %q, want ZIP stripped", ev.City)
	}
	if ev.CitySlug != "new-york-ny" || ev.StateCode != "NY" {
		t.Fatalf("location: %q %q", ev.CitySlug, ev.StateCode)
	}
	if ev.Agency != "osha" || ev.Title != "Complaint" {
		t.Fatalf("display: %q %q", ev.Agency, ev.Title)
	}
	if ev.Penalty != 1200.50 {
		t.Fatalf("Penalty = %v", ev.Penalty)
	}
	if ev.SyntheticKey {
		t.Fatal("natural key present but SyntheticKey set")
	}
	if got := ev.OccurredAt.Format("2006-01-02"); got != "2024-03-01" {
		t.Fatalf("OccurredAt = %s", got)
	}
	// coded headers land in the detail payload under the canonical key
	if ev.Detail["illness_skin"] != "3" {
		t.Fatalf("Detail = %+v", ev.Detail)
	}
	// raw payload preserved verbatim
	if ev.RawPayload["estab_name"] != "ACME CORP" {
		t.Fatalf("RawPayload = %+v", ev.RawPayload)
	}
}

func TestNormalizeIdentityDeterministic(t *testing.T) {
	t.Parallel()

	n := testNormalizer(t)
	ctx := context.Background()

	a, err := n.Normalize(ctx, rawRow(acmeRow()))
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := n.Normalize(ctx, rawRow(acmeRow()))
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if a.Event.ID != b.Event.ID {
		t.Fatalf("identities diverge: %s vs %s", a.Event.ID, b.Event.ID)
	}
}

func TestNormalizeSchemaFallbackEquivalence(t *testing.T) {
	t.Parallel()

	n := testNormalizer(t)
	ctx := context.Background()

	coded := acmeRow()
	delete(coded, "C7A")
	coded["total_skin_disorders"] = "3"

	a, err := n.Normalize(ctx, rawRow(acmeRow()))
	if err != nil {
		t.Fatalf("coded: %v", err)
	}
	b, err := n.Normalize(ctx, rawRow(coded))
	if err != nil {
		t.Fatalf("descriptive: %v", err)
	}
	if a.Event.Detail["illness_skin"] != b.Event.Detail["illness_skin"] {
		t.Fatalf("canonical values diverge: %+v vs %+v", a.Event.Detail, b.Event.Detail)
	}
}

func TestNormalizeQuarantineReasons(t *testing.T) {
	t.Parallel()

	n := testNormalizer(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(map[string]string)
		reason domain.QuarantineReason
	}{
		{"missing date", func(f map[string]string) { delete(f, "open_date") }, domain.ReasonMissingDate},
		{"garbled date", func(f map[string]string) { f["open_date"] = "sometime" }, domain.ReasonMissingDate},
		{"unknown company", func(f map[string]string) { f["estab_name"] = "Nobody Knows LLC" }, domain.ReasonUnresolvedCompany},
		{"unknown city", func(f map[string]string) { f["site_city"] = "Frobozz" }, domain.ReasonUnresolvedCity},
	}
	for _, tc := range cases {
		fields := acmeRow()
		tc.mutate(fields)
		out, err := n.Normalize(ctx, rawRow(fields))
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if out.Quarantine == nil {
			t.Fatalf("%s: expected quarantine", tc.name)
		}
		if out.Quarantine.Reason != tc.reason {
			t.Fatalf("%s: reason = %s, want %s", tc.name, out.Quarantine.Reason, tc.reason)
		}
		if out.Quarantine.Identity == "" {
			t.Fatalf("%s: quarantine row without identity", tc.name)
		}
	}
}

func TestNormalizeSyntheticKey(t *testing.T) {
	t.Parallel()

	n := testNormalizer(t)
	ctx := context.Background()

	fields := map[string]string{
		"fac_name":        "ACME CORP",
		"fac_city":        "NEW YORK",
		"fac_state":       "NY",
		"settlement_date": "2024-03-01",
	}
	row := domain.RawRow{DatasetKey: "nokey_v1", Fields: fields}

	a, err := n.Normalize(ctx, row)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if !a.Event.SyntheticKey {
		t.Fatal("keyless dataset should flag SyntheticKey")
	}
	// the documented tradeoff: without a natural key, identity is not stable
	b, err := n.Normalize(ctx, row)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if a.Event.ID == b.Event.ID {
		t.Fatal("synthetic identities should not collide")
	}
}

func TestNormalizeUnknownDatasetDegrades(t *testing.T) {
	t.Parallel()

	n := testNormalizer(t)

	// structural headers resolve even with no registered map
	out, err := n.Normalize(context.Background(), domain.RawRow{
		DatasetKey: "mystery_v9",
		Fields: map[string]string{
			"company": "ACME CORP",
			"city":    "NEW YORK",
			"state":   "NY",
			"date":    "2024-03-01",
		},
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if out.Event == nil {
		t.Fatalf("expected degraded event, got %+v", out.Quarantine)
	}
	if out.Event.Agency != "mystery" {
		t.Fatalf("Agency = %q", out.Event.Agency)
	}
	if !out.Event.SyntheticKey {
		t.Fatal("no natural key available, SyntheticKey should be set")
	}
	// fallback title construction
	if out.Event.Title != "mystery violation 2024-03-01" {
		t.Fatalf("Title = %q", out.Event.Title)
	}
}
