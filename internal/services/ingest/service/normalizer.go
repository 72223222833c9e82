package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"finewatch/internal/core/entity"
	"finewatch/internal/core/schemareg"
	"finewatch/internal/services/ingest/domain"
	resolvedom "finewatch/internal/services/resolve/domain"
)

// structural canonical keys consumed by normalization itself; everything else
// the dataset map resolves lands in Event.Detail
var structuralKeys = map[string]struct{}{
	"natural_key": {},
	"company":     {},
	"city":        {},
	"state":       {},
	"date":        {},
	"penalty":     {},
	"title":       {},
	"description": {},
	"site_id":     {},
	"category":    {},
}

// accepted occurrence date layouts, tried in order
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04",
}

// Normalizer turns raw rows into canonical events. It holds only read-mostly
// state (the compiled registry, the resolver's shared cache) and is safe for
// concurrent use across workers
type Normalizer struct {
	reg      *schemareg.Registry
	resolver resolvedom.ResolverPort
}

var _ domain.NormalizerPort = (*Normalizer)(nil)

// NewNormalizer constructs a row normalizer
func NewNormalizer(reg *schemareg.Registry, resolver resolvedom.ResolverPort) *Normalizer {
	if reg == nil {
		panic("ingest.Normalizer requires a non-nil registry")
	}
	if resolver == nil {
		panic("ingest.Normalizer requires a non-nil resolver")
	}
	return &Normalizer{reg: reg, resolver: resolver}
}

// Normalize maps a raw row to a canonical event or a quarantined row.
// Resolution misses and a missing date quarantine with a typed reason;
// infrastructure errors (resolver store down) return err so the batch can
// be redelivered instead of mis-quarantining rows
func (n *Normalizer) Normalize(ctx context.Context, row domain.RawRow) (domain.NormalizeOutcome, error) {
	folded := schemareg.FoldRow(row.Fields)
	dm, _ := n.reg.Dataset(row.DatasetKey)

	// unknown datasets degrade to structural inference: canonical keys are
	// looked up directly against the folded headers
	field := func(key string) (string, bool) {
		if dm != nil {
			return dm.Resolve(key, folded)
		}
		v, ok := folded[key]
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	agency := agencyOf(dm, row.DatasetKey)

	rawDate, _ := field("date")
	occurredAt, ok := parseDate(rawDate)
	if !ok {
		return n.quarantine(row, domain.ReasonMissingDate), nil
	}

	// state resolves deterministically for well-formed codes and names and
	// is allowed to be absent; it scopes the city lookup when present
	var stateCode string
	if rawState, present := field("state"); present {
		res, err := n.resolver.Resolve(ctx, entity.TypeState, rawState, "")
		if err != nil {
			return domain.NormalizeOutcome{}, err
		}
		if res.Matched {
			stateCode = strings.ToUpper(res.Slug)
		}
	}

	rawCompany, _ := field("company")
	companyRes, err := n.resolver.Resolve(ctx, entity.TypeCompany, rawCompany, "")
	if err != nil {
		return domain.NormalizeOutcome{}, err
	}
	if !companyRes.Matched {
		return n.quarantine(row, domain.ReasonUnresolvedCompany), nil
	}

	rawCity, _ := field("city")
	cityRes, err := n.resolver.Resolve(ctx, entity.TypeCity, rawCity, entity.StateSlug(stateCode))
	if err != nil {
		return domain.NormalizeOutcome{}, err
	}
	if !cityRes.Matched {
		return n.quarantine(row, domain.ReasonUnresolvedCity), nil
	}
	cityDisplay := strings.ToUpper(entity.Normalize(entity.TypeCity, rawCity))

	// prefer the dataset's own natural key: true idempotence across re-runs.
	// Without one the identity gets a synthetic component; re-ingesting such
	// rows can mint a near-duplicate, which the flag keeps visible
	naturalKey, hasNK := "", false
	if dm != nil && dm.NaturalKey != "" {
		naturalKey, hasNK = field(dm.NaturalKey)
	} else {
		naturalKey, hasNK = field("natural_key")
	}
	synthetic := !hasNK
	if synthetic {
		naturalKey = uuid.NewString()
	}

	dateKey := occurredAt.UTC().Format("2006-01-02")
	id := domain.EventIdentity(agency, dateKey, companyRes.Slug, cityRes.Slug, naturalKey)

	title, _ := field("title")
	if title == "" {
		title, _ = field("category")
	}
	if title == "" {
		// fixed fallback construction so a thin row still gets a display name
		title = agency + " violation " + dateKey
	}
	description, _ := field("description")
	siteID, _ := field("site_id")

	var penalty float64
	if rawPenalty, present := field("penalty"); present {
		penalty = parsePenalty(rawPenalty)
	}

	detail := map[string]string{}
	if dm != nil {
		for _, key := range dm.Keys() {
			if _, structural := structuralKeys[key]; structural {
				continue
			}
			if v, present := dm.Resolve(key, folded); present {
				detail[key] = v
			}
		}
	}
	if len(detail) == 0 {
		detail = nil
	}

	ev := &domain.Event{
		ID:           id,
		Agency:       agency,
		DatasetKey:   row.DatasetKey,
		OccurredAt:   occurredAt.UTC(),
		StateCode:    stateCode,
		City:         cityDisplay,
		CitySlug:     cityRes.Slug,
		CompanySlug:  companyRes.Slug,
		SiteID:       siteID,
		Title:        title,
		Description:  description,
		Penalty:      penalty,
		Detail:       detail,
		RawPayload:   row.Fields,
		SyntheticKey: synthetic,
		IngestedAt:   time.Now().UTC(),
	}
	return domain.NormalizeOutcome{Event: ev}, nil
}

func (n *Normalizer) quarantine(row domain.RawRow, reason domain.QuarantineReason) domain.NormalizeOutcome {
	return domain.NormalizeOutcome{Quarantine: &domain.QuarantinedRow{
		Identity:      domain.RowIdentity(row.DatasetKey, row.Fields),
		DatasetKey:    row.DatasetKey,
		Reason:        reason,
		Fields:        row.Fields,
		QuarantinedAt: time.Now().UTC(),
	}}
}

// agencyOf prefers the dataset map's source tag, falling back to the dataset
// key prefix ("osha_inspections_v1" -> "osha")
func agencyOf(dm *schemareg.DatasetMap, datasetKey string) string {
	if dm != nil && dm.Source != "" {
		return dm.Source
	}
	if i := strings.IndexByte(datasetKey, '_'); i > 0 {
		return datasetKey[:i]
	}
	return datasetKey
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parsePenalty tolerates currency formatting; unparseable amounts degrade to 0
func parsePenalty(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
