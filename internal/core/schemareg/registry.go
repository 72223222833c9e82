package schemareg

import (
	"strings"
	"unicode"
)

// Registry holds the compiled dataset maps. Lookups are read-only after Load,
// so no locking is needed
type Registry struct {
	datasets map[string]*DatasetMap
}

// Dataset returns the compiled map for a dataset key
func (r *Registry) Dataset(key string) (*DatasetMap, bool) {
	dm, ok := r.datasets[key]
	return dm, ok
}

// DatasetKeys returns the known dataset keys in no particular order
func (r *Registry) DatasetKeys() []string {
	out := make([]string, 0, len(r.datasets))
	for k := range r.datasets {
		out = append(out, k)
	}
	return out
}

// FoldHeader canonicalizes a raw header for matching: lowercase with
// whitespace runs collapsed to single underscores, so "Total  Penalty",
// "total_penalty" and "TOTAL PENALTY" all meet in the middle
func FoldHeader(h string) string {
	h = strings.TrimSpace(strings.ToLower(h))
	if h == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(h))
	inWS := false
	for _, r := range h {
		if unicode.IsSpace(r) || r == '_' {
			inWS = true
			continue
		}
		if inWS && b.Len() > 0 {
			b.WriteByte('_')
		}
		inWS = false
		b.WriteRune(r)
	}
	return b.String()
}

// FoldRow re-keys a raw row by folded header, done once per row so repeated
// ResolveField calls stay map lookups. Later duplicate headers do not clobber
// an earlier non-empty value
func FoldRow(row map[string]string) map[string]string {
	out := make(map[string]string, len(row))
	for h, v := range row {
		f := FoldHeader(h)
		if f == "" {
			continue
		}
		if prev, ok := out[f]; ok && strings.TrimSpace(prev) != "" {
			continue
		}
		out[f] = v
	}
	return out
}

// ResolveField resolves a canonical key against a folded row. The first
// declared header alias with a non-empty value wins. Unknown datasets and
// unknown canonical keys resolve to absent, never to an error, so schema
// drift degrades a row instead of failing a batch
func (r *Registry) ResolveField(datasetKey, canonicalKey string, folded map[string]string) (string, bool) {
	dm, ok := r.datasets[datasetKey]
	if !ok {
		return "", false
	}
	return dm.Resolve(canonicalKey, folded)
}

// Resolve is ResolveField scoped to one dataset map
func (dm *DatasetMap) Resolve(canonicalKey string, folded map[string]string) (string, bool) {
	headers, ok := dm.fields[canonicalKey]
	if !ok {
		return "", false
	}
	for _, h := range headers {
		if v, present := folded[h]; present {
			v = strings.TrimSpace(v)
			if v != "" {
				return v, true
			}
		}
	}
	return "", false
}
