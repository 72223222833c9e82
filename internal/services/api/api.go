// Package api mounts the read-only http surface: rollup lookups for the
// entity pages and the quarantine review feed
package api

import (
	"context"
	"net/http"
	"strconv"

	"finewatch/internal/core/entity"
	perr "finewatch/internal/platform/errors"
	nethttp "finewatch/internal/platform/net/http"
	quardom "finewatch/internal/services/quarantine/domain"
	rolldom "finewatch/internal/services/rollup/domain"
)

// Guarder reports backend readiness
type Guarder interface {
	Guard(ctx context.Context) error
}

// Deps are the ports the surface reads from
type Deps struct {
	Rollups    rolldom.ReaderPort
	Quarantine quardom.QueryPort
	Health     Guarder
}

// Module is the read-only api module
type Module struct {
	deps Deps
}

// New constructs the api module
func New(deps Deps) *Module { return &Module{deps: deps} }

// Name satisfies modkit.Module
func (m *Module) Name() string { return "api" }

// MountRoutes attaches the surface to the router
func (m *Module) MountRoutes(r nethttp.Router) {
	r.Get("/healthz", m.handleHealthz)
	r.Get("/readyz", m.handleReadyz)
	r.Route("/v1", func(v1 nethttp.Router) {
		v1.Get("/entities/{slug}/rollup", m.handleRollup)
		v1.Get("/quarantine", m.handleQuarantine)
	})
}

func (m *Module) handleHealthz(w http.ResponseWriter, r *http.Request) {
	nethttp.RespondOK(w, r, map[string]bool{"ok": true})
}

func (m *Module) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if m.deps.Health != nil {
		if err := m.deps.Health.Guard(r.Context()); err != nil {
			nethttp.RespondErr(w, r, perr.Wrap(err, perr.ErrorCodeUnavailable, "backend not ready"))
			return
		}
	}
	nethttp.RespondOK(w, r, map[string]bool{"ready": true})
}

func (m *Module) handleRollup(w http.ResponseWriter, r *http.Request) {
	slug := nethttp.Param(r, "slug")
	if slug == "" {
		nethttp.RespondErr(w, r, perr.InvalidArgf("missing slug"))
		return
	}

	t := entity.Type(r.URL.Query().Get("type"))
	if t == "" {
		t = entity.TypeCompany
	}
	if !t.Valid() {
		nethttp.RespondErr(w, r, perr.InvalidArgf("unknown entity type %q", t))
		return
	}
	bucket := r.URL.Query().Get("bucket")

	rec, err := m.deps.Rollups.Get(r.Context(), t, slug, bucket)
	if err != nil {
		nethttp.RespondErr(w, r, err)
		return
	}
	nethttp.RespondOK(w, r, rec)
}

func (m *Module) handleQuarantine(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			nethttp.RespondErr(w, r, perr.InvalidArgf("bad limit %q", s))
			return
		}
		limit = n
	}

	rows, err := m.deps.Quarantine.Recent(r.Context(), q.Get("dataset"), limit)
	if err != nil {
		nethttp.RespondErr(w, r, err)
		return
	}
	if rows == nil {
		rows = []quardom.Row{}
	}
	nethttp.RespondOK(w, r, map[string]any{
		"count": len(rows),
		"rows":  rows,
	})
}
