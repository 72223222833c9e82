// Package module implements the merge service module
package module

import (
	"finewatch/internal/modkit"
	"finewatch/internal/services/merge/domain"
	"finewatch/internal/services/merge/repo"
	"finewatch/internal/services/merge/service"
)

// Ports exposed by the merge module
type Ports struct {
	Upserter domain.UpserterPort
}

// Module implements the merge service module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs a new merge module. mirror and enrich may be nil
func New(deps modkit.Deps, mirror domain.MirrorPort, enrich domain.EnrichPort) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(deps.PG, repo.NewPG(), domain.RetryPolicy{
		MaxAttempts: opts.MaxAttempts,
		Base:        opts.RetryBase,
		Cap:         opts.RetryCap,
	}, mirror, enrich)

	m := &Module{deps: deps}
	m.ports = Ports{Upserter: svc}
	return m
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "merge" }

// Ports returns the module's ports
func (m *Module) Ports() Ports { return m.ports }
