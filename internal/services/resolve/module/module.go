// Package module implements the resolve service module
package module

import (
	"finewatch/internal/modkit"
	"finewatch/internal/services/resolve/domain"
	"finewatch/internal/services/resolve/repo"
	"finewatch/internal/services/resolve/service"
)

// Ports exposed by the resolve module
type Ports struct {
	Resolver domain.ResolverPort
	Seeder   domain.SeederPort
}

// Module implements the resolve service module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs a new resolve module
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(deps.PG, repo.NewPG(), service.Config{
		CacheTTL:   opts.CacheTTL,
		CacheSweep: opts.CacheSweep,
	})

	m := &Module{deps: deps}
	m.ports = Ports{Resolver: svc, Seeder: svc}
	return m
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "resolve" }

// Ports returns the module's ports
func (m *Module) Ports() Ports { return m.ports }
