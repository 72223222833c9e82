// Package module implements the rollup service module
package module

import (
	"finewatch/internal/modkit"
	"finewatch/internal/services/rollup/domain"
	"finewatch/internal/services/rollup/repo"
	"finewatch/internal/services/rollup/service"
)

// Ports exposed by the rollup module
type Ports struct {
	Maintainer domain.MaintainerPort
	Reader     domain.ReaderPort
}

// Module implements the rollup service module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs a new rollup module
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(deps.PG, repo.NewPG(), service.Config{
		RecentK:    opts.RecentK,
		CacheTTL:   opts.CacheTTL,
		CacheSweep: opts.CacheSweep,
	})

	m := &Module{deps: deps}
	m.ports = Ports{Maintainer: svc, Reader: svc}
	return m
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "rollup" }

// Ports returns the module's ports
func (m *Module) Ports() Ports { return m.ports }
