// Package module implements the quarantine service module
package module

import (
	"finewatch/internal/modkit"
	"finewatch/internal/services/quarantine/domain"
	"finewatch/internal/services/quarantine/repo"
	"finewatch/internal/services/quarantine/service"
)

// Ports exposed by the quarantine module
type Ports struct {
	Sink  domain.SinkPort
	Query domain.QueryPort
}

// Module implements the quarantine service module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs a new quarantine module
func New(deps modkit.Deps) *Module {
	svc := service.New(deps.PG, repo.NewPG())
	m := &Module{deps: deps}
	m.ports = Ports{Sink: svc, Query: svc}
	return m
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "quarantine" }

// Ports returns the module's ports
func (m *Module) Ports() Ports { return m.ports }
