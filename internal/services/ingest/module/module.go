// Package module implements the ingest service module
package module

import (
	"finewatch/internal/core/schemareg"
	"finewatch/internal/modkit"
	"finewatch/internal/services/ingest/domain"
	"finewatch/internal/services/ingest/repo"
	"finewatch/internal/services/ingest/service"
	resolvedom "finewatch/internal/services/resolve/domain"
)

// Collaborators are the downstream ports the worker dispatches to
type Collaborators struct {
	Resolver   resolvedom.ResolverPort
	Merge      domain.MergePort
	Rollup     domain.RollupPort
	Quarantine domain.QuarantinePort
}

// Ports exposed by the ingest module
type Ports struct {
	Worker     domain.WorkerPort
	Planner    domain.PlannerPort
	Normalizer domain.NormalizerPort
}

// Module implements the ingest service module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs a new ingest module
func New(deps modkit.Deps, reg *schemareg.Registry, c Collaborators) *Module {
	opts := FromConfig(deps.Cfg)

	norm := service.NewNormalizer(reg, c.Resolver)
	svc := service.New(deps.PG, repo.NewPG(), norm, c.Merge, c.Rollup, c.Quarantine, service.Config{
		Workers:          opts.Workers,
		DelayPerBatch:    opts.DelayPerBatch,
		BatchSize:        opts.BatchSize,
		Visibility:       opts.Visibility,
		MaxBatchAttempts: opts.MaxBatchAttempts,
		PollInterval:     opts.PollInterval,
	})

	m := &Module{deps: deps}
	m.ports = Ports{Worker: svc, Planner: svc, Normalizer: norm}
	return m
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "ingest" }

// Ports returns the module's ports
func (m *Module) Ports() Ports { return m.ports }
