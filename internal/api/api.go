// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/JaimeStill/vetrecords/internal/config"
	"github.com/JaimeStill/vetrecords/internal/infrastructure"
	"github.com/JaimeStill/vetrecords/pkg/lifecycle"
	"github.com/JaimeStill/vetrecords/pkg/middleware"
	"github.com/JaimeStill/vetrecords/pkg/module"
)

// Module is the mounted API module together with the domain systems behind it.
type Module struct {
	*module.Module
	Domain *Domain
}

// NewModule creates the API module with all domain handlers and middleware.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*Module, error) {
	runtime := NewRuntime(cfg, infra)

	domain, err := NewDomain(cfg, runtime)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	if err := registerRoutes(mux, domain, cfg); err != nil {
		return nil, err
	}

	m, err := module.New(cfg.API.BasePath, mux)
	if err != nil {
		return nil, err
	}
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(middleware.Recover(runtime.Logger))
	m.Use(middleware.CORS(&cfg.API.CORS))

	return &Module{Module: m, Domain: domain}, nil
}

// Start registers the run scheduler with the lifecycle coordinator.
func (m *Module) Start(lc *lifecycle.Coordinator) error {
	return m.Domain.Scheduler.Start(lc)
}
