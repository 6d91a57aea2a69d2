package main

import (
	"time"

	"github.com/JaimeStill/vetrecords/internal/config"
	"github.com/JaimeStill/vetrecords/internal/infrastructure"
)

// Server wires infrastructure, modules and the listener for one process.
type Server struct {
	infra   *infrastructure.Infrastructure
	modules *Modules
	http    *httpServer
	version string
}

// NewServer builds every subsystem from cfg. Nothing connects or listens
// until Start.
func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	modules, err := NewModules(infra, cfg)
	if err != nil {
		return nil, err
	}

	router := buildRouter(infra)
	if err := modules.Mount(router); err != nil {
		return nil, err
	}

	return &Server{
		infra:   infra,
		modules: modules,
		http:    newHTTPServer(&cfg.Server, router, infra.Logger),
		version: cfg.Version,
	}, nil
}

// Start registers the database, storage, scheduler and listener hooks in
// that order. Readiness flips once every startup hook has returned.
func (s *Server) Start() error {
	log := s.infra.Logger
	log.Info("starting vetrecords", "version", s.version)

	steps := []func() error{
		s.infra.Start,
		func() error { return s.modules.Start(s.infra.Lifecycle) },
		func() error { return s.http.Start(s.infra.Lifecycle) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	go func() {
		s.infra.Lifecycle.WaitForStartup()
		log.Info("ready")
	}()
	return nil
}

// Shutdown stops accepting work and waits up to timeout for the scheduler
// to mark in-flight runs and the listener to drain.
func (s *Server) Shutdown(timeout time.Duration) error {
	start := time.Now()
	s.infra.Logger.Info("shutting down", "timeout", timeout)

	if err := s.infra.Lifecycle.Shutdown(timeout); err != nil {
		return err
	}

	s.infra.Logger.Info("stopped", "elapsed", time.Since(start))
	return nil
}
