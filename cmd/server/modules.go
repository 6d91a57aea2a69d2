package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/JaimeStill/vetrecords/internal/api"
	"github.com/JaimeStill/vetrecords/internal/config"
	"github.com/JaimeStill/vetrecords/internal/infrastructure"
	"github.com/JaimeStill/vetrecords/pkg/lifecycle"
	"github.com/JaimeStill/vetrecords/pkg/module"
)

const readinessTimeout = 2 * time.Second

// Modules holds every module mounted on the root router.
type Modules struct {
	API *api.Module
}

// NewModules creates the mounted modules.
func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	apiModule, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Modules{API: apiModule}, nil
}

// Mount attaches the modules to router.
func (m *Modules) Mount(router *module.Router) error {
	return router.Mount(m.API.Module)
}

// Start registers background work owned by the modules.
func (m *Modules) Start(lc *lifecycle.Coordinator) error {
	return m.API.Start(lc)
}

func buildRouter(infra *infrastructure.Infrastructure) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		phase := infra.Lifecycle.Phase()
		if phase != lifecycle.Running {
			writeStatus(w, http.StatusServiceUnavailable, phase.String())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if err := infra.Database.Ping(ctx); err != nil {
			infra.Logger.Warn("readiness check failed", "error", err)
			writeStatus(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})

	return router
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
