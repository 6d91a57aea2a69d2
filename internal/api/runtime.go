package api

import (
	"github.com/JaimeStill/vetrecords/internal/config"
	"github.com/JaimeStill/vetrecords/internal/infrastructure"
	"github.com/JaimeStill/vetrecords/pkg/pagination"
)

// Runtime is the infrastructure as seen by the API module: its logger is
// tagged module=api and list endpoints share one pagination config.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
}

func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: infra.Scoped("module", "api"),
		Pagination:     cfg.API.Pagination,
	}
}
