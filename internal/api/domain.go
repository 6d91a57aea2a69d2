package api

import (
	"fmt"

	"github.com/JaimeStill/vetrecords/internal/calibration"
	"github.com/JaimeStill/vetrecords/internal/config"
	"github.com/JaimeStill/vetrecords/internal/documents"
	"github.com/JaimeStill/vetrecords/internal/extraction"
	"github.com/JaimeStill/vetrecords/internal/interpretations"
	"github.com/JaimeStill/vetrecords/internal/reviews"
	"github.com/JaimeStill/vetrecords/internal/runs"
	"github.com/JaimeStill/vetrecords/internal/schema"
)

// Domain holds all domain systems that comprise the API, plus the
// scheduler that drives runs in the background.
type Domain struct {
	Calibration     calibration.System
	Documents       documents.System
	Interpretations interpretations.System
	Reviews         reviews.System
	Runs            runs.System
	Scheduler       *runs.Scheduler
}

// NewDomain creates all domain systems from the API runtime. The schema
// contract is loaded here and a failure aborts startup.
func NewDomain(cfg *config.Config, runtime *Runtime) (*Domain, error) {
	contract, err := schema.Load()
	if err != nil {
		return nil, fmt.Errorf("load schema contract: %w", err)
	}

	db := runtime.Database.Connection()

	calibrationSystem := calibration.New(
		db,
		cfg.Calibration.Policy(),
		runtime.Logger,
		runtime.Pagination,
	)

	interpretationsSystem := interpretations.New(
		db,
		interpretations.NewBuilder(contract, calibrationSystem.Policy()),
		calibrationSystem,
		runtime.Logger,
	)

	runsSystem := runs.New(
		db,
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
	)

	docsSystem := documents.New(
		db,
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
	)

	reviewsSystem := reviews.New(
		db,
		docsSystem,
		calibrationSystem,
		runtime.Logger,
	)

	pipeline := runs.NewPipeline(
		runsSystem,
		runtime.Storage,
		extraction.New(cfg.Extraction, runtime.Logger).Extract,
		interpretationsSystem.Interpret,
		cfg.Scheduler.RunTimeoutDuration(),
		runtime.Logger,
	)

	return &Domain{
		Calibration:     calibrationSystem,
		Documents:       docsSystem,
		Interpretations: interpretationsSystem,
		Reviews:         reviewsSystem,
		Runs:            runsSystem,
		Scheduler:       runs.NewScheduler(runsSystem, pipeline, cfg.Scheduler, runtime.Logger),
	}, nil
}
