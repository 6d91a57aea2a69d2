package runs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/vetrecords/pkg/lifecycle"
)

// Queue is the subset of System the scheduler reads and transitions through.
type Queue interface {
	ListQueued(ctx context.Context, limit int) ([]Run, error)
	TryStart(ctx context.Context, id uuid.UUID) (*Run, bool, error)
	SweepOrphans(ctx context.Context) (int, error)
}

// Executor runs the pipeline of a started run.
type Executor interface {
	Execute(ctx context.Context, run Run) (*Run, error)
}

// Scheduler polls queued runs on a fixed tick and executes each started run
// as an independent task, bounded by MaxConcurrent.
type Scheduler struct {
	queue    Queue
	exec     Executor
	cfg      Config
	logger   *slog.Logger
	group    errgroup.Group
	inflight sync.Map
	done     chan struct{}
}

// NewScheduler creates a Scheduler from a finalized Config.
func NewScheduler(queue Queue, exec Executor, cfg Config, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		queue:  queue,
		exec:   exec,
		cfg:    cfg,
		logger: logger.With("system", "scheduler"),
		done:   make(chan struct{}),
	}
	s.group.SetLimit(cfg.MaxConcurrent)
	return s
}

// Start registers the orphan sweep and the polling loop with the lifecycle
// coordinator. The loop stops and drains when the coordinator shuts down.
func (s *Scheduler) Start(lc *lifecycle.Coordinator) error {
	if !s.cfg.IsEnabled() {
		s.logger.Info("scheduler disabled")
		return nil
	}

	s.logger.Info("starting scheduler",
		"tick_interval", s.cfg.TickInterval,
		"batch_size", s.cfg.BatchSize,
		"max_concurrent", s.cfg.MaxConcurrent,
	)

	lc.OnStartup(func() {
		ctx := lc.Context()
		if err := s.Sweep(ctx); err != nil {
			s.logger.Error("orphan sweep abandoned", "error", err)
		}
		go func() {
			defer close(s.done)
			s.Loop(ctx)
		}()
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		<-s.done
		s.logger.Info("scheduler stopped")
	})

	return nil
}

// Sweep fails runs orphaned by a previous process, retrying until it
// succeeds or ctx is done.
func (s *Scheduler) Sweep(ctx context.Context) error {
	retry := s.cfg.SweepRetryDuration()
	for {
		n, err := s.queue.SweepOrphans(ctx)
		if err == nil {
			s.logger.Info("orphan sweep complete", "swept", n)
			return nil
		}

		s.logger.Warn("orphan sweep failed", "error", err, "retry_in", retry)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry):
		}
	}
}

// Loop ticks until ctx is done, then waits for dispatched runs.
func (s *Scheduler) Loop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickIntervalDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Wait()
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick dispatches up to BatchSize queued runs and returns how many tasks it
// dispatched. Dispatch stops early when every slot is busy.
func (s *Scheduler) Tick(ctx context.Context) int {
	queued, err := s.queue.ListQueued(ctx, s.cfg.BatchSize)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("list queued runs failed", "error", err)
		}
		return 0
	}

	dispatched := 0
	documents := make(map[uuid.UUID]struct{}, len(queued))
	for _, run := range queued {
		// One run per document per tick keeps each document's runs in FIFO order.
		if _, seen := documents[run.DocumentID]; seen {
			continue
		}
		documents[run.DocumentID] = struct{}{}

		if _, busy := s.inflight.LoadOrStore(run.ID, struct{}{}); busy {
			continue
		}

		ok := s.group.TryGo(func() error {
			defer s.inflight.Delete(run.ID)
			s.start(ctx, run.ID)
			return nil
		})
		if !ok {
			s.inflight.Delete(run.ID)
			break
		}
		dispatched++
	}
	return dispatched
}

// Wait blocks until every dispatched task has returned.
func (s *Scheduler) Wait() {
	_ = s.group.Wait()
}

func (s *Scheduler) start(ctx context.Context, id uuid.UUID) {
	run, started, err := s.queue.TryStart(ctx, id)
	if err != nil {
		s.logger.Error("start run failed", "run_id", id, "error", err)
		return
	}
	if !started {
		s.logger.Debug("run not started", "run_id", id)
		return
	}

	final, err := s.exec.Execute(ctx, *run)
	if err != nil {
		s.logger.Error("run execution failed", "run_id", id, "error", err)
		return
	}

	s.logger.Info("run finished",
		"run_id", final.ID,
		"document_id", final.DocumentID,
		"state", final.State,
	)
}
