package countbatch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/jhoicas/inventario-auditoria/pkg/logger"
)

// Scheduler dispara Flush a intervalo fijo. Un ciclo lento reprograma el siguiente en lugar de solaparse.
type Scheduler struct {
	scheduler gocron.Scheduler
	batcher   *Batcher
	log       *logger.Logger
}

// NewScheduler registra el job de flush. interval <= 0 = 10s.
func NewScheduler(ctx context.Context, b *Batcher, interval time.Duration, log *logger.Logger) (*Scheduler, error) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	sch := &Scheduler{scheduler: s, batcher: b, log: log}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(sch.flush, ctx),
		gocron.WithName("count-flush"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("register flush job: %w", err)
	}
	return sch, nil
}

func (s *Scheduler) flush(ctx context.Context) {
	res := s.batcher.Flush(ctx)
	if res.Attempted > 0 {
		s.log.Debug().Int("attempted", res.Attempted).Int("persisted", res.Persisted).Msg("flush periódico")
	}
}

// Start inicia el scheduler.
func (s *Scheduler) Start() { s.scheduler.Start() }

// Stop detiene el scheduler esperando el ciclo en curso.
func (s *Scheduler) Stop() error { return s.scheduler.Shutdown() }
