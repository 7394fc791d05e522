package app

import (
	"context"
	"time"

	"github.com/nrgiser71/tandemup-sub000/internal/service"
	"go.uber.org/zap"
)

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	matchmaking       *service.MatchmakingService
	noShows           *service.NoShowService
	reconcileInterval time.Duration
	noShowInterval    time.Duration
	logger            *zap.Logger
	stopChan          chan struct{}
}

// NewScheduler создаёт новый планировщик
func NewScheduler(
	matchmaking *service.MatchmakingService,
	noShows *service.NoShowService,
	reconcileInterval time.Duration,
	noShowInterval time.Duration,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		matchmaking:       matchmaking,
		noShows:           noShows,
		reconcileInterval: reconcileInterval,
		noShowInterval:    noShowInterval,
		logger:            logger,
		stopChan:          make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler",
		zap.Duration("reconcile_interval", s.reconcileInterval),
		zap.Duration("no_show_interval", s.noShowInterval),
	)

	// Запускаем свипы матчинга и no-show
	go s.runSweep(ctx, "match reconcile", s.reconcileInterval, s.matchmaking.ReconcileMatches)
	go s.runSweep(ctx, "no-show", s.noShowInterval, s.noShows.SweepNoShows)
}

// Stop останавливает фоновые задачи
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	close(s.stopChan)
}

// runSweep периодически выполняет один свип
// Свипы идемпотентны, поэтому наложение запусков безопасно
func (s *Scheduler) runSweep(ctx context.Context, name string, interval time.Duration, sweep func(context.Context) error) {
	// Первый запуск сразу при старте
	s.runOnce(ctx, name, sweep)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx, name, sweep)
		case <-s.stopChan:
			s.logger.Info("Sweep task stopped", zap.String("sweep", name))
			return
		case <-ctx.Done():
			s.logger.Info("Sweep task cancelled", zap.String("sweep", name))
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, name string, sweep func(context.Context) error) {
	if err := sweep(ctx); err != nil {
		s.logger.Error("Sweep failed", zap.String("sweep", name), zap.Error(err))
	}
}
