package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SergeiKhy/shortlinks/internal/config"
	"github.com/SergeiKhy/shortlinks/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultSweepInterval  = 300 * time.Second
	defaultSweepBatchSize = 1000
)

// Sweeper периодически переносит истёкшие ссылки в историю
type Sweeper struct {
	linkRepo    repository.LinkRepository
	historyRepo repository.HistoryRepository
	cacheRepo   repository.CacheRepository
	interval    time.Duration
	batchSize   int
	logger      *zap.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewSweeper(
	linkRepo repository.LinkRepository,
	historyRepo repository.HistoryRepository,
	cacheRepo repository.CacheRepository,
	cfg config.SweeperConfig,
	logger *zap.Logger,
) *Sweeper {
	s := &Sweeper{
		linkRepo:    linkRepo,
		historyRepo: historyRepo,
		cacheRepo:   cacheRepo,
		interval:    cfg.Interval,
		batchSize:   cfg.BatchSize,
		logger:      logger,
	}
	if s.interval <= 0 {
		s.interval = defaultSweepInterval
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultSweepBatchSize
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Start выполняет первый цикл сразу, затем раз в interval до вызова Stop
func (s *Sweeper) Start() {
	s.logger.Info("Starting expiry sweeper", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			s.cycle()

			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop отменяет текущий цикл и ждёт завершения горутины
func (s *Sweeper) Stop() {
	s.logger.Info("Stopping expiry sweeper...")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Expiry sweeper stopped")
}

// cycle один проход; паника не останавливает расписание
func (s *Sweeper) cycle() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Sweeper cycle panicked", zap.Any("panic", r))
		}
	}()

	archived, err := s.RunOnce(s.ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Error("Sweeper cycle failed", zap.Error(err))
		}
		return
	}
	if archived > 0 {
		s.logger.Info("Expired links archived", zap.Int("count", archived))
	}
}

// RunOnce архивирует до batchSize истёкших ссылок. Каждая ссылка переносится
// в отдельной транзакции: ошибка на одной не откатывает остальные.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	expired, err := s.linkRepo.ListExpired(ctx, now, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired links: %w", err)
	}

	archived := 0
	for _, link := range expired {
		if ctx.Err() != nil {
			return archived, ctx.Err()
		}

		if _, err := s.historyRepo.Archive(ctx, link.ShortCode, now); err != nil {
			if errors.Is(err, repository.ErrLinkNotFound) {
				// Удалена или продлена после выборки
				continue
			}
			s.logger.Warn("Failed to archive expired link",
				zap.String("short_code", link.ShortCode),
				zap.Error(err),
			)
			continue
		}
		archived++

		if err := s.cacheRepo.DeleteLink(ctx, link.ShortCode); err != nil {
			s.logger.Warn("Failed to invalidate link cache", zap.String("short_code", link.ShortCode), zap.Error(err))
		}
		if err := s.cacheRepo.DeleteStats(ctx, link.ShortCode); err != nil {
			s.logger.Warn("Failed to invalidate stats cache", zap.String("short_code", link.ShortCode), zap.Error(err))
		}
	}

	return archived, nil
}
