package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SergeiKhy/shortlinks/internal/models"
	"github.com/SergeiKhy/shortlinks/internal/repository"
	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// Константы worker pool
const (
	defaultWorkerCount   = 3    // Количество воркеров
	defaultChannelBuffer = 1000 // Размер буфера канала
	maxRetries           = 3    // Максимальное количество попыток записи
)

// StatsRefresher асинхронно обновляет stats:{code} после переходов
type StatsRefresher interface {
	Start()
	Stop()
	Enqueue(ctx context.Context, event *models.StatsEvent) error
	ChannelStats() ChannelStats
}

// statsRefresher реализация на Worker Pool. У каждого воркера своя очередь,
// код всегда попадает к одному воркеру: записи одного кода идут по порядку.
type statsRefresher struct {
	linkRepo     repository.LinkRepository
	cacheRepo    repository.CacheRepository
	logger       *zap.Logger
	queues       []chan *models.StatsEvent
	retryBackoff time.Duration
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewStatsRefresher создаёт пул; workers и buffer <= 0 заменяются значениями по умолчанию.
// buffer делится между очередями воркеров.
func NewStatsRefresher(
	linkRepo repository.LinkRepository,
	cacheRepo repository.CacheRepository,
	workers, buffer int,
	logger *zap.Logger,
) StatsRefresher {
	if workers <= 0 {
		workers = defaultWorkerCount
	}
	if buffer <= 0 {
		buffer = defaultChannelBuffer
	}
	perWorker := (buffer + workers - 1) / workers

	queues := make([]chan *models.StatsEvent, workers)
	for i := range queues {
		queues[i] = make(chan *models.StatsEvent, perWorker)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &statsRefresher{
		linkRepo:     linkRepo,
		cacheRepo:    cacheRepo,
		logger:       logger,
		queues:       queues,
		retryBackoff: 100 * time.Millisecond,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start запускает worker pool
func (p *statsRefresher) Start() {
	p.logger.Info("Starting stats refresher workers", zap.Int("count", len(p.queues)))

	for i := range p.queues {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop останавливает воркеров; события, оставшиеся в очередях, отбрасываются
func (p *statsRefresher) Stop() {
	p.logger.Info("Stopping stats refresher...")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("Stats refresher stopped")
}

func (p *statsRefresher) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("Stats worker started", zap.Int("id", id))

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("Stats worker stopped", zap.Int("id", id))
			return

		case event := <-p.queues[id]:
			p.refresh(event.ShortCode)
		}
	}
}

// refresh обновляет stats:{code} с retry
func (p *statsRefresher) refresh(code string) {
	ctx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
	defer cancel()

	var err error
	for i := 0; i < maxRetries; i++ {
		if err = p.refreshOnce(ctx, code); err == nil {
			return
		}
		if i < maxRetries-1 {
			p.logger.Debug("Retrying stats refresh",
				zap.String("short_code", code),
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(i+1) * p.retryBackoff):
			}
		}
	}

	p.logger.Warn("Failed to refresh stats cache after all retries",
		zap.String("short_code", code),
		zap.Error(err),
	)
}

// refreshOnce пишет в кэш текущую строку ссылки. Если ссылки под этим кодом
// уже нет (удалена, перенесена на другой код, архивирована), запись удаляется.
// Проверка повторяется после SetStats: инвалидация могла пройти между чтением
// строки и записью в кэш.
func (p *statsRefresher) refreshOnce(ctx context.Context, code string) error {
	link, err := p.linkRepo.GetByShortCode(ctx, code)
	if errors.Is(err, repository.ErrLinkNotFound) {
		return p.cacheRepo.DeleteStats(ctx, code)
	}
	if err != nil {
		return err
	}

	if err := p.cacheRepo.SetStats(ctx, code, models.NewCachedStats(link)); err != nil {
		return err
	}

	exists, err := p.linkRepo.Exists(ctx, code)
	if err != nil {
		return err
	}
	if !exists {
		return p.cacheRepo.DeleteStats(ctx, code)
	}
	return nil
}

// Enqueue неблокирующая постановка события: при заполненной очереди событие теряется
func (p *statsRefresher) Enqueue(ctx context.Context, event *models.StatsEvent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.queueFor(event.ShortCode) <- event:
		return nil
	default:
		p.logger.Warn("Stats refresh buffer is full, event dropped",
			zap.String("short_code", event.ShortCode),
		)
		return nil
	}
}

func (p *statsRefresher) queueFor(code string) chan *models.StatsEvent {
	return p.queues[xxhash.Sum64String(code)%uint64(len(p.queues))]
}

// ChannelStats состояние канала для мониторинга
func (p *statsRefresher) ChannelStats() ChannelStats {
	stats := ChannelStats{WorkerCount: len(p.queues)}
	for _, queue := range p.queues {
		stats.BufferSize += cap(queue)
		stats.BufferUsed += len(queue)
	}
	return stats
}

// ChannelStats статистика канала worker pool
type ChannelStats struct {
	BufferSize  int `json:"buffer_size"`  // Общая ёмкость канала
	BufferUsed  int `json:"buffer_used"`  // Текущее использование
	WorkerCount int `json:"worker_count"` // Количество воркеров
}
