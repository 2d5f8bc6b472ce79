package analytics

import (
	"LinkSnap-Backend/internal/domain"
	"LinkSnap-Backend/internal/repository"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotStarted = errors.New("processor not started")
	ErrQueueFull  = errors.New("analytics queue is full")
)

// ProcessorConfig holds configuration for the analytics processor
type ProcessorConfig struct {
	WorkerCount     int           // Number of worker goroutines
	BufferSize      int           // Size of the job queue buffer
	RetryAttempts   int           // Number of append attempts per click
	RetryDelay      time.Duration // Base delay between retries
	AttemptTimeout  time.Duration // Deadline of a single append
	ShutdownTimeout time.Duration // Time to wait for graceful shutdown
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() ProcessorConfig {
	return ProcessorConfig{
		WorkerCount:     3,
		BufferSize:      1000,
		RetryAttempts:   3,
		RetryDelay:      time.Second,
		AttemptTimeout:  10 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Processor re-appends click events whose synchronous write failed.
// Each job is retried with exponential backoff; jobs still queued at Stop are drained.
type Processor struct {
	config   ProcessorConfig
	clicks   repository.ClickStore
	log      *zap.Logger
	jobQueue chan *domain.Click
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
}

// NewProcessor creates a new analytics processor
func NewProcessor(clicks repository.ClickStore, log *zap.Logger, config ProcessorConfig) *Processor {
	ctx, cancel := context.WithCancel(context.Background())
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 1
	}
	if config.AttemptTimeout <= 0 {
		config.AttemptTimeout = 10 * time.Second
	}

	return &Processor{
		config:   config,
		clicks:   clicks,
		log:      log.With(zap.String("component", "analytics_processor")),
		jobQueue: make(chan *domain.Click, config.BufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing analytics data
func (p *Processor) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("processor already started")
	}

	p.log.Info("starting analytics processor",
		zap.Int("workers", p.config.WorkerCount),
		zap.Int("buffer_size", p.config.BufferSize),
		zap.Int("retry_attempts", p.config.RetryAttempts),
	)

	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.started = true
	return nil
}

// Stop closes the queue and waits for workers to drain it. Workers still busy
// after ShutdownTimeout are cancelled.
func (p *Processor) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return ErrNotStarted
	}

	p.log.Info("stopping analytics processor", zap.Int("pending", len(p.jobQueue)))
	close(p.jobQueue)
	p.started = false

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.log.Info("analytics processor stopped gracefully")
		return nil
	case <-time.After(p.config.ShutdownTimeout):
		p.cancel()
		<-done
		p.log.Warn("analytics processor shutdown timeout reached")
		return fmt.Errorf("shutdown timeout reached")
	}
}

// SubmitClick queues a click for a retried append. It never blocks.
func (p *Processor) SubmitClick(click *domain.Click) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started {
		return ErrNotStarted
	}

	select {
	case p.jobQueue <- click:
		p.log.Debug("click submitted for retry", zap.String("short_code", click.ShortCode))
		return nil
	default:
		p.log.Error("analytics queue is full, dropping click",
			zap.String("short_code", click.ShortCode),
			zap.Int("queue_size", len(p.jobQueue)),
		)
		return ErrQueueFull
	}
}

func (p *Processor) worker(workerID int) {
	defer p.wg.Done()

	log := p.log.With(zap.Int("worker_id", workerID))
	log.Debug("analytics worker started")

	for click := range p.jobQueue {
		p.appendWithRetry(log, click)
	}

	log.Debug("analytics worker stopped")
}

func (p *Processor) appendWithRetry(log *zap.Logger, click *domain.Click) {
	var lastErr error

	for attempt := 1; attempt <= p.config.RetryAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(p.ctx, p.config.AttemptTimeout)
		err := p.clicks.AppendClick(ctx, click)
		cancel()

		if err == nil {
			if attempt > 1 {
				log.Info("click append succeeded after retry",
					zap.String("short_code", click.ShortCode),
					zap.Int("attempt", attempt),
				)
			}
			return
		}

		lastErr = err
		log.Warn("click append failed",
			zap.String("short_code", click.ShortCode),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.config.RetryAttempts),
			zap.Error(err),
		)

		if attempt == p.config.RetryAttempts {
			break
		}

		// Exponential backoff delay
		delay := p.config.RetryDelay * time.Duration(1<<(attempt-1))
		select {
		case <-time.After(delay):
		case <-p.ctx.Done():
			log.Info("worker shutdown during retry delay")
			return
		}
	}

	log.Error("click append failed after all retries",
		zap.String("short_code", click.ShortCode),
		zap.Int("attempts", p.config.RetryAttempts),
		zap.Error(lastErr),
	)
}

// GetStats returns processor statistics
func (p *Processor) GetStats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return map[string]interface{}{
		"started":        p.started,
		"queue_length":   len(p.jobQueue),
		"queue_capacity": cap(p.jobQueue),
		"worker_count":   p.config.WorkerCount,
		"retry_attempts": p.config.RetryAttempts,
	}
}
