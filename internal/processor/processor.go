package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/sms-verify/internal/queue"
	"github.com/nimasrn/sms-verify/pkg/logger"
	"github.com/nimasrn/sms-verify/pkg/redis"
	"github.com/nimasrn/sms-verify/pkg/worker"
)

const ProcessingTimeout = time.Second * 5
const HealthInterval = time.Second * 30
const ShutdownTimeout = time.Second * 30

// Processor handles the payload of one queue message.
type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

type Options struct {
	Queue     queue.QueueConfig
	Consumers int
	Workers   int
}

// ProcessorService fans messages from several stream consumers into a worker pool.
type ProcessorService struct {
	adapter   redis.RedisAdapter
	options   Options
	queues    []*queue.Queue
	processor Processor
	metrics   *ServiceMetrics
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	worker    *worker.WorkerManager
}

func NewProcessorService(adapter redis.RedisAdapter, processor Processor, options Options) *ProcessorService {
	if options.Consumers <= 0 {
		options.Consumers = 1
	}
	if options.Workers <= 0 {
		options.Workers = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	metrics := NewServiceMetrics()
	if o, ok := processor.(interface{ Observe(*ServiceMetrics) }); ok {
		o.Observe(metrics)
	}
	return &ProcessorService{
		adapter:   adapter,
		options:   options,
		processor: processor,
		metrics:   metrics,
		ctx:       ctx,
		cancel:    cancel,
		worker:    worker.NewWorkerManager(options.Workers*16, options.Workers, nil),
	}
}

func (s *ProcessorService) Metrics() *ServiceMetrics { return s.metrics }

func (s *ProcessorService) Start() error {
	logger.Info("starting processor service", "type", s.processor.GetType())

	s.worker.SetWorker(s.workerHandler)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker.Start(s.ctx)
	}()

	for i := 0; i < s.options.Consumers; i++ {
		cfg := s.options.Queue
		cfg.ConsumerName = fmt.Sprintf("%s-instance-%d", cfg.ConsumerName, i)

		q, err := queue.NewQueue(s.adapter, cfg)
		if err != nil {
			return fmt.Errorf("failed to create queue %d: %w", i, err)
		}
		if err := q.Consume(s.messageHandler); err != nil {
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}
		s.queues = append(s.queues, q)
	}

	s.wg.Add(1)
	go s.healthChecker()

	logger.Info("processor service started", "queue", s.options.Queue.Name, "consumers", len(s.queues), "workers", s.options.Workers)
	return nil
}

func (s *ProcessorService) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthCheck()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) performHealthCheck() {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	if err := s.adapter.Client().Ping(ctx).Err(); err != nil {
		logger.Error("health check failed: redis unreachable", "error", err)
		return
	}

	stats := s.metrics.Snapshot()
	fields := []any{
		"processed", stats.Processed,
		"failed", stats.Failed,
		"dropped", stats.Dropped,
		"duplicates", stats.Duplicates,
		"avg_duration_ms", stats.AvgDuration.Milliseconds(),
		"backlog", s.worker.GetUnreadCount(),
	}
	if !stats.LastProcessedAt.IsZero() {
		fields = append(fields, "idle_seconds", int64(time.Since(stats.LastProcessedAt).Seconds()))
	}
	if len(s.queues) > 0 {
		if qs, err := s.queues[0].GetStats(ctx); err == nil {
			fields = append(fields, "stream_len", qs.TotalMessages, "pending", qs.PendingMessages)
			if qs.PendingMessages > 10_000 {
				logger.Warn("processor lagging", fields...)
				return
			}
		}
	}
	logger.Info("processor healthy", fields...)
}

// Stop stops consuming, lets in-flight jobs finish and waits for background loops.
func (s *ProcessorService) Stop() {
	logger.Info("shutting down processor service")

	var wg sync.WaitGroup
	for i, q := range s.queues {
		wg.Add(1)
		go func(index int, q *queue.Queue) {
			defer wg.Done()
			if err := q.Stop(ShutdownTimeout); err != nil {
				logger.Error("error stopping queue", "queue", index, "error", err)
			}
		}(i, q)
	}
	wg.Wait()

	s.cancel()
	s.worker.Exit()
	s.wg.Wait()

	logger.Info("processor service stopped", "stats", s.metrics.Snapshot())
}

type job struct {
	msg        *queue.Message
	resultChan chan error
	ctx        context.Context
}

// messageHandler hands the message to the pool and waits for its result so the
// queue acks only what was processed.
func (s *ProcessorService) messageHandler(ctx context.Context, msg *queue.Message) error {
	msgCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout+time.Second)
	defer cancel()

	j := &job{msg: msg, resultChan: make(chan error, 1), ctx: msgCtx}
	if !s.worker.Enqueue(msgCtx, j) {
		return fmt.Errorf("worker pool unavailable: %w", msgCtx.Err())
	}

	select {
	case err := <-j.resultChan:
		return err
	case <-msgCtx.Done():
		return fmt.Errorf("timeout waiting for worker: %w", msgCtx.Err())
	}
}

func (s *ProcessorService) workerHandler(workerIndex int, raw interface{}) {
	j, ok := raw.(*job)
	if !ok {
		logger.Error("invalid job type in worker", "worker", workerIndex)
		return
	}
	if j.ctx.Err() != nil {
		return
	}

	start := time.Now()
	err := s.processor.Process(j.ctx, j.msg)
	if err != nil {
		s.metrics.RecordFailure()
		logger.Error("failed to process message", "worker", workerIndex, "id", j.msg.ID, "error", err)
	} else {
		s.metrics.RecordSuccess(time.Since(start))
	}

	// buffered, never blocks
	j.resultChan <- err
}
