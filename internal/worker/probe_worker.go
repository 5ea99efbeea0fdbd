package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrQueueFull  = errors.New("probe queue is full")
	ErrPoolClosed = errors.New("probe pool is shut down")
)

// ProbeRequest asks for the scheme of a stored bare-host mapping to be verified.
type ProbeRequest struct {
	Slug string
	Host string
}

type Prober interface {
	URL(ctx context.Context, host string) string
}

type Store interface {
	Put(ctx context.Context, key, value string) error
}

// ProbeWorkerPool re-checks bare hosts that were stored optimistically as
// https and rewrites the mapping to http when https is not reachable.
type ProbeWorkerPool struct {
	prober       Prober
	store        Store
	requestChan  chan ProbeRequest
	workerCount  int
	jobTimeout   time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.RWMutex
	closed       bool
	shutdownOnce sync.Once
}

type Config struct {
	WorkerCount int           // number of workers
	BufferSize  int           // pending jobs before Submit rejects
	JobTimeout  time.Duration // upper bound for one probe plus rewrite
}

func DefaultConfig() Config {
	return Config{
		WorkerCount: 4,
		BufferSize:  100,
		JobTimeout:  10 * time.Second,
	}
}

func NewProbeWorkerPool(prober Prober, store Store, config Config) *ProbeWorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	return &ProbeWorkerPool{
		prober:      prober,
		store:       store,
		requestChan: make(chan ProbeRequest, config.BufferSize),
		workerCount: config.WorkerCount,
		jobTimeout:  config.JobTimeout,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (p *ProbeWorkerPool) Start() {
	log.Info().
		Int("workers", p.workerCount).
		Int("buffer", cap(p.requestChan)).
		Dur("jobTimeout", p.jobTimeout).
		Msg("Starting probe worker pool")

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *ProbeWorkerPool) worker(id int) {
	defer p.wg.Done()

	log.Debug().Int("workerID", id).Msg("Worker started")

	for {
		select {
		case <-p.ctx.Done():
			log.Debug().Int("workerID", id).Msg("Worker shutting down")
			return

		case req, ok := <-p.requestChan:
			if !ok {
				log.Debug().Int("workerID", id).Msg("Request channel closed")
				return
			}
			p.process(id, req)
		}
	}
}

func (p *ProbeWorkerPool) process(id int, req ProbeRequest) {
	ctx, cancel := context.WithTimeout(p.ctx, p.jobTimeout)
	defer cancel()

	target := p.prober.URL(ctx, req.Host)
	if ctx.Err() != nil {
		// A cancelled check says nothing about the host; keep the stored https.
		log.Warn().
			Err(ctx.Err()).
			Int("workerID", id).
			Str("slug", req.Slug).
			Msg("Job abandoned, mapping left unchanged")
		return
	}

	if target == "https://"+req.Host {
		log.Debug().Int("workerID", id).Str("slug", req.Slug).Msg("https confirmed")
		return
	}

	if err := p.store.Put(ctx, req.Slug, target); err != nil {
		log.Error().
			Err(err).
			Int("workerID", id).
			Str("slug", req.Slug).
			Msg("Failed to rewrite mapping")
		return
	}

	log.Info().
		Int("workerID", id).
		Str("slug", req.Slug).
		Str("target", target).
		Msg("Mapping downgraded to http")
}

// Submit enqueues a job without blocking the caller.
func (p *ProbeWorkerPool) Submit(slug, host string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.requestChan <- ProbeRequest{Slug: slug, Host: host}:
		log.Debug().Str("slug", slug).Str("host", host).Msg("Probe request submitted")
		return nil
	default:
		log.Warn().Str("slug", slug).Msg("Probe queue is full, dropping request")
		return ErrQueueFull
	}
}

// Shutdown drains queued jobs, cancelling in-flight probes after timeout.
func (p *ProbeWorkerPool) Shutdown(timeout time.Duration) error {
	var shutdownErr error

	p.shutdownOnce.Do(func() {
		stats := p.Stats()
		log.Info().
			Int("pending", stats.QueueSize).
			Int("workers", stats.WorkerCount).
			Msg("Shutting down probe worker pool")

		p.mu.Lock()
		p.closed = true
		close(p.requestChan)
		p.mu.Unlock()

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			log.Info().Msg("Probe worker pool shut down gracefully")
		case <-time.After(timeout):
			log.Warn().Msg("Probe worker pool shutdown timeout, forcing shutdown")
			p.cancel()
			<-done
			shutdownErr = context.DeadlineExceeded
		}
		p.cancel()
	})

	return shutdownErr
}

// Stats reports queue occupancy.
func (p *ProbeWorkerPool) Stats() PoolStats {
	return PoolStats{
		QueueSize:   len(p.requestChan),
		QueueCap:    cap(p.requestChan),
		WorkerCount: p.workerCount,
	}
}

type PoolStats struct {
	QueueSize   int
	QueueCap    int
	WorkerCount int
}
