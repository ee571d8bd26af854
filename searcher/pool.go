package searcher

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var errShutdownTimeout = errors.New("worker pool did not stop within grace period")

// pool runs jobs on a fixed number of goroutines for the length of an episode.
type pool struct {
	jobs  chan func()
	group errgroup.Group
	once  sync.Once
}

func newPool(workers int) *pool {
	p := &pool{jobs: make(chan func(), 2*workers)}
	for i := 0; i < workers; i++ {
		p.group.Go(func() error {
			for job := range p.jobs {
				job()
			}
			return nil
		})
	}
	return p
}

// submit queues job without blocking and reports whether it was queued.
func (p *pool) submit(job func()) (queued bool) {
	defer func() {
		if recover() != nil { // pool already shut down
			queued = false
		}
	}()

	select {
	case p.jobs <- job:
		return true
	default:
		log.Warn().Msg("worker pool queue is full, dropping job")
		return false
	}
}

// shutdown stops accepting jobs and waits at most grace for running jobs.
func (p *pool) shutdown(grace time.Duration) error {
	p.once.Do(func() { close(p.jobs) })

	done := make(chan error, 1)
	go func() { done <- p.group.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(grace):
		return errShutdownTimeout
	}
}
