package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// PostCommit runs side effects after the primary write committed.  Tasks
// are detached from the request context, bounded by their own timeout and
// never affect the response; failures are logged.
type PostCommit struct {
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewPostCommit(logger *slog.Logger, timeout time.Duration) *PostCommit {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PostCommit{logger: logger, timeout: timeout}
}

// Go schedules fn under name.
func (p *PostCommit) Go(name string, fn func(ctx context.Context) error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("post-commit task panicked", "task", name, "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			p.logger.Error("post-commit task failed", "task", name, "error", err)
		}
	}()
}

// Wait blocks until every scheduled task returned.
func (p *PostCommit) Wait() { p.wg.Wait() }
