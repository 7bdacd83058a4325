package utils

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
	"kinorium-scraper/internal/types"
)

// ErrPoolClosed is returned by With after Close
var ErrPoolClosed = errors.New("session pool closed")

// Page is the settled state of a browser tab after navigation
type Page struct {
	URL  string
	HTML string
}

// Session is one browser tab that can be reused across requests
type Session interface {
	// Navigate loads url and waits until readySelector is present
	Navigate(ctx context.Context, url, readySelector string) (*Page, error)
	Close()
}

// SessionFactory opens a new session
type SessionFactory func(ctx context.Context) (Session, error)

// PoolStats is a snapshot of pool occupancy
type PoolStats struct {
	Size      int
	InUse     int
	Idle      int
	Available int
}

// SessionPool bounds the number of concurrently checked-out sessions.
// Waiters are admitted in FIFO order.
type SessionPool struct {
	factory SessionFactory
	logger  types.Logger
	size    int
	sem     *semaphore.Weighted

	mu     sync.Mutex
	idle   []Session
	inUse  int
	closed bool
}

// NewSessionPool creates a pool of at most size sessions
func NewSessionPool(size int, factory SessionFactory, logger types.Logger) *SessionPool {
	if size < 1 {
		size = 1
	}
	return &SessionPool{
		factory: factory,
		logger:  logger,
		size:    size,
		sem:     semaphore.NewWeighted(int64(size)),
	}
}

// With checks out a session, runs fn with it and releases it on every exit
// path. The session is kept for reuse when fn succeeds or reports ErrNotFound;
// on any other error or a panic it is closed and discarded.
func (p *SessionPool) With(ctx context.Context, fn func(Session) error) (err error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: waiting for a browser session: %v", types.ErrTimeout, err)
	}
	defer p.sem.Release(1)

	s, err := p.checkout(ctx)
	if err != nil {
		return err
	}

	discard := true
	defer func() { p.checkin(s, discard) }()

	err = fn(s)
	discard = err != nil && !errors.Is(err, types.ErrNotFound)
	return err
}

func (p *SessionPool) checkout(ctx context.Context) (Session, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		s := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.inUse++
		p.mu.Unlock()
		return s, nil
	}
	p.inUse++
	p.mu.Unlock()

	s, err := p.factory(ctx)
	if err != nil {
		p.mu.Lock()
		p.inUse--
		p.mu.Unlock()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: opening browser session: %v", types.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: opening browser session: %v", types.ErrUpstream, err)
	}
	return s, nil
}

func (p *SessionPool) checkin(s Session, discard bool) {
	p.mu.Lock()
	p.inUse--
	if discard || p.closed {
		p.mu.Unlock()
		p.logger.Debugf("Discarding browser session (discard=%v)", discard)
		s.Close()
		return
	}
	p.idle = append(p.idle, s)
	p.mu.Unlock()
}

// Stats returns the current occupancy
func (p *SessionPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Size:      p.size,
		InUse:     p.inUse,
		Idle:      len(p.idle),
		Available: p.size - p.inUse,
	}
}

// Close closes idle sessions; sessions still checked out are closed on release
func (p *SessionPool) Close() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.closed = true
	p.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
}
