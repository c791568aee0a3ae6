package device

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool runs kernels on a fixed set of resident worker goroutines, one
// unit per worker. Keeping the workers resident avoids respawning
// goroutines for every multiply when an iterative solver calls in a
// tight loop.
type Pool struct {
	units  int
	workCh chan func()
	stopCh chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool

	submitMu sync.RWMutex
}

// NewPool returns a pool of the given unit count, or GOMAXPROCS units
// when the count is not positive.
func NewPool(units int) *Pool {
	if units <= 0 {
		units = runtime.GOMAXPROCS(0)
	}

	p := &Pool{
		units:  units,
		workCh: make(chan func(), units*2),
		stopCh: make(chan struct{}),
	}

	p.wg.Add(units)
	for i := 0; i < units; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			// Drain queued kernels before exiting.
			for {
				select {
				case task, ok := <-p.workCh:
					if !ok {
						return
					}
					task()
				default:
					return
				}
			}
		case task, ok := <-p.workCh:
			if !ok {
				return
			}
			task()
		}
	}
}

// Name returns "pool".
func (p *Pool) Name() string { return "pool" }

// Units returns the worker count.
func (p *Pool) Units() int { return p.units }

// Launch distributes the row blocks and waits for the last one.
func (p *Pool) Launch(ctx context.Context, lo, hi int64, k Kernel) error {
	if p.closed.Load() {
		return ErrDeviceClosed
	}

	var (
		inFlight  sync.WaitGroup
		panicOnce sync.Once
		panicErr  error
	)
	block := blocks(lo, hi, p.units)
	for unit := 0; unit < p.units; unit++ {
		ulo, uhi := block(unit)
		if ulo >= uhi {
			continue
		}
		inFlight.Add(1)
		task := func() {
			defer inFlight.Done()
			if err := runKernel(unit, ulo, uhi, k); err != nil {
				panicOnce.Do(func() { panicErr = err })
			}
		}
		if err := p.submit(ctx, task); err != nil {
			inFlight.Done()
			inFlight.Wait()
			return err
		}
	}
	inFlight.Wait()
	return panicErr
}

func (p *Pool) submit(ctx context.Context, task func()) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if p.closed.Load() {
		return ErrDeviceClosed
	}
	select {
	case p.workCh <- task:
		return nil
	case <-p.stopCh:
		return ErrDeviceClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the workers after draining queued kernels.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	p.submitMu.Lock()
	close(p.stopCh)
	close(p.workCh)
	p.submitMu.Unlock()

	p.wg.Wait()
	return nil
}
