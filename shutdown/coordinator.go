package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"
)

// Coordinator runs phased teardown and repeatable suspend hooks.
type Coordinator struct {
	config Config

	mu       sync.Mutex
	handlers []registration
	suspends []registration

	shutdownOnce sync.Once
	shutdownErr  error
	result       *Result
	done         chan struct{}

	signalChan chan os.Signal
	signalOnce sync.Once
}

// NewCoordinator creates a coordinator.
func NewCoordinator(config Config) *Coordinator {
	def := DefaultConfig()
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = def.DefaultTimeout
	}
	if config.DefaultPhase == 0 {
		config.DefaultPhase = def.DefaultPhase
	}

	return &Coordinator{
		config:     config,
		done:       make(chan struct{}),
		signalChan: make(chan os.Signal, 4),
	}
}

// Register adds a teardown handler in the default phase.
func (c *Coordinator) Register(name string, handler Handler) {
	c.RegisterWithPhase(name, handler, c.config.DefaultPhase)
}

// RegisterWithPhase adds a teardown handler in phase.
func (c *Coordinator) RegisterWithPhase(name string, handler Handler, phase int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, registration{name: name, handler: handler, phase: phase})
}

// RegisterFuncWithPhase registers a function as a teardown handler.
func (c *Coordinator) RegisterFuncWithPhase(name string, fn func(ctx context.Context) error, phase int) {
	c.RegisterWithPhase(name, HandlerFunc(fn), phase)
}

// RegisterSuspendFunc adds a hook run on every Suspend, in registration order.
func (c *Coordinator) RegisterSuspendFunc(name string, fn func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suspends = append(c.suspends, registration{name: name, handler: HandlerFunc(fn)})
}

// Suspend runs every suspend hook sequentially and returns their results.
// It does nothing once shutdown has started.
func (c *Coordinator) Suspend(ctx context.Context) []HandlerResult {
	select {
	case <-c.done:
		return nil
	default:
	}

	c.mu.Lock()
	hooks := make([]registration, len(c.suspends))
	copy(hooks, c.suspends)
	c.mu.Unlock()

	results := make([]HandlerResult, 0, len(hooks))
	for _, h := range hooks {
		results = append(results, c.run(ctx, h))
	}
	return results
}

func (c *Coordinator) run(ctx context.Context, r registration) HandlerResult {
	start := time.Now()
	err := r.handler.OnShutdown(ctx)
	hr := HandlerResult{
		Name:     r.name,
		Phase:    r.phase,
		Duration: time.Since(start),
		Err:      err,
	}
	if c.config.OnProgress != nil {
		c.config.OnProgress(hr)
	}
	return hr
}

// Shutdown runs every phase once. Later calls wait for the first to finish
// and return ErrAlreadyShutdown.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	first := false
	c.shutdownOnce.Do(func() {
		first = true
		c.shutdownErr = c.doShutdown(ctx)
		close(c.done)
	})
	if !first {
		<-c.done
		return ErrAlreadyShutdown
	}
	return c.shutdownErr
}

// ShutdownWithTimeout runs Shutdown bounded by timeout, or the configured
// default when timeout is zero.
func (c *Coordinator) ShutdownWithTimeout(timeout time.Duration) error {
	if timeout == 0 {
		timeout = c.config.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Shutdown(ctx)
}

// HandleSignals maps SIGINT and SIGTERM to Shutdown and SIGHUP to Suspend.
// Calling it more than once has no further effect.
func (c *Coordinator) HandleSignals() {
	c.signalOnce.Do(func() {
		signal.Notify(c.signalChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
		go c.signalLoop()
	})
}

func (c *Coordinator) signalLoop() {
	defer signal.Stop(c.signalChan)
	for {
		select {
		case <-c.done:
			return
		case sig := <-c.signalChan:
			if sig == syscall.SIGHUP {
				ctx, cancel := context.WithTimeout(context.Background(), c.config.DefaultTimeout)
				c.Suspend(ctx)
				cancel()
				continue
			}
			_ = c.ShutdownWithTimeout(c.config.DefaultTimeout)
			return
		}
	}
}

// Trigger delivers sig as if the process had received it. HandleSignals
// must have been called.
func (c *Coordinator) Trigger(sig os.Signal) {
	select {
	case c.signalChan <- sig:
	default:
	}
}

// Done returns a channel that is closed when shutdown is complete.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err returns the shutdown error, or nil before shutdown completes.
func (c *Coordinator) Err() error {
	select {
	case <-c.done:
		return c.shutdownErr
	default:
		return nil
	}
}

// Result returns the detailed result. Nil until Done is closed.
func (c *Coordinator) Result() *Result {
	select {
	case <-c.done:
		return c.result
	default:
		return nil
	}
}

func (c *Coordinator) doShutdown(ctx context.Context) error {
	start := time.Now()

	c.mu.Lock()
	handlers := make([]registration, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].phase < handlers[j].phase
	})

	result := &Result{Results: make([]HandlerResult, 0, len(handlers))}
	finish := func(err error) error {
		result.Err = err
		result.TotalDuration = time.Since(start)
		c.result = result
		return err
	}

	var overallErr error
	for _, group := range groupByPhase(handlers) {
		select {
		case <-ctx.Done():
			return finish(ErrTimeout)
		default:
		}

		phaseResults := c.executePhase(ctx, group)
		result.Results = append(result.Results, phaseResults...)

		for _, hr := range phaseResults {
			if hr.Err == nil {
				continue
			}
			overallErr = ErrHandlerFailed
			if !c.config.ContinueOnError {
				return finish(overallErr)
			}
		}
	}
	return finish(overallErr)
}

// executePhase runs all handlers in a phase concurrently.
func (c *Coordinator) executePhase(ctx context.Context, handlers []registration) []HandlerResult {
	results := make([]HandlerResult, len(handlers))
	var wg sync.WaitGroup

	for i, reg := range handlers {
		wg.Add(1)
		go func(idx int, r registration) {
			defer wg.Done()
			results[idx] = c.run(ctx, r)
		}(i, reg)
	}

	wg.Wait()
	return results
}

// groupByPhase splits handlers, already sorted by phase, into runs of equal phase.
func groupByPhase(handlers []registration) [][]registration {
	var groups [][]registration
	for i, h := range handlers {
		if i == 0 || h.phase != handlers[i-1].phase {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], h)
	}
	return groups
}
