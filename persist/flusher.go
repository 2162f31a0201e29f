package persist

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinayprograms/samaya/errors"
	"github.com/vinayprograms/samaya/logging"
	"github.com/vinayprograms/samaya/timer"
)

// DefaultFlushInterval is the periodic save interval.
const DefaultFlushInterval = 5 * time.Second

// Common errors.
var (
	ErrAlreadyStarted = stderrors.New("flusher already started")
	ErrNotStarted     = stderrors.New("flusher not started")
)

// Snapshotter supplies the state to save. *timer.Store implements it.
type Snapshotter interface {
	Snapshot() timer.Snapshot
}

// FlusherConfig configures a Flusher.
type FlusherConfig struct {
	// Gateway receives every save. Required.
	Gateway *Gateway

	// Source supplies snapshots. Required.
	Source Snapshotter

	// Interval between periodic saves.
	// Default: 5s
	Interval time.Duration

	// OnWarning is called with quota failures, which the user should see.
	OnWarning func(error)

	Logger *logging.Logger
}

// Validate checks the configuration.
func (c FlusherConfig) Validate() error {
	if c.Gateway == nil {
		return errors.InvalidInput("flusher gateway required")
	}
	if c.Source == nil {
		return errors.InvalidInput("flusher source required")
	}
	return nil
}

// Flusher saves snapshots periodically and on demand.
type Flusher struct {
	gateway   *Gateway
	source    Snapshotter
	interval  time.Duration
	onWarning func(error)
	logger    *logging.Logger

	// flushMu serialises saves from the loop and from Flush.
	flushMu sync.Mutex
	flushes atomic.Uint64
	failed  atomic.Uint64

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewFlusher creates a flusher. Call Start to begin periodic saves.
func NewFlusher(cfg FlusherConfig) (*Flusher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Flusher{
		gateway:   cfg.Gateway,
		source:    cfg.Source,
		interval:  interval,
		onWarning: cfg.OnWarning,
		logger:    logger.WithComponent("flusher"),
	}, nil
}

// Start begins saving at the configured interval.
func (f *Flusher) Start(ctx context.Context) error {
	if f.running.Swap(true) {
		return ErrAlreadyStarted
	}
	if ctx == nil {
		ctx = context.Background()
	}

	f.stopCh = make(chan struct{})
	f.doneCh = make(chan struct{})

	go f.run(ctx)
	return nil
}

func (f *Flusher) run(ctx context.Context) {
	defer close(f.doneCh)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stopCh:
			return
		case <-ticker.C:
			f.Flush()
		}
	}
}

// Stop ends periodic saves and waits for the loop to exit. It does not
// flush; call Flush for a final save.
func (f *Flusher) Stop() error {
	if !f.running.Swap(false) {
		return ErrNotStarted
	}
	close(f.stopCh)
	<-f.doneCh
	return nil
}

// Flush saves the current snapshot synchronously. Failures are logged and
// returned; quota failures also go to OnWarning.
func (f *Flusher) Flush() error {
	f.flushMu.Lock()
	defer f.flushMu.Unlock()

	start := time.Now()
	snap := f.source.Snapshot()

	if err := f.gateway.Save(snap); err != nil {
		f.failed.Add(1)
		key := ""
		if e := errors.As(err); e != nil {
			key = e.Metadata()["key"]
		}
		f.logger.FlushFailed(key, err)
		if errors.IsQuota(err) {
			f.logger.Warn("storage_quota_exceeded", logging.Fields{"tasks": len(snap.Tasks)})
			if f.onWarning != nil {
				f.onWarning(err)
			}
		}
		return err
	}

	f.flushes.Add(1)
	f.logger.FlushComplete(len(snap.Tasks), time.Since(start))
	return nil
}

// Flushes returns the number of successful saves.
func (f *Flusher) Flushes() uint64 {
	return f.flushes.Load()
}

// Failures returns the number of failed saves.
func (f *Flusher) Failures() uint64 {
	return f.failed.Load()
}
