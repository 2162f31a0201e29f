package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/samaya/config"
	"github.com/vinayprograms/samaya/errors"
	"github.com/vinayprograms/samaya/kvstore"
	"github.com/vinayprograms/samaya/logging"
	"github.com/vinayprograms/samaya/notify"
	"github.com/vinayprograms/samaya/persist"
	"github.com/vinayprograms/samaya/reconcile"
	"github.com/vinayprograms/samaya/shutdown"
	"github.com/vinayprograms/samaya/timer"
)

var (
	ErrNotOpen     = stderrors.New("session not open")
	ErrAlreadyOpen = stderrors.New("session already open")
	ErrClosed      = stderrors.New("session closed")
)

// Option configures a Session.
type Option func(*options)

type options struct {
	logger    *logging.Logger
	clock     func() time.Time
	kv        kvstore.Store
	hub       notify.Hub
	onWarning func(error)
}

// WithLogger sets the base logger. The session adds its trace id.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithClock sets the time source for ids, saves and reconciliation.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithStore uses kv instead of the configured backend. The caller keeps
// ownership: Close does not close it.
func WithStore(kv kvstore.Store) Option {
	return func(o *options) {
		o.kv = kv
	}
}

// WithHub uses hub instead of the configured notify backend. The caller
// keeps ownership.
func WithHub(hub notify.Hub) Option {
	return func(o *options) {
		o.hub = hub
	}
}

// WithOnWarning receives user-visible warnings such as a full store.
func WithOnWarning(fn func(error)) Option {
	return func(o *options) {
		o.onWarning = fn
	}
}

// Session owns one timer core instance.
type Session struct {
	id        string
	cfg       *config.Config
	logger    *logging.Logger
	onWarning func(error)

	backends *backends
	store    *timer.Store
	gateway  *persist.Gateway
	flusher  *persist.Flusher
	engine   *reconcile.Engine
	coord    *shutdown.Coordinator

	mu     sync.Mutex
	opened bool
	loaded reconcile.Result
}

// New builds a session from cfg. A nil cfg means config.Default. Nothing is
// loaded until Open.
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeInvalidInput, "invalid config")
	}

	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}

	s := &Session{
		id:        uuid.NewString(),
		cfg:       cfg,
		onWarning: o.onWarning,
	}
	base := o.logger.WithTraceID(s.id)
	s.logger = base.WithComponent("session")

	b, err := openBackends(cfg, o.kv, o.hub)
	if err != nil {
		return nil, err
	}
	s.backends = b

	s.store = timer.NewStore(
		timer.WithClock(o.clock),
		timer.WithTickInterval(cfg.Timer.TickInterval.Duration),
		timer.WithObserver(s.publishEvent),
		timer.WithLogger(base),
	)
	s.gateway = persist.NewGateway(b.kv,
		persist.WithGatewayClock(o.clock),
		persist.WithGatewayLogger(base),
	)
	s.flusher, err = persist.NewFlusher(persist.FlusherConfig{
		Gateway:   s.gateway,
		Source:    s.store,
		Interval:  cfg.Timer.FlushInterval.Duration,
		OnWarning: s.warn,
		Logger:    base,
	})
	if err != nil {
		s.store.Close()
		b.close()
		return nil, err
	}
	s.engine = reconcile.NewEngine(s.gateway, s.store,
		reconcile.WithClock(o.clock),
		reconcile.WithMaxAway(cfg.Timer.MaxAway.Duration),
		reconcile.WithLogger(base),
	)

	s.coord = shutdown.NewCoordinator(shutdown.DefaultConfig())
	s.registerTeardown()

	s.logger.Info("session_created", logging.Fields{
		"store":  cfg.Store.Backend,
		"notify": cfg.Notify.Backend,
	})
	return s, nil
}

func (s *Session) registerTeardown() {
	s.coord.RegisterFuncWithPhase("flusher", func(context.Context) error {
		if err := s.flusher.Stop(); err != nil && !stderrors.Is(err, persist.ErrNotStarted) {
			return err
		}
		return nil
	}, shutdown.PhaseStop)
	s.coord.RegisterFuncWithPhase("accrual", func(context.Context) error {
		s.store.Close()
		return nil
	}, shutdown.PhaseStop)

	s.coord.RegisterFuncWithPhase("final-flush", func(context.Context) error {
		return s.flushIfOpen()
	}, shutdown.PhaseFlush)

	s.coord.RegisterFuncWithPhase("backends", func(context.Context) error {
		return s.backends.close()
	}, shutdown.PhaseRelease)

	s.coord.RegisterSuspendFunc("flush", func(context.Context) error {
		return s.flushIfOpen()
	})
}

// flushIfOpen saves only state that was loaded first, so a session that
// never opened cannot overwrite what is persisted.
func (s *Session) flushIfOpen() error {
	s.mu.Lock()
	opened := s.opened
	s.mu.Unlock()
	if !opened {
		return nil
	}
	return s.flusher.Flush()
}

// ID returns the session id used as the log trace id.
func (s *Session) ID() string {
	return s.id
}

// Open restores persisted state and starts periodic saves. A corrupt
// collection is absorbed as empty; a failing store is returned and the
// session stays closed to intents.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed() {
		return ErrClosed
	}
	if s.opened {
		return ErrAlreadyOpen
	}

	res, err := s.engine.Load()
	if err != nil {
		s.logger.Error("load_failed", logging.Fields{"error": err.Error()})
		return err
	}
	s.loaded = res

	// The loop runs until Close, not until the caller's context ends.
	if err := s.flusher.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	s.opened = true
	return nil
}

// Loaded returns the outcome of the reconciliation done by Open.
func (s *Session) Loaded() reconcile.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Snapshot returns a read-only copy of the current state.
func (s *Session) Snapshot() timer.Snapshot {
	return s.store.Snapshot()
}

// Subscribe delivers every store event as a JSON-encoded timer.Event.
func (s *Session) Subscribe() (notify.Subscription, error) {
	return s.backends.hub.Subscribe(notify.SubjectEvents)
}

// SubscribeWarnings delivers user-visible warnings as JSON-encoded errors.
func (s *Session) SubscribeWarnings() (notify.Subscription, error) {
	return s.backends.hub.Subscribe(notify.SubjectWarnings)
}

// Suspend saves the current state. Hosts call it when they lose visibility.
func (s *Session) Suspend(ctx context.Context) error {
	var errs []error
	for _, r := range s.coord.Suspend(ctx) {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}

// HandleSignals wires SIGHUP to Suspend and SIGINT/SIGTERM to Close.
func (s *Session) HandleSignals() {
	s.coord.HandleSignals()
}

// Done is closed once teardown has finished.
func (s *Session) Done() <-chan struct{} {
	return s.coord.Done()
}

// Close stops accrual and periodic saves, saves once more and releases the
// backends. Calling it again is a no-op.
func (s *Session) Close(ctx context.Context) error {
	err := s.coord.Shutdown(ctx)
	if stderrors.Is(err, shutdown.ErrAlreadyShutdown) {
		return nil
	}
	if err != nil {
		fields := logging.Fields{"error": err.Error()}
		if r := s.coord.Result(); r != nil {
			fields["handlers"] = r.FailedHandlers()
		}
		s.logger.Error("close_failed", fields)
		return err
	}
	s.logger.Info("session_closed")
	return nil
}

func (s *Session) isClosed() bool {
	select {
	case <-s.coord.Done():
		return true
	default:
		return false
	}
}

func (s *Session) publishEvent(ev timer.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("event_encode_failed", logging.Fields{"kind": string(ev.Kind), "error": err.Error()})
		return
	}
	if err := s.backends.hub.Publish(notify.SubjectEvents, data); err != nil && !stderrors.Is(err, notify.ErrClosed) {
		s.logger.Warn("event_publish_failed", logging.Fields{"kind": string(ev.Kind), "error": err.Error()})
	}
}

// warn publishes a user-visible warning and hands it to the host.
func (s *Session) warn(err error) {
	e := errors.As(err)
	if e == nil {
		e = errors.Wrap(err, "warning")
	}
	if data, merr := json.Marshal(e); merr == nil {
		if perr := s.backends.hub.Publish(notify.SubjectWarnings, data); perr != nil && !stderrors.Is(perr, notify.ErrClosed) {
			s.logger.Warn("warning_publish_failed", logging.Fields{"error": perr.Error()})
		}
	}
	if s.onWarning != nil {
		s.onWarning(err)
	}
}
