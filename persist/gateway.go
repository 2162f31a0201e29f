package persist

import (
	stderrors "errors"
	"slices"
	"strings"
	"time"

	"github.com/vinayprograms/samaya/errors"
	"github.com/vinayprograms/samaya/kvstore"
	"github.com/vinayprograms/samaya/logging"
	"github.com/vinayprograms/samaya/timer"
)

// State is the raw persisted state. TasksBlob is left undecoded; the
// reconcile package validates it.
type State struct {
	TasksBlob  []byte
	LastUpdate time.Time // zero when missing or invalid
	Focus      timer.Focus
}

// Gateway reads and writes timer state through a kvstore.Store.
type Gateway struct {
	store  kvstore.Store
	clock  func() time.Time
	logger *logging.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithGatewayClock sets the time source for last-update.
func WithGatewayClock(clock func() time.Time) GatewayOption {
	return func(g *Gateway) {
		g.clock = clock
	}
}

// WithGatewayLogger sets the logger.
func WithGatewayLogger(l *logging.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = l
	}
}

// NewGateway creates a gateway over store.
func NewGateway(store kvstore.Store, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		store:  store,
		clock:  time.Now,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.WithComponent("persist")
	return g
}

// storeError converts a kvstore failure into a persistence error.
func storeError(err error, op, key string) *errors.Error {
	if stderrors.Is(err, kvstore.ErrQuotaExceeded) {
		return errors.New(errors.ErrCodeQuotaExceeded, "storage quota exceeded",
			errors.WithCause(err),
			errors.WithMetadata("op", op),
			errors.WithMetadata("key", key))
	}
	return errors.WrapWithCode(err, errors.ErrCodeStorage, op+" "+key,
		errors.WithMetadata("op", op),
		errors.WithMetadata("key", key))
}

// Save writes snap. last-update goes straight after tasks so the two stay
// paired; the focus keys follow. Save stops at the first failed key and
// nothing is retried.
func (g *Gateway) Save(snap timer.Snapshot) error {
	blob, err := EncodeTasks(snap.Tasks)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeInternal, "encode tasks")
	}
	mode, focusID := EncodeFocus(snap.Focus)

	writes := []struct {
		key   string
		value []byte
	}{
		{KeyTasks, blob},
		{KeyLastUpdate, EncodeMillis(g.clock())},
		{KeyFocusMode, mode},
		{KeyFocusedTaskID, focusID},
	}
	for _, w := range writes {
		if err := g.store.Put(w.key, w.value); err != nil {
			return storeError(err, "put", w.key)
		}
	}
	return nil
}

// Load reads every key. Missing keys take their zero value. Only store
// failures other than a missing key are returned.
func (g *Gateway) Load() (State, error) {
	var st State

	get := func(key string) ([]byte, error) {
		v, err := g.store.Get(key)
		if stderrors.Is(err, kvstore.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, storeError(err, "get", key)
		}
		return v, nil
	}

	blob, err := get(KeyTasks)
	if err != nil {
		return State{}, err
	}
	st.TasksBlob = blob

	last, err := get(KeyLastUpdate)
	if err != nil {
		return State{}, err
	}
	if last != nil {
		if t, ok := DecodeMillis(last); ok {
			st.LastUpdate = t
		} else {
			g.logger.Warn("invalid_last_update", logging.Fields{"value": string(last)})
		}
	}

	mode, err := get(KeyFocusMode)
	if err != nil {
		return State{}, err
	}
	focusID, err := get(KeyFocusedTaskID)
	if err != nil {
		return State{}, err
	}
	st.Focus = DecodeFocus(mode, focusID)

	g.logUnknownKeys()
	return st, nil
}

// logUnknownKeys warns about keys outside the persisted layout. They are
// left in place.
func (g *Gateway) logUnknownKeys() {
	keys, err := g.store.Keys()
	if err != nil {
		g.logger.Debug("list_keys_failed", logging.Fields{"error": err.Error()})
		return
	}
	var unknown []string
	for _, k := range keys {
		if !slices.Contains(Keys, k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		g.logger.Warn("unknown_keys", logging.Fields{"keys": strings.Join(unknown, ",")})
	}
}
