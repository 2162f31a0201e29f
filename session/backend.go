package session

import (
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/vinayprograms/samaya/config"
	"github.com/vinayprograms/samaya/errors"
	"github.com/vinayprograms/samaya/kvstore"
	"github.com/vinayprograms/samaya/notify"
)

// backends are the external resources a session uses. Those passed in by
// the caller stay open on close; those opened here are released.
type backends struct {
	kv     kvstore.Store
	hub    notify.Hub
	conn   *nats.Conn // shared by the nats store and hub; nil otherwise
	ownKV  bool
	ownHub bool
}

func openBackends(cfg *config.Config, kv kvstore.Store, hub notify.Hub) (*backends, error) {
	b := &backends{kv: kv, hub: hub, ownKV: kv == nil, ownHub: hub == nil}

	needConn := (kv == nil && cfg.Store.Backend == config.BackendNATS) ||
		(hub == nil && cfg.Notify.Backend == config.BackendNATS)
	if needConn {
		ncfg := notify.DefaultNATSConfig()
		ncfg.URL = cfg.Store.NATSURL
		conn, err := notify.Connect(ncfg)
		if err != nil {
			return nil, err
		}
		b.conn = conn
	}

	if b.kv == nil {
		store, err := openStore(cfg, b.conn)
		if err != nil {
			b.close()
			return nil, err
		}
		b.kv = store
	}

	if b.hub == nil {
		if cfg.Notify.Backend == config.BackendNATS {
			b.hub = notify.NewNATSHubFromConn(b.conn, notify.DefaultConfig())
		} else {
			b.hub = notify.NewMemoryHub(notify.DefaultConfig())
		}
	}
	return b, nil
}

func openStore(cfg *config.Config, conn *nats.Conn) (kvstore.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return kvstore.NewMemoryStore(cfg.Store.MaxBytes), nil
	case config.BackendFile:
		return kvstore.NewFileStore(cfg.Store.Path, cfg.Store.MaxBytes)
	case config.BackendNATS:
		scfg := kvstore.DefaultNATSStoreConfig()
		scfg.Conn = conn
		scfg.Bucket = cfg.Store.Bucket
		scfg.MaxBytes = cfg.Store.MaxBytes
		return kvstore.NewNATSStore(scfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// close releases whatever was opened. Safe on a partially built value.
func (b *backends) close() error {
	var errs []error
	if b.hub != nil && b.ownHub {
		if err := b.hub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close hub: %w", err))
		}
	}
	if b.kv != nil && b.ownKV {
		if err := b.kv.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if b.conn != nil {
		if err := b.conn.Drain(); err != nil {
			b.conn.Close()
		}
	}
	return errors.Join(errs...)
}
