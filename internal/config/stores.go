package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/catgraph/internal/federation"
	"github.com/roach88/catgraph/internal/store"
	"github.com/roach88/catgraph/internal/store/memory"
	"github.com/roach88/catgraph/internal/store/postgres"
	"github.com/roach88/catgraph/internal/store/s3"
	"github.com/roach88/catgraph/internal/store/sqlite"
)

// Stores is the set of opened backends attached to one federation.
type Stores struct {
	Federation *federation.Context
	// Metrics is nil unless metrics are enabled.
	Metrics *store.Metrics

	closers []io.Closer
}

// Close releases every backend that holds a connection.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenStores opens every configured store in order and attaches it to a new
// federation. When metrics are enabled each store is instrumented and the
// collectors are registered with reg. On failure the stores opened so far
// are closed again.
func OpenStores(ctx context.Context, cfg *Config, reg prometheus.Registerer, logger *slog.Logger, opts ...store.Option) (*Stores, error) {
	out := &Stores{}
	if cfg.Metrics.Enabled {
		out.Metrics = store.NewMetrics(reg)
	}

	fed, err := federation.New()
	if err != nil {
		return nil, err
	}
	out.Federation = fed

	for _, sc := range cfg.Stores {
		s, err := openStore(ctx, sc, opts...)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("open store %s: %w", sc.ID, err), out.Close())
		}
		if c, ok := s.(io.Closer); ok {
			out.closers = append(out.closers, c)
		}
		if err := fed.Attach(store.Instrument(s, out.Metrics)); err != nil {
			return nil, errors.Join(err, out.Close())
		}
		logger.Debug("attached store",
			"store", sc.ID,
			"driver", sc.Driver,
			"instrumented", out.Metrics != nil,
		)
	}
	return out, nil
}

func openStore(ctx context.Context, sc StoreConfig, opts ...store.Option) (store.Store, error) {
	switch sc.Driver {
	case DriverMemory:
		return memory.New(sc.ID, opts...), nil
	case DriverSQLite:
		return sqlite.Open(sc.Path, sc.ID, opts...)
	case DriverPostgres:
		return postgres.Open(ctx, sc.DSN, sc.ID, opts...)
	case DriverS3:
		return s3.New(ctx, sc.ID, s3.Config{
			Bucket:          sc.Bucket,
			Prefix:          sc.Prefix,
			Region:          sc.Region,
			Endpoint:        sc.Endpoint,
			AccessKeyID:     sc.AccessKeyID,
			SecretAccessKey: sc.SecretAccessKey,
			PathStyle:       sc.PathStyle,
		}, opts...)
	default:
		return nil, fmt.Errorf("unknown driver %q", sc.Driver)
	}
}
