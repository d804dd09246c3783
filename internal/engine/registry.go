package engine

import (
	"log/slog"
	"sort"

	"dataframehub/internal/domain"
)

// Options configures the drivers built by NewRegistry.
type Options struct {
	// StrictExpressions enables the expression guard in every driver's compiler.
	StrictExpressions bool
}

// Registry maps backend types to drivers. It is populated once at startup
// and read-only afterwards.
type Registry struct {
	drivers map[domain.BackendType]domain.Driver
}

// NewRegistry returns a registry holding the DuckDB and SQLite drivers.
func NewRegistry(opts Options, logger *slog.Logger) *Registry {
	compiler := Compiler{Strict: opts.StrictExpressions}
	return NewRegistryWith(
		NewDuckDBDriver(compiler, logger.With("driver", domain.BackendDuckDB)),
		NewSQLiteDriver(compiler, logger.With("driver", domain.BackendSQLite)),
	)
}

// NewRegistryWith returns a registry holding exactly the given drivers.
func NewRegistryWith(drivers ...domain.Driver) *Registry {
	r := &Registry{drivers: make(map[domain.BackendType]domain.Driver, len(drivers))}
	for _, d := range drivers {
		r.drivers[d.Type()] = d
	}
	return r
}

// Driver returns the driver for t, or UnsupportedBackendError.
func (r *Registry) Driver(t domain.BackendType) (domain.Driver, error) {
	d, ok := r.drivers[t]
	if !ok {
		return nil, domain.ErrUnsupportedBackend("unsupported backend type %q (supported: %v)", t, r.Types())
	}
	return d, nil
}

// Types lists the registered backend types in sorted order.
func (r *Registry) Types() []domain.BackendType {
	out := make([]domain.BackendType, 0, len(r.drivers))
	for t := range r.drivers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
