package connector

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/datavet/datavet/config"
	"github.com/datavet/datavet/retry"
)

var connectorReads = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "datavet",
	Subsystem: "connector",
	Name:      "reads_total",
	Help:      "Number of read operations issued per logical connection.",
}, []string{"connection"})

// Registry resolves logical connection names to live connectors. Each name is
// resolved at most once per run and the resulting connector is shared by
// every validation that references it.
type Registry struct {
	logger  zerolog.Logger
	retry   retry.Settings
	limiter *rate.Limiter
	specs   map[string]config.ConnectionSpec

	mu      sync.Mutex
	handles map[string]*Handle
	failed  map[string]error
}

// RegistryOpt customizes a Registry.
type RegistryOpt func(*Registry)

// WithRetrySettings overrides the connect retry policy.
func WithRetrySettings(s retry.Settings) RegistryOpt {
	return func(r *Registry) {
		r.retry = s
	}
}

// WithRowsPerSecond caps read operations across all connections. Zero means
// unlimited.
func WithRowsPerSecond(n int) RegistryOpt {
	return func(r *Registry) {
		if n > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(n), n)
		}
	}
}

// NewRegistry builds a registry over the enabled connection specs.
func NewRegistry(logger zerolog.Logger, specs []config.ConnectionSpec, opts ...RegistryOpt) *Registry {
	r := &Registry{
		logger:  logger,
		retry:   retry.DefaultSettings(),
		specs:   make(map[string]config.ConnectionSpec, len(specs)),
		handles: make(map[string]*Handle),
		failed:  make(map[string]error),
	}
	for _, spec := range specs {
		if spec.IsEnabled() {
			r.specs[spec.Name] = spec
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SettingsRetry derives the connect retry policy from run settings.
func SettingsRetry(s config.Settings) retry.Settings {
	return retry.Settings{
		InitialBackoff: s.RetryDelay(),
		Multiplier:     2,
		MaxAttempts:    s.RetryAttempts(),
	}
}

// Resolve returns the shared handle for a logical connection name, connecting
// on first use with the configured retry policy. A failed resolution is
// cached so every dependent validation observes the same error.
func (r *Registry) Resolve(ctx context.Context, name string) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[name]; ok {
		return h, nil
	}
	if err, ok := r.failed[name]; ok {
		return nil, err
	}

	spec, ok := r.specs[name]
	if !ok {
		err := markConnection(errors.Newf("unknown or disabled connection %q", name))
		r.failed[name] = err
		return nil, err
	}

	conn, err := New(spec, r.logger)
	if err != nil {
		err = markConnection(err)
		r.failed[name] = err
		return nil, err
	}

	if err := r.retry.Do(ctx, r.logger, "connect "+name, conn.Connect); err != nil {
		err = markConnection(errors.Wrapf(err, "connecting %q", name))
		r.failed[name] = err
		return nil, err
	}

	r.logger.Info().Str("connection", name).Str("type", spec.Kind).Msg("connection established")
	h := &Handle{name: name, conn: conn, limiter: r.limiter}
	r.handles[name] = h
	return h, nil
}

// CloseAll disconnects every resolved connection. Errors are logged, not
// returned, since cleanup runs on every exit path.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, h := range r.handles {
		if err := h.conn.Close(ctx); err != nil {
			r.logger.Warn().Err(err).Str("connection", name).Msg("error closing connection")
		}
		delete(r.handles, name)
	}
}

// Handle wraps a shared connector. Connectors are not assumed concurrency
// safe, so all reads through one handle are serialized by its mutex.
type Handle struct {
	name    string
	limiter *rate.Limiter

	mu   sync.Mutex
	conn Connector
}

// Name returns the logical connection name.
func (h *Handle) Name() string {
	return h.name
}

func (h *Handle) wait(ctx context.Context) error {
	if h.limiter == nil {
		return nil
	}
	return h.limiter.Wait(ctx)
}

// ReadData executes a serialized read through the shared connector.
func (h *Handle) ReadData(ctx context.Context, queryOrTable string, limit int) (*Rows, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	connectorReads.WithLabelValues(h.name).Inc()
	rows, err := h.conn.ReadData(ctx, queryOrTable, limit)
	if err != nil {
		return nil, markConnection(errors.Wrapf(err, "reading from %q", h.name))
	}
	return rows, nil
}

// GetSchema fetches the declared schema of a table.
func (h *Handle) GetSchema(ctx context.Context, table string) ([]SchemaColumn, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	connectorReads.WithLabelValues(h.name).Inc()
	cols, err := h.conn.GetSchema(ctx, table)
	if err != nil {
		return nil, markConnection(errors.Wrapf(err, "fetching schema from %q", h.name))
	}
	return cols, nil
}

// GetRowCount counts the rows of a table or query result.
func (h *Handle) GetRowCount(ctx context.Context, queryOrTable string) (int64, error) {
	if err := h.wait(ctx); err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	connectorReads.WithLabelValues(h.name).Inc()
	n, err := h.conn.GetRowCount(ctx, queryOrTable)
	if err != nil {
		return 0, markConnection(errors.Wrapf(err, "counting rows on %q", h.name))
	}
	return n, nil
}
