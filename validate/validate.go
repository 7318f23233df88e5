// Package validate runs a configured validation suite against resolved
// connections and aggregates the per-validation results into a run summary.
package validate

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/datavet/datavet/config"
	"github.com/datavet/datavet/connector"
	"github.com/datavet/datavet/validate/businessrule"
	"github.com/datavet/datavet/validate/dataquality"
	"github.com/datavet/datavet/validate/newcolumn"
	"github.com/datavet/datavet/validate/result"
	"github.com/datavet/datavet/validate/rowcount"
	"github.com/datavet/datavet/validate/schemaverify"
)

var (
	validationsDone = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "datavet",
		Subsystem: "run",
		Name:      "validations_total",
		Help:      "Number of validations completed, by terminal status.",
	}, []string{"status"})
	activeWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "datavet",
		Subsystem: "run",
		Name:      "active_workers",
		Help:      "Number of validation workers currently executing.",
	})
)

// ErrExecution marks a validator-internal failure: the validation ran but
// could not produce a verdict, and the cause is neither the connection, a
// timeout, nor the configuration.
var ErrExecution = errors.New("validation execution error")

// Validator executes one validation kind. A returned error means the
// validation could not run; the orchestrator records it as an ERROR result
// rather than a verdict about the data.
type Validator interface {
	Kind() config.Kind
	Validate(ctx context.Context, spec *config.ValidationSpec, source, target *connector.Handle) (*result.Result, error)
}

// validators is the closed dispatch table for the built-in kinds.
func validators(logger zerolog.Logger) map[config.Kind]Validator {
	return map[config.Kind]Validator{
		config.KindRowCount:     rowcount.New(logger),
		config.KindDataQuality:  dataquality.New(logger),
		config.KindSchema:       schemaverify.New(logger),
		config.KindBusinessRule: businessrule.New(logger),
		config.KindNewColumn:    newcolumn.New(logger),
	}
}

// RunOpt customizes a run.
type RunOpt func(*runner)

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) RunOpt {
	return func(r *runner) {
		r.runID = id
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) RunOpt {
	return func(r *runner) {
		r.now = now
	}
}

type runner struct {
	logger     zerolog.Logger
	cfg        *config.Config
	registry   *connector.Registry
	validators map[config.Kind]Validator
	runID      string
	now        func() time.Time

	// stopped is set when fail-fast or continue-on-error abort the run.
	// Workers observe it before starting a validation; in-flight work
	// finishes normally.
	stopped atomic.Bool
}

// Run executes every enabled validation in the configuration and returns the
// aggregated summary. The returned error is non-nil only when the run itself
// could not proceed (for example a fail-fast abort on connection resolution);
// individual validation failures are reported through the summary.
func Run(
	ctx context.Context,
	logger zerolog.Logger,
	cfg *config.Config,
	registry *connector.Registry,
	opts ...RunOpt,
) (*result.RunSummary, error) {
	r := &runner{
		logger:     logger,
		cfg:        cfg,
		registry:   registry,
		validators: validators(logger),
		runID:      uuid.NewString(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r.run(ctx)
}

func (r *runner) run(ctx context.Context) (*result.RunSummary, error) {
	start := r.now()
	r.logger.Info().
		Str("run_id", r.runID).
		Int("validations", len(r.cfg.Validations)).
		Str("phase", "initializing").
		Msg("run starting")

	handles, resolveErrs := r.resolveConnections(ctx)
	if len(resolveErrs) > 0 && r.cfg.Settings.FailFast {
		r.logger.Error().
			Str("run_id", r.runID).
			Str("phase", "failed_fast").
			Msg("aborting: connection resolution failed with fail_fast set")
		return nil, errors.Newf("fail_fast: %d connection(s) could not be resolved", len(resolveErrs))
	}

	r.logger.Info().Str("run_id", r.runID).Str("phase", "executing").Msg("executing validations")
	slots := make([]*result.Result, len(r.cfg.Validations))
	if r.cfg.Settings.ParallelExecution {
		r.runParallel(ctx, handles, resolveErrs, slots)
	} else {
		r.runSequential(ctx, handles, resolveErrs, slots)
	}

	// Declaration order is the slot order; validations that never started
	// (aborted runs) leave nil slots and are omitted.
	r.logger.Info().Str("run_id", r.runID).Str("phase", "aggregating").Msg("aggregating results")
	results := make([]*result.Result, 0, len(slots))
	for _, res := range slots {
		if res != nil {
			results = append(results, res)
		}
	}

	summary := result.Summarize(r.runID, results, start, r.now())
	r.logger.Info().
		Str("run_id", r.runID).
		Str("phase", "done").
		Dur("duration", summary.Duration()).
		Msg(summary.Text())
	return summary, nil
}

// resolveConnections resolves every connection referenced by an enabled
// validation exactly once. Failures are returned per name so dependent
// validations can be errored individually.
func (r *runner) resolveConnections(ctx context.Context) (map[string]*connector.Handle, map[string]error) {
	r.logger.Info().Str("run_id", r.runID).Str("phase", "resolving_connections").Msg("resolving connections")

	handles := make(map[string]*connector.Handle)
	resolveErrs := make(map[string]error)
	resolve := func(name string) {
		if name == "" {
			return
		}
		if _, done := handles[name]; done {
			return
		}
		if _, done := resolveErrs[name]; done {
			return
		}
		h, err := r.registry.Resolve(ctx, name)
		if err != nil {
			r.logger.Error().Err(err).Str("connection", name).Msg("connection resolution failed")
			resolveErrs[name] = err
			return
		}
		handles[name] = h
	}
	for i := range r.cfg.Validations {
		spec := &r.cfg.Validations[i]
		if !spec.IsEnabled() {
			continue
		}
		resolve(spec.Source)
		resolve(spec.Target)
	}
	return handles, resolveErrs
}

func (r *runner) runSequential(
	ctx context.Context,
	handles map[string]*connector.Handle,
	resolveErrs map[string]error,
	slots []*result.Result,
) {
	for i := range r.cfg.Validations {
		if r.stopped.Load() {
			return
		}
		slots[i] = r.execute(ctx, &r.cfg.Validations[i], handles, resolveErrs)
	}
}

func (r *runner) runParallel(
	ctx context.Context,
	handles map[string]*connector.Handle,
	resolveErrs map[string]error,
	slots []*result.Result,
) {
	work := make(chan int, len(r.cfg.Validations))
	for i := range r.cfg.Validations {
		work <- i
	}
	close(work)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < r.cfg.Settings.Workers(); w++ {
		g.Go(func() error {
			for i := range work {
				if r.stopped.Load() {
					continue
				}
				activeWorkers.Inc()
				slots[i] = r.execute(gctx, &r.cfg.Validations[i], handles, resolveErrs)
				activeWorkers.Dec()
			}
			return nil
		})
	}
	_ = g.Wait()
}

// execute runs one validation to a terminal result. It never returns nil and
// never panics outward.
func (r *runner) execute(
	ctx context.Context,
	spec *config.ValidationSpec,
	handles map[string]*connector.Handle,
	resolveErrs map[string]error,
) (res *result.Result) {
	if !spec.IsEnabled() {
		r.logger.Info().Str("validation", spec.Name).Msg("validation disabled, skipping")
		res = result.NewSkipped(spec, r.now())
		r.record(res)
		return res
	}

	start := r.now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Str("validation", spec.Name).Interface("panic", p).Msg("validation panicked")
			res = result.NewError(spec, "panic", errors.Newf("panic: %v", p), start, r.now())
			r.afterError(res)
		}
	}()

	for _, name := range []string{spec.Source, spec.Target} {
		if err, bad := resolveErrs[name]; bad {
			res = result.NewError(spec, "connection", err, start, r.now())
			r.afterError(res)
			return res
		}
	}
	source := handles[spec.Source]
	target := handles[spec.Target]

	validator, ok := r.validators[spec.Kind]
	if !ok {
		res = result.NewError(spec, "configuration", errors.Newf("no validator for kind %q", spec.Kind), start, r.now())
		r.afterError(res)
		return res
	}

	vctx, cancel := context.WithTimeout(ctx, r.cfg.Settings.QueryTimeout())
	defer cancel()

	r.logger.Info().Str("validation", spec.Name).Str("kind", string(spec.Kind)).Msg("validation starting")
	res, err := validator.Validate(vctx, spec, source, target)
	end := r.now()
	if err != nil {
		kind := classifyError(vctx, err)
		if kind == "execution" {
			err = errors.Mark(err, ErrExecution)
		}
		res = result.NewError(spec, kind, err, start, end)
		r.afterError(res)
		return res
	}
	res = res.WithTiming(start, end)

	if res.Status.Failure() && r.cfg.Settings.FailFast {
		r.logger.Error().Str("validation", spec.Name).Msg("fail_fast: aborting run")
		r.stopped.Store(true)
	}
	r.record(res)
	return res
}

func (r *runner) afterError(res *result.Result) {
	if !r.cfg.Settings.ContinueOnErr() || r.cfg.Settings.FailFast {
		r.stopped.Store(true)
	}
	r.record(res)
}

func (r *runner) record(res *result.Result) {
	validationsDone.WithLabelValues(string(res.Status)).Inc()
	ev := r.logger.Info()
	if res.Status.Failure() {
		ev = r.logger.Error()
	}
	ev.Str("validation", res.Name).Str("status", string(res.Status)).Msg(res.Summary())
}

// classifyError tags an execution error for the ERROR result, so reports can
// distinguish timeouts and connection loss from validator faults. Anything
// not attributable to the connection, a timeout, or the configuration is an
// execution error and gets marked with ErrExecution.
func classifyError(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, connector.ErrConnection):
		return "connection"
	case errors.Is(err, config.ErrConfiguration):
		return "configuration"
	}
	return "execution"
}
