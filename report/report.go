// Package report renders run summaries to their configured outputs. Reporter
// failures are isolated: a broken sink is logged and never changes the
// validation verdict.
package report

import (
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/datavet/datavet/config"
	"github.com/datavet/datavet/validate/result"
)

// Reporter renders one run summary to a sink.
type Reporter interface {
	Report(summary *result.RunSummary) error
}

// Factory builds a reporter from its configuration.
type Factory func(spec config.ReporterSpec, logger zerolog.Logger) (Reporter, error)

var customFactories = map[string]Factory{}

// Register installs a factory for a custom reporter kind. Built-in kinds
// cannot be overridden.
func Register(kind string, f Factory) error {
	switch kind {
	case "console", "json", "log":
		return errors.Newf("reporter kind %q is built in", kind)
	}
	if _, ok := customFactories[kind]; ok {
		return errors.Newf("reporter kind %q already registered", kind)
	}
	customFactories[kind] = f
	return nil
}

// FromConfig builds the enabled reporters. When the configuration names no
// reporters, a console reporter is used so a run is never silent.
func FromConfig(specs []config.ReporterSpec, logger zerolog.Logger) ([]Reporter, error) {
	var reporters []Reporter
	for _, spec := range specs {
		if !spec.IsEnabled() {
			continue
		}
		var (
			rep Reporter
			err error
		)
		switch spec.Kind {
		case "console":
			rep = NewConsole()
		case "json":
			rep, err = NewJSON(spec.OutputPath)
		case "log":
			rep = NewLog(logger)
		default:
			f, ok := customFactories[spec.Kind]
			if !ok {
				return nil, errors.Newf("unknown reporter kind %q", spec.Kind)
			}
			rep, err = f(spec, logger)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "building %q reporter", spec.Kind)
		}
		reporters = append(reporters, rep)
	}
	if len(reporters) == 0 {
		reporters = append(reporters, NewConsole())
	}
	return reporters, nil
}

// Generate runs every reporter over the summary. A failing reporter is logged
// and the rest still run.
func Generate(logger zerolog.Logger, reporters []Reporter, summary *result.RunSummary) {
	for _, rep := range reporters {
		if err := rep.Report(summary); err != nil {
			logger.Warn().Err(err).Msgf("reporter %T failed", rep)
		}
	}
}

// Combined fans a summary out to several reporters as one.
type Combined struct {
	Reporters []Reporter
}

func (c Combined) Report(summary *result.RunSummary) error {
	var combined error
	for _, rep := range c.Reporters {
		combined = errors.CombineErrors(combined, rep.Report(summary))
	}
	return combined
}
