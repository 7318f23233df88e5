package cmdutil

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type metricsConfig struct {
	listenAddr string
}

var metricsCfg = metricsConfig{
	listenAddr: "127.0.0.1:9090",
}

func RegisterMetricsFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&metricsCfg.listenAddr,
		"metrics-listen-addr",
		metricsCfg.listenAddr,
		"Address for the metrics endpoint to listen to.",
	)
}

// MetricsHandler serves the run's prometheus metrics plus a health probe.
func MetricsHandler(logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprint(w, "OK"); err != nil {
			logger.Err(err).Msgf("error writing to healthz")
		}
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// MetricsServer exposes the metrics endpoint for the duration of one run and
// is shut down when the run ends.
type MetricsServer struct {
	logger zerolog.Logger
	srv    *http.Server
}

// StartMetricsServer begins listening on the configured address in the
// background.
func StartMetricsServer(logger zerolog.Logger) *MetricsServer {
	return startMetricsServer(logger, metricsCfg.listenAddr)
}

func startMetricsServer(logger zerolog.Logger, addr string) *MetricsServer {
	m := &MetricsServer{
		logger: logger,
		srv: &http.Server{
			Addr:    addr,
			Handler: MetricsHandler(logger),
		},
	}
	go func() {
		if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Err(err).Msgf("error exposing metrics endpoints")
		}
	}()
	return m
}

// Shutdown stops the listener. It runs on every exit path of a run, so
// failures are logged rather than returned.
func (m *MetricsServer) Shutdown(ctx context.Context) {
	if err := m.srv.Shutdown(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("error shutting down metrics endpoints")
	}
}
