// Package observability carries the bridge's diagnostics surface: the
// Prometheus scrape endpoint, process health probes and the control-API
// request logging middleware.
package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"voice-translation-bridge/internal/observability/logging"
)

// Diagnostics serves /metrics and the process health probes on a dedicated
// listener, kept apart from the call-control API.
type Diagnostics struct {
	server  *http.Server
	log     zerolog.Logger
	started time.Time
}

// NewDiagnostics builds the diagnostics listener on addr.
func NewDiagnostics(addr string) *Diagnostics {
	d := &Diagnostics{
		log:     logging.WithComponent("diagnostics"),
		started: time.Now(),
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", d.health)
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	d.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  time.Minute,
	}
	return d
}

func (d *Diagnostics) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"uptime": time.Since(d.started).Round(time.Second).String(),
	})
}

// Start begins serving in the background. Listener failures other than a
// clean close are logged, not returned.
func (d *Diagnostics) Start() {
	go func() {
		d.log.Info().Str("addr", d.server.Addr).Msg("diagnostics server listening")
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.log.Error().Err(err).Msg("diagnostics server failed")
		}
	}()
}

// Shutdown drains in-flight scrapes and closes the listener.
func (d *Diagnostics) Shutdown(ctx context.Context) error {
	d.log.Info().Msg("diagnostics server stopping")
	return d.server.Shutdown(ctx)
}
