// Package http exposes the call-control API: call lifecycle, per-channel
// start/stop/mute and capability listings.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"voice-translation-bridge/internal/app"
	"voice-translation-bridge/internal/models"
	"voice-translation-bridge/internal/observability"
	"voice-translation-bridge/internal/observability/logging"
	"voice-translation-bridge/internal/observability/metrics"
	"voice-translation-bridge/internal/service/channel"
	"voice-translation-bridge/internal/service/synthesize"
	"voice-translation-bridge/internal/service/translate"
)

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	h := &handler{app: application}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("POST /v1/calls", h.beginCall)
	mux.HandleFunc("DELETE /v1/calls/current", h.endCall)
	mux.HandleFunc("GET /v1/calls/current", h.currentCall)

	mux.HandleFunc("POST /v1/channels/{channel}/start", h.startChannel)
	mux.HandleFunc("POST /v1/channels/{channel}/stop", h.stopChannel)
	mux.HandleFunc("POST /v1/channels/{channel}/mute", h.toggleMute)
	mux.HandleFunc("GET /v1/channels/{channel}", h.channelState)

	mux.HandleFunc("POST /v1/mic-test", h.micTest)

	mux.HandleFunc("GET /v1/languages", h.languages)
	mux.HandleFunc("GET /v1/engines", h.engines)

	return observability.RequestLogger(metrics.DefaultMetrics, withRecovery(mux))
}

// Mic loopback bounds, in seconds.
const (
	defaultMicTestSeconds = 5
	maxMicTestSeconds     = 30
)

type handler struct {
	app *app.Application
}

type beginCallRequest struct {
	CallID string `json:"callId"`
}

func (h *handler) beginCall(w http.ResponseWriter, r *http.Request) {
	var req beginCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CallID == "" {
		writeError(w, http.StatusBadRequest, "callId is required")
		return
	}
	if err := h.app.BeginCall(req.CallID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"callId": req.CallID})
}

func (h *handler) endCall(w http.ResponseWriter, _ *http.Request) {
	if err := h.app.EndCall(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) currentCall(w http.ResponseWriter, _ *http.Request) {
	callID := h.app.CallID()
	if callID == "" {
		writeError(w, http.StatusNotFound, "no active call")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"callId": callID})
}

func (h *handler) startChannel(w http.ResponseWriter, r *http.Request) {
	ch, ok := parseChannel(w, r)
	if !ok {
		return
	}
	if err := h.app.StartChannel(r.Context(), ch); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.writeChannelState(w, ch)
}

func (h *handler) stopChannel(w http.ResponseWriter, r *http.Request) {
	ch, ok := parseChannel(w, r)
	if !ok {
		return
	}
	if err := h.app.StopChannel(ch); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.writeChannelState(w, ch)
}

func (h *handler) toggleMute(w http.ResponseWriter, r *http.Request) {
	ch, ok := parseChannel(w, r)
	if !ok {
		return
	}
	if err := h.app.ToggleMute(ch); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.writeChannelState(w, ch)
}

func (h *handler) channelState(w http.ResponseWriter, r *http.Request) {
	ch, ok := parseChannel(w, r)
	if !ok {
		return
	}
	h.writeChannelState(w, ch)
}

func (h *handler) writeChannelState(w http.ResponseWriter, ch models.Channel) {
	state, err := h.app.ChannelState(ch)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"channel": string(ch),
		"state":   state.String(),
	})
}

type micTestRequest struct {
	DurationSeconds int `json:"durationSeconds"`
}

func (h *handler) micTest(w http.ResponseWriter, r *http.Request) {
	req := micTestRequest{DurationSeconds: defaultMicTestSeconds}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.DurationSeconds <= 0 || req.DurationSeconds > maxMicTestSeconds {
		writeError(w, http.StatusBadRequest, "durationSeconds must be between 1 and 30")
		return
	}
	d := time.Duration(req.DurationSeconds) * time.Second
	if err := h.app.MicTest(r.Context(), d); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"durationSeconds": req.DurationSeconds})
}

func (h *handler) languages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, translate.Languages())
}

func (h *handler) engines(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, synthesize.Engines())
}

func parseChannel(w http.ResponseWriter, r *http.Request) (models.Channel, bool) {
	switch r.PathValue("channel") {
	case string(models.AgentChannel):
		return models.AgentChannel, true
	case string(models.CustomerChannel):
		return models.CustomerChannel, true
	default:
		writeError(w, http.StatusNotFound, "unknown channel")
		return "", false
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrNoActiveCall):
		return http.StatusNotFound
	case errors.Is(err, app.ErrCallInProgress),
		errors.Is(err, channel.ErrAlreadyActive),
		errors.Is(err, channel.ErrNotActive),
		errors.Is(err, channel.ErrMuteUnsupported):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger := logging.WithComponent("http")
		logger.Warn().Err(err).Msg("response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// withRecovery converts handler panics into 500s instead of killing the
// connection.
func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger := logging.WithComponent("http")
				logger.Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Msg("handler panicked")
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
