// Package transcribe drives one channel's streaming transcription session:
// it pumps encoded audio into the transport, consumes the result event
// stream, runs each result through the stabilizer against the channel cursor
// and invokes the per-channel callbacks.
package transcribe

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/rs/zerolog"

	"voice-translation-bridge/internal/audio"
	"voice-translation-bridge/internal/auth"
	"voice-translation-bridge/internal/models"
	"voice-translation-bridge/internal/observability/logging"
	"voice-translation-bridge/internal/observability/metrics"
	"voice-translation-bridge/internal/service/stabilizer"
)

// Precondition errors, each distinct so callers can tell what was missing.
// All are checked before any network action.
var (
	ErrNilAudioSource       = errors.New("audio source is required")
	ErrInvalidSampleRate    = errors.New("sample rate must be a positive integer")
	ErrMissingLanguage      = errors.New("source language is required")
	ErrMissingStabilityMode = errors.New("stability mode is required")
	ErrNilFinalCallback     = errors.New("final segment callback is required")
	ErrNilPartialCallback   = errors.New("partial segment callback is required")
)

// Partial-result stability modes accepted by the transport. StabilityNone
// disables early segment commits: finals are only emitted on utterance close.
const (
	StabilityNone   = "none"
	StabilityLow    = "low"
	StabilityMedium = "medium"
	StabilityHigh   = "high"
)

// StabilityModes lists the modes that enable partial-result stabilization.
var StabilityModes = []string{StabilityLow, StabilityMedium, StabilityHigh}

func stabilizationEnabled(mode string) bool {
	for _, m := range StabilityModes {
		if m == mode {
			return true
		}
	}
	return false
}

// SessionConfig carries the parameters for one transport session.
type SessionConfig struct {
	LanguageCode  string
	SampleRate    int
	Encoding      string
	StabilityMode string
	Stabilization bool
}

// Session is one live bidirectional transcription stream.
type Session interface {
	// SendAudio pushes one encoded chunk into the stream.
	SendAudio(ctx context.Context, chunk []byte) error

	// Finish signals that no more audio follows.
	Finish() error

	// Results yields transcript results until the stream ends.
	Results() iter.Seq2[models.TranscriptResult, error]

	// Close releases the session.
	Close() error
}

// Transport opens transcription sessions. Implementations own the wire
// protocol; the driver only sees results.
type Transport interface {
	OpenSession(ctx context.Context, cfg SessionConfig) (Session, error)
}

// TransportFactory builds an authenticated transport from credentials.
type TransportFactory func(creds auth.Credentials) Transport

// Driver owns one channel's transcription sessions. The authenticated
// transport handle is reused across sessions while credentials stay valid
// and rebuilt otherwise; failed credential acquisition is retried by the
// caller, not here.
type Driver struct {
	channel   models.Channel
	creds     auth.Provider
	factory   TransportFactory
	transport Transport
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewDriver creates a driver for one channel.
func NewDriver(channel models.Channel, creds auth.Provider, factory TransportFactory) *Driver {
	return &Driver{
		channel: channel,
		creds:   creds,
		factory: factory,
		metrics: metrics.DefaultMetrics,
		log:     logging.WithChannel("transcribe-driver", string(channel)),
	}
}

// client returns the cached transport while credentials remain valid,
// otherwise re-acquires credentials and builds a fresh one.
func (d *Driver) client(ctx context.Context) (Transport, error) {
	if d.transport != nil && d.creds.HasValidCredentials() {
		return d.transport, nil
	}
	creds, err := d.creds.ValidCredentials(ctx)
	if err != nil {
		return nil, err
	}
	d.transport = d.factory(creds)
	return d.transport, nil
}

// Start opens one streaming session and blocks until the transport's event
// stream ends. Each produced partial preview is handed to onPartial, each
// committed segment to onFinal. The channel cursor lives for exactly one
// session.
func (d *Driver) Start(
	ctx context.Context,
	source audio.Source,
	sampleRate int,
	sourceLanguage string,
	stabilityMode string,
	onFinal func(text string),
	onPartial func(text string),
) error {
	if source == nil {
		return ErrNilAudioSource
	}
	if sampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	if sourceLanguage == "" {
		return ErrMissingLanguage
	}
	if stabilityMode == "" {
		return ErrMissingStabilityMode
	}
	if onFinal == nil {
		return ErrNilFinalCallback
	}
	if onPartial == nil {
		return ErrNilPartialCallback
	}

	stabilization := stabilizationEnabled(stabilityMode)

	transport, err := d.client(ctx)
	if err != nil {
		return err
	}

	session, err := transport.OpenSession(ctx, SessionConfig{
		LanguageCode:  sourceLanguage,
		SampleRate:    sampleRate,
		Encoding:      "pcm",
		StabilityMode: stabilityMode,
		Stabilization: stabilization,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	d.metrics.SessionsTotal.WithLabelValues(string(d.channel)).Inc()
	started := time.Now()
	defer func() {
		d.metrics.SessionDuration.WithLabelValues(string(d.channel)).Observe(time.Since(started).Seconds())
	}()

	d.log.Info().
		Str("language", sourceLanguage).
		Str("stabilityMode", stabilityMode).
		Int("sampleRate", sampleRate).
		Msg("transcription session opened")

	// Pump encoded audio concurrently with result consumption. The pump ends
	// when the source is exhausted, which in turn ends the event stream.
	pumpCtx, cancelPump := context.WithCancel(ctx)
	defer cancelPump()
	go d.pump(pumpCtx, session, source, sampleRate)

	cursor := 0
	for result, err := range session.Results() {
		if err != nil {
			d.metrics.SessionsFailed.WithLabelValues(string(d.channel)).Inc()
			return err
		}

		out := stabilizer.Process(result, cursor, stabilization)

		if out.Partial != "" {
			d.metrics.SegmentsPartial.WithLabelValues(string(d.channel)).Inc()
			onPartial(out.Partial)
		}
		if out.Final != "" {
			d.metrics.SegmentsFinal.WithLabelValues(string(d.channel)).Inc()
			if result.IsPartial {
				d.metrics.SegmentsStabilized.WithLabelValues(string(d.channel)).Inc()
			}
			onFinal(out.Final)
		}
		cursor = out.Cursor
	}

	d.log.Info().Msg("transcription session ended")
	return nil
}

func (d *Driver) pump(ctx context.Context, session Session, source audio.Source, sampleRate int) {
	enc := audio.NewEncoder(sampleRate)
	for chunk, err := range enc.Stream(ctx, source) {
		if err != nil {
			d.log.Warn().Err(err).Msg("audio source read failed")
			break
		}
		if err := session.SendAudio(ctx, chunk); err != nil {
			d.log.Warn().Err(err).Msg("audio push failed")
			break
		}
		d.metrics.AudioChunksSent.WithLabelValues(string(d.channel)).Inc()
	}
	if dropped := enc.Dropped(); dropped > 0 {
		d.metrics.AudioFramesDropped.WithLabelValues(string(d.channel)).Add(float64(dropped))
	}
	if err := session.Finish(); err != nil {
		d.log.Debug().Err(err).Msg("finish signal failed")
	}
}
