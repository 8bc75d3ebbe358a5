// Package channel coordinates one direction of the voice translation
// pipeline: capture, transcription, translation, synthesis and playback. Each
// channel owns its own orchestrator; the two never share a cursor, session or
// track handle.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voice-translation-bridge/internal/audio"
	"voice-translation-bridge/internal/callsession"
	"voice-translation-bridge/internal/models"
	"voice-translation-bridge/internal/observability/logging"
	"voice-translation-bridge/internal/observability/metrics"
	"voice-translation-bridge/internal/service/segment"
	"voice-translation-bridge/internal/service/synthesize"
	"voice-translation-bridge/internal/service/translate"
)

// duckedInboundVolume is applied to the raw inbound audio when the listener
// should still faintly hear the original voice under the translation.
const duckedInboundVolume = 0.3

// State is the lifecycle state of a channel.
type State int

const (
	// StateIdle - no transcription session exists. Initial and terminal.
	StateIdle State = iota
	// StateActive - capture and transcription are running.
	StateActive
	// StateMuted - session alive, microphone gated (agent channel only).
	StateMuted
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateActive:
		return "ACTIVE"
	case StateMuted:
		return "MUTED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Errors for invalid lifecycle transitions.
var (
	ErrAlreadyActive   = errors.New("transcription already active for this channel")
	ErrNotActive       = errors.New("transcription not active for this channel")
	ErrMuteUnsupported = errors.New("mute is only supported on the agent channel")
)

// Driver starts one blocking transcription session. Satisfied by
// *transcribe.Driver.
type Driver interface {
	Start(ctx context.Context, source audio.Source, sampleRate int,
		sourceLanguage, stabilityMode string,
		onFinal, onPartial func(text string)) error
}

// TrackProvider hands out the track handles a channel routes.
type TrackProvider interface {
	SynthesizedTrack() callsession.TrackHandle
	SilentTrack() (callsession.TrackHandle, error)
}

// Notifier is the presentation collaborator. Lifecycle side effects are
// reported through it instead of being interleaved with core logic.
type Notifier interface {
	// ControlsLocked reports that the channel's selectors should be locked
	// or released.
	ControlsLocked(ch models.Channel, locked bool)

	// InboundAudio reports the volume/mute policy for the raw inbound audio.
	InboundAudio(ch models.Channel, volume float64, muted bool)

	// ReportError surfaces a non-fatal failure, one notification per failure.
	ReportError(ch models.Channel, err error)
}

// EventPublisher publishes transcript and translation events. Satisfied by
// *events.Publisher.
type EventPublisher interface {
	PublishPartial(ctx context.Context, key string, event any) error
	PublishFinal(ctx context.Context, key string, event any) error
	PublishTranslation(ctx context.Context, key string, event any) error
}

// Config holds one channel's settings.
type Config struct {
	Channel    models.Channel
	CallID     string
	SampleRate int

	// Transcription
	SourceLanguage string
	StabilityMode  string

	// Translation
	TranslateFrom string
	TranslateTo   string

	// Synthesis
	SynthesisLanguage string
	SynthesisEngine   string
	SynthesisVoice    string

	// StreamMicToPeer keeps the raw voice faintly audible under the
	// translation instead of muting it entirely.
	StreamMicToPeer bool

	// FeedbackClip, when set, is played to the listener while transcription
	// starts.
	FeedbackClip []byte
}

// Deps are the orchestrator's collaborators.
type Deps struct {
	Driver      Driver
	Router      callsession.TrackRouter
	Tracks      TrackProvider
	Sink        callsession.PlaybackSink
	Monitor     callsession.PlaybackSink // optional self-monitor feed
	MicFeed     callsession.MicFeed      // agent channel only
	Translator  translate.Translator
	Synthesizer synthesize.Synthesizer
	Publisher   EventPublisher
	Notifier    Notifier
}

// Orchestrator is the per-channel lifecycle state machine:
//
//	Idle → Active ⇄ Muted → Idle
type Orchestrator struct {
	cfg      Config
	deps     Deps
	metrics  *metrics.Metrics
	segments *segment.Generator
	log      zerolog.Logger

	mu     sync.Mutex
	state  State
	source *audio.SwitchSource
	gate   *audio.Gate
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an orchestrator in Idle state.
func New(cfg Config, deps Deps) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		deps:     deps,
		metrics:  metrics.DefaultMetrics,
		segments: segment.New(cfg.CallID, cfg.Channel),
		log:      logging.WithChannel("orchestrator", string(cfg.Channel)),
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Start brings the channel from Idle to Active: inbound audio policy, track
// routing, then the transcription session. Valid only from Idle; a second
// start without an intervening stop is rejected. If routing fails the driver
// is never started; if the driver fails, controls are re-enabled and no
// session lingers.
func (o *Orchestrator) Start(ctx context.Context, source audio.Source) error {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return ErrAlreadyActive
	}

	if o.cfg.StreamMicToPeer {
		o.deps.Notifier.InboundAudio(o.cfg.Channel, duckedInboundVolume, false)
	} else {
		o.deps.Notifier.InboundAudio(o.cfg.Channel, 0, true)
	}

	if len(o.cfg.FeedbackClip) > 0 {
		if err := o.deps.Sink.Play(ctx, o.cfg.FeedbackClip); err != nil {
			o.log.Warn().Err(err).Msg("audio feedback playback failed")
		}
	}

	// Route before starting the driver so a routing failure leaves no
	// session to clean up.
	if err := o.deps.Router.ReplaceOutboundSource(o.deps.Tracks.SynthesizedTrack()); err != nil {
		o.deps.Notifier.InboundAudio(o.cfg.Channel, 1, false)
		o.mu.Unlock()
		o.deps.Notifier.ReportError(o.cfg.Channel, err)
		return err
	}

	gate := audio.NewGate(source)
	switched := audio.NewSwitchSource(gate)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	o.gate = gate
	o.source = switched
	o.cancel = cancel
	o.done = done
	o.state = StateActive

	o.deps.Notifier.ControlsLocked(o.cfg.Channel, true)
	o.metrics.ChannelStarts.WithLabelValues(string(o.cfg.Channel)).Inc()
	o.metrics.ChannelsActive.Inc()
	o.log.Info().Str("language", o.cfg.SourceLanguage).Msg("channel started")
	o.mu.Unlock()

	go o.run(runCtx, switched, done)
	return nil
}

// run drives the blocking transcription session and returns the channel to a
// recoverable Idle state when the session ends, normally or not.
func (o *Orchestrator) run(ctx context.Context, source audio.Source, done chan struct{}) {
	defer close(done)

	err := o.deps.Driver.Start(ctx, source, o.cfg.SampleRate,
		o.cfg.SourceLanguage, o.cfg.StabilityMode,
		o.handleFinal(ctx), o.handlePartial(ctx))
	if err != nil && ctx.Err() == nil {
		o.log.Error().Err(err).Msg("transcription session failed")
		o.deps.Notifier.ReportError(o.cfg.Channel, err)
	}

	o.mu.Lock()
	stillRunning := o.state != StateIdle
	if stillRunning {
		o.state = StateIdle
		o.source = nil
		o.gate = nil
		o.cancel = nil
	}
	o.mu.Unlock()

	if stillRunning {
		o.deps.Notifier.ControlsLocked(o.cfg.Channel, false)
		o.deps.Notifier.InboundAudio(o.cfg.Channel, 1, false)
		o.metrics.ChannelsActive.Dec()
	}
}

// Stop winds the channel down: the transcription input is replaced with a
// silent source so the transport's event stream ends naturally, the session
// context is cancelled and controls are released. Idempotent from Idle; no
// callbacks fire after Stop returns.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if o.state == StateIdle {
		o.mu.Unlock()
		return nil
	}
	source := o.source
	cancel := o.cancel
	done := o.done
	o.source = nil
	o.gate = nil
	o.cancel = nil
	o.done = nil
	o.state = StateIdle
	o.mu.Unlock()

	if source != nil {
		source.Replace(audio.Silence{})
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	o.deps.Notifier.ControlsLocked(o.cfg.Channel, false)
	o.deps.Notifier.InboundAudio(o.cfg.Channel, 1, false)
	o.metrics.ChannelStops.WithLabelValues(string(o.cfg.Channel)).Inc()
	o.metrics.ChannelsActive.Dec()
	o.log.Info().Msg("channel stopped")
	return nil
}

// ToggleMute flips the microphone gate without tearing down the session, and
// starts or stops the raw mic feed to the peer. Agent channel only.
func (o *Orchestrator) ToggleMute() error {
	if o.cfg.Channel != models.AgentChannel {
		return ErrMuteUnsupported
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state {
	case StateActive:
		o.gate.SetEnabled(false)
		o.state = StateMuted
		if o.deps.MicFeed != nil {
			if err := o.deps.MicFeed.StopMic(); err != nil {
				o.log.Warn().Err(err).Msg("mic feed stop failed")
			}
		}
		o.log.Info().Msg("channel muted")
		return nil
	case StateMuted:
		o.gate.SetEnabled(true)
		o.state = StateActive
		if o.deps.MicFeed != nil && o.cfg.StreamMicToPeer {
			if err := o.deps.MicFeed.StartMic(); err != nil {
				o.log.Warn().Err(err).Msg("mic feed start failed")
			}
		}
		o.log.Info().Msg("channel unmuted")
		return nil
	default:
		return ErrNotActive
	}
}

// HandleCallEvent subscribes the orchestrator to call lifecycle events. An
// ended or destroyed call forces the channel to Idle regardless of state.
func (o *Orchestrator) HandleCallEvent(ev callsession.Event) {
	switch ev {
	case callsession.EventEnded, callsession.EventDestroyed:
		o.HardReset()
	}
}

// HardReset forces the channel to Idle, bypassing normal preconditions: the
// transcription input goes silent, the session context is cancelled and the
// outbound track is replaced with silence. Safe to call in any state.
func (o *Orchestrator) HardReset() {
	o.mu.Lock()
	wasRunning := o.state != StateIdle
	source := o.source
	cancel := o.cancel
	o.source = nil
	o.gate = nil
	o.cancel = nil
	o.done = nil
	o.state = StateIdle
	o.mu.Unlock()

	if source != nil {
		source.Replace(audio.Silence{})
	}
	if cancel != nil {
		cancel()
	}

	if silent, err := o.deps.Tracks.SilentTrack(); err == nil {
		if err := o.deps.Router.ReplaceOutboundSource(silent); err != nil {
			o.log.Warn().Err(err).Msg("silent track routing failed during reset")
		}
	}

	o.deps.Notifier.ControlsLocked(o.cfg.Channel, false)
	o.deps.Notifier.InboundAudio(o.cfg.Channel, 1, false)
	if wasRunning {
		o.metrics.ChannelsActive.Dec()
	}
	o.metrics.HardResets.Inc()
	o.log.Info().Msg("channel hard reset")
}

// handlePartial publishes partial previews. Most recent wins downstream.
func (o *Orchestrator) handlePartial(ctx context.Context) func(string) {
	return func(text string) {
		if text == "" {
			return
		}
		ev := models.TranscriptPartial{
			EventType: "call.transcript.partial",
			CallID:    o.cfg.CallID,
			Channel:   o.cfg.Channel,
			SegmentID: o.segments.Next(),
			Text:      text,
			Timestamp: time.Now().UnixMilli(),
		}
		if err := o.deps.Publisher.PublishPartial(ctx, o.cfg.CallID, ev); err != nil {
			o.log.Warn().Err(err).Msg("partial publish failed")
		}
	}
}

// handleFinal runs the per-segment pipeline: publish, translate, synthesize,
// play. Service-call failures are reported and the pipeline proceeds to the
// next segment; nothing here blocks the other channel.
func (o *Orchestrator) handleFinal(ctx context.Context) func(string) {
	return func(text string) {
		if text == "" {
			return
		}
		segmentID := o.segments.Next()

		ev := models.TranscriptFinal{
			EventType: "call.transcript.final",
			CallID:    o.cfg.CallID,
			Channel:   o.cfg.Channel,
			SegmentID: segmentID,
			Text:      text,
			Timestamp: time.Now().UnixMilli(),
		}
		if err := o.deps.Publisher.PublishFinal(ctx, o.cfg.CallID, ev); err != nil {
			o.log.Warn().Err(err).Msg("final publish failed")
		}

		started := time.Now()
		translated, err := o.deps.Translator.Translate(ctx, text, o.cfg.TranslateFrom, o.cfg.TranslateTo)
		if err != nil {
			o.metrics.TranslateErrors.WithLabelValues(string(o.cfg.Channel)).Inc()
			o.deps.Notifier.ReportError(o.cfg.Channel, fmt.Errorf("translate segment: %w", err))
			return
		}
		o.metrics.TranslateLatency.WithLabelValues(string(o.cfg.Channel)).Observe(time.Since(started).Seconds())

		if translated == "" {
			return
		}

		tev := models.TranslationResult{
			EventType:      "call.translation.result",
			CallID:         o.cfg.CallID,
			Channel:        o.cfg.Channel,
			SegmentID:      segmentID,
			SourceText:     text,
			TranslatedText: translated,
			SourceLanguage: o.cfg.TranslateFrom,
			TargetLanguage: o.cfg.TranslateTo,
			Timestamp:      time.Now().UnixMilli(),
		}
		if err := o.deps.Publisher.PublishTranslation(ctx, o.cfg.CallID, tev); err != nil {
			o.log.Warn().Err(err).Msg("translation publish failed")
		}

		started = time.Now()
		clip, err := o.deps.Synthesizer.Synthesize(ctx, translated,
			o.cfg.SynthesisLanguage, o.cfg.SynthesisEngine, o.cfg.SynthesisVoice)
		if err != nil {
			o.metrics.SynthesizeErrors.WithLabelValues(string(o.cfg.Channel)).Inc()
			o.deps.Notifier.ReportError(o.cfg.Channel, fmt.Errorf("synthesize segment: %w", err))
			return
		}
		o.metrics.SynthesizeLatency.WithLabelValues(string(o.cfg.Channel)).Observe(time.Since(started).Seconds())

		if err := o.deps.Sink.Play(ctx, clip); err != nil {
			o.deps.Notifier.ReportError(o.cfg.Channel, fmt.Errorf("playback: %w", err))
			return
		}
		if o.deps.Monitor != nil {
			if err := o.deps.Monitor.Play(ctx, clip); err != nil {
				o.log.Warn().Err(err).Msg("self-monitor playback failed")
			}
		}
	}
}
