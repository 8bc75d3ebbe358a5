// Package app wires the call bridge, channel orchestrators and their
// collaborators into one process-wide container.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/rs/zerolog"

	"voice-translation-bridge/internal/auth"
	"voice-translation-bridge/internal/callsession"
	"voice-translation-bridge/internal/config"
	"voice-translation-bridge/internal/events"
	"voice-translation-bridge/internal/models"
	"voice-translation-bridge/internal/observability/logging"
	"voice-translation-bridge/internal/service/channel"
	"voice-translation-bridge/internal/service/synthesize"
	"voice-translation-bridge/internal/service/transcribe"
	"voice-translation-bridge/internal/service/translate"
	"voice-translation-bridge/internal/transport/mocktranscribe"
	"voice-translation-bridge/internal/transport/wstranscribe"
)

// ErrNoActiveCall is returned for channel operations outside a call.
var ErrNoActiveCall = errors.New("no active call")

// ErrCallInProgress is returned when a call is begun while one is active.
var ErrCallInProgress = errors.New("a call is already in progress")

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Publisher *events.Publisher
	Bridge    *callsession.Bridge

	creds       auth.Provider
	translator  translate.Translator
	synthesizer synthesize.Synthesizer

	mu             sync.Mutex
	callID         string
	orchestrators  map[models.Channel]*channel.Orchestrator
	agentSource    *callsession.RTPSource
	customerSource *callsession.RTPSource
}

// New constructs an Application from the provided configuration. The webrtc
// bridge and Kafka publisher are created eagerly; per-call state is created
// by BeginCall.
func New(cfg *config.Config) (*Application, error) {
	logging.Init(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		TimeFormat: time.RFC3339,
	})

	bridge, err := callsession.NewBridge()
	if err != nil {
		return nil, fmt.Errorf("create call bridge: %w", err)
	}

	a := &Application{
		Logger: logging.WithComponent("application"),
		Cfg:    cfg,
		Bridge: bridge,
		Publisher: events.New(&events.Config{
			Enabled:          cfg.Kafka.Enabled,
			Brokers:          cfg.Kafka.Brokers,
			TopicPartial:     cfg.Kafka.TopicPartial,
			TopicFinal:       cfg.Kafka.TopicFinal,
			TopicTranslation: cfg.Kafka.TopicTranslation,
			Principal:        cfg.Kafka.Principal,
		}),
		creds:       newCredentialsProvider(cfg),
		translator:  translate.NewClient(cfg.Translate.Endpoint, cfg.Translate.AuthToken),
		synthesizer: synthesize.NewClient(cfg.Synthesize.Endpoint, cfg.Synthesize.AuthToken),
	}

	// One subscription for the life of the bridge; per-call orchestrators
	// come and go underneath it.
	bridge.Subscribe(a.dispatchCallEvent)

	a.Logger.Info().Msg("voice translation bridge application created")
	return a, nil
}

func (a *Application) dispatchCallEvent(ev callsession.Event) {
	a.mu.Lock()
	orchestrators := make([]*channel.Orchestrator, 0, len(a.orchestrators))
	for _, o := range a.orchestrators {
		orchestrators = append(orchestrators, o)
	}
	a.mu.Unlock()

	for _, o := range orchestrators {
		o.HandleCallEvent(ev)
	}
}

// Start performs startup work before serving traffic.
func (a *Application) Start() error {
	a.StartupTime = time.Now().UTC()
	a.Logger.Info().Time("startupTime", a.StartupTime).Msg("application starting")
	return nil
}

// BeginCall creates the per-call channel orchestrators and subscribes them to
// the call lifecycle. One call at a time.
func (a *Application) BeginCall(callID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.callID != "" {
		return ErrCallInProgress
	}

	agentSource := callsession.NewRTPSource()
	customerSource := callsession.NewRTPSource()
	a.Bridge.SetOnRemoteAudio(customerSource.Push)

	agent := channel.New(a.channelConfig(models.AgentChannel, callID), channel.Deps{
		Driver:      a.newDriver(models.AgentChannel),
		Router:      a.Bridge,
		Tracks:      a.Bridge,
		Sink:        a.Bridge,
		MicFeed:     a.Bridge,
		Translator:  a.translator,
		Synthesizer: a.synthesizer,
		Publisher:   a.Publisher,
		Notifier:    &logNotifier{log: logging.WithComponent("notifier")},
	})
	customer := channel.New(a.channelConfig(models.CustomerChannel, callID), channel.Deps{
		Driver:      a.newDriver(models.CustomerChannel),
		Router:      a.Bridge,
		Tracks:      a.Bridge,
		Sink:        a.Bridge,
		Translator:  a.translator,
		Synthesizer: a.synthesizer,
		Publisher:   a.Publisher,
		Notifier:    &logNotifier{log: logging.WithComponent("notifier")},
	})

	a.callID = callID
	a.agentSource = agentSource
	a.customerSource = customerSource
	a.orchestrators = map[models.Channel]*channel.Orchestrator{
		models.AgentChannel:    agent,
		models.CustomerChannel: customer,
	}

	a.Logger.Info().Str("callId", callID).Msg("call began")
	return nil
}

// EndCall stops both channels and discards per-call state.
func (a *Application) EndCall() error {
	a.mu.Lock()
	orchestrators := a.orchestrators
	agentSource := a.agentSource
	customerSource := a.customerSource
	callID := a.callID
	a.callID = ""
	a.orchestrators = nil
	a.agentSource = nil
	a.customerSource = nil
	a.mu.Unlock()

	if callID == "" {
		return ErrNoActiveCall
	}

	for _, o := range orchestrators {
		o.HandleCallEvent(callsession.EventEnded)
	}
	a.Bridge.SetOnRemoteAudio(nil)
	if agentSource != nil {
		agentSource.Close()
	}
	if customerSource != nil {
		customerSource.Close()
	}

	a.Logger.Info().Str("callId", callID).Msg("call ended")
	return nil
}

// StartChannel brings one channel from Idle to Active.
func (a *Application) StartChannel(ctx context.Context, ch models.Channel) error {
	a.mu.Lock()
	o := a.orchestrators[ch]
	var source *callsession.RTPSource
	if ch == models.AgentChannel {
		source = a.agentSource
	} else {
		source = a.customerSource
	}
	a.mu.Unlock()

	if o == nil {
		return ErrNoActiveCall
	}
	return o.Start(ctx, source)
}

// StopChannel winds one channel down to Idle.
func (a *Application) StopChannel(ch models.Channel) error {
	a.mu.Lock()
	o := a.orchestrators[ch]
	a.mu.Unlock()

	if o == nil {
		return ErrNoActiveCall
	}
	return o.Stop()
}

// ToggleMute flips the agent microphone gate.
func (a *Application) ToggleMute(ch models.Channel) error {
	a.mu.Lock()
	o := a.orchestrators[ch]
	a.mu.Unlock()

	if o == nil {
		return ErrNoActiveCall
	}
	return o.ToggleMute()
}

// ChannelState reports a channel's lifecycle state.
func (a *Application) ChannelState(ch models.Channel) (channel.State, error) {
	a.mu.Lock()
	o := a.orchestrators[ch]
	a.mu.Unlock()

	if o == nil {
		return channel.StateIdle, ErrNoActiveCall
	}
	return o.State(), nil
}

// CallID returns the active call id, or empty.
func (a *Application) CallID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.callID
}

// MicTest loops the agent microphone back to the peer for the given
// duration so the agent can verify their audio path. It refuses to run
// during an active call.
func (a *Application) MicTest(ctx context.Context, d time.Duration) error {
	a.mu.Lock()
	active := a.callID != ""
	a.mu.Unlock()
	if active {
		return ErrCallInProgress
	}
	return a.Bridge.TestMic(ctx, d)
}

// FeedAgentAudio routes one agent microphone packet into transcription and,
// when the raw feed is enabled, on to the peer.
func (a *Application) FeedAgentAudio(pkt *rtp.Packet) {
	a.mu.Lock()
	source := a.agentSource
	a.mu.Unlock()

	if source != nil {
		source.Push(pkt)
	}
	if err := a.Bridge.WriteMicRTP(pkt); err != nil {
		a.Logger.Warn().Err(err).Msg("mic forward failed")
	}
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	if a.CallID() != "" {
		_ = a.EndCall()
	}
	if err := a.Bridge.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("bridge close failed")
	}
	a.Publisher.Close()
	a.Logger.Info().Msg("application shut down")
}

// newCredentialsProvider wires the identity endpoint, or hands the mock
// provider static long-lived credentials.
func newCredentialsProvider(cfg *config.Config) auth.Provider {
	if cfg.Transcribe.Provider == "mock" {
		return auth.NewCachingProvider(func(context.Context) (auth.Credentials, error) {
			return auth.Credentials{
				AccessKeyID: "mock",
				Expiry:      time.Now().Add(24 * time.Hour),
			}, nil
		})
	}
	return auth.NewCachingProvider(auth.NewHTTPFetcher(cfg.Transcribe.CredentialsEndpoint))
}

func (a *Application) newDriver(ch models.Channel) *transcribe.Driver {
	if a.Cfg.Transcribe.Provider == "mock" {
		mock := mocktranscribe.New()
		return transcribe.NewDriver(ch, a.creds, func(auth.Credentials) transcribe.Transport {
			return mock
		})
	}
	endpoint := a.Cfg.Transcribe.Endpoint
	return transcribe.NewDriver(ch, a.creds, func(creds auth.Credentials) transcribe.Transport {
		return wstranscribe.New(endpoint, creds)
	})
}

func (a *Application) channelConfig(ch models.Channel, callID string) channel.Config {
	var cc config.ChannelConfig
	if ch == models.AgentChannel {
		cc = a.Cfg.Agent
	} else {
		cc = a.Cfg.Customer
	}
	return channel.Config{
		Channel:           ch,
		CallID:            callID,
		SampleRate:        a.Cfg.Transcribe.SampleRate,
		SourceLanguage:    cc.SourceLanguage,
		StabilityMode:     cc.StabilityMode,
		TranslateFrom:     cc.SourceLanguage,
		TranslateTo:       cc.TargetLanguage,
		SynthesisLanguage: cc.SynthesisLanguage,
		SynthesisEngine:   cc.SynthesisEngine,
		SynthesisVoice:    cc.SynthesisVoice,
		StreamMicToPeer:   ch == models.AgentChannel,
	}
}

// logNotifier reports presentation side effects to the log. A UI collaborator
// replaces it when one is attached.
type logNotifier struct {
	log zerolog.Logger
}

func (n *logNotifier) ControlsLocked(ch models.Channel, locked bool) {
	n.log.Info().Str("channel", string(ch)).Bool("locked", locked).Msg("controls")
}

func (n *logNotifier) InboundAudio(ch models.Channel, volume float64, muted bool) {
	n.log.Info().Str("channel", string(ch)).Float64("volume", volume).Bool("muted", muted).Msg("inbound audio policy")
}

func (n *logNotifier) ReportError(ch models.Channel, err error) {
	n.log.Error().Str("channel", string(ch)).Err(err).Msg("channel error")
}
