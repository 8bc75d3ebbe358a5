package callsession

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/rs/zerolog"

	"voice-translation-bridge/internal/observability/logging"
)

// sampleDuration is the packetization interval for synthesized PCM playback.
const sampleDuration = 20 * time.Millisecond

// localTrack wraps a pion track with its kind tag.
type localTrack struct {
	kind  TrackKind
	track webrtc.TrackLocal
}

func (t *localTrack) Kind() TrackKind { return t.kind }

// Bridge implements TrackRouter, PlaybackSink, MicFeed and Lifecycle on top
// of a webrtc peer connection to the softphone.
type Bridge struct {
	mu sync.RWMutex

	pc     *webrtc.PeerConnection
	sender *webrtc.RTPSender

	current     *localTrack
	synthesized *webrtc.TrackLocalStaticSample
	micTrack    *webrtc.TrackLocalStaticRTP
	micEnabled  bool

	remoteTrack   *webrtc.TrackRemote
	onRemoteAudio func(pkt *rtp.Packet)

	subscribers []func(Event)

	log zerolog.Logger
}

// NewBridge creates a bridge and its initial silent outbound track.
func NewBridge() (*Bridge, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	b := &Bridge{
		pc:  pc,
		log: logging.WithComponent("callsession"),
	}

	silent, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU},
		"audio", "v2v-outbound",
	)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("create outbound track: %w", err)
	}

	sender, err := pc.AddTrack(silent)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("add outbound track: %w", err)
	}
	b.sender = sender
	b.current = &localTrack{kind: TrackSilent, track: silent}

	synthesized, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU},
		"audio", "v2v-synthesized",
	)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("create synthesized track: %w", err)
	}
	b.synthesized = synthesized

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		b.log.Info().
			Str("id", track.ID()).
			Str("codec", track.Codec().MimeType).
			Msg("remote track attached")
		b.mu.Lock()
		b.remoteTrack = track
		b.mu.Unlock()
		go b.readRemoteTrack(track)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		b.log.Info().Str("state", state.String()).Msg("connection state changed")
		switch state {
		case webrtc.PeerConnectionStateConnecting:
			b.fire(EventConnecting)
		case webrtc.PeerConnectionStateConnected:
			b.fire(EventConnected)
		case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed:
			b.fire(EventEnded)
		case webrtc.PeerConnectionStateClosed:
			b.fire(EventDestroyed)
		}
	})

	return b, nil
}

// SynthesizedTrack returns the handle for the synthesized-speech track, for
// routing onto the outbound slot.
func (b *Bridge) SynthesizedTrack() TrackHandle {
	return &localTrack{kind: TrackSynthesized, track: b.synthesized}
}

// SilentTrack returns a fresh silent track handle.
func (b *Bridge) SilentTrack() (TrackHandle, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU},
		"audio", "v2v-silent",
	)
	if err != nil {
		return nil, fmt.Errorf("create silent track: %w", err)
	}
	return &localTrack{kind: TrackSilent, track: track}, nil
}

// MicTrack returns a handle streaming raw microphone RTP.
func (b *Bridge) MicTrack() (TrackHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.micTrack == nil {
		track, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU},
			"audio", "v2v-mic",
		)
		if err != nil {
			return nil, fmt.Errorf("create mic track: %w", err)
		}
		b.micTrack = track
	}
	return &localTrack{kind: TrackMic, track: b.micTrack}, nil
}

// CurrentOutboundSource returns the handle currently routed to the call.
func (b *Bridge) CurrentOutboundSource() TrackHandle {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.current == nil {
		return nil
	}
	return b.current
}

// ReplaceOutboundSource atomically swaps the outbound track.
func (b *Bridge) ReplaceOutboundSource(handle TrackHandle) error {
	local, ok := handle.(*localTrack)
	if !ok {
		return fmt.Errorf("unsupported track handle %T", handle)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.sender.ReplaceTrack(local.track); err != nil {
		return fmt.Errorf("replace track: %w", err)
	}
	b.current = local

	b.log.Info().Str("kind", string(local.kind)).Msg("outbound track replaced")
	return nil
}

// Play writes one synthesized clip onto the synthesized track.
func (b *Bridge) Play(ctx context.Context, audio []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.synthesized.WriteSample(media.Sample{
		Data:     audio,
		Duration: sampleDuration,
	})
}

// StartMic enables the raw microphone feed to the peer.
func (b *Bridge) StartMic() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.micEnabled = true
	return nil
}

// StopMic disables the raw microphone feed.
func (b *Bridge) StopMic() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.micEnabled = false
	return nil
}

// MicEnabled reports whether the raw microphone feed is flowing.
func (b *Bridge) MicEnabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.micEnabled
}

// WriteMicRTP forwards one microphone RTP packet when the feed is enabled.
func (b *Bridge) WriteMicRTP(pkt *rtp.Packet) error {
	b.mu.RLock()
	track := b.micTrack
	enabled := b.micEnabled
	b.mu.RUnlock()

	if track == nil || !enabled {
		return nil
	}
	return track.WriteRTP(pkt)
}

// TestMic routes the raw microphone track to the peer for the given
// duration, then restores the previously routed track. It lets an agent
// hear their own feed before a call goes live.
func (b *Bridge) TestMic(ctx context.Context, d time.Duration) error {
	previous := b.CurrentOutboundSource()

	mic, err := b.MicTrack()
	if err != nil {
		return err
	}
	if err := b.ReplaceOutboundSource(mic); err != nil {
		return err
	}
	if err := b.StartMic(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-time.After(d):
	}

	if err := b.StopMic(); err != nil {
		return err
	}
	if previous == nil {
		var restoreErr error
		previous, restoreErr = b.SilentTrack()
		if restoreErr != nil {
			return restoreErr
		}
	}
	return b.ReplaceOutboundSource(previous)
}

// SetOnRemoteAudio registers the consumer of inbound RTP from the peer.
func (b *Bridge) SetOnRemoteAudio(fn func(pkt *rtp.Packet)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onRemoteAudio = fn
}

// Subscribe registers a lifecycle event subscriber.
func (b *Bridge) Subscribe(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, fn)
}

// Close tears down the peer connection.
func (b *Bridge) Close() error {
	return b.pc.Close()
}

func (b *Bridge) fire(ev Event) {
	b.mu.RLock()
	subs := make([]func(Event), len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}

func (b *Bridge) readRemoteTrack(track *webrtc.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			b.log.Debug().Err(err).Msg("remote track read ended")
			return
		}
		b.mu.RLock()
		fn := b.onRemoteAudio
		b.mu.RUnlock()
		if fn != nil {
			fn(pkt)
		}
	}
}
