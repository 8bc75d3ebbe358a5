// Package callsession abstracts the call-control collaborator. The core only
// depends on the capability interfaces here: outbound track routing, playback
// of synthesized speech and call lifecycle events. The webrtc bridge in this
// package is one implementation.
package callsession

import "context"

// TrackKind identifies what is currently routed onto the outbound call track.
// Exactly one track is active at a time.
type TrackKind string

const (
	// TrackFile streams a pre-recorded audio file.
	TrackFile TrackKind = "file"
	// TrackMic streams the raw microphone.
	TrackMic TrackKind = "mic"
	// TrackSilent streams silence.
	TrackSilent TrackKind = "silent"
	// TrackSynthesized streams translated synthesized speech.
	TrackSynthesized TrackKind = "synthesized"
)

// TrackHandle is an opaque reference to routable outbound media. Handles are
// replaced, never mutated in place.
type TrackHandle interface {
	Kind() TrackKind
}

// TrackRouter is the track-replacement capability of the call session.
// Replacement is atomic from the call's perspective. The outbound slot is
// owned by whichever caller last performed a replacement; callers serialize
// replacements per channel.
type TrackRouter interface {
	// CurrentOutboundSource returns the handle currently routed, or nil.
	CurrentOutboundSource() TrackHandle

	// ReplaceOutboundSource atomically routes a different track.
	ReplaceOutboundSource(handle TrackHandle) error
}

// PlaybackSink accepts synthesized speech for a channel's listeners.
type PlaybackSink interface {
	// Play queues one synthesized clip for playback.
	Play(ctx context.Context, audio []byte) error
}

// MicFeed controls the raw microphone feed routed to the peer alongside the
// synthesized voice.
type MicFeed interface {
	StartMic() error
	StopMic() error
}

// Event is a call lifecycle notification.
type Event int

const (
	// EventConnecting fires while the call is being established.
	EventConnecting Event = iota
	// EventConnected fires once media is flowing.
	EventConnected
	// EventEnded fires when the call ends. Subscribers hard-reset.
	EventEnded
	// EventDestroyed fires when the call object is torn down.
	EventDestroyed
)

// String returns the string representation of the event.
func (e Event) String() string {
	switch e {
	case EventConnecting:
		return "connecting"
	case EventConnected:
		return "connected"
	case EventEnded:
		return "ended"
	case EventDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Lifecycle delivers call events to subscribers.
type Lifecycle interface {
	Subscribe(fn func(Event))
}
