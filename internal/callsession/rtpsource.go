package callsession

import (
	"context"
	"io"
	"sync"

	"github.com/pion/rtp"

	"voice-translation-bridge/internal/audio"
)

// rtpBufferDepth bounds how many undelivered packets are held before the
// oldest is dropped. At 20ms packetization this is about 2s of audio.
const rtpBufferDepth = 100

// RTPSource adapts inbound mu-law RTP packets into the float32 frames the
// transcription pipeline reads. Close ends the stream with io.EOF.
type RTPSource struct {
	frames    chan []float32
	done      chan struct{}
	closeOnce sync.Once
}

// NewRTPSource creates a source ready to be registered with
// Bridge.SetOnRemoteAudio.
func NewRTPSource() *RTPSource {
	return &RTPSource{
		frames: make(chan []float32, rtpBufferDepth),
		done:   make(chan struct{}),
	}
}

// Push decodes one RTP packet and queues its samples. When the buffer is
// full the packet is dropped; transcription prefers fresh audio over
// backpressure on the media thread.
func (s *RTPSource) Push(pkt *rtp.Packet) {
	if len(pkt.Payload) == 0 {
		return
	}
	frame := audio.DecodeMuLaw(pkt.Payload)
	select {
	case s.frames <- frame:
	case <-s.done:
	default:
	}
}

// ReadFrame blocks for the next decoded frame.
func (s *RTPSource) ReadFrame(ctx context.Context) ([]float32, error) {
	select {
	case frame := <-s.frames:
		return frame, nil
	case <-s.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close ends the stream. Subsequent reads return io.EOF.
func (s *RTPSource) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
