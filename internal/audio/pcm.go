// Package audio converts platform-native floating point audio frames into the
// fixed-point wire format expected by the transcription transport.
package audio

import (
	"context"
	"encoding/binary"
	"io"
	"iter"
	"sync"
	"sync/atomic"
)

// Source delivers raw audio frames with samples in [-1, 1].
// ReadFrame returns io.EOF when the source is exhausted or released.
type Source interface {
	ReadFrame(ctx context.Context) ([]float32, error)
}

// EncodeFrame quantizes one frame to 16-bit little-endian PCM. Out-of-range
// samples are clamped to the representable boundary before quantization, so
// +1.0 maps to 32767 and -1.0 to -32768 without wrapping.
func EncodeFrame(frame []float32) []byte {
	out := make([]byte, len(frame)*2)
	for i, s := range frame {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		var v int16
		if s < 0 {
			v = int16(s * 0x8000)
		} else {
			v = int16(s * 0x7fff)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// Encoder produces the encoded chunk sequence for one transport session.
type Encoder struct {
	sampleRate int
	dropped    atomic.Int64
}

// NewEncoder creates an encoder for the given sample rate.
func NewEncoder(sampleRate int) *Encoder {
	return &Encoder{sampleRate: sampleRate}
}

// Dropped returns the number of malformed frames discarded so far.
func (e *Encoder) Dropped() int64 {
	return e.dropped.Load()
}

// Stream lazily encodes frames from src, one chunk per frame. Frames longer
// than the sample rate are malformed and dropped rather than encoded. Each
// call produces a fresh sequence, so a new transport session can restart the
// encoding from the same source.
func (e *Encoder) Stream(ctx context.Context, src Source) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			frame, err := src.ReadFrame(ctx)
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if len(frame) > e.sampleRate {
				e.dropped.Add(1)
				continue
			}
			if !yield(EncodeFrame(frame), nil) {
				return
			}
		}
	}
}

// SwitchSource is a Source whose underlying source can be replaced while a
// session is reading from it. Swapping in Silence makes the transport's event
// stream end naturally, which is how a channel winds down transcription.
type SwitchSource struct {
	mu  sync.RWMutex
	src Source
}

// NewSwitchSource wraps src in a replaceable source.
func NewSwitchSource(src Source) *SwitchSource {
	return &SwitchSource{src: src}
}

// Replace swaps the underlying source.
func (s *SwitchSource) Replace(src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src = src
}

// ReadFrame reads from whichever source is currently installed.
func (s *SwitchSource) ReadFrame(ctx context.Context) ([]float32, error) {
	s.mu.RLock()
	src := s.src
	s.mu.RUnlock()
	if src == nil {
		return nil, io.EOF
	}
	return src.ReadFrame(ctx)
}

// Gate passes frames through, replacing samples with silence while disabled.
// Pacing still comes from the wrapped source, so a muted channel keeps its
// transcription session alive without feeding it speech.
type Gate struct {
	src     Source
	enabled atomic.Bool
}

// NewGate wraps src in an enabled gate.
func NewGate(src Source) *Gate {
	g := &Gate{src: src}
	g.enabled.Store(true)
	return g
}

// SetEnabled opens or mutes the gate.
func (g *Gate) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

// Enabled reports whether audio is passing through.
func (g *Gate) Enabled() bool {
	return g.enabled.Load()
}

// ReadFrame reads the next frame, silenced while the gate is muted.
func (g *Gate) ReadFrame(ctx context.Context) ([]float32, error) {
	frame, err := g.src.ReadFrame(ctx)
	if err != nil {
		return nil, err
	}
	if !g.enabled.Load() {
		frame = make([]float32, len(frame))
	}
	return frame, nil
}

// Silence is a Source that immediately reports end of stream.
type Silence struct{}

// ReadFrame always returns io.EOF.
func (Silence) ReadFrame(context.Context) ([]float32, error) {
	return nil, io.EOF
}
