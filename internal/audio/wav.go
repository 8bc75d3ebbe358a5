package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"
)

// wavHeaderSize is the canonical PCM WAV header length.
const wavHeaderSize = 44

// frameInterval is how much audio one ReadFrame returns and how long it
// takes, so file playback paces like a live capture.
const frameInterval = 100 * time.Millisecond

// FileSource reads a PCM WAV file as paced float32 frames. 16-bit mono only.
type FileSource struct {
	f          *os.File
	sampleRate int
	frameBytes int
}

// NewFileSource opens a WAV file and validates its format.
func NewFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}

	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		f.Close()
		return nil, fmt.Errorf("read WAV header: %w", err)
	}

	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		f.Close()
		return nil, fmt.Errorf("%s is not a WAV file", path)
	}

	format := binary.LittleEndian.Uint16(header[20:22])
	channels := binary.LittleEndian.Uint16(header[22:24])
	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])

	if format != 1 {
		f.Close()
		return nil, fmt.Errorf("unsupported WAV format %d, want PCM", format)
	}
	if channels != 1 || bitsPerSample != 16 {
		f.Close()
		return nil, fmt.Errorf("unsupported WAV layout: %d channels, %d bits", channels, bitsPerSample)
	}

	samplesPerFrame := int(sampleRate) * int(frameInterval.Milliseconds()) / 1000
	return &FileSource{
		f:          f,
		sampleRate: int(sampleRate),
		frameBytes: samplesPerFrame * 2,
	}, nil
}

// SampleRate returns the file's sample rate in Hz.
func (s *FileSource) SampleRate() int { return s.sampleRate }

// ReadFrame returns the next frame, pacing reads to real time. io.EOF ends
// the stream.
func (s *FileSource) ReadFrame(ctx context.Context) ([]float32, error) {
	buf := make([]byte, s.frameBytes)
	n, err := io.ReadFull(s.f, buf)
	if err == io.EOF || (err == io.ErrUnexpectedEOF && n == 0) {
		return nil, io.EOF
	}
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	samples := make([]float32, n/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(buf[i*2:]))
		samples[i] = float32(v) / 32768.0
	}

	select {
	case <-time.After(frameInterval):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return samples, nil
}

// Close releases the file.
func (s *FileSource) Close() error {
	return s.f.Close()
}
