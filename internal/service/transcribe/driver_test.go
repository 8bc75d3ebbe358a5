package transcribe

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"
	"testing"
	"time"

	"voice-translation-bridge/internal/audio"
	"voice-translation-bridge/internal/auth"
	"voice-translation-bridge/internal/models"
)

// fakeSession replays a scripted sequence of results and records the audio it
// was fed. With waitFinish set, the result stream only ends once Finish has
// been called, mirroring a transport that closes after the audio runs dry.
type fakeSession struct {
	mu         sync.Mutex
	results    []models.TranscriptResult
	err        error
	chunks     [][]byte
	closed     bool
	waitFinish bool
	finished   chan struct{}
}

func newFakeSession(waitFinish bool) *fakeSession {
	return &fakeSession{waitFinish: waitFinish, finished: make(chan struct{})}
}

func (s *fakeSession) SendAudio(_ context.Context, chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunk)
	return nil
}

func (s *fakeSession) Finish() error {
	if s.finished != nil {
		close(s.finished)
	}
	return nil
}

func (s *fakeSession) Results() iter.Seq2[models.TranscriptResult, error] {
	return func(yield func(models.TranscriptResult, error) bool) {
		for _, r := range s.results {
			if !yield(r, nil) {
				return
			}
		}
		if s.err != nil {
			yield(models.TranscriptResult{}, s.err)
			return
		}
		if s.waitFinish {
			<-s.finished
		}
	}
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeTransport struct {
	session *fakeSession
	openCfg SessionConfig
	openErr error
	opens   int
}

func (t *fakeTransport) OpenSession(_ context.Context, cfg SessionConfig) (Session, error) {
	t.opens++
	t.openCfg = cfg
	if t.openErr != nil {
		return nil, t.openErr
	}
	return t.session, nil
}

func staticCreds() *auth.CachingProvider {
	return auth.NewCachingProvider(func(context.Context) (auth.Credentials, error) {
		return auth.Credentials{
			AccessKeyID: "test",
			Expiry:      time.Now().Add(time.Hour),
		}, nil
	})
}

func silentSource() audio.Source {
	return audio.Silence{}
}

func newTestDriver(transport Transport) *Driver {
	return NewDriver(models.AgentChannel, staticCreds(), func(auth.Credentials) Transport {
		return transport
	})
}

func TestStart_Preconditions(t *testing.T) {
	transport := &fakeTransport{session: &fakeSession{}}
	noop := func(string) {}

	tests := []struct {
		name    string
		run     func(d *Driver) error
		wantErr error
	}{
		{
			name: "nil audio source",
			run: func(d *Driver) error {
				return d.Start(context.Background(), nil, 16000, "en-US", StabilityHigh, noop, noop)
			},
			wantErr: ErrNilAudioSource,
		},
		{
			name: "zero sample rate",
			run: func(d *Driver) error {
				return d.Start(context.Background(), silentSource(), 0, "en-US", StabilityHigh, noop, noop)
			},
			wantErr: ErrInvalidSampleRate,
		},
		{
			name: "negative sample rate",
			run: func(d *Driver) error {
				return d.Start(context.Background(), silentSource(), -8000, "en-US", StabilityHigh, noop, noop)
			},
			wantErr: ErrInvalidSampleRate,
		},
		{
			name: "missing language",
			run: func(d *Driver) error {
				return d.Start(context.Background(), silentSource(), 16000, "", StabilityHigh, noop, noop)
			},
			wantErr: ErrMissingLanguage,
		},
		{
			name: "missing stability mode",
			run: func(d *Driver) error {
				return d.Start(context.Background(), silentSource(), 16000, "en-US", "", noop, noop)
			},
			wantErr: ErrMissingStabilityMode,
		},
		{
			name: "nil final callback",
			run: func(d *Driver) error {
				return d.Start(context.Background(), silentSource(), 16000, "en-US", StabilityHigh, nil, noop)
			},
			wantErr: ErrNilFinalCallback,
		},
		{
			name: "nil partial callback",
			run: func(d *Driver) error {
				return d.Start(context.Background(), silentSource(), 16000, "en-US", StabilityHigh, noop, nil)
			},
			wantErr: ErrNilPartialCallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDriver(transport)
			if err := tt.run(d); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if transport.opens != 0 {
		t.Errorf("precondition failures must not open sessions, opened %d", transport.opens)
	}
}

func TestStart_FeedsStabilizerAndCallbacks(t *testing.T) {
	session := &fakeSession{
		results: []models.TranscriptResult{
			{IsPartial: true, Items: []models.TranscriptItem{
				{Content: "Hello", Kind: models.ItemWord, IsStable: true},
				{Content: ",", Kind: models.ItemPunctuation, IsStable: true},
				{Content: "world", Kind: models.ItemWord, IsStable: false},
			}},
			{IsPartial: false, Items: []models.TranscriptItem{
				{Content: "Hello", Kind: models.ItemWord},
				{Content: ",", Kind: models.ItemPunctuation},
				{Content: "world", Kind: models.ItemWord},
				{Content: ".", Kind: models.ItemPunctuation},
			}},
		},
	}
	transport := &fakeTransport{session: session}
	d := newTestDriver(transport)

	var partials, finals []string
	err := d.Start(context.Background(), silentSource(), 16000, "en-US", StabilityHigh,
		func(text string) { finals = append(finals, text) },
		func(text string) { partials = append(partials, text) },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(partials) != 1 || partials[0] != "Hello, world" {
		t.Errorf("unexpected partials: %v", partials)
	}
	// First the early-stabilized prefix, then only the remainder on close:
	// "Hello," must not be spoken twice.
	if len(finals) != 2 || finals[0] != "Hello," || finals[1] != "world." {
		t.Errorf("unexpected finals: %v", finals)
	}
	if !transport.openCfg.Stabilization {
		t.Error("expected stabilization enabled for high stability mode")
	}
}

func TestStart_StabilityNoneDisablesStabilization(t *testing.T) {
	session := &fakeSession{
		results: []models.TranscriptResult{
			{IsPartial: true, Items: []models.TranscriptItem{
				{Content: "Hi", Kind: models.ItemWord, IsStable: true},
				{Content: ".", Kind: models.ItemPunctuation, IsStable: true},
			}},
		},
	}
	transport := &fakeTransport{session: session}
	d := newTestDriver(transport)

	var finals []string
	err := d.Start(context.Background(), silentSource(), 16000, "en-US", StabilityNone,
		func(text string) { finals = append(finals, text) },
		func(string) {},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(finals) != 0 {
		t.Errorf("expected no finals while utterance is open, got %v", finals)
	}
	if transport.openCfg.Stabilization {
		t.Error("expected stabilization disabled for mode none")
	}
}

func TestStart_SessionErrorSurfaces(t *testing.T) {
	wantErr := errors.New("stream reset")
	transport := &fakeTransport{session: &fakeSession{err: wantErr}}
	d := newTestDriver(transport)

	err := d.Start(context.Background(), silentSource(), 16000, "en-US", StabilityHigh,
		func(string) {}, func(string) {})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected %v, got %v", wantErr, err)
	}
}

func TestStart_OpenSessionErrorSurfaces(t *testing.T) {
	wantErr := errors.New("connect refused")
	transport := &fakeTransport{openErr: wantErr}
	d := newTestDriver(transport)

	err := d.Start(context.Background(), silentSource(), 16000, "en-US", StabilityHigh,
		func(string) {}, func(string) {})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected %v, got %v", wantErr, err)
	}
}

func TestStart_PumpsEncodedAudio(t *testing.T) {
	session := newFakeSession(true)
	transport := &fakeTransport{session: session}
	d := newTestDriver(transport)

	src := audio.NewSwitchSource(&scriptedSource{frames: [][]float32{{0.5}, {-0.5}}})

	err := d.Start(context.Background(), src, 16000, "en-US", StabilityHigh,
		func(string) {}, func(string) {})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if len(session.chunks) != 2 {
		t.Fatalf("expected 2 encoded chunks, got %d", len(session.chunks))
	}
	if len(session.chunks[0]) != 2 {
		t.Errorf("expected 2-byte chunk for one sample, got %d bytes", len(session.chunks[0]))
	}
}

func TestClientReuse_WhileCredentialsValid(t *testing.T) {
	transport := &fakeTransport{session: &fakeSession{}}
	builds := 0
	d := NewDriver(models.CustomerChannel, staticCreds(), func(auth.Credentials) Transport {
		builds++
		return transport
	})

	for i := 0; i < 3; i++ {
		err := d.Start(context.Background(), silentSource(), 16000, "es-US", StabilityMedium,
			func(string) {}, func(string) {})
		if err != nil {
			t.Fatalf("session %d: unexpected error: %v", i, err)
		}
	}

	if builds != 1 {
		t.Errorf("expected transport built once while credentials valid, built %d times", builds)
	}
}

// scriptedSource replays frames then reports EOF.
type scriptedSource struct {
	mu     sync.Mutex
	frames [][]float32
	pos    int
}

func (s *scriptedSource) ReadFrame(context.Context) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	frame := s.frames[s.pos]
	s.pos++
	return frame, nil
}
