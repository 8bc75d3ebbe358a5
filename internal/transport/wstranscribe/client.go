// Package wstranscribe implements the transcription transport over a
// websocket stream: a JSON start frame opens the session, binary frames carry
// encoded audio, and JSON result events carry the transport's current
// hypothesis with item-level stability.
package wstranscribe

import (
	"context"
	"iter"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"voice-translation-bridge/internal/auth"
	"voice-translation-bridge/internal/models"
	"voice-translation-bridge/internal/observability/logging"
	"voice-translation-bridge/internal/service/transcribe"
)

// Client opens transcription sessions against one websocket endpoint.
type Client struct {
	endpoint string
	creds    auth.Credentials
	dialer   *websocket.Dialer
}

// New creates a transport client for the given endpoint.
func New(endpoint string, creds auth.Credentials) *Client {
	return &Client{
		endpoint: endpoint,
		creds:    creds,
		dialer:   websocket.DefaultDialer,
	}
}

// startRequest is the first frame of a session.
type startRequest struct {
	RequestID     string `json:"requestId"`
	LanguageCode  string `json:"languageCode"`
	MediaEncoding string `json:"mediaEncoding"`
	SampleRate    int    `json:"sampleRateHertz"`
	Stabilization bool   `json:"enablePartialResultsStabilization"`
	StabilityMode string `json:"partialResultsStability,omitempty"`
}

// finishRequest tells the server no more audio follows.
type finishRequest struct {
	RequestID string `json:"requestId"`
	Command   string `json:"command"`
}

// resultEvent is one transcript event from the server.
type resultEvent struct {
	IsPartial bool `json:"isPartial"`
	Items     []struct {
		Content string `json:"content"`
		Kind    string `json:"kind"`
		Stable  bool   `json:"stable"`
		Index   int    `json:"index"`
	} `json:"items"`
}

// OpenSession dials the endpoint and sends the start frame.
func (c *Client) OpenSession(ctx context.Context, cfg transcribe.SessionConfig) (transcribe.Session, error) {
	header := http.Header{}
	if c.creds.SessionToken != "" {
		header.Set("Authorization", "Bearer "+c.creds.SessionToken)
	}

	conn, _, err := c.dialer.DialContext(ctx, c.endpoint, header)
	if err != nil {
		return nil, err
	}

	session := &session{
		conn:      conn,
		reqID:     uuid.NewString(),
		recvChan:  make(chan models.TranscriptResult, 100),
		errChan:   make(chan error, 1),
		closeChan: make(chan struct{}),
		log:       logging.WithComponent("wstranscribe"),
	}

	start := startRequest{
		RequestID:     session.reqID,
		LanguageCode:  cfg.LanguageCode,
		MediaEncoding: cfg.Encoding,
		SampleRate:    cfg.SampleRate,
		Stabilization: cfg.Stabilization,
	}
	if cfg.Stabilization {
		start.StabilityMode = cfg.StabilityMode
	}

	if err := conn.WriteJSON(start); err != nil {
		conn.Close()
		return nil, err
	}

	go session.receiveLoop()

	return session, nil
}

type session struct {
	conn      *websocket.Conn
	reqID     string
	recvChan  chan models.TranscriptResult
	errChan   chan error
	closeChan chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex
	log       zerolog.Logger
}

// SendAudio pushes one encoded chunk as a binary frame.
func (s *session) SendAudio(_ context.Context, chunk []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, chunk)
}

// Finish sends the finish command; the server closes the stream after
// flushing remaining results.
func (s *session) Finish() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(finishRequest{RequestID: s.reqID, Command: "finish"})
}

// Results yields transcript results until the stream ends or the session is
// closed.
func (s *session) Results() iter.Seq2[models.TranscriptResult, error] {
	return func(yield func(models.TranscriptResult, error) bool) {
		for {
			select {
			case result, ok := <-s.recvChan:
				if !ok {
					return
				}
				if !yield(result, nil) {
					return
				}
			case err := <-s.errChan:
				yield(models.TranscriptResult{}, err)
				return
			case <-s.closeChan:
				return
			}
		}
	}
}

// Close releases the session. Idempotent.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closeChan)
		s.conn.Close()
	})
	return nil
}

func (s *session) receiveLoop() {
	defer close(s.recvChan)

	for {
		select {
		case <-s.closeChan:
			return
		default:
		}

		var event resultEvent
		if err := s.conn.ReadJSON(&event); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("requestId", s.reqID).Msg("result stream closed by server")
			} else {
				select {
				case s.errChan <- err:
				default:
				}
			}
			return
		}

		result := models.TranscriptResult{IsPartial: event.IsPartial}
		for _, item := range event.Items {
			kind := models.ItemWord
			if item.Kind == "punctuation" {
				kind = models.ItemPunctuation
			}
			result.Items = append(result.Items, models.TranscriptItem{
				Content:       item.Content,
				Kind:          kind,
				IsStable:      item.Stable,
				SequenceIndex: item.Index,
			})
		}

		select {
		case s.recvChan <- result:
		case <-s.closeChan:
			return
		}
	}
}
