package wstranscribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voice-translation-bridge/internal/auth"
	"voice-translation-bridge/internal/models"
	"voice-translation-bridge/internal/service/transcribe"
)

var upgrader = websocket.Upgrader{}

// fakeServer upgrades one connection, checks the start frame, echoes two
// result events and closes normally.
func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		var start startRequest
		if err := conn.ReadJSON(&start); err != nil {
			t.Errorf("read start frame: %v", err)
			return
		}
		if start.LanguageCode != "en-US" || start.MediaEncoding != "pcm" {
			t.Errorf("unexpected start frame: %+v", start)
		}
		if !start.Stabilization || start.StabilityMode != "high" {
			t.Errorf("expected stabilization high, got %+v", start)
		}

		// One binary audio frame, then the finish command.
		kind, audio, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("read audio frame: %v", err)
			return
		}
		if kind != websocket.BinaryMessage || len(audio) != 4 {
			t.Errorf("expected 4-byte binary frame, got kind=%d len=%d", kind, len(audio))
		}

		var finish finishRequest
		if err := conn.ReadJSON(&finish); err != nil {
			t.Errorf("read finish frame: %v", err)
			return
		}
		if finish.Command != "finish" {
			t.Errorf("expected finish command, got %q", finish.Command)
		}

		partial, _ := json.Marshal(resultEvent{
			IsPartial: true,
			Items: []struct {
				Content string `json:"content"`
				Kind    string `json:"kind"`
				Stable  bool   `json:"stable"`
				Index   int    `json:"index"`
			}{
				{Content: "Hello", Kind: "word", Stable: true, Index: 0},
			},
		})
		conn.WriteMessage(websocket.TextMessage, partial)

		final, _ := json.Marshal(resultEvent{
			IsPartial: false,
			Items: []struct {
				Content string `json:"content"`
				Kind    string `json:"kind"`
				Stable  bool   `json:"stable"`
				Index   int    `json:"index"`
			}{
				{Content: "Hello", Kind: "word", Stable: true, Index: 0},
				{Content: ".", Kind: "punctuation", Stable: true, Index: 1},
			},
		})
		conn.WriteMessage(websocket.TextMessage, final)

		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

		// Give the client a moment to drain before the server socket drops.
		time.Sleep(50 * time.Millisecond)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestOpenSession_EndToEnd(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	client := New(wsURL(srv), auth.Credentials{SessionToken: "token"})
	session, err := client.OpenSession(context.Background(), transcribe.SessionConfig{
		LanguageCode:  "en-US",
		SampleRate:    16000,
		Encoding:      "pcm",
		StabilityMode: "high",
		Stabilization: true,
	})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer session.Close()

	if err := session.SendAudio(context.Background(), []byte{0, 1, 2, 3}); err != nil {
		t.Fatalf("send audio: %v", err)
	}
	if err := session.Finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}

	var results []models.TranscriptResult
	for result, err := range session.Results() {
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		results = append(results, result)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].IsPartial || results[1].IsPartial {
		t.Errorf("expected partial then final, got %+v", results)
	}
	if results[1].Items[1].Kind != models.ItemPunctuation {
		t.Errorf("expected punctuation item, got %v", results[1].Items[1].Kind)
	}
	if results[0].Items[0].Content != "Hello" || !results[0].Items[0].IsStable {
		t.Errorf("unexpected first item: %+v", results[0].Items[0])
	}
}

func TestOpenSession_DialFailure(t *testing.T) {
	client := New("ws://127.0.0.1:1/nothing", auth.Credentials{})
	_, err := client.OpenSession(context.Background(), transcribe.SessionConfig{
		LanguageCode: "en-US",
		SampleRate:   16000,
		Encoding:     "pcm",
	})
	if err == nil {
		t.Fatal("expected dial error")
	}
}
