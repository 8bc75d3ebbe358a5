// Package mocktranscribe simulates the streaming transcription transport for
// development without the real endpoint. It emits progressive partials with a
// realistic stability tail and exactly one utterance-close result per
// utterance.
package mocktranscribe

import (
	"context"
	"iter"
	"strings"
	"sync"

	"voice-translation-bridge/internal/models"
	"voice-translation-bridge/internal/service/transcribe"
)

// Utterance is one scripted utterance. Partials grow towards Final; the
// final item of every partial is marked unstable.
type Utterance struct {
	Partials []string
	Final    string
}

// DefaultUtterances are cycled through by sessions with no script.
var DefaultUtterances = []Utterance{
	{
		Partials: []string{"I want", "I want to", "I want to cancel my"},
		Final:    "I want to cancel my subscription.",
	},
	{
		Partials: []string{"Yes", "Yes please,"},
		Final:    "Yes please, go ahead.",
	},
	{
		Partials: []string{"Can you", "Can you help me"},
		Final:    "Can you help me with my account?",
	},
	{
		Partials: []string{"Thank you"},
		Final:    "Thank you very much.",
	},
}

// Transport implements transcribe.Transport with simulated sessions.
type Transport struct {
	mu         sync.Mutex
	utterances []Utterance
	next       int
}

// New creates a Transport cycling through the default utterances.
func New() *Transport {
	return &Transport{utterances: DefaultUtterances}
}

// NewScripted creates a Transport with a fixed utterance script.
func NewScripted(utterances []Utterance) *Transport {
	return &Transport{utterances: utterances}
}

// OpenSession starts one simulated session over the next utterance.
func (t *Transport) OpenSession(_ context.Context, _ transcribe.SessionConfig) (transcribe.Session, error) {
	t.mu.Lock()
	utterance := t.utterances[t.next%len(t.utterances)]
	t.next++
	t.mu.Unlock()

	return &session{
		utterance: utterance,
		results:   make(chan models.TranscriptResult, len(utterance.Partials)+1),
		done:      make(chan struct{}),
	}, nil
}

// session drips one result per received audio chunk, paced by the caller,
// then closes its stream after the utterance final.
type session struct {
	mu        sync.Mutex
	utterance Utterance
	sent      int
	finished  bool
	closeOnce sync.Once

	results chan models.TranscriptResult
	done    chan struct{}
}

// SendAudio consumes one chunk and releases the next scripted result.
func (s *session) SendAudio(_ context.Context, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return nil
	}

	if s.sent < len(s.utterance.Partials) {
		s.results <- partialResult(s.utterance.Partials[s.sent])
		s.sent++
		return nil
	}

	s.results <- finalResult(s.utterance.Final)
	s.finished = true
	close(s.results)
	return nil
}

// Finish emits the utterance final if audio ran out before it was reached.
func (s *session) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.finished {
		s.results <- finalResult(s.utterance.Final)
		s.finished = true
		close(s.results)
	}
	return nil
}

func (s *session) Results() iter.Seq2[models.TranscriptResult, error] {
	return func(yield func(models.TranscriptResult, error) bool) {
		for {
			select {
			case result, ok := <-s.results:
				if !ok {
					return
				}
				if !yield(result, nil) {
					return
				}
			case <-s.done:
				return
			}
		}
	}
}

func (s *session) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// partialResult tokenizes text into items, all stable except the last.
func partialResult(text string) models.TranscriptResult {
	items := tokenize(text)
	if len(items) > 0 {
		items[len(items)-1].IsStable = false
	}
	return models.TranscriptResult{Items: items, IsPartial: true}
}

func finalResult(text string) models.TranscriptResult {
	return models.TranscriptResult{Items: tokenize(text), IsPartial: false}
}

func tokenize(text string) []models.TranscriptItem {
	var items []models.TranscriptItem
	for _, word := range strings.Fields(text) {
		trailing := ""
		switch {
		case strings.HasSuffix(word, ","), strings.HasSuffix(word, "."),
			strings.HasSuffix(word, "!"), strings.HasSuffix(word, "?"):
			trailing = word[len(word)-1:]
			word = word[:len(word)-1]
		}
		if word != "" {
			items = append(items, models.TranscriptItem{
				Content:       word,
				Kind:          models.ItemWord,
				IsStable:      true,
				SequenceIndex: len(items),
			})
		}
		if trailing != "" {
			items = append(items, models.TranscriptItem{
				Content:       trailing,
				Kind:          models.ItemPunctuation,
				IsStable:      true,
				SequenceIndex: len(items),
			})
		}
	}
	return items
}
