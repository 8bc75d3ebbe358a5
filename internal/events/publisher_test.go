package events

import (
	"context"
	"testing"

	"voice-translation-bridge/internal/models"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writerPartial != nil || p.writerFinal != nil || p.writerTranslation != nil {
				t.Error("expected nil writers when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	cfg := &Config{
		Enabled:          false,
		Brokers:          []string{"localhost:9092"},
		TopicPartial:     "call.transcript.partial",
		TopicFinal:       "call.transcript.final",
		TopicTranslation: "call.translation.result",
		Principal:        "v2v-bridge",
	}

	p := New(cfg)

	if p.principal != "v2v-bridge" {
		t.Errorf("expected principal 'v2v-bridge', got %s", p.principal)
	}
	if p.topicPartial != "call.transcript.partial" {
		t.Errorf("unexpected partial topic %s", p.topicPartial)
	}
	if p.topicFinal != "call.transcript.final" {
		t.Errorf("unexpected final topic %s", p.topicFinal)
	}
	if p.topicTranslation != "call.translation.result" {
		t.Errorf("unexpected translation topic %s", p.topicTranslation)
	}
}

func TestPublisher_PublishDisabled(t *testing.T) {
	p := New(&Config{Enabled: false})

	partial := models.TranscriptPartial{
		EventType: "call.transcript.partial",
		CallID:    "call-1",
		Channel:   models.AgentChannel,
		Text:      "hello",
	}
	if err := p.PublishPartial(context.Background(), "call-1", partial); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}

	final := models.TranscriptFinal{
		EventType: "call.transcript.final",
		CallID:    "call-1",
		Channel:   models.AgentChannel,
		Text:      "hello.",
	}
	if err := p.PublishFinal(context.Background(), "call-1", final); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}

	translation := models.TranslationResult{
		EventType:      "call.translation.result",
		CallID:         "call-1",
		Channel:        models.CustomerChannel,
		SourceText:     "hello.",
		TranslatedText: "hola.",
		SourceLanguage: "en",
		TargetLanguage: "es",
	}
	if err := p.PublishTranslation(context.Background(), "call-1", translation); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_RejectsInvalidEvent(t *testing.T) {
	p := New(&Config{Enabled: false})

	if err := p.PublishPartial(context.Background(), "call-1", models.TranscriptPartial{}); err == nil {
		t.Error("expected validation error for empty event")
	}
	if err := p.PublishFinal(context.Background(), "call-1", struct{}{}); err == nil {
		t.Error("expected validation error for unknown payload type")
	}
}

func TestPublisher_Close(t *testing.T) {
	p := New(&Config{Enabled: false})
	if err := p.Close(); err != nil {
		t.Errorf("expected nil close error for disabled publisher, got %v", err)
	}
}
