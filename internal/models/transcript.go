// Package models defines the data structures shared across the voice
// translation pipeline: transcript items and results as delivered by the
// transcription transport, the segments emitted by the stabilizer, and the
// event payloads published downstream.
package models

// ItemKind classifies a transcript item as spoken word or punctuation.
type ItemKind int

const (
	// ItemWord is a pronounced token.
	ItemWord ItemKind = iota
	// ItemPunctuation is a punctuation mark inserted by the transport.
	ItemPunctuation
)

// String returns the string representation of the kind.
func (k ItemKind) String() string {
	switch k {
	case ItemWord:
		return "word"
	case ItemPunctuation:
		return "punctuation"
	default:
		return "unknown"
	}
}

// TranscriptItem is one token of a transcription hypothesis. Items are
// immutable and ordered by SequenceIndex within a result.
type TranscriptItem struct {
	Content       string
	Kind          ItemKind
	IsStable      bool
	SequenceIndex int
}

// TranscriptResult is the transport's current best hypothesis for the
// in-flight utterance. Results are cumulative: a later result supersedes an
// earlier one until a non-partial result closes the utterance.
type TranscriptResult struct {
	Items     []TranscriptItem
	IsPartial bool
}

// Empty reports whether the result carries no items.
func (r TranscriptResult) Empty() bool {
	return len(r.Items) == 0
}

// SegmentKind distinguishes provisional previews from committed text.
type SegmentKind int

const (
	// SegmentPartial is a preview that may be retracted or replaced by the
	// next partial. Most recent wins for display.
	SegmentPartial SegmentKind = iota
	// SegmentFinal is committed text, immutable and never re-emitted.
	SegmentFinal
)

// Segment is a unit of stabilized text emitted by the core.
type Segment struct {
	Kind SegmentKind
	Text string
}

// Channel identifies one direction of the bidirectional voice pipeline.
type Channel string

const (
	// AgentChannel carries agent-originated audio towards the customer.
	AgentChannel Channel = "agent"
	// CustomerChannel carries customer-originated audio towards the agent.
	CustomerChannel Channel = "customer"
)

// TranscriptPartial is the event payload for a provisional transcript.
type TranscriptPartial struct {
	EventType string  `json:"eventType"`
	CallID    string  `json:"callId"`
	Channel   Channel `json:"channel"`
	Timestamp int64   `json:"timestamp"`
	SegmentID string  `json:"segmentId"`
	Text      string  `json:"text"`
}

// TranscriptFinal is the event payload for a committed transcript segment.
type TranscriptFinal struct {
	EventType string  `json:"eventType"`
	CallID    string  `json:"callId"`
	Channel   Channel `json:"channel"`
	Timestamp int64   `json:"timestamp"`
	SegmentID string  `json:"segmentId"`
	Text      string  `json:"text"`
}

// TranslationResult is the event payload for a translated segment, emitted
// after the translation adapter has processed a final transcript.
type TranslationResult struct {
	EventType      string  `json:"eventType"`
	CallID         string  `json:"callId"`
	Channel        Channel `json:"channel"`
	Timestamp      int64   `json:"timestamp"`
	SegmentID      string  `json:"segmentId"`
	SourceText     string  `json:"sourceText"`
	TranslatedText string  `json:"translatedText"`
	SourceLanguage string  `json:"sourceLanguage"`
	TargetLanguage string  `json:"targetLanguage"`
}
