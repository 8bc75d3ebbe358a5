package stabilizer

import (
	"testing"

	"voice-translation-bridge/internal/models"
)

func word(content string, stable bool) models.TranscriptItem {
	return models.TranscriptItem{Content: content, Kind: models.ItemWord, IsStable: stable}
}

func punct(content string, stable bool) models.TranscriptItem {
	return models.TranscriptItem{Content: content, Kind: models.ItemPunctuation, IsStable: stable}
}

func TestProcess_EmptyResult(t *testing.T) {
	out := Process(models.TranscriptResult{IsPartial: true}, 3, true)

	if out.Partial != "" || out.Final != "" {
		t.Errorf("expected no emission, got partial=%q final=%q", out.Partial, out.Final)
	}
	if out.Cursor != 3 {
		t.Errorf("expected cursor unchanged at 3, got %d", out.Cursor)
	}
}

func TestProcess_StableSegmentBeforePunctuation(t *testing.T) {
	// "Hello," is fully stable, "world" is not: commit up to the comma and
	// advance the cursor past it.
	result := models.TranscriptResult{
		IsPartial: true,
		Items: []models.TranscriptItem{
			word("Hello", true),
			punct(",", true),
			word("world", false),
		},
	}

	out := Process(result, 0, true)

	if out.Final != "Hello," {
		t.Errorf("expected final %q, got %q", "Hello,", out.Final)
	}
	if out.Cursor != 2 {
		t.Errorf("expected cursor 2, got %d", out.Cursor)
	}
	if out.Partial != "Hello, world" {
		t.Errorf("expected partial %q, got %q", "Hello, world", out.Partial)
	}
}

func TestProcess_UnstableBoundaryEmitsNothing(t *testing.T) {
	// Boundary punctuation found, but the slice is not fully stable yet.
	result := models.TranscriptResult{
		IsPartial: true,
		Items: []models.TranscriptItem{
			word("Hello", true),
			punct(",", false),
			word("world", false),
		},
	}

	out := Process(result, 0, true)

	if out.Final != "" {
		t.Errorf("expected no final, got %q", out.Final)
	}
	if out.Cursor != 0 {
		t.Errorf("expected cursor unchanged at 0, got %d", out.Cursor)
	}
}

func TestProcess_NoPunctuationEmitsNothing(t *testing.T) {
	result := models.TranscriptResult{
		IsPartial: true,
		Items: []models.TranscriptItem{
			word("Hello", true),
			word("world", true),
		},
	}

	out := Process(result, 0, true)

	if out.Final != "" {
		t.Errorf("expected no final, got %q", out.Final)
	}
	if out.Cursor != 0 {
		t.Errorf("expected cursor unchanged, got %d", out.Cursor)
	}
}

func TestProcess_UtteranceCloseResetsCursor(t *testing.T) {
	result := models.TranscriptResult{
		IsPartial: false,
		Items: []models.TranscriptItem{
			word("Hi", false),
			word("there", false),
		},
	}

	// Prior cursor value must not matter on utterance close.
	out := Process(result, 5, true)

	if out.Final != "Hi there" {
		t.Errorf("expected final %q, got %q", "Hi there", out.Final)
	}
	if out.Cursor != 0 {
		t.Errorf("expected cursor reset to 0, got %d", out.Cursor)
	}
	if out.Partial != "" {
		t.Errorf("expected no partial on utterance close, got %q", out.Partial)
	}
}

func TestProcess_StabilizationDisabled(t *testing.T) {
	result := models.TranscriptResult{
		IsPartial: true,
		Items: []models.TranscriptItem{
			word("Hello", true),
			punct(".", true),
		},
	}

	out := Process(result, 0, false)

	if out.Final != "" {
		t.Errorf("expected no final with stabilization disabled, got %q", out.Final)
	}
	if out.Partial != "Hello." {
		t.Errorf("expected partial %q, got %q", "Hello.", out.Partial)
	}
}

func TestProcess_PartialPreviewJoinsFromZero(t *testing.T) {
	// The preview shows the whole in-flight utterance even when a prefix has
	// already been committed.
	result := models.TranscriptResult{
		IsPartial: true,
		Items: []models.TranscriptItem{
			word("Hello", true),
			punct(",", true),
			word("how", true),
			word("are", true),
			word("you", false),
		},
	}

	out := Process(result, 2, true)

	if out.Partial != "Hello, how are you" {
		t.Errorf("expected full preview, got %q", out.Partial)
	}
}

func TestProcess_CursorMonotonicWithinUtterance(t *testing.T) {
	// Feed a growing hypothesis and check the cursor never decreases and
	// final index ranges are disjoint and contiguous from 0.
	steps := []models.TranscriptResult{
		{IsPartial: true, Items: []models.TranscriptItem{
			word("good", true),
		}},
		{IsPartial: true, Items: []models.TranscriptItem{
			word("good", true), word("morning", true), punct(",", true),
		}},
		{IsPartial: true, Items: []models.TranscriptItem{
			word("good", true), word("morning", true), punct(",", true),
			word("can", true), word("I", true), word("help", false),
		}},
		{IsPartial: true, Items: []models.TranscriptItem{
			word("good", true), word("morning", true), punct(",", true),
			word("can", true), word("I", true), word("help", true), punct("?", true),
		}},
	}

	cursor := 0
	var finals []string
	for i, r := range steps {
		out := Process(r, cursor, true)
		if out.Cursor < cursor {
			t.Fatalf("step %d: cursor decreased from %d to %d", i, cursor, out.Cursor)
		}
		cursor = out.Cursor
		if out.Final != "" {
			finals = append(finals, out.Final)
		}
	}

	if len(finals) != 2 {
		t.Fatalf("expected 2 finals, got %v", finals)
	}
	if finals[0] != "good morning," {
		t.Errorf("expected %q, got %q", "good morning,", finals[0])
	}
	if finals[1] != "can I help?" {
		t.Errorf("expected %q, got %q", "can I help?", finals[1])
	}
	if cursor != 7 {
		t.Errorf("expected cursor 7 after both segments, got %d", cursor)
	}
}

func TestProcess_CloseEmitsOnlyUncommittedTail(t *testing.T) {
	// Earlier segments of this utterance were already committed up to the
	// cursor; the close must emit only the remainder, regardless of stability,
	// and restart the cursor.
	closing := models.TranscriptResult{
		IsPartial: false,
		Items: []models.TranscriptItem{
			word("thanks", false), punct(",", false), word("bye", false), punct(".", false),
		},
	}

	out := Process(closing, 2, true)

	if out.Final != "bye." {
		t.Errorf("expected %q, got %q", "bye.", out.Final)
	}
	if out.Cursor != 0 {
		t.Errorf("expected cursor 0, got %d", out.Cursor)
	}
}

func TestProcess_CloseAfterEverythingCommitted(t *testing.T) {
	// The closing hypothesis can be no longer than what stabilization already
	// committed; nothing is left to emit.
	closing := models.TranscriptResult{
		IsPartial: false,
		Items: []models.TranscriptItem{
			word("bye", true), punct(".", true),
		},
	}

	out := Process(closing, 2, true)

	if out.Final != "" {
		t.Errorf("expected no final, got %q", out.Final)
	}
	if out.Cursor != 0 {
		t.Errorf("expected cursor 0, got %d", out.Cursor)
	}
}

func TestProcess_NoReemissionAcrossStabilizeAndClose(t *testing.T) {
	// A stabilized segment must never reappear in the utterance-closing final:
	// committed index ranges stay disjoint.
	cursor := 0
	var finals []string

	out := Process(models.TranscriptResult{
		IsPartial: true,
		Items: []models.TranscriptItem{
			word("Hello", true), punct(",", true), word("world", false),
		},
	}, cursor, true)
	cursor = out.Cursor
	if out.Final != "" {
		finals = append(finals, out.Final)
	}

	out = Process(models.TranscriptResult{
		IsPartial: false,
		Items: []models.TranscriptItem{
			word("Hello", true), punct(",", true), word("world", true), punct(".", true),
		},
	}, cursor, true)
	if out.Final != "" {
		finals = append(finals, out.Final)
	}

	want := []string{"Hello,", "world."}
	if len(finals) != len(want) {
		t.Fatalf("expected finals %v, got %v", want, finals)
	}
	for i := range want {
		if finals[i] != want[i] {
			t.Errorf("final %d: expected %q, got %q", i, want[i], finals[i])
		}
	}
	if out.Cursor != 0 {
		t.Errorf("expected cursor 0 after close, got %d", out.Cursor)
	}
}

func TestJoin(t *testing.T) {
	tests := []struct {
		name  string
		items []models.TranscriptItem
		want  string
	}{
		{
			name:  "empty slice",
			items: nil,
			want:  "",
		},
		{
			name:  "words only",
			items: []models.TranscriptItem{word("Hi", true), word("there", true)},
			want:  "Hi there",
		},
		{
			name: "punctuation attaches to preceding word",
			items: []models.TranscriptItem{
				word("Hello", true), punct(",", true), word("world", true), punct(".", true),
			},
			want: "Hello, world.",
		},
		{
			name:  "leading punctuation",
			items: []models.TranscriptItem{punct(",", true), word("yes", true)},
			want:  ", yes",
		},
		{
			name:  "single word",
			items: []models.TranscriptItem{word("ok", true)},
			want:  "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Join(tt.items); got != tt.want {
				t.Errorf("Join() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJoin_Idempotent(t *testing.T) {
	items := []models.TranscriptItem{
		word("Hello", true), punct(",", true), word("world", true), punct("!", true),
	}

	first := Join(items)
	second := Join(items)
	if first != second {
		t.Errorf("join not deterministic: %q vs %q", first, second)
	}
}

func TestJoin_PrefixSuffixConcatenation(t *testing.T) {
	items := []models.TranscriptItem{
		word("good", true), word("morning", true), punct(",", true),
		word("how", true), word("are", true), word("you", true), punct("?", true),
	}

	whole := Join(items)
	prefix := Join(items[:3])
	suffix := Join(items[3:])

	if got := prefix + " " + suffix; got != whole {
		t.Errorf("prefix+suffix = %q, whole = %q", got, whole)
	}
}
