// Package stabilizer turns the stream of revisable transcript results coming
// from the transcription transport into stable, non-overlapping text segments.
//
// The transport keeps re-sending its best hypothesis for the in-flight
// utterance; this package decides which prefix of that hypothesis is safe to
// commit. It is pure: all I/O and cursor storage belong to the caller.
package stabilizer

import (
	"strings"

	"voice-translation-bridge/internal/models"
)

// Punctuation marks that close a stable segment while the utterance is still
// partial.
var segmentBoundaries = map[string]bool{
	",": true,
	".": true,
	"!": true,
	"?": true,
}

// Result is the outcome of processing one transcript result.
//
// Partial, when non-empty, is a preview of the whole in-flight utterance and
// may be replaced by the next event. Final, when non-empty, is committed text
// that will never be re-emitted. Cursor is the index of the first item not yet
// committed; the caller must carry it into the next call for the same
// utterance.
type Result struct {
	Partial string
	Final   string
	Cursor  int
}

// Process inspects one transcript result against the channel's cursor and
// produces at most one partial preview and at most one final segment.
//
// Rules:
//   - An empty result emits nothing and leaves the cursor untouched.
//   - A partial result always yields a preview joined from index 0. The
//     preview intentionally re-displays already-committed text so the caller
//     can show the full in-flight utterance.
//   - A non-partial result closes the utterance: the items not yet committed,
//     from the cursor onward, are joined into a final segment regardless of
//     stability, and the cursor resets to 0 for the next utterance.
//   - While the result is partial and stabilization is enabled, the slice
//     from the cursor up to the first boundary punctuation is committed early
//     if every item in it is stable. The scan restarts from the cursor on
//     every call; an unstable boundary candidate is simply re-checked next
//     time.
//
// Empty strings in the returned Result mean "nothing to emit" and must not be
// forwarded downstream.
func Process(result models.TranscriptResult, cursor int, stabilization bool) Result {
	out := Result{Cursor: cursor}
	if result.Empty() {
		return out
	}

	if !result.IsPartial {
		if cursor < len(result.Items) {
			out.Final = Join(result.Items[cursor:])
		}
		out.Cursor = 0
		return out
	}

	out.Partial = Join(result.Items)

	if !stabilization {
		return out
	}

	end := boundaryIndex(result.Items, cursor)
	if end < 0 {
		return out
	}
	slice := result.Items[cursor : end+1]
	if !allStable(slice) {
		return out
	}

	out.Final = Join(slice)
	out.Cursor = end + 1
	return out
}

// boundaryIndex returns the index of the first boundary punctuation at or
// after the cursor, or -1 when none exists yet.
func boundaryIndex(items []models.TranscriptItem, cursor int) int {
	for i := cursor; i < len(items); i++ {
		if items[i].Kind == models.ItemPunctuation && segmentBoundaries[items[i].Content] {
			return i
		}
	}
	return -1
}

func allStable(items []models.TranscriptItem) bool {
	for _, item := range items {
		if !item.IsStable {
			return false
		}
	}
	return true
}

// Join concatenates item contents with single spaces, trims the result and
// pulls boundary punctuation back against the preceding word. Deterministic
// and idempotent for a given slice; identical for partial and final joins.
func Join(items []models.TranscriptItem) string {
	if len(items) == 0 {
		return ""
	}

	var b strings.Builder
	for _, item := range items {
		if item.Kind == models.ItemPunctuation && segmentBoundaries[item.Content] {
			b.WriteString(item.Content)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(item.Content)
	}
	return strings.TrimSpace(b.String())
}
