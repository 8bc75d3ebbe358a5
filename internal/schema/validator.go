// Package schema validates event payloads before they leave the service.
package schema

import (
	"errors"
	"fmt"

	"voice-translation-bridge/internal/models"
)

// ErrUnknownEvent is returned for payload types the validator does not know.
var ErrUnknownEvent = errors.New("unknown event payload type")

// Validator checks event payloads for the fields downstream consumers rely
// on.
type Validator struct{}

// New creates a Validator.
func New() *Validator {
	return &Validator{}
}

// Validate checks one event payload.
func (v *Validator) Validate(event any) error {
	switch e := event.(type) {
	case models.TranscriptPartial:
		return validateCommon(e.EventType, e.CallID, e.Channel, e.Text)
	case models.TranscriptFinal:
		return validateCommon(e.EventType, e.CallID, e.Channel, e.Text)
	case models.TranslationResult:
		if err := validateCommon(e.EventType, e.CallID, e.Channel, e.TranslatedText); err != nil {
			return err
		}
		if e.SourceLanguage == "" || e.TargetLanguage == "" {
			return fmt.Errorf("translation event missing language pair")
		}
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, event)
	}
}

func validateCommon(eventType, callID string, ch models.Channel, text string) error {
	if eventType == "" {
		return fmt.Errorf("event missing eventType")
	}
	if callID == "" {
		return fmt.Errorf("event missing callId")
	}
	if ch != models.AgentChannel && ch != models.CustomerChannel {
		return fmt.Errorf("event has invalid channel %q", ch)
	}
	if text == "" {
		return fmt.Errorf("event missing text")
	}
	return nil
}
