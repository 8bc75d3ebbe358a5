// Package synthesize wraps the external speech synthesis service. The wire
// response carries base64 audio; callers receive decoded bytes. No retry
// here; failures surface to the caller.
package synthesize

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Synthesizer renders text as speech audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, languageTag, engine, voiceID string) ([]byte, error)
}

// Client is an HTTP JSON adapter for the synthesis service.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewClient creates a synthesis client for the given endpoint.
func NewClient(baseURL, authToken string) *Client {
	return &Client{
		baseURL:   baseURL,
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type synthesizeRequest struct {
	Text        string `json:"text"`
	LanguageTag string `json:"languageTag"`
	Engine      string `json:"engine"`
	VoiceID     string `json:"voiceId"`
}

type synthesizeResponse struct {
	AudioBytes string `json:"audioBytes"`
}

// Synthesize renders one segment and returns the decoded audio.
func (c *Client) Synthesize(ctx context.Context, text, languageTag, engine, voiceID string) ([]byte, error) {
	body, err := json.Marshal(synthesizeRequest{
		Text:        text,
		LanguageTag: languageTag,
		Engine:      engine,
		VoiceID:     voiceID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("synthesize failed: status %d: %s", resp.StatusCode, respBody)
	}

	var out synthesizeResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	audio, err := base64.StdEncoding.DecodeString(out.AudioBytes)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	return audio, nil
}

// Engines lists the synthesis engines the service supports.
func Engines() []string {
	return []string{"standard", "neural", "generative"}
}
