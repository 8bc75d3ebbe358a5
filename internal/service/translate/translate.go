// Package translate wraps the external translation service. Request/response
// only; failures surface to the caller and are never retried here.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Translator converts text between languages.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Client is an HTTP JSON adapter for the translation service.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewClient creates a translation client for the given endpoint.
func NewClient(baseURL, authToken string) *Client {
	return &Client{
		baseURL:   baseURL,
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type translateRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"sourceLang"`
	TargetLanguage string `json:"targetLang"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

// Translate sends one segment for translation.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	body, err := json.Marshal(translateRequest{
		Text:           text,
		SourceLanguage: sourceLang,
		TargetLanguage: targetLang,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/translate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate failed: status %d: %s", resp.StatusCode, respBody)
	}

	var out translateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	return out.TranslatedText, nil
}

// Language describes one supported translation language.
type Language struct {
	Code string
	Name string
}

// Languages returns the translation languages the bridge offers. The service
// itself accepts more; this is the curated contact-center set.
func Languages() []Language {
	return []Language{
		{Code: "en", Name: "English"},
		{Code: "es", Name: "Spanish"},
		{Code: "fr", Name: "French"},
		{Code: "de", Name: "German"},
		{Code: "it", Name: "Italian"},
		{Code: "pt", Name: "Portuguese"},
		{Code: "ja", Name: "Japanese"},
		{Code: "ko", Name: "Korean"},
		{Code: "zh", Name: "Chinese (Simplified)"},
		{Code: "hi", Name: "Hindi"},
		{Code: "ar", Name: "Arabic"},
		{Code: "nl", Name: "Dutch"},
	}
}
