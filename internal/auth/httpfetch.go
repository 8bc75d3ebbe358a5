package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// credentialsResponse is the wire shape of the identity endpoint.
type credentialsResponse struct {
	AccessKeyID  string    `json:"accessKeyId"`
	SecretKey    string    `json:"secretKey"`
	SessionToken string    `json:"sessionToken"`
	Expiry       time.Time `json:"expiry"`
}

// NewHTTPFetcher returns a FetchFunc that retrieves short-lived credentials
// from the identity endpoint.
func NewHTTPFetcher(endpoint string) FetchFunc {
	client := &http.Client{Timeout: 10 * time.Second}

	return func(ctx context.Context) (Credentials, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return Credentials{}, fmt.Errorf("build credentials request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return Credentials{}, fmt.Errorf("fetch credentials: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return Credentials{}, fmt.Errorf("credentials endpoint returned %d", resp.StatusCode)
		}

		var body credentialsResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return Credentials{}, fmt.Errorf("decode credentials: %w", err)
		}

		return Credentials{
			AccessKeyID:  body.AccessKeyID,
			SecretKey:    body.SecretKey,
			SessionToken: body.SessionToken,
			Expiry:       body.Expiry,
		}, nil
	}
}
