// Package provider is a thin client to the external video-conferencing
// service. It manages rooms and participant tokens as opaque resources
// and holds no state of its own.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Room is the provider-side resource backing a session. Only the opaque
// name and display URL are ever stored locally.
type Room struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Client interface {
	// CreateRoom creates a room that the provider itself tears down at
	// expiry, independent of our own enforcement.
	CreateRoom(ctx context.Context, name string, expiry time.Time) (*Room, error)
	DeleteRoom(ctx context.Context, name string) error
	// MintParticipantToken returns a short-lived credential admitting one
	// named participant to a room for at most ttl.
	MintParticipantToken(ctx context.Context, roomName, participantName string, ttl time.Duration) (string, error)
}

type HTTPClient struct {
	http    *http.Client
	apiKey  string
	baseURL string
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		http:    &http.Client{Timeout: timeout},
		apiKey:  apiKey,
		baseURL: baseURL,
	}
}

func (c *HTTPClient) CreateRoom(ctx context.Context, name string, expiry time.Time) (*Room, error) {
	body := map[string]any{
		"name":    name,
		"privacy": "private",
		"properties": map[string]any{
			"exp": expiry.Unix(),
		},
	}

	var room Room
	if err := c.post(ctx, "/rooms", body, &room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	if room.Name == "" {
		return nil, fmt.Errorf("create room: provider returned no room name")
	}
	return &room, nil
}

func (c *HTTPClient) DeleteRoom(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/rooms/"+name, nil)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	defer resp.Body.Close()

	// A room already gone is a success for our purposes.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete room: %s: %s", resp.Status, string(b))
	}
	return nil
}

func (c *HTTPClient) MintParticipantToken(ctx context.Context, roomName, participantName string, ttl time.Duration) (string, error) {
	body := map[string]any{
		"properties": map[string]any{
			"room_name": roomName,
			"user_name": participantName,
			"exp":       time.Now().Add(ttl).Unix(),
		},
	}

	var parsed struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/meeting-tokens", body, &parsed); err != nil {
		return "", fmt.Errorf("mint participant token: %w", err)
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("mint participant token: provider returned empty token")
	}
	return parsed.Token, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body any, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, string(b))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
