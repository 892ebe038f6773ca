package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const DefaultResendURL = "https://api.resend.com"

type Attachment struct {
	Filename string `json:"filename"`
	// Content is base64 encoded.
	Content string `json:"content"`
}

type Message struct {
	From        string       `json:"from"`
	To          []string     `json:"to"`
	Subject     string       `json:"subject"`
	HTML        string       `json:"html"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// ResendClient delivers mail through the Resend HTTP API.
type ResendClient struct {
	baseURL    string
	apiKey     string
	from       string
	httpClient *http.Client
}

func NewResendClient(baseURL, apiKey, from string, client *http.Client) *ResendClient {
	if baseURL == "" {
		baseURL = DefaultResendURL
	}
	return &ResendClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		from:       from,
		httpClient: client,
	}
}

type resendResponse struct {
	ID string `json:"id"`
}

func (c *ResendClient) Send(ctx context.Context, msg Message) (string, error) {
	if msg.From == "" {
		msg.From = c.from
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("resend returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out resendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode resend response: %w", err)
	}
	return out.ID, nil
}
