package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultManyChatURL = "https://api.manychat.com/fb/sending/sendContent"

// ManyChatClient pushes text messages to a subscriber through the
// ManyChat sendContent API. One attempt per call, no retries.
type ManyChatClient struct {
	http   *http.Client
	url    string
	apiKey string
}

// NewManyChatClient builds a client for the sendContent endpoint.
func NewManyChatClient(httpClient *http.Client, url, apiKey string) *ManyChatClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	url = strings.TrimSpace(url)
	if url == "" {
		url = defaultManyChatURL
	}
	return &ManyChatClient{
		http:   httpClient,
		url:    url,
		apiKey: strings.TrimSpace(apiKey),
	}
}

type manyChatMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type manyChatContent struct {
	Messages []manyChatMessage `json:"messages"`
}

type manyChatData struct {
	Version string          `json:"version"`
	Content manyChatContent `json:"content"`
}

type manyChatPayload struct {
	SubscriberID string       `json:"subscriber_id"`
	Data         manyChatData `json:"data"`
}

// SendText posts one text message to the subscriber and returns the
// remote status code plus the decoded response body.
func (c *ManyChatClient) SendText(ctx context.Context, subscriberID, text string) (int, map[string]any, error) {
	if c == nil || c.http == nil {
		return 0, nil, fmt.Errorf("manychat client is not initialized")
	}
	if strings.TrimSpace(c.apiKey) == "" {
		return 0, nil, fmt.Errorf("manychat api key is required")
	}
	if strings.TrimSpace(subscriberID) == "" {
		return 0, nil, fmt.Errorf("subscriber_id is required")
	}

	payload := manyChatPayload{
		SubscriberID: subscriberID,
		Data: manyChatData{
			Version: "v2",
			Content: manyChatContent{
				Messages: []manyChatMessage{{Type: "text", Text: text}},
			},
		},
	}

	bodyRaw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal manychat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(bodyRaw))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respRaw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	var decoded map[string]any
	if len(respRaw) > 0 {
		if err := json.Unmarshal(respRaw, &decoded); err != nil {
			return resp.StatusCode, nil, fmt.Errorf("decode manychat response: %w", err)
		}
	}

	return resp.StatusCode, decoded, nil
}
