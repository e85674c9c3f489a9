package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/botbridge/chatbridge/internal/config"
	"github.com/botbridge/chatbridge/internal/model/chat"
	"github.com/botbridge/chatbridge/internal/service/bridge"
	"github.com/botbridge/chatbridge/internal/service/dispatch"
)

type stubEngine struct {
	reply string
	err   error
}

func (s stubEngine) Complete(_ context.Context, _ []chat.Turn, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func testBridgeConfig() config.BridgeConfig {
	return config.BridgeConfig{
		SystemPrompt:  "be nice",
		HistoryLimit:  6,
		FallbackReply: "please try again",
	}
}

func setupRouter(store chat.Store, engine bridge.Engine, manyChatURL, apiKey string) *chi.Mux {
	dispatcher := dispatch.New(dispatch.NewManyChatClient(nil, manyChatURL, apiKey))
	svc := bridge.NewService(store, engine, dispatcher, testBridgeConfig())

	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)
	return r
}

func postWebhook(r http.Handler, userAgent string, body map[string]any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return body
}

func TestWebhookUnknownClient(t *testing.T) {
	store := chat.NewMemoryStore()
	r := setupRouter(store, stubEngine{reply: "hi"}, "", "")

	resp := postWebhook(r, "curl/8.0", map[string]any{"id": "U1", "last_input_text": "hello"})

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	body := decodeBody(t, resp)
	if body["error"] != "Client type not supported" {
		t.Fatalf("unexpected error body: %+v", body)
	}

	turns, _ := store.FetchRecent(context.Background(), "U1", 10)
	if len(turns) != 0 {
		t.Fatal("unknown client must not cause store writes")
	}
}

func TestWebhookMissingUserID(t *testing.T) {
	store := chat.NewMemoryStore()
	r := setupRouter(store, stubEngine{reply: "hi"}, "", "")

	resp := postWebhook(r, "ManyChat", map[string]any{"last_input_text": "hello"})

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	body := decodeBody(t, resp)
	if body["error"] != "Invalid request" {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestWebhookMalformedBody(t *testing.T) {
	r := setupRouter(chat.NewMemoryStore(), stubEngine{reply: "hi"}, "", "")

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	req.Header.Set("User-Agent", "ManyChat")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", resp.Code)
	}
}

func TestWebhookManyChatFlow(t *testing.T) {
	var gotPayload map[string]any
	manyChat := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotPayload)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer manyChat.Close()

	store := chat.NewMemoryStore()
	r := setupRouter(store, stubEngine{reply: "nice to meet you"}, manyChat.URL, "key")

	resp := postWebhook(r, "ManyChat", map[string]any{
		"id":              "U1",
		"first_name":      "Anna",
		"last_input_text": "hello",
	})

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	body := decodeBody(t, resp)
	if body["status"] != "success" {
		t.Fatalf("expected remote body passed through, got %+v", body)
	}

	if gotPayload["subscriber_id"] != "U1" {
		t.Fatalf("push went to %v, want U1", gotPayload["subscriber_id"])
	}

	turns, _ := store.FetchRecent(context.Background(), "U1", 10)
	if len(turns) != 2 {
		t.Fatalf("expected two persisted turns, got %d", len(turns))
	}
	if turns[0].Content != "hello" || turns[1].Content != "nice to meet you" {
		t.Fatalf("unexpected persisted turns: %+v", turns)
	}
}

func TestWebhookChatfuelFlow(t *testing.T) {
	store := chat.NewMemoryStore()
	r := setupRouter(store, stubEngine{reply: "synchronous hello"}, "", "")

	resp := postWebhook(r, "Chatfuel", map[string]any{
		"messenger user id":        "M1",
		"first name":               "Jan",
		"last user freeform input": "hi",
	})

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := decodeBody(t, resp)
	messages, ok := body["messages"].([]any)
	if !ok || len(messages) != 1 {
		t.Fatalf("unexpected chatfuel body: %+v", body)
	}
	first, _ := messages[0].(map[string]any)
	if first["text"] != "synchronous hello" {
		t.Fatalf("unexpected reply text: %+v", first)
	}
}

func TestWebhookCompletionFailureStillReplies(t *testing.T) {
	store := chat.NewMemoryStore()
	r := setupRouter(store, stubEngine{err: errors.New("model down")}, "", "")

	resp := postWebhook(r, "Chatfuel", map[string]any{
		"messenger user id":        "M1",
		"last user freeform input": "hi",
	})

	if resp.Code != http.StatusOK {
		t.Fatalf("completion failure must still yield a response, got %d", resp.Code)
	}
	body := decodeBody(t, resp)
	messages, _ := body["messages"].([]any)
	first, _ := messages[0].(map[string]any)
	if first["text"] != "please try again" {
		t.Fatalf("expected fallback reply, got %+v", first)
	}

	turns, _ := store.FetchRecent(context.Background(), "M1", 10)
	if len(turns) != 2 {
		t.Fatalf("expected two turns after completion failure, got %d", len(turns))
	}
}

func TestWebhookManyChatTransportFailure(t *testing.T) {
	manyChat := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	manyChat.Close() // unreachable endpoint

	store := chat.NewMemoryStore()
	r := setupRouter(store, stubEngine{reply: "hi"}, manyChat.URL, "key")

	resp := postWebhook(r, "ManyChat", map[string]any{
		"id":              "U1",
		"last_input_text": "hello",
	})

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on transport failure, got %d", resp.Code)
	}
	body := decodeBody(t, resp)
	if body["error"] == "" {
		t.Fatalf("expected error body, got %+v", body)
	}
}
