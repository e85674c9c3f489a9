package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/botbridge/chatbridge/internal/adapter"
	"github.com/botbridge/chatbridge/internal/model/client"
	"github.com/botbridge/chatbridge/internal/service/bridge"
	"github.com/botbridge/chatbridge/internal/service/dispatch"
	"github.com/botbridge/chatbridge/pkg/utils"
)

// Processor runs the bridge pipeline for one normalized message.
type Processor interface {
	Process(ctx context.Context, msg client.Message) (dispatch.Result, error)
}

// Handler terminates inbound platform webhooks.
type Handler struct {
	processor Processor
}

// New creates the webhook handler.
func New(processor Processor) *Handler {
	return &Handler{processor: processor}
}

// RegisterRoutes mounts the webhook endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.handleWebhook)
}

// handleWebhook normalizes the inbound payload and reports the bridge's
// terminal outcome as the HTTP response.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	clientType := adapter.Recognize(r.Header)
	if clientType == client.Unknown {
		utils.RespondError(w, http.StatusBadRequest, "Client type not supported")
		return
	}

	// Platforms occasionally POST empty or malformed bodies; treat those
	// as an empty payload and let validation reject them.
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		body = map[string]any{}
	}

	msg := adapter.Normalize(body, clientType)

	result, err := h.processor.Process(r.Context(), msg)
	if err != nil {
		if errors.Is(err, bridge.ErrInvalidMessage) {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request")
			return
		}
		log.Printf("[webhook] processing failed for client=%s: %v", clientType, err)
		utils.RespondError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	if result.Err != nil {
		if errors.Is(result.Err, dispatch.ErrUnsupportedClient) {
			utils.RespondError(w, http.StatusBadRequest, "Client type not supported")
			return
		}
		utils.RespondError(w, result.StatusCode, result.Err.Error())
		return
	}

	payload := result.Body
	if payload == nil {
		payload = map[string]string{"status": "ok"}
	}
	utils.RespondJSON(w, result.StatusCode, payload)
}
