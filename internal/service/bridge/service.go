// Package bridge sequences one webhook request: validate, load history,
// complete, persist both turns, dispatch. Single pass, no retries.
package bridge

import (
	"context"
	"errors"
	"log"

	"github.com/botbridge/chatbridge/internal/config"
	"github.com/botbridge/chatbridge/internal/model/chat"
	"github.com/botbridge/chatbridge/internal/model/client"
	"github.com/botbridge/chatbridge/internal/service/dispatch"
)

// ErrInvalidMessage rejects a request whose normalized message is missing
// the required user id.
var ErrInvalidMessage = errors.New("invalid request")

// Engine generates one reply from prior turns plus the new user message.
type Engine interface {
	Complete(ctx context.Context, history []chat.Turn, userMessage string) (string, error)
}

// Dispatcher relays a reply back to the originating platform.
type Dispatcher interface {
	Dispatch(ctx context.Context, reply string, msg client.Message) dispatch.Result
}

// Service owns no persistent state; every call is one request end to end.
type Service struct {
	store         chat.Store
	engine        Engine
	dispatcher    Dispatcher
	historyLimit  int
	fallbackReply string
}

// NewService wires the bridge from its explicit dependencies. A nil
// engine is tolerated and always yields the fallback reply, so the
// service stays usable while model credentials are absent.
func NewService(store chat.Store, engine Engine, dispatcher Dispatcher, cfg config.BridgeConfig) *Service {
	return &Service{
		store:         store,
		engine:        engine,
		dispatcher:    dispatcher,
		historyLimit:  cfg.HistoryLimit,
		fallbackReply: cfg.FallbackReply,
	}
}

// Process runs the whole pipeline for one normalized message and returns
// the dispatcher's terminal result. Only a missing user id fails the
// request; a completion failure degrades to the fallback reply and the
// request still persists both turns and dispatches.
func (s *Service) Process(ctx context.Context, msg client.Message) (dispatch.Result, error) {
	if !msg.Valid() {
		return dispatch.Result{}, ErrInvalidMessage
	}

	history, err := s.store.FetchRecent(ctx, msg.UserID, s.historyLimit)
	if err != nil {
		// A load failure must not fail the request; first-time senders
		// legitimately have no history at all.
		log.Printf("[bridge] history load failed for user=%s: %v", msg.UserID, err)
		history = nil
	}

	reply := s.fallbackReply
	if s.engine != nil {
		generated, err := s.engine.Complete(ctx, history, msg.Text)
		if err != nil {
			log.Printf("[bridge] completion failed for user=%s: %v", msg.UserID, err)
		} else {
			reply = generated
		}
	}

	// The original message text is what gets persisted; the engine's
	// suffix directive never reaches the store.
	if err := s.store.Append(ctx, msg.UserID, chat.UserTurn(msg.Text)); err != nil {
		log.Printf("[bridge] failed to persist user turn for user=%s: %v", msg.UserID, err)
	}
	if err := s.store.Append(ctx, msg.UserID, chat.AssistantTurn(reply)); err != nil {
		log.Printf("[bridge] failed to persist assistant turn for user=%s: %v", msg.UserID, err)
	}

	return s.dispatcher.Dispatch(ctx, reply, msg), nil
}
