// Package dispatch relays a generated reply back to the platform that
// delivered the inbound message.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/botbridge/chatbridge/internal/model/client"
)

// ErrUnsupportedClient is returned when no platform branch exists for the
// message's client type.
var ErrUnsupportedClient = errors.New("client type not supported")

// TransportError wraps an outbound delivery failure. It is carried inside
// the Result rather than propagated, so the webhook can report it as an
// error-shaped response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("dispatch transport failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Result is the terminal outcome of one dispatch. For ManyChat it carries
// the remote status code and body; for Chatfuel the Body is the payload
// to ride back on the inbound HTTP response.
type Result struct {
	StatusCode int
	Body       any
	Err        error
}

// Dispatcher branches on the message's client type.
type Dispatcher struct {
	manyChat *ManyChatClient
}

// New builds a Dispatcher around the ManyChat push client.
func New(manyChat *ManyChatClient) *Dispatcher {
	return &Dispatcher{manyChat: manyChat}
}

// Dispatch delivers the reply to the message's originating platform.
// Outbound failures become an error-shaped Result, never a panic.
func (d *Dispatcher) Dispatch(ctx context.Context, reply string, msg client.Message) Result {
	switch msg.Client {
	case client.ManyChat:
		return d.dispatchManyChat(ctx, reply, msg)
	case client.Chatfuel:
		// Chatfuel reads the reply from the webhook response itself,
		// so there is no outbound call.
		return Result{
			StatusCode: http.StatusOK,
			Body: map[string]any{
				"messages": []map[string]string{{"text": reply}},
			},
		}
	default:
		return Result{
			StatusCode: http.StatusBadRequest,
			Err:        ErrUnsupportedClient,
		}
	}
}

func (d *Dispatcher) dispatchManyChat(ctx context.Context, reply string, msg client.Message) Result {
	status, body, err := d.manyChat.SendText(ctx, msg.UserID, reply)
	if err != nil {
		log.Printf("[dispatch] manychat push failed for subscriber=%s: %v", msg.UserID, err)
		return Result{
			StatusCode: http.StatusInternalServerError,
			Err:        &TransportError{Err: err},
		}
	}

	return Result{StatusCode: status, Body: body}
}
