package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/botbridge/chatbridge/internal/config"
	"github.com/botbridge/chatbridge/internal/model/chat"
)

// CompletionError marks a failed generation call. The orchestrator
// recovers from it with a fallback reply; it is never fatal.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failed: %v", e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// Service turns a system prompt plus an ordered turn list into one reply
// string via a single synchronous model call.
type Service struct {
	chatModel    model.ChatModel
	chain        compose.Runnable[map[string]any, *schema.Message]
	systemPrompt string
	replySuffix  string
}

// NewService compiles the completion chain against the configured model.
func NewService(ctx context.Context, aiCfg config.AIConfig, bridgeCfg config.BridgeConfig) (*Service, error) {
	chatModel, err := aiCfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile completion chain: %w", err)
	}

	return &Service{
		chatModel:    chatModel,
		chain:        runnable,
		systemPrompt: bridgeCfg.SystemPrompt,
		replySuffix:  bridgeCfg.ReplySuffix,
	}, nil
}

// Complete generates one reply for the user message given the prior turns.
// The configured suffix directive is appended to the outgoing query only;
// callers persist the original message text.
func (s *Service) Complete(ctx context.Context, history []chat.Turn, userMessage string) (string, error) {
	input := map[string]any{
		"system":  s.systemPrompt,
		"history": historyMessages(history),
		"query":   userMessage + s.replySuffix,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", &CompletionError{Err: err}
	}

	log.Printf("[ai] generated reply, length=%d", len(response.Content))
	return response.Content, nil
}

func historyMessages(history []chat.Turn) []*schema.Message {
	if len(history) == 0 {
		return nil
	}

	messages := make([]*schema.Message, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		}
	}

	return messages
}
