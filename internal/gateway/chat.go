package gateway

import (
	"context"

	"go.uber.org/zap"
)

// ChatClient generates completions through the provider with retry.
type ChatClient struct {
	provider ChatProvider
	retry    *RetryPolicy
	logger   *zap.Logger
}

// NewChatClient creates a client.
func NewChatClient(provider ChatProvider, retry *RetryPolicy, logger *zap.Logger) *ChatClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatClient{provider: provider, retry: retry, logger: logger}
}

// Complete generates an answer for the given prompts.
func (c *ChatClient) Complete(ctx context.Context, system, user string) (string, error) {
	var answer string
	err := c.retry.Execute(ctx, "chat", func() error {
		a, err := c.provider.Complete(ctx, system, user)
		if err != nil {
			return err
		}
		answer = a
		return nil
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}
