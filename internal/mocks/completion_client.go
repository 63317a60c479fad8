package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"storyforge/internal/ai"
)

// CompletionClient is a mock for ai.CompletionClient.
type CompletionClient struct {
	mock.Mock
}

var _ ai.CompletionClient = (*CompletionClient)(nil)

func (_m *CompletionClient) Complete(ctx context.Context, systemPrompt, userPrompt string, params ai.GenerationParams) (string, ai.Usage, error) {
	ret := _m.Called(ctx, systemPrompt, userPrompt, params)
	return ret.String(0), ret.Get(1).(ai.Usage), ret.Error(2)
}

// CompleteStream feeds the configured full text to the chunk handler in one
// piece before returning it, mimicking a provider stream.
func (_m *CompletionClient) CompleteStream(ctx context.Context, systemPrompt, userPrompt string, params ai.GenerationParams, chunkHandler func(string) error) (string, ai.Usage, error) {
	ret := _m.Called(ctx, systemPrompt, userPrompt, params)
	text := ret.String(0)
	if ret.Error(2) == nil && chunkHandler != nil {
		if err := chunkHandler(text); err != nil {
			return "", ai.Usage{}, err
		}
	}
	return text, ret.Get(1).(ai.Usage), ret.Error(2)
}
