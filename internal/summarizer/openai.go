package summarizer

import (
	"context"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type openaiBackend struct {
	client *openai.Client
}

func newOpenAIBackend(apiKey string) *openaiBackend {
	return &openaiBackend{client: openai.NewClient(apiKey)}
}

func (o *openaiBackend) name() string { return "openai" }

func (o *openaiBackend) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4oMini,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxCompletionTokens: 400,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
