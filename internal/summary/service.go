package summary

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/voxrelay/voxrelay-backend/internal/models"
)

// PlaceholderSummary is delivered when the call ended before any turn was
// captured.
const PlaceholderSummary = "The call ended without any conversation content."

// Summarizer turns a finished transcript into a short natural-language
// summary.
type Summarizer interface {
	Summarize(ctx context.Context, transcript []models.Turn) (string, error)
}

// Service summarizes transcripts with a chat completion model.
type Service struct {
	client *openai.Client
	model  string
}

func NewService(apiKey, model string) *Service {
	return &Service{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Summarize sends the full transcript as context. An empty transcript
// returns the fixed placeholder without calling the model.
func (s *Service) Summarize(ctx context.Context, transcript []models.Turn) (string, error) {
	conversation := FormatTranscript(transcript)
	if strings.TrimSpace(conversation) == "" {
		return PlaceholderSummary, nil
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a concise summarizer.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: "Summarize this call transcript in the language of the call:\n\n" + conversation,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarization request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarization returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// FormatTranscript renders turns as "role: text" lines in recorded order.
func FormatTranscript(transcript []models.Turn) string {
	var b strings.Builder
	for _, turn := range transcript {
		b.WriteString(string(turn.Role))
		b.WriteString(": ")
		b.WriteString(turn.Text)
		b.WriteString("\n")
	}
	return b.String()
}
