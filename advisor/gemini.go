// Package advisor answers grower questions with a Gemini model.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"corncare-backend/models"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const systemPrompt = `You are an agronomy assistant for maize growers.
Answer questions about corn diseases, pests, treatments, fertilizer and irrigation.
Keep answers short and practical. If a question is unrelated to crops, say so briefly.`

// MaxHistory bounds how many earlier messages are sent with a question
const MaxHistory = 20

// ErrEmptyAnswer is returned when the model produced no text
var ErrEmptyAnswer = errors.New("model returned no text")

// GeminiAdvisor implements service.Advisor
type GeminiAdvisor struct {
	client *genai.Client
	model  string
}

// NewGeminiAdvisor opens a client for apiKey. Close must be called on shutdown.
func NewGeminiAdvisor(ctx context.Context, apiKey, model string) (*GeminiAdvisor, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if model == "" {
		return nil, errors.New("gemini model is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiAdvisor{client: client, model: model}, nil
}

// Advise sends question together with the earlier turns of the chat
func (a *GeminiAdvisor) Advise(ctx context.Context, question string, history []models.Message) (string, error) {
	model := a.client.GenerativeModel(a.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}

	session := model.StartChat()
	session.History = buildHistory(history)

	resp, err := session.SendMessage(ctx, genai.Text(question))
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	return extractText(resp)
}

// Close releases the client
func (a *GeminiAdvisor) Close() error {
	return a.client.Close()
}

// buildHistory converts stored messages into alternating user/model turns
func buildHistory(history []models.Message) []*genai.Content {
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}

	out := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := "model"
		if m.IsUser {
			role = "user"
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Text)}})
	}
	return out
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrEmptyAnswer
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		if sb.Len() > 0 {
			break
		}
	}

	answer := strings.TrimSpace(sb.String())
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	return answer, nil
}
