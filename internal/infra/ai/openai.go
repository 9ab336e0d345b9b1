package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"postop_followup/internal/app"
	"postop_followup/internal/domain/followup"
)

// OpenAIAnalyzer asks a chat completion model for a structured clinical assessment.
type OpenAIAnalyzer struct {
	client *openai.Client
	model  string
}

// NewOpenAIAnalyzer builds the client. An empty baseURL targets the public API.
func NewOpenAIAnalyzer(apiKey, baseURL, model string) *OpenAIAnalyzer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIAnalyzer{client: openai.NewClientWithConfig(cfg), model: model}
}

type assessment struct {
	RiskLevel       string   `json:"riskLevel"`
	RedFlags        []string `json:"redFlags"`
	Recommendations []string `json:"recommendations"`
	EmpathicReply   string   `json:"empathicReply"`
	Analysis        string   `json:"analysis"`
}

func (a *OpenAIAnalyzer) Assess(ctx context.Context, req app.AIRequest) (*app.AIAssessment, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req)},
		},
		Temperature:    0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty completion")
	}
	return parseAssessment(resp.Choices[0].Message.Content)
}

func parseAssessment(content string) (*app.AIAssessment, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var out assessment
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &out); err != nil {
		return nil, fmt.Errorf("openai: malformed assessment: %w", err)
	}
	risk, err := followup.ParseRiskLevel(out.RiskLevel)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return &app.AIAssessment{
		RiskLevel:       risk,
		RedFlags:        out.RedFlags,
		Recommendations: out.Recommendations,
		EmpathicReply:   strings.TrimSpace(out.EmpathicReply),
		Analysis:        out.Analysis,
	}, nil
}
