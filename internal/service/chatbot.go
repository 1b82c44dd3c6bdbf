package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

const (
	maxPromptLen = 4000
	chatbotRole  = "You are a helpful assistant on a job portal. Answer questions about job searching, " +
		"writing applications and preparing for interviews. Keep answers short."
)

// ChatbotService 把用户问题转发给大模型。model 为 nil 时服务不可用。
type ChatbotService struct {
	model llms.Model
}

func NewChatbotService(model llms.Model) *ChatbotService {
	return &ChatbotService{model: model}
}

// NewGeminiModel 创建 Gemini 客户端，apiKey 为空时返回 nil。
func NewGeminiModel(ctx context.Context, apiKey, model string) (llms.Model, error) {
	if apiKey == "" {
		return nil, nil
	}
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return llm, nil
}

func (s *ChatbotService) Available() bool { return s.model != nil }

// Ask 返回模型回答的文本。
func (s *ChatbotService) Ask(ctx context.Context, prompt string) (string, error) {
	if s.model == nil {
		return "", ErrChatbotUnavailable
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrInvalidInput
	}
	prompt = truncateUTF8(prompt, maxPromptLen)
	resp, err := s.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, chatbotRole),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	})
	if err != nil {
		return "", fmt.Errorf("chatbot generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chatbot generate: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// truncateUTF8 截断到至多 n 字节，不切开多字节字符。
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
