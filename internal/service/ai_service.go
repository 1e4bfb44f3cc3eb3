package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"

	"smart_exam_backend/internal/config"
	"smart_exam_backend/internal/examgen"

	openai "github.com/sashabaranov/go-openai"
)

// AIService 封装对模型服务的出题调用，实现 examgen.Transport。
// 过载、限流、超时类错误包装成瞬时错误交给编排器做同档退避重试
type AIService struct {
	client *openai.Client
	model  string
}

func NewAIService(cfg config.AIConfig) *AIService {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &AIService{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

// Generate 单次出题调用。附件图片以 base64 data URL 形式随提示词发送
func (s *AIService) Generate(ctx context.Context, req examgen.GenerationRequest, temperature float64) (*examgen.TransportResult, error) {
	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: "你是一名资深命题教师，只输出 JSON，不输出任何解释性文字。",
		},
	}

	if len(req.Attachments) > 0 {
		parts := []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
		}
		for _, att := range req.Attachments {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", att.MIMEType, base64.StdEncoding.EncodeToString(att.Data)),
				},
			})
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:         openai.ChatMessageRoleUser,
			MultiContent: parts,
		})
	} else {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Prompt,
		})
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: float32(temperature),
	})
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("模型服务返回了空的候选列表")
	}

	return &examgen.TransportResult{
		Text: resp.Choices[0].Message.Content,
		Usage: &examgen.RawUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// classifyTransportError 区分可重试的瞬时故障与永久失败
func classifyTransportError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500 {
			return &examgen.TransientError{Err: err}
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &examgen.TransientError{Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &examgen.TransientError{Err: err}
	}
	return err
}
