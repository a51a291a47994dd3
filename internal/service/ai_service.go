package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"smartprep_backend/internal/config"
	"smartprep_backend/pkg/logger"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// TextGenerator 大模型文本生成的最小接口
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

var ErrGeneratorUnavailable = errors.New("text generator not configured")

// GeminiGenerator 基于 Gemini 的实现
type GeminiGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiGenerator 未配置 API Key 时返回 nil 生成器，调用方按不可用处理
func NewGeminiGenerator(ctx context.Context, cfg config.AIConfig) (*GeminiGenerator, error) {
	if cfg.GeminiAPIKey == "" {
		logger.Log.Warn("GEMINI_API_KEY is not set, question generation is disabled")
		return nil, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: client.GenerativeModel(cfg.Model)}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.model == nil {
		return "", ErrGeneratorUnavailable
	}
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
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
		break
	}
	return sb.String(), nil
}

func (g *GeminiGenerator) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}
