package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/meldateksari/SpotTheOne/internal/repository"
)

const defaultTimeout = 20 * time.Second

// GeminiProvider 通过 generateContent 接口向 Gemini 请求一批问题。
// 它只负责拿到模型的原始文本；所有防御性解析都在上层的归一化管线里做，
// 因为模型输出的形状不可信，这里不做任何假设。
type GeminiProvider struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	model      string
}

// NewGeminiProvider 创建 GeminiProvider 实例。
func NewGeminiProvider(endpoint, apiKey, model string) *GeminiProvider {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiProvider{
		httpClient: &http.Client{Timeout: defaultTimeout},
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
	}
}

// generateContent 请求/响应的最小载荷结构
type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate 请求 count 个指定类别和语言的问题，返回模型原始文本。
func (p *GeminiProvider) Generate(ctx context.Context, req repository.QuestionRequest) (string, error) {
	prompt := buildPrompt(req)
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("provider: failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", p.endpoint, p.model, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("provider: failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("provider: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("provider: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		logrus.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"model":  p.model,
		}).Error("Question provider returned non-OK status")
		return "", fmt.Errorf("provider: unexpected status %d", resp.StatusCode)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("provider: failed to decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("provider: empty candidate list")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// buildPrompt 组装生成提示词。要求纯 JSON 数组输出，
// 但归一化管线不依赖模型真的遵守。
func buildPrompt(req repository.QuestionRequest) string {
	lang := req.Language
	if lang == "" {
		lang = "en"
	}
	return fmt.Sprintf(
		"Generate %d short party game questions in the category '%s', language '%s'. "+
			"Each question asks the group to pick one player, e.g. 'Who is most likely to be late?'. "+
			"Respond ONLY with a JSON array of strings, no markdown, no explanations.",
		req.Count, req.Category, lang,
	)
}

var _ repository.QuestionProvider = (*GeminiProvider)(nil)
