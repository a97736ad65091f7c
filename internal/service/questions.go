package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/meldateksari/SpotTheOne/internal/repository"
)

// QuestionService 负责从外部提供方获取问题并把不可信的原始文本
// 归一化为干净的问题列表。
type QuestionService struct {
	provider repository.QuestionProvider
	log      *logrus.Entry
}

// NewQuestionService 创建 QuestionService 实例。
func NewQuestionService(provider repository.QuestionProvider) *QuestionService {
	return &QuestionService{
		provider: provider,
		log:      logrus.WithField("component", "question_service"),
	}
}

// Generate 获取 count 个问题。提供方输出经过多级归一化；
// 所有层级都失败才返回 ErrProviderFailure。
func (s *QuestionService) Generate(ctx context.Context, count int, category, language string) ([]string, error) {
	if count <= 0 {
		return nil, ErrInvalidInput
	}
	raw, err := s.provider.Generate(ctx, repository.QuestionRequest{
		Count:    count,
		Category: category,
		Language: language,
	})
	if err != nil {
		s.log.WithError(err).Error("Question provider request failed")
		return nil, ErrProviderFailure
	}

	questions := normalizeQuestions(raw)
	if len(questions) == 0 {
		s.log.WithField("raw_prefix", truncate(raw, 120)).Error("No questions recoverable from provider output")
		return nil, ErrProviderFailure
	}
	if len(questions) > count {
		questions = questions[:count]
	}
	return questions, nil
}

// normalizeQuestions 把模型的原始文本榨成字符串列表。
// 逐级放宽解析策略，任何一级成功即返回：
//  1. 直接按 JSON 数组解析
//  2. 展开嵌套或二次编码的数组
//  3. 提取首个 '[' 到末个 ']' 之间的片段再解析
//  4. 归一化引号后重试
//  5. 按行切分并剥离列表记号
func normalizeQuestions(raw string) []string {
	text := strings.TrimSpace(raw)
	text = stripCodeFence(text)
	if text == "" {
		return nil
	}

	if qs := parseJSONArray(text); len(qs) > 0 {
		return qs
	}

	if start, end := strings.Index(text, "["), strings.LastIndex(text, "]"); start >= 0 && end > start {
		fragment := text[start : end+1]
		if qs := parseJSONArray(fragment); len(qs) > 0 {
			return qs
		}
		if qs := parseJSONArray(normalizeQuotes(fragment)); len(qs) > 0 {
			return qs
		}
	}

	if qs := parseJSONArray(normalizeQuotes(text)); len(qs) > 0 {
		return qs
	}

	return splitLines(text)
}

// parseJSONArray 解析 JSON 数组并展开嵌套/二次编码的元素。
// 处理 '["[\"A?\",\"B?\"]"]' 和 '[["A?","B?"]]' 这类形状。
func parseJSONArray(text string) []string {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil
	}

	var out []string
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			trimmed := strings.TrimSpace(s)
			// 元素本身可能又是一个编码过的数组
			if strings.HasPrefix(trimmed, "[") {
				if inner := parseJSONArray(trimmed); len(inner) > 0 {
					out = append(out, inner...)
					continue
				}
			}
			if trimmed != "" {
				out = append(out, trimmed)
			}
			continue
		}
		// 元素是嵌套数组而非字符串
		if inner := parseJSONArray(string(item)); len(inner) > 0 {
			out = append(out, inner...)
		}
	}
	return out
}

// stripCodeFence 剥掉 markdown 代码围栏。
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// normalizeQuotes 把智能引号和单引号折叠成标准双引号。
func normalizeQuotes(text string) string {
	replacer := strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
		"'", `"`,
	)
	return replacer.Replace(text)
}

// splitLines 是最后的兜底：按行切分，剥离序号、破折号和引号包装。
func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789. )")
		line = strings.Trim(line, `"',`)
		line = strings.TrimSpace(line)
		if line == "" || line == "[" || line == "]" {
			continue
		}
		out = append(out, line)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
