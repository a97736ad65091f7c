package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meldateksari/SpotTheOne/internal/repository/mocks"
	"github.com/meldateksari/SpotTheOne/internal/service"
)

// generate 是跑一次归一化管线的辅助函数。
func generate(t *testing.T, raw string, count int) ([]string, error) {
	t.Helper()
	mockProvider := new(mocks.QuestionProvider)
	mockProvider.On("Generate", mock.Anything, mock.Anything).Return(raw, nil).Once()
	svc := service.NewQuestionService(mockProvider)
	return svc.Generate(context.Background(), count, "party", "en")
}

func TestQuestionService_Generate_CleanJSONArray(t *testing.T) {
	qs, err := generate(t, `["Who is most likely to be late?", "Who laughs the loudest?"]`, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Who is most likely to be late?", "Who laughs the loudest?"}, qs)
}

func TestQuestionService_Generate_DoubleEncodedArray(t *testing.T) {
	// 模型把整个数组再编码成了一个字符串元素
	qs, err := generate(t, `["[\"A?\",\"B?\"]"]`, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"A?", "B?"}, qs)
}

func TestQuestionService_Generate_NestedArray(t *testing.T) {
	qs, err := generate(t, `[["A?","B?"]]`, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"A?", "B?"}, qs)
}

func TestQuestionService_Generate_MarkdownCodeFence(t *testing.T) {
	raw := "```json\n[\"Who would survive a zombie apocalypse?\"]\n```"
	qs, err := generate(t, raw, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Who would survive a zombie apocalypse?"}, qs)
}

func TestQuestionService_Generate_BracketExtraction(t *testing.T) {
	raw := `Sure! Here are your questions: ["A?","B?"] Enjoy the game!`
	qs, err := generate(t, raw, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"A?", "B?"}, qs)
}

func TestQuestionService_Generate_SmartQuotes(t *testing.T) {
	raw := "[“A?”, “B?”]"
	qs, err := generate(t, raw, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"A?", "B?"}, qs)
}

func TestQuestionService_Generate_NewlineFallback(t *testing.T) {
	raw := "1. Who is the funniest?\n2. Who sleeps the most?\n- Who sings best?"
	qs, err := generate(t, raw, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Who is the funniest?",
		"Who sleeps the most?",
		"Who sings best?",
	}, qs)
}

func TestQuestionService_Generate_TruncatesToCount(t *testing.T) {
	qs, err := generate(t, `["A?","B?","C?","D?"]`, 2)
	require.NoError(t, err)
	assert.Len(t, qs, 2)
}

func TestQuestionService_Generate_EmptyOutput(t *testing.T) {
	_, err := generate(t, "   \n  ", 5)
	assert.ErrorIs(t, err, service.ErrProviderFailure)
}

func TestQuestionService_Generate_ProviderError(t *testing.T) {
	mockProvider := new(mocks.QuestionProvider)
	mockProvider.On("Generate", mock.Anything, mock.Anything).
		Return("", errors.New("upstream 500")).Once()
	svc := service.NewQuestionService(mockProvider)

	_, err := svc.Generate(context.Background(), 5, "party", "en")
	assert.ErrorIs(t, err, service.ErrProviderFailure)
	mockProvider.AssertExpectations(t)
}

func TestQuestionService_Generate_InvalidCount(t *testing.T) {
	svc := service.NewQuestionService(new(mocks.QuestionProvider))
	_, err := svc.Generate(context.Background(), 0, "party", "en")
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}
