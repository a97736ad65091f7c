package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/meldateksari/SpotTheOne/internal/repository"
)

// QuestionProvider 是 repository.QuestionProvider 的 testify Mock 实现。
type QuestionProvider struct {
	mock.Mock
}

func (m *QuestionProvider) Generate(ctx context.Context, req repository.QuestionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

var _ repository.QuestionProvider = (*QuestionProvider)(nil)
