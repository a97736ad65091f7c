package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/meldateksari/SpotTheOne/internal/domain"
	"github.com/meldateksari/SpotTheOne/internal/repository"
)

// ChatRepository 是 repository.ChatRepository 的 testify Mock 实现。
type ChatRepository struct {
	mock.Mock
}

func (m *ChatRepository) AppendMessage(ctx context.Context, code string, msg *domain.Message) error {
	args := m.Called(ctx, code, msg)
	return args.Error(0)
}

func (m *ChatRepository) RecentMessages(ctx context.Context, code string, limit int) ([]*domain.Message, error) {
	args := m.Called(ctx, code, limit)
	if msgs, ok := args.Get(0).([]*domain.Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ChatRepository) SubscribeMessages(ctx context.Context, code string) (<-chan *domain.Message, error) {
	args := m.Called(ctx, code)
	if ch, ok := args.Get(0).(<-chan *domain.Message); ok {
		return ch, args.Error(1)
	}
	if ch, ok := args.Get(0).(chan *domain.Message); ok {
		return ch, args.Error(1)
	}
	return nil, args.Error(1)
}

var _ repository.ChatRepository = (*ChatRepository)(nil)
