package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/meldateksari/SpotTheOne/internal/domain"
	"github.com/meldateksari/SpotTheOne/internal/repository"
)

// RoomStateRepository 是 repository.RoomStateRepository 的 testify Mock 实现。
type RoomStateRepository struct {
	mock.Mock
}

func (m *RoomStateRepository) CreateRoom(ctx context.Context, room *domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *RoomStateRepository) GetRoom(ctx context.Context, code string) (*domain.Room, error) {
	args := m.Called(ctx, code)
	if room, ok := args.Get(0).(*domain.Room); ok {
		return room, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomStateRepository) RoomExists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *RoomStateRepository) DeleteRoom(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *RoomStateRepository) AppendPlayer(ctx context.Context, code string, p domain.Player) error {
	args := m.Called(ctx, code, p)
	return args.Error(0)
}

func (m *RoomStateRepository) ReplacePlayers(ctx context.Context, code string, players []domain.Player) error {
	args := m.Called(ctx, code, players)
	return args.Error(0)
}

func (m *RoomStateRepository) SetHost(ctx context.Context, code string, hostID string) error {
	args := m.Called(ctx, code, hostID)
	return args.Error(0)
}

func (m *RoomStateRepository) BeginRound(ctx context.Context, code string, rs repository.RoundState) error {
	args := m.Called(ctx, code, rs)
	return args.Error(0)
}

func (m *RoomStateRepository) CastVote(ctx context.Context, code string, voterID, targetID string) error {
	args := m.Called(ctx, code, voterID, targetID)
	return args.Error(0)
}

func (m *RoomStateRepository) SetStatus(ctx context.Context, code string, status domain.RoomStatus) error {
	args := m.Called(ctx, code, status)
	return args.Error(0)
}

func (m *RoomStateRepository) AddVoiceParticipant(ctx context.Context, code string, playerID string) error {
	args := m.Called(ctx, code, playerID)
	return args.Error(0)
}

func (m *RoomStateRepository) RemoveVoiceParticipant(ctx context.Context, code string, playerID string) error {
	args := m.Called(ctx, code, playerID)
	return args.Error(0)
}

func (m *RoomStateRepository) Subscribe(ctx context.Context, code string) (<-chan repository.RoomEvent, error) {
	args := m.Called(ctx, code)
	if ch, ok := args.Get(0).(<-chan repository.RoomEvent); ok {
		return ch, args.Error(1)
	}
	if ch, ok := args.Get(0).(chan repository.RoomEvent); ok {
		return ch, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomStateRepository) ListRoomCodes(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if codes, ok := args.Get(0).([]string); ok {
		return codes, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomStateRepository) LastActive(ctx context.Context, code string) (int64, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(int64), args.Error(1)
}

var _ repository.RoomStateRepository = (*RoomStateRepository)(nil)
