package service_test

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meldateksari/SpotTheOne/internal/domain"
	"github.com/meldateksari/SpotTheOne/internal/repository/mocks"
	"github.com/meldateksari/SpotTheOne/internal/service"
)

func TestChatService_SendMessage_Success(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	mockChat := new(mocks.ChatRepository)

	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(&domain.Room{
		Code: "ABCDEF", Players: []domain.Player{{ID: "p1", Name: "alice"}},
	}, nil).Once()

	reply := &domain.ReplyRef{MessageID: "m0", SenderName: "bob", Text: "hi"}
	mockChat.On("AppendMessage", mock.Anything, "ABCDEF", mock.MatchedBy(func(msg *domain.Message) bool {
		return msg.SenderID == "p1" && msg.SenderName == "alice" &&
			msg.Text == "hello there" && msg.ReplyTo == reply && msg.ID != ""
	})).Return(nil).Once()

	svc := service.NewChatService(mockRooms, mockChat)
	msg, err := svc.SendMessage(context.Background(), "ABCDEF", "p1", "  hello there  ", reply)

	require.NoError(t, err)
	assert.Equal(t, "hello there", msg.Text)
	assert.False(t, msg.IsSystem())
	mockChat.AssertExpectations(t)
}

func TestChatService_SendMessage_SenderNotInRoom(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(&domain.Room{
		Code: "ABCDEF", Players: []domain.Player{{ID: "p1"}},
	}, nil).Once()

	svc := service.NewChatService(mockRooms, new(mocks.ChatRepository))
	_, err := svc.SendMessage(context.Background(), "ABCDEF", "stranger", "hi", nil)
	assert.ErrorIs(t, err, service.ErrPlayerNotInRoom)
}

func TestChatService_SendMessage_EmptyTextRejected(t *testing.T) {
	svc := service.NewChatService(new(mocks.RoomStateRepository), new(mocks.ChatRepository))
	_, err := svc.SendMessage(context.Background(), "ABCDEF", "p1", "   ", nil)
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestChatService_SendMessage_TruncatesLongText(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	mockChat := new(mocks.ChatRepository)

	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(&domain.Room{
		Code: "ABCDEF", Players: []domain.Player{{ID: "p1", Name: "alice"}},
	}, nil).Once()
	mockChat.On("AppendMessage", mock.Anything, "ABCDEF", mock.MatchedBy(func(msg *domain.Message) bool {
		return len(msg.Text) == 500
	})).Return(nil).Once()

	svc := service.NewChatService(mockRooms, mockChat)
	msg, err := svc.SendMessage(context.Background(), "ABCDEF", "p1", strings.Repeat("x", 600), nil)

	require.NoError(t, err)
	assert.Len(t, msg.Text, 500)
}

func TestChatService_SendMessage_TruncatesOnRuneBoundary(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	mockChat := new(mocks.ChatRepository)

	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(&domain.Room{
		Code: "ABCDEF", Players: []domain.Player{{ID: "p1", Name: "alice"}},
	}, nil).Once()
	mockChat.On("AppendMessage", mock.Anything, "ABCDEF", mock.Anything).Return(nil).Once()

	// 三字节字符：500 不是 3 的倍数，逐字节截断会切碎最后一个字符
	svc := service.NewChatService(mockRooms, mockChat)
	msg, err := svc.SendMessage(context.Background(), "ABCDEF", "p1", strings.Repeat("好", 200), nil)

	require.NoError(t, err)
	assert.True(t, utf8.ValidString(msg.Text))
	assert.LessOrEqual(t, len(msg.Text), 500)
	assert.Equal(t, strings.Repeat("好", 166), msg.Text)
}

func TestChatService_History(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	mockChat := new(mocks.ChatRepository)

	mockRooms.On("RoomExists", mock.Anything, "ABCDEF").Return(true, nil).Once()
	stored := []*domain.Message{{ID: "m1", Text: "hi"}, {ID: "m2", Text: "yo"}}
	mockChat.On("RecentMessages", mock.Anything, "ABCDEF", 50).Return(stored, nil).Once()

	svc := service.NewChatService(mockRooms, mockChat)
	messages, err := svc.History(context.Background(), "ABCDEF", 50)

	require.NoError(t, err)
	assert.Equal(t, stored, messages)
}

func TestChatService_History_RoomMissing(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	mockRooms.On("RoomExists", mock.Anything, "GONE11").Return(false, nil).Once()

	svc := service.NewChatService(mockRooms, new(mocks.ChatRepository))
	_, err := svc.History(context.Background(), "GONE11", 50)
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
}
