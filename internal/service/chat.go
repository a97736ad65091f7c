package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/meldateksari/SpotTheOne/internal/domain"
	"github.com/meldateksari/SpotTheOne/internal/repository"
)

const maxMessageLength = 500

// ChatService 管理房间聊天子集合。
type ChatService struct {
	rooms repository.RoomStateRepository
	chat  repository.ChatRepository
	now   func() time.Time
	log   *logrus.Entry
}

// NewChatService 创建 ChatService 实例。
func NewChatService(rooms repository.RoomStateRepository, chat repository.ChatRepository) *ChatService {
	return &ChatService{
		rooms: rooms,
		chat:  chat,
		now:   time.Now,
		log:   logrus.WithField("component", "chat_service"),
	}
}

// SendMessage 追加一条玩家消息，可选携带对另一条消息的引用回复。
func (s *ChatService) SendMessage(ctx context.Context, code, senderID, text string, replyTo *domain.ReplyRef) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrInvalidInput
	}
	if len(text) > maxMessageLength {
		// 回退到 rune 边界，避免截出非法 UTF-8
		cut := maxMessageLength
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	room, err := s.rooms.GetRoom(ctx, code)
	if err != nil {
		return nil, mapRepoError(err)
	}
	sender := room.FindPlayer(senderID)
	if sender == nil {
		return nil, ErrPlayerNotInRoom
	}

	msg := &domain.Message{
		ID:         uuid.NewString(),
		SenderID:   sender.ID,
		SenderName: sender.Name,
		Text:       text,
		CreatedAt:  s.now().UnixMilli(),
		ReplyTo:    replyTo,
	}
	if err := s.chat.AppendMessage(ctx, code, msg); err != nil {
		s.log.WithError(err).WithField("room", code).Error("Failed to append message")
		return nil, mapRepoError(err)
	}
	return msg, nil
}

// History 返回最近的聊天消息。
func (s *ChatService) History(ctx context.Context, code string, limit int) ([]*domain.Message, error) {
	exists, err := s.rooms.RoomExists(ctx, code)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !exists {
		return nil, ErrRoomNotFound
	}
	messages, err := s.chat.RecentMessages(ctx, code, limit)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return messages, nil
}
