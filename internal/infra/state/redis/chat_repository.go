package redisstate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/meldateksari/SpotTheOne/internal/domain"
	"github.com/meldateksari/SpotTheOne/internal/repository"
)

// 每个房间保留的聊天记录上限。超出后从头部裁剪，房间销毁时整键删除。
const maxStoredMessages = 200

func (r *RedisRoomRepository) messagesKey(code string) string {
	return r.roomKey(code) + ":messages"
}

func (r *RedisRoomRepository) chatChannel(code string) string {
	return r.roomKey(code) + ":chat"
}

// AppendMessage 追加一条聊天消息并在聊天频道上发布。
// 聊天是房间的子集合：独立的键和频道，消息流不触发房间快照重放。
func (r *RedisRoomRepository) AppendMessage(ctx context.Context, code string, msg *domain.Message) error {
	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal message %s: %w", msg.ID, err)
	}

	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, r.messagesKey(code), msgJSON)
	pipe.LTrim(ctx, r.messagesKey(code), -maxStoredMessages, -1)
	r.touch(ctx, pipe, code)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to append message to room %s: %w", code, err)
	}

	if err := r.client.Publish(ctx, r.chatChannel(code), msgJSON).Err(); err != nil {
		logrus.WithFields(logrus.Fields{"room": code, "message_id": msg.ID}).
			WithError(err).Error("Redis chat publish failed")
	}
	return nil
}

// RecentMessages 按时间正序返回最近 limit 条消息。
func (r *RedisRoomRepository) RecentMessages(ctx context.Context, code string, limit int) ([]*domain.Message, error) {
	if limit <= 0 || limit > maxStoredMessages {
		limit = maxStoredMessages
	}
	raws, err := r.client.LRange(ctx, r.messagesKey(code), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to read messages for room %s: %w", code, err)
	}

	messages := make([]*domain.Message, 0, len(raws))
	for _, raw := range raws {
		var msg domain.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			logrus.WithError(err).Warnf("redis: skipping malformed message entry in room %s", code)
			continue
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}

// SubscribeMessages 订阅房间聊天频道，按追加顺序投递新消息。
func (r *RedisRoomRepository) SubscribeMessages(ctx context.Context, code string) (<-chan *domain.Message, error) {
	pubsub := r.client.Subscribe(ctx, r.chatChannel(code))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: failed to subscribe to chat of room %s: %w", code, err)
	}

	messages := make(chan *domain.Message, 16)
	go func() {
		defer close(messages)
		defer pubsub.Close()

		logCtx := logrus.WithFields(logrus.Fields{"room": code, "component": "chat_subscription"})
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-ch:
				if !ok {
					return
				}
				var msg domain.Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					logCtx.WithError(err).Warn("Dropping malformed chat payload")
					continue
				}
				select {
				case messages <- &msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return messages, nil
}

// 编译期接口断言
var (
	_ repository.RoomStateRepository = (*RedisRoomRepository)(nil)
	_ repository.ChatRepository      = (*RedisRoomRepository)(nil)
)
