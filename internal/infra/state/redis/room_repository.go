package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/meldateksari/SpotTheOne/internal/domain"
	"github.com/meldateksari/SpotTheOne/internal/repository"
)

// 订阅频道上的哨兵载荷
const (
	payloadChanged = "changed"
	payloadDeleted = "deleted"
)

// RedisRoomRepository 是 RoomStateRepository 接口的 Redis 实现。
// 文档被拆成一组按字段分片的键：标量进 hash，计数器用 HINCRBY，
// 集合用 SADD/SREM，有序列表用 RPUSH——这正是协议要求的字段级原子更新。
type RedisRoomRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRoomRepository 创建 RedisRoomRepository 实例。
func NewRedisRoomRepository(client *redis.Client, keyPrefix string) *RedisRoomRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisRoomRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "sto:" // 默认前缀 "sto:" (spot-the-one)
	}
	return &RedisRoomRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// --- Key Generation Helpers ---

func (r *RedisRoomRepository) roomKey(code string) string {
	return fmt.Sprintf("%sroom:%s", r.keyPrefix, code)
}

func (r *RedisRoomRepository) playersKey(code string) string {
	return r.roomKey(code) + ":players"
}

func (r *RedisRoomRepository) questionsKey(code string) string {
	return r.roomKey(code) + ":questions"
}

func (r *RedisRoomRepository) votesKey(code string) string {
	return r.roomKey(code) + ":votes"
}

func (r *RedisRoomRepository) playerVotesKey(code string) string {
	return r.roomKey(code) + ":pvotes"
}

func (r *RedisRoomRepository) votedKey(code string) string {
	return r.roomKey(code) + ":voted"
}

func (r *RedisRoomRepository) voiceKey(code string) string {
	return r.roomKey(code) + ":voice"
}

func (r *RedisRoomRepository) eventsChannel(code string) string {
	return r.roomKey(code) + ":events"
}

func (r *RedisRoomRepository) indexKey() string {
	return r.keyPrefix + "rooms"
}

// --- RoomStateRepository Interface Implementation ---

// CreateRoom 以 create-if-absent 语义写入初始文档。
// 用 HSETNX 占坑 code 字段作为存在性守卫；占坑失败即房间码冲突。
func (r *RedisRoomRepository) CreateRoom(ctx context.Context, room *domain.Room) error {
	key := r.roomKey(room.Code)

	ok, err := r.client.HSetNX(ctx, key, "code", room.Code).Result()
	if err != nil {
		return fmt.Errorf("redis: failed to claim room key %s: %w", key, err)
	}
	if !ok {
		return repository.ErrAlreadyExists
	}

	now := time.Now().UnixMilli()
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key,
		"status", string(room.Status),
		"host_id", room.HostID,
		"round", room.Round,
		"current_question", room.CurrentQuestion,
		"voting_started_at", room.VotingStartedAt,
		"question_duration", room.QuestionDuration,
		"language", room.Language,
		"last_active", now,
	)
	for _, q := range room.Questions {
		pipe.RPush(ctx, r.questionsKey(room.Code), q)
	}
	for _, p := range room.Players {
		playerJSON, merr := json.Marshal(p)
		if merr != nil {
			return fmt.Errorf("redis: failed to marshal player for room %s: %w", room.Code, merr)
		}
		pipe.RPush(ctx, r.playersKey(room.Code), playerJSON)
	}
	pipe.SAdd(ctx, r.indexKey(), room.Code)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to write initial document for room %s: %w", room.Code, err)
	}

	r.publish(ctx, room.Code, payloadChanged)
	return nil
}

// GetRoom 从各分片键组装完整文档快照。
func (r *RedisRoomRepository) GetRoom(ctx context.Context, code string) (*domain.Room, error) {
	key := r.roomKey(code)
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to get room %s from %s: %w", code, key, err)
	}
	if len(fields) == 0 {
		// HGETALL 对不存在的键返回空 map 而不是 redis.Nil
		return nil, repository.ErrRoomNotFound
	}

	room := &domain.Room{
		Code:            code,
		Status:          domain.RoomStatus(fields["status"]),
		HostID:          fields["host_id"],
		CurrentQuestion: fields["current_question"],
		Language:        fields["language"],
		Votes:           map[string]int{},
		PlayerVotes:     map[string]string{},
	}
	room.Round, _ = strconv.Atoi(fields["round"])
	room.VotingStartedAt, _ = strconv.ParseInt(fields["voting_started_at"], 10, 64)
	room.QuestionDuration, _ = strconv.Atoi(fields["question_duration"])

	pipe := r.client.Pipeline()
	playersCmd := pipe.LRange(ctx, r.playersKey(code), 0, -1)
	questionsCmd := pipe.LRange(ctx, r.questionsKey(code), 0, -1)
	votesCmd := pipe.HGetAll(ctx, r.votesKey(code))
	playerVotesCmd := pipe.HGetAll(ctx, r.playerVotesKey(code))
	votedCmd := pipe.SMembers(ctx, r.votedKey(code))
	voiceCmd := pipe.SMembers(ctx, r.voiceKey(code))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: failed to read room %s sub-keys: %w", code, err)
	}

	for _, raw := range playersCmd.Val() {
		var p domain.Player
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			logrus.WithError(err).Warnf("redis: skipping malformed player entry in room %s", code)
			continue
		}
		room.Players = append(room.Players, p)
	}
	room.Questions = questionsCmd.Val()
	for target, countStr := range votesCmd.Val() {
		n, perr := strconv.Atoi(countStr)
		if perr != nil {
			logrus.Warnf("redis: invalid vote count '%s' for target %s in room %s", countStr, target, code)
			continue
		}
		room.Votes[target] = n
	}
	for voter, target := range playerVotesCmd.Val() {
		room.PlayerVotes[voter] = target
	}
	room.VotedPlayers = votedCmd.Val()
	room.VoiceParticipants = voiceCmd.Val()

	return room, nil
}

// RoomExists 仅检查文档键是否存在。
func (r *RedisRoomRepository) RoomExists(ctx context.Context, code string) (bool, error) {
	n, err := r.client.Exists(ctx, r.roomKey(code)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to check existence of room %s: %w", code, err)
	}
	return n > 0, nil
}

// DeleteRoom 删除文档的全部键并发布 Deleted 哨兵。
func (r *RedisRoomRepository) DeleteRoom(ctx context.Context, code string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx,
		r.roomKey(code),
		r.playersKey(code),
		r.questionsKey(code),
		r.votesKey(code),
		r.playerVotesKey(code),
		r.votedKey(code),
		r.voiceKey(code),
		r.messagesKey(code),
	)
	pipe.SRem(ctx, r.indexKey(), code)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to delete room %s: %w", code, err)
	}

	r.publish(ctx, code, payloadDeleted)
	return nil
}

// AppendPlayer 原子地追加玩家。RPUSH 保证并发的两次加入都生效，
// 不会像整列表覆盖那样互相吞掉。
func (r *RedisRoomRepository) AppendPlayer(ctx context.Context, code string, p domain.Player) error {
	playerJSON, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal player %s: %w", p.ID, err)
	}
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, r.playersKey(code), playerJSON)
	r.touch(ctx, pipe, code)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to append player %s to room %s: %w", p.ID, code, err)
	}

	r.publish(ctx, code, payloadChanged)
	return nil
}

// ReplacePlayers 覆盖 players 字段（且仅此字段）。
// 离开过滤和计分更新都走这里；写入范围限定在 players 列表键。
func (r *RedisRoomRepository) ReplacePlayers(ctx context.Context, code string, players []domain.Player) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.playersKey(code))
	for _, p := range players {
		playerJSON, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("redis: failed to marshal player %s: %w", p.ID, err)
		}
		pipe.RPush(ctx, r.playersKey(code), playerJSON)
	}
	r.touch(ctx, pipe, code)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to replace players for room %s: %w", code, err)
	}

	r.publish(ctx, code, payloadChanged)
	return nil
}

// SetHost 更新 hostId 字段。
func (r *RedisRoomRepository) SetHost(ctx context.Context, code string, hostID string) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.roomKey(code), "host_id", hostID)
	r.touch(ctx, pipe, code)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to set host for room %s: %w", code, err)
	}

	r.publish(ctx, code, payloadChanged)
	return nil
}

// BeginRound 在一个事务管线里写入新一轮的阶段字段并清空上一轮投票键。
func (r *RedisRoomRepository) BeginRound(ctx context.Context, code string, rs repository.RoundState) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.roomKey(code),
		"status", string(domain.StatusVoting),
		"current_question", rs.Question,
		"round", rs.Round,
		"voting_started_at", rs.VotingStartedAt,
		"question_duration", rs.Duration,
	)
	pipe.Del(ctx, r.votesKey(code), r.playerVotesKey(code), r.votedKey(code))
	r.touch(ctx, pipe, code)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to begin round %d for room %s: %w", rs.Round, code, err)
	}

	r.publish(ctx, code, payloadChanged)
	return nil
}

// CastVote 在同一管线里提交三个字段更新。HINCRBY 保证并发投向
// 同一目标的票互相可交换；三个字段用途不同（计票 vs 计分归因），
// 跨字段的瞬时不一致在 showResults 时点才被消费，因而可容忍。
func (r *RedisRoomRepository) CastVote(ctx context.Context, code string, voterID, targetID string) error {
	pipe := r.client.TxPipeline()
	pipe.HIncrBy(ctx, r.votesKey(code), targetID, 1)
	pipe.HSet(ctx, r.playerVotesKey(code), voterID, targetID)
	pipe.SAdd(ctx, r.votedKey(code), voterID)
	r.touch(ctx, pipe, code)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to cast vote %s->%s in room %s: %w", voterID, targetID, code, err)
	}

	r.publish(ctx, code, payloadChanged)
	return nil
}

// SetStatus 更新 status 字段。
func (r *RedisRoomRepository) SetStatus(ctx context.Context, code string, status domain.RoomStatus) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.roomKey(code), "status", string(status))
	r.touch(ctx, pipe, code)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to set status %s for room %s: %w", status, code, err)
	}

	r.publish(ctx, code, payloadChanged)
	return nil
}

// AddVoiceParticipant 把玩家加入语音参与者集合。
func (r *RedisRoomRepository) AddVoiceParticipant(ctx context.Context, code string, playerID string) error {
	if err := r.client.SAdd(ctx, r.voiceKey(code), playerID).Err(); err != nil {
		return fmt.Errorf("redis: failed to add voice participant %s in room %s: %w", playerID, code, err)
	}
	r.publish(ctx, code, payloadChanged)
	return nil
}

// RemoveVoiceParticipant 把玩家移出语音参与者集合。
func (r *RedisRoomRepository) RemoveVoiceParticipant(ctx context.Context, code string, playerID string) error {
	if err := r.client.SRem(ctx, r.voiceKey(code), playerID).Err(); err != nil {
		return fmt.Errorf("redis: failed to remove voice participant %s in room %s: %w", playerID, code, err)
	}
	r.publish(ctx, code, payloadChanged)
	return nil
}

// Subscribe 建立对房间事件频道的订阅，按提交顺序投递完整快照。
// 单次快照读取失败不终止订阅循环——订阅必须比任何一次失败的变更活得久。
func (r *RedisRoomRepository) Subscribe(ctx context.Context, code string) (<-chan repository.RoomEvent, error) {
	pubsub := r.client.Subscribe(ctx, r.eventsChannel(code))
	// 确认订阅已建立，避免错过紧随其后的变更
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: failed to subscribe to room %s: %w", code, err)
	}

	events := make(chan repository.RoomEvent, 16)
	go func() {
		defer close(events)
		defer pubsub.Close()

		logCtx := logrus.WithFields(logrus.Fields{"room": code, "component": "room_subscription"})
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload == payloadDeleted {
					events <- repository.RoomEvent{Deleted: true}
					return
				}
				snapshot, err := r.GetRoom(ctx, code)
				if err != nil {
					if errors.Is(err, repository.ErrRoomNotFound) {
						// 变更通知和删除竞争时以删除为准
						events <- repository.RoomEvent{Deleted: true}
						return
					}
					logCtx.WithError(err).Warn("Failed to read snapshot after change notification")
					continue
				}
				select {
				case events <- repository.RoomEvent{Snapshot: snapshot}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}

// ListRoomCodes 返回活跃房间码索引，供清扫任务遍历。
func (r *RedisRoomRepository) ListRoomCodes(ctx context.Context) ([]string, error) {
	codes, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to list room codes: %w", err)
	}
	return codes, nil
}

// LastActive 返回房间最后一次写入的时间戳。
func (r *RedisRoomRepository) LastActive(ctx context.Context, code string) (int64, error) {
	val, err := r.client.HGet(ctx, r.roomKey(code), "last_active").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis: failed to get last_active for room %s: %w", code, err)
	}
	ts, perr := strconv.ParseInt(val, 10, 64)
	if perr != nil {
		return 0, fmt.Errorf("redis: failed to parse last_active '%s' for room %s: %w", val, code, perr)
	}
	return ts, nil
}

// --- 私有辅助 ---

// touch 在给定管线上刷新 last_active 时间戳。
func (r *RedisRoomRepository) touch(ctx context.Context, pipe redis.Pipeliner, code string) {
	pipe.HSet(ctx, r.roomKey(code), "last_active", time.Now().UnixMilli())
}

// publish 向房间事件频道发布变更/删除通知。
// 发布失败只记录日志：写入本身已成功，订阅者会在下一次通知时重新同步。
func (r *RedisRoomRepository) publish(ctx context.Context, code string, payload string) {
	if err := r.client.Publish(ctx, r.eventsChannel(code), payload).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"room":    code,
			"payload": payload,
		}).WithError(err).Error("Redis publish failed")
	}
}
