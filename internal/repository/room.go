package repository

import (
	"context"

	"github.com/meldateksari/SpotTheOne/internal/domain"
)

// RoomEvent 是订阅流上的一个事件：要么是文档的完整快照，
// 要么是 Deleted 哨兵（房间被删除，订阅随之终止）。
type RoomEvent struct {
	Snapshot *domain.Room
	Deleted  bool
}

// RoundState 是一次 startRound 写入的全部字段，
// 作为单次字段级批量更新提交，避免整文档覆盖。
type RoundState struct {
	Question        string
	Round           int
	VotingStartedAt int64 // unix 毫秒
	Duration        int   // 秒
}

// RoomStateRepository 定义共享房间文档的存储契约，通常由 Redis 实现。
// 所有写操作都是字段级的局部更新：计数器用原子自增，集合用原子增删，
// 绝不做读-改-写的整文档覆盖，以便并发写入者安全组合。
type RoomStateRepository interface {
	// === 文档生命周期 ===

	// CreateRoom 以 create-if-absent 语义写入初始文档。
	// 房间码已被占用时返回 ErrAlreadyExists。
	CreateRoom(ctx context.Context, room *domain.Room) error

	// GetRoom 读取完整文档快照。不存在时返回 ErrRoomNotFound。
	GetRoom(ctx context.Context, code string) (*domain.Room, error)

	// RoomExists 仅检查文档是否存在。
	RoomExists(ctx context.Context, code string) (bool, error)

	// DeleteRoom 删除文档及其全部下属键，并向订阅者发布 Deleted 哨兵。
	// 对不存在的房间是 no-op。
	DeleteRoom(ctx context.Context, code string) error

	// === 成员 ===

	// AppendPlayer 原子地把玩家追加到有序玩家列表末尾。
	// 并发的两次 append 都必须生效（列表追加，不是覆盖）。
	AppendPlayer(ctx context.Context, code string, p domain.Player) error

	// ReplacePlayers 覆盖 players 字段本身（离开过滤、计分更新用）。
	// 写入范围仅限 players 字段，不触碰文档其他字段。
	ReplacePlayers(ctx context.Context, code string, players []domain.Player) error

	// SetHost 更新 hostId 字段。空串表示空房哨兵。
	SetHost(ctx context.Context, code string, hostID string) error

	// === 回合/投票 ===

	// BeginRound 一次性写入新一轮的阶段字段并清空上一轮的投票键。
	BeginRound(ctx context.Context, code string, rs RoundState) error

	// CastVote 在同一管线里提交三个字段更新：
	// votes[target] 原子 +1、playerVotes[voter]=target、votedPlayers 加入 voter。
	CastVote(ctx context.Context, code string, voterID, targetID string) error

	// SetStatus 更新 status 字段。
	SetStatus(ctx context.Context, code string, status domain.RoomStatus) error

	// === 语音层（协作子系统，尽力而为）===

	AddVoiceParticipant(ctx context.Context, code string, playerID string) error
	RemoveVoiceParticipant(ctx context.Context, code string, playerID string) error

	// === 订阅 ===

	// Subscribe 建立对指定房间的实时订阅。每次变更到达时投递一份
	// 完整文档快照；房间删除时投递 Deleted 哨兵并关闭通道。
	// ctx 取消后订阅终止、通道关闭。
	Subscribe(ctx context.Context, code string) (<-chan RoomEvent, error)

	// === 清扫（GC 兜底）===

	// ListRoomCodes 返回当前活跃房间码索引。
	ListRoomCodes(ctx context.Context) ([]string, error)

	// LastActive 返回房间最后一次写入的时间戳 (unix 毫秒)；无记录时返回 0。
	LastActive(ctx context.Context, code string) (int64, error)
}
