package domain

import (
	"sort"
	"time"
)

// RoomStatus 表示房间当前所处的游戏阶段。
type RoomStatus string

const (
	StatusLobby    RoomStatus = "lobby"    // 等待玩家加入
	StatusVoting   RoomStatus = "voting"   // 投票进行中
	StatusResults  RoomStatus = "results"  // 展示本轮结果
	StatusGameOver RoomStatus = "gameover" // 游戏结束，等待定时清理
)

// Valid 检查状态值是否为已知的枚举之一。
func (s RoomStatus) Valid() bool {
	switch s {
	case StatusLobby, StatusVoting, StatusResults, StatusGameOver:
		return true
	}
	return false
}

// Player 表示房间内的一名玩家。Player 内嵌在房间文档中，不是独立集合。
type Player struct {
	ID     string `json:"id"`               // 客户端生成的稳定标识 (uuid)
	Name   string `json:"name"`             // 显示名称
	Score  int    `json:"score"`            // 累计得分，按计分规则递增
	Avatar string `json:"avatar"`           // 可选择的头像精灵标识
	PeerID string `json:"peerId,omitempty"` // 语音层的会话句柄 (协作子系统)
}

// Room 是一局游戏的共享文档，以短房间码为键。
// 所有客户端针对同一份文档做字段级的局部更新，并从完整快照重新推导本地状态。
type Room struct {
	Code              string            `json:"code"`                        // 房间码，≤8 位大写字母数字
	Status            RoomStatus        `json:"status"`                      // 当前协议阶段
	Players           []Player          `json:"players"`                     // 有序玩家列表，id 唯一
	HostID            string            `json:"hostId"`                      // 房主 id；玩家为空时为空串哨兵
	Questions         []string          `json:"questions,omitempty"`         // 创建时生成，之后不可变
	Round             int               `json:"round"`                       // 已开始的轮数 (0 起始索引进 Questions)
	CurrentQuestion   string            `json:"currentQuestion"`             // 当前投票阶段的问题文本
	Votes             map[string]int    `json:"votes"`                       // 被投玩家 id -> 票数
	VotedPlayers      []string          `json:"votedPlayers,omitempty"`      // 本轮已投票的玩家 id 集合
	PlayerVotes       map[string]string `json:"playerVotes,omitempty"`       // 投票人 id -> 目标 id，用于计分归因
	VotingStartedAt   int64             `json:"votingStartedAt,omitempty"`   // 投票阶段开始时间 (unix 毫秒)
	QuestionDuration  int               `json:"questionDuration,omitempty"`  // 本轮投票时长 (秒)，房主可选
	VoiceParticipants []string          `json:"voiceParticipants,omitempty"` // 语音层参与者 id 集合
	Language          string            `json:"language,omitempty"`          // 房间显示语言，加入时同步给所有客户端
}

// DefaultQuestionDuration 是房主未指定时每轮投票的时长（秒）。
const DefaultQuestionDuration = 30

// CorrectGuessPoints 是猜中多数选择时的固定加分。
const CorrectGuessPoints = 10

// HasPlayer 判断指定 id 是否已在玩家列表中。
func (r *Room) HasPlayer(playerID string) bool {
	for _, p := range r.Players {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

// IsHost 判断指定玩家是否为房主。
func (r *Room) IsHost(playerID string) bool {
	return playerID != "" && r.HostID == playerID
}

// HasVoted 判断指定玩家本轮是否已投票。
func (r *Room) HasVoted(playerID string) bool {
	for _, id := range r.VotedPlayers {
		if id == playerID {
			return true
		}
	}
	return false
}

// AllVoted 判断是否所有在场玩家都已投票。
func (r *Room) AllVoted() bool {
	return len(r.Players) > 0 && len(r.VotedPlayers) >= len(r.Players)
}

// QuestionsExhausted 判断题目是否已用尽（轮数到达上限即进入 gameover）。
func (r *Room) QuestionsExhausted() bool {
	return r.Round >= len(r.Questions)
}

// TimeLeft 根据共享的 votingStartedAt 纪元计算剩余秒数。
// 每个客户端用同样的算式推导，保证房主按钮解锁与参与者进度条一致。
func (r *Room) TimeLeft(now time.Time) int {
	if r.VotingStartedAt == 0 {
		return r.QuestionDuration
	}
	elapsed := int((now.UnixMilli() - r.VotingStartedAt) / 1000)
	remaining := r.QuestionDuration - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CanShowResults 是房主结束投票的门槛：全员已投或计时归零。
// 门槛是协作式的，超时后到达的投票在结果写入前依然有效。
func (r *Room) CanShowResults(now time.Time) bool {
	return r.AllVoted() || r.TimeLeft(now) <= 0
}

// Winner 返回本轮得票数严格最高的玩家 id。
// 平票时取 id 字典序最小者，保证所有客户端推导出同一个赢家。
// 无任何投票时返回空串。
func (r *Room) Winner() string {
	if len(r.Votes) == 0 {
		return ""
	}
	ids := make([]string, 0, len(r.Votes))
	for id := range r.Votes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	winner := ""
	best := 0
	for _, id := range ids {
		if r.Votes[id] > best {
			best = r.Votes[id]
			winner = id
		}
	}
	return winner
}

// TallyConsistent 校验 votes 与 votedPlayers 的一致性：
// 所有票数之和应等于已投票人数。showResults 时点上必须成立。
func (r *Room) TallyConsistent() bool {
	total := 0
	for _, n := range r.Votes {
		total += n
	}
	return total == len(r.VotedPlayers)
}

// FindPlayer 按 id 查找玩家，未找到时返回 nil。
func (r *Room) FindPlayer(playerID string) *Player {
	for i := range r.Players {
		if r.Players[i].ID == playerID {
			return &r.Players[i]
		}
	}
	return nil
}

// WithoutPlayer 返回过滤掉指定玩家后的列表副本，原列表不变。
func (r *Room) WithoutPlayer(playerID string) []Player {
	out := make([]Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.ID != playerID {
			out = append(out, p)
		}
	}
	return out
}
