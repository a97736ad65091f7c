package session

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/meldateksari/SpotTheOne/internal/domain"
	"github.com/meldateksari/SpotTheOne/internal/repository"
)

// LeaveFunc 执行离开协议。由服务层注入，Session 保证至多调用一次。
type LeaveFunc func(ctx context.Context, code, playerID string) error

// Session 是单个玩家对单个房间的响应式视图。
// 它持有唯一一条订阅流，把每个事件整体替换为本地快照，
// 并维护从快照推导出的视图状态。删除哨兵到达后会话终止。
type Session struct {
	rooms    repository.RoomStateRepository
	leave    LeaveFunc
	code     string
	playerID string

	mu           sync.RWMutex
	current      *domain.Room
	showGameOver bool
	closed       bool

	leaveOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}

	onUpdate func(*domain.Room)
	onClosed func()

	log *logrus.Entry
}

// Option 配置 Session 的回调。
type Option func(*Session)

// WithUpdateCallback 注册快照替换后的回调。
func WithUpdateCallback(fn func(*domain.Room)) Option {
	return func(s *Session) { s.onUpdate = fn }
}

// WithClosedCallback 注册会话终止（房间被删除或订阅断开）时的回调。
func WithClosedCallback(fn func()) Option {
	return func(s *Session) { s.onClosed = fn }
}

// New 创建 Session 实例。
func New(rooms repository.RoomStateRepository, leave LeaveFunc, code, playerID string, opts ...Option) *Session {
	s := &Session{
		rooms:    rooms,
		leave:    leave,
		code:     code,
		playerID: playerID,
		done:     make(chan struct{}),
		log: logrus.WithFields(logrus.Fields{
			"component": "session",
			"room":      code,
			"player":    playerID,
		}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start 读取初始快照并开始消费订阅流。
func (s *Session) Start(ctx context.Context) error {
	initial, err := s.rooms.GetRoom(ctx, s.code)
	if err != nil {
		return err
	}

	subCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	events, err := s.rooms.Subscribe(subCtx, s.code)
	if err != nil {
		cancel()
		return err
	}

	s.apply(initial)
	go s.consume(events)
	return nil
}

// consume 按序消费事件流直到删除哨兵或流关闭。
func (s *Session) consume(events <-chan repository.RoomEvent) {
	defer close(s.done)
	for ev := range events {
		if ev.Deleted {
			s.log.Info("Room deleted, session closed")
			s.markClosed()
			return
		}
		s.apply(ev.Snapshot)
	}
	// 流在没有删除哨兵的情况下关闭：订阅断开
	s.markClosed()
}

// apply 整体替换本地快照并更新推导状态。
// 终局标志是粘性的：一旦看到 gameover 就保持，
// 这样宽限期内的删除不会把玩家踢回空白页。
func (s *Session) apply(room *domain.Room) {
	s.mu.Lock()
	s.current = room
	if room.Status == domain.StatusGameOver {
		s.showGameOver = true
	}
	cb := s.onUpdate
	s.mu.Unlock()

	if cb != nil {
		cb(room)
	}
}

func (s *Session) markClosed() {
	s.mu.Lock()
	alreadyClosed := s.closed
	s.closed = true
	cb := s.onClosed
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if cb != nil && !alreadyClosed {
		cb()
	}
}

// Room 返回最近一次应用的快照。
func (s *Session) Room() *domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// HasVoted 报告本玩家在当前轮是否已投票。
// 新一轮开始时 votedPlayers 被清空，该标志随快照自动复位。
func (s *Session) HasVoted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil && s.current.HasVoted(s.playerID)
}

// ShowGameOver 报告是否应展示终局画面。
func (s *Session) ShowGameOver() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.showGameOver
}

// Closed 报告会话是否已终止。
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Leave 执行一次性的离开协议。断连清理和主动离开都经过这里，
// sync.Once 保证两条路径竞争时协议只跑一遍。
func (s *Session) Leave(ctx context.Context) error {
	var err error
	s.leaveOnce.Do(func() {
		if s.leave != nil {
			err = s.leave(ctx, s.code, s.playerID)
		}
		if s.cancel != nil {
			s.cancel()
		}
	})
	return err
}

// Done 在事件流终止后关闭。
func (s *Session) Done() <-chan struct{} {
	return s.done
}
