package service

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/meldateksari/SpotTheOne/internal/domain"
	"github.com/meldateksari/SpotTheOne/internal/repository"
)

const (
	roomCodeLength   = 6
	roomCodeCharset  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // 去掉易混淆的 I/O/0/1
	maxCodeAttempts  = 5
	defaultQuestions = 10
)

// RoomService 管理房间的生命周期：创建、加入、离开。
// 所有写入都是字段级的，房间的收敛由共享文档和订阅流保证。
type RoomService struct {
	rooms     repository.RoomStateRepository
	chat      repository.ChatRepository
	questions *QuestionService
	now       func() time.Time
	log       *logrus.Entry
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(rooms repository.RoomStateRepository, chat repository.ChatRepository, questions *QuestionService) *RoomService {
	return &RoomService{
		rooms:     rooms,
		chat:      chat,
		questions: questions,
		now:       time.Now,
		log:       logrus.WithField("component", "room_service"),
	}
}

// CreateRoomInput 描述创建房间的参数。
type CreateRoomInput struct {
	HostName      string
	HostAvatar    string
	Category      string
	Language      string
	QuestionCount int
}

// CreateRoom 生成问题、分配房间码并写入初始文档。
// 房间码冲突时换码重试；提供方失败直接上抛，不创建空题库的房间。
func (s *RoomService) CreateRoom(ctx context.Context, in CreateRoomInput) (*domain.Room, error) {
	if in.HostName == "" {
		return nil, ErrInvalidInput
	}
	if in.QuestionCount <= 0 {
		in.QuestionCount = defaultQuestions
	}

	questions, err := s.questions.Generate(ctx, in.QuestionCount, in.Category, in.Language)
	if err != nil {
		return nil, err
	}

	host := domain.Player{
		ID:     uuid.NewString(),
		Name:   in.HostName,
		Avatar: in.HostAvatar,
	}
	room := &domain.Room{
		Status:           domain.StatusLobby,
		Players:          []domain.Player{host},
		HostID:           host.ID,
		Questions:        questions,
		QuestionDuration: domain.DefaultQuestionDuration,
		Language:         in.Language,
		Votes:            map[string]int{},
		PlayerVotes:      map[string]string{},
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		room.Code = generateRoomCode()
		err = s.rooms.CreateRoom(ctx, room)
		if err == nil {
			s.log.WithFields(logrus.Fields{"room": room.Code, "host": host.ID}).Info("Room created")
			return room, nil
		}
		if !errors.Is(err, repository.ErrAlreadyExists) {
			s.log.WithError(err).Error("Failed to create room")
			return nil, mapRepoError(err)
		}
	}
	s.log.Error("Exhausted room code attempts")
	return nil, ErrInternalServer
}

// JoinRoom 把玩家加入大厅。重复加入是幂等的；
// 游戏已开始的房间拒绝新玩家。
func (s *RoomService) JoinRoom(ctx context.Context, code, playerID, name, avatar string) (*domain.Room, error) {
	if name == "" {
		return nil, ErrInvalidInput
	}
	if playerID == "" {
		playerID = uuid.NewString()
	}

	room, err := s.rooms.GetRoom(ctx, code)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if room.HasPlayer(playerID) {
		return room, nil
	}
	if room.Status != domain.StatusLobby {
		return nil, ErrGameAlreadyStarted
	}

	player := domain.Player{ID: playerID, Name: name, Avatar: avatar}
	if err := s.rooms.AppendPlayer(ctx, code, player); err != nil {
		s.log.WithError(err).WithField("room", code).Error("Failed to append player")
		return nil, mapRepoError(err)
	}
	s.systemMessage(ctx, code, "chat.playerJoined", map[string]string{"name": name})

	room, err = s.rooms.GetRoom(ctx, code)
	if err != nil {
		return nil, mapRepoError(err)
	}
	s.log.WithFields(logrus.Fields{"room": code, "player": playerID}).Info("Player joined")
	return room, nil
}

// LeaveRoom 执行离开协议：过滤玩家列表、必要时移交主持人、
// 最后一人离开时销毁房间。对不存在的房间或玩家是无害的空操作。
func (s *RoomService) LeaveRoom(ctx context.Context, code, playerID string) error {
	room, err := s.rooms.GetRoom(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return mapRepoError(err)
	}

	leaving := room.FindPlayer(playerID)
	if leaving == nil {
		return nil
	}

	// 离场通告在文档变更前发出，订阅者按序收到
	s.systemMessage(ctx, code, "chat.playerLeft", map[string]string{"name": leaving.Name})

	remaining := room.WithoutPlayer(playerID)
	if len(remaining) == 0 {
		if err := s.rooms.DeleteRoom(ctx, code); err != nil {
			s.log.WithError(err).WithField("room", code).Error("Failed to delete empty room")
			return mapRepoError(err)
		}
		s.log.WithField("room", code).Info("Last player left, room deleted")
		return nil
	}

	if err := s.rooms.ReplacePlayers(ctx, code, remaining); err != nil {
		s.log.WithError(err).WithField("room", code).Error("Failed to remove player")
		return mapRepoError(err)
	}
	if room.IsHost(playerID) {
		// 主持人移交给剩余列表中最早加入的玩家
		if err := s.rooms.SetHost(ctx, code, remaining[0].ID); err != nil {
			s.log.WithError(err).WithField("room", code).Error("Failed to hand over host")
			return mapRepoError(err)
		}
		s.log.WithFields(logrus.Fields{"room": code, "new_host": remaining[0].ID}).Info("Host handed over")
	}
	if err := s.rooms.RemoveVoiceParticipant(ctx, code, playerID); err != nil {
		s.log.WithError(err).WithField("room", code).Warn("Failed to remove voice participant on leave")
	}
	return nil
}

// GetRoom 返回当前文档快照。
func (s *RoomService) GetRoom(ctx context.Context, code string) (*domain.Room, error) {
	room, err := s.rooms.GetRoom(ctx, code)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return room, nil
}

// RoomExists 检查房间码是否有效。
func (s *RoomService) RoomExists(ctx context.Context, code string) (bool, error) {
	exists, err := s.rooms.RoomExists(ctx, code)
	if err != nil {
		return false, mapRepoError(err)
	}
	return exists, nil
}

// systemMessage 追加一条系统消息。尽力而为：失败只记日志，
// 聊天通告绝不阻塞房间协议本身。
func (s *RoomService) systemMessage(ctx context.Context, code, key string, params map[string]string) {
	msg := &domain.Message{
		ID:                uuid.NewString(),
		SenderID:          domain.SystemSenderID,
		Text:              key,
		CreatedAt:         s.now().UnixMilli(),
		TranslationKey:    key,
		TranslationParams: params,
	}
	if err := s.chat.AppendMessage(ctx, code, msg); err != nil {
		s.log.WithError(err).WithField("room", code).Warn("Failed to append system message")
	}
}

// generateRoomCode 生成定长的大写房间码。
func generateRoomCode() string {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand 不可用时退回到 uuid 派生
		u := uuid.New()
		copy(buf, u[:roomCodeLength])
	}
	code := make([]byte, roomCodeLength)
	for i, b := range buf {
		code[i] = roomCodeCharset[int(b)%len(roomCodeCharset)]
	}
	return string(code)
}
