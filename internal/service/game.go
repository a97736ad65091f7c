package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/meldateksari/SpotTheOne/internal/domain"
	"github.com/meldateksari/SpotTheOne/internal/repository"
)

// GameoverGrace 是终局后房间保留的宽限窗口，之后由后台任务销毁。
const GameoverGrace = 3 * time.Minute

// TeardownScheduler 在终局后调度延迟销毁任务。
type TeardownScheduler interface {
	ScheduleTeardown(ctx context.Context, code string, delay time.Duration) error
}

// GameService 实现回合与投票状态机。
// 状态转移是纯函数式的：任何客户端网关触发同一转移都会收敛到
// 相同的文档状态，幂等守卫挡住重复触发。
type GameService struct {
	rooms     repository.RoomStateRepository
	scheduler TeardownScheduler
	now       func() time.Time
	log       *logrus.Entry
}

// NewGameService 创建 GameService 实例。scheduler 可以为 nil，
// 此时终局房间只靠周期清扫回收。
func NewGameService(rooms repository.RoomStateRepository, scheduler TeardownScheduler) *GameService {
	return &GameService{
		rooms:     rooms,
		scheduler: scheduler,
		now:       time.Now,
		log:       logrus.WithField("component", "game_service"),
	}
}

// StartRound 开启下一轮投票。允许从大厅（首轮）或结果页（后续轮）发起；
// 题库耗尽时转入终局而不是报错。duration 是本轮投票秒数，
// 传 0 沿用房间当前的 questionDuration。
func (s *GameService) StartRound(ctx context.Context, code string, duration int) (*domain.Room, error) {
	room, err := s.rooms.GetRoom(ctx, code)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if room.Status != domain.StatusLobby && room.Status != domain.StatusResults {
		if room.Status == domain.StatusVoting {
			// 并发触发：另一个客户端已经开了这一轮
			return room, nil
		}
		return nil, ErrWrongPhase
	}

	if room.QuestionsExhausted() {
		return s.finishGame(ctx, code)
	}

	if duration <= 0 {
		duration = room.QuestionDuration
	}
	if duration <= 0 {
		duration = domain.DefaultQuestionDuration
	}
	rs := repository.RoundState{
		Question:        room.Questions[room.Round],
		Round:           room.Round + 1,
		VotingStartedAt: s.now().UnixMilli(),
		Duration:        duration,
	}
	if err := s.rooms.BeginRound(ctx, code, rs); err != nil {
		s.log.WithError(err).WithField("room", code).Error("Failed to begin round")
		return nil, mapRepoError(err)
	}
	s.log.WithFields(logrus.Fields{"room": code, "round": rs.Round}).Info("Round started")

	room, err = s.rooms.GetRoom(ctx, code)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return room, nil
}

// CastVote 提交一票。只在投票阶段接受；已投过的玩家被拒绝。
// 结果写入前到达的迟到票照常计入。
func (s *GameService) CastVote(ctx context.Context, code, voterID, targetID string) error {
	if voterID == "" || targetID == "" {
		return ErrInvalidInput
	}
	room, err := s.rooms.GetRoom(ctx, code)
	if err != nil {
		return mapRepoError(err)
	}
	if room.Status != domain.StatusVoting {
		return ErrWrongPhase
	}
	if !room.HasPlayer(voterID) || !room.HasPlayer(targetID) {
		return ErrPlayerNotInRoom
	}
	if room.HasVoted(voterID) {
		return ErrAlreadyVoted
	}

	if err := s.rooms.CastVote(ctx, code, voterID, targetID); err != nil {
		s.log.WithError(err).WithField("room", code).Error("Failed to cast vote")
		return mapRepoError(err)
	}
	return nil
}

// ShowResults 结算当前轮：判定胜者、给猜中的玩家加分、转入结果阶段。
// 引擎不分辨调用方（主持人校验在网关层）；状态守卫让并发触发
// 只结算一次，提前触发（未到时且未全员投票）被拒绝。
func (s *GameService) ShowResults(ctx context.Context, code string) (*domain.Room, error) {
	room, err := s.rooms.GetRoom(ctx, code)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if room.Status == domain.StatusResults {
		return room, nil
	}
	if room.Status != domain.StatusVoting {
		return nil, ErrWrongPhase
	}
	if !room.CanShowResults(s.now()) {
		return nil, ErrWrongPhase
	}

	winnerID := room.Winner()
	if winnerID != "" {
		updated := make([]domain.Player, len(room.Players))
		copy(updated, room.Players)
		for i := range updated {
			if room.PlayerVotes[updated[i].ID] == winnerID {
				updated[i].Score += domain.CorrectGuessPoints
			}
		}
		if err := s.rooms.ReplacePlayers(ctx, code, updated); err != nil {
			s.log.WithError(err).WithField("room", code).Error("Failed to write scores")
			return nil, mapRepoError(err)
		}
	}
	if err := s.rooms.SetStatus(ctx, code, domain.StatusResults); err != nil {
		s.log.WithError(err).WithField("room", code).Error("Failed to enter results")
		return nil, mapRepoError(err)
	}
	s.log.WithFields(logrus.Fields{"room": code, "winner": winnerID}).Info("Round results written")

	room, err = s.rooms.GetRoom(ctx, code)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return room, nil
}

// EndGame 直接转入终局。题库耗尽后的 StartRound 也会走到这里。
func (s *GameService) EndGame(ctx context.Context, code string) (*domain.Room, error) {
	room, err := s.rooms.GetRoom(ctx, code)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if room.Status == domain.StatusGameOver {
		return room, nil
	}
	return s.finishGame(ctx, code)
}

// finishGame 写入终局状态并调度延迟销毁。
func (s *GameService) finishGame(ctx context.Context, code string) (*domain.Room, error) {
	if err := s.rooms.SetStatus(ctx, code, domain.StatusGameOver); err != nil {
		s.log.WithError(err).WithField("room", code).Error("Failed to enter gameover")
		return nil, mapRepoError(err)
	}
	if s.scheduler != nil {
		if err := s.scheduler.ScheduleTeardown(ctx, code, GameoverGrace); err != nil {
			s.log.WithError(err).WithField("room", code).Warn("Failed to schedule room teardown")
		}
	}
	s.log.WithField("room", code).Info("Game over")

	room, err := s.rooms.GetRoom(ctx, code)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return room, nil
}
