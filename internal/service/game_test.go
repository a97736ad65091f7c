package service

// 白盒测试：需要注入固定时钟来驱动投票计时相关的转移。

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meldateksari/SpotTheOne/internal/domain"
	"github.com/meldateksari/SpotTheOne/internal/repository"
	"github.com/meldateksari/SpotTheOne/internal/repository/mocks"
)

type fakeScheduler struct {
	codes  []string
	delays []time.Duration
}

func (f *fakeScheduler) ScheduleTeardown(ctx context.Context, code string, delay time.Duration) error {
	f.codes = append(f.codes, code)
	f.delays = append(f.delays, delay)
	return nil
}

func newGameService(rooms *mocks.RoomStateRepository, sched TeardownScheduler, now time.Time) *GameService {
	svc := NewGameService(rooms, sched)
	svc.now = func() time.Time { return now }
	return svc
}

func TestGameService_StartRound_FromLobby(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	now := time.Now()

	lobby := &domain.Room{
		Code: "ABCDEF", Status: domain.StatusLobby, Round: 0,
		Questions:        []string{"Q1?", "Q2?"},
		QuestionDuration: 25,
		Players:          []domain.Player{{ID: "a"}, {ID: "b"}},
	}
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(lobby, nil).Once()
	mockRooms.On("BeginRound", mock.Anything, "ABCDEF", repository.RoundState{
		Question:        "Q1?",
		Round:           1,
		VotingStartedAt: now.UnixMilli(),
		Duration:        25,
	}).Return(nil).Once()
	voting := &domain.Room{Code: "ABCDEF", Status: domain.StatusVoting, Round: 1, CurrentQuestion: "Q1?"}
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(voting, nil).Once()

	svc := newGameService(mockRooms, nil, now)
	room, err := svc.StartRound(context.Background(), "ABCDEF", 0)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusVoting, room.Status)
	mockRooms.AssertExpectations(t)
}

func TestGameService_StartRound_PerRoundDuration(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	now := time.Now()

	// 主持人为这一轮单独选了 15 秒，覆盖房间默认的 30 秒
	lobby := &domain.Room{
		Code: "ABCDEF", Status: domain.StatusLobby, Round: 0,
		Questions:        []string{"Q1?"},
		QuestionDuration: 30,
		Players:          []domain.Player{{ID: "a"}, {ID: "b"}},
	}
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(lobby, nil).Once()
	mockRooms.On("BeginRound", mock.Anything, "ABCDEF", repository.RoundState{
		Question:        "Q1?",
		Round:           1,
		VotingStartedAt: now.UnixMilli(),
		Duration:        15,
	}).Return(nil).Once()
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").
		Return(&domain.Room{Code: "ABCDEF", Status: domain.StatusVoting, QuestionDuration: 15}, nil).Once()

	svc := newGameService(mockRooms, nil, now)
	room, err := svc.StartRound(context.Background(), "ABCDEF", 15)

	require.NoError(t, err)
	assert.Equal(t, 15, room.QuestionDuration)
	mockRooms.AssertExpectations(t)
}

func TestGameService_StartRound_ConcurrentTriggerIsNoop(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	voting := &domain.Room{Code: "ABCDEF", Status: domain.StatusVoting, Round: 1}
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(voting, nil).Once()

	svc := newGameService(mockRooms, nil, time.Now())
	room, err := svc.StartRound(context.Background(), "ABCDEF", 0)

	require.NoError(t, err)
	assert.Equal(t, voting, room)
	mockRooms.AssertNotCalled(t, "BeginRound", mock.Anything, mock.Anything, mock.Anything)
}

func TestGameService_StartRound_ExhaustedGoesGameOver(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	sched := &fakeScheduler{}

	exhausted := &domain.Room{
		Code: "ABCDEF", Status: domain.StatusResults, Round: 2,
		Questions: []string{"Q1?", "Q2?"},
	}
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(exhausted, nil).Once()
	mockRooms.On("SetStatus", mock.Anything, "ABCDEF", domain.StatusGameOver).Return(nil).Once()
	over := &domain.Room{Code: "ABCDEF", Status: domain.StatusGameOver}
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(over, nil).Once()

	svc := newGameService(mockRooms, sched, time.Now())
	room, err := svc.StartRound(context.Background(), "ABCDEF", 0)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusGameOver, room.Status)
	// 终局后调度宽限期销毁
	require.Len(t, sched.codes, 1)
	assert.Equal(t, "ABCDEF", sched.codes[0])
	assert.Equal(t, GameoverGrace, sched.delays[0])
	mockRooms.AssertNotCalled(t, "BeginRound", mock.Anything, mock.Anything, mock.Anything)
}

func TestGameService_CastVote_Success(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	voting := &domain.Room{
		Code: "ABCDEF", Status: domain.StatusVoting,
		Players: []domain.Player{{ID: "a"}, {ID: "b"}},
	}
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(voting, nil).Once()
	mockRooms.On("CastVote", mock.Anything, "ABCDEF", "a", "b").Return(nil).Once()

	svc := newGameService(mockRooms, nil, time.Now())
	assert.NoError(t, svc.CastVote(context.Background(), "ABCDEF", "a", "b"))
	mockRooms.AssertExpectations(t)
}

func TestGameService_CastVote_Guards(t *testing.T) {
	now := time.Now()

	t.Run("wrong phase", func(t *testing.T) {
		mockRooms := new(mocks.RoomStateRepository)
		mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(&domain.Room{
			Status: domain.StatusLobby, Players: []domain.Player{{ID: "a"}, {ID: "b"}},
		}, nil).Once()
		svc := newGameService(mockRooms, nil, now)
		assert.ErrorIs(t, svc.CastVote(context.Background(), "ABCDEF", "a", "b"), ErrWrongPhase)
	})

	t.Run("already voted", func(t *testing.T) {
		mockRooms := new(mocks.RoomStateRepository)
		mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(&domain.Room{
			Status: domain.StatusVoting,
			Players: []domain.Player{{ID: "a"}, {ID: "b"}}, VotedPlayers: []string{"a"},
		}, nil).Once()
		svc := newGameService(mockRooms, nil, now)
		assert.ErrorIs(t, svc.CastVote(context.Background(), "ABCDEF", "a", "b"), ErrAlreadyVoted)
	})

	t.Run("target not in room", func(t *testing.T) {
		mockRooms := new(mocks.RoomStateRepository)
		mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(&domain.Room{
			Status: domain.StatusVoting, Players: []domain.Player{{ID: "a"}},
		}, nil).Once()
		svc := newGameService(mockRooms, nil, now)
		assert.ErrorIs(t, svc.CastVote(context.Background(), "ABCDEF", "a", "ghost"), ErrPlayerNotInRoom)
	})

	t.Run("empty ids", func(t *testing.T) {
		svc := newGameService(new(mocks.RoomStateRepository), nil, now)
		assert.ErrorIs(t, svc.CastVote(context.Background(), "ABCDEF", "", "b"), ErrInvalidInput)
	})
}

func TestGameService_ShowResults_ScoresCorrectGuessers(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	now := time.Now()

	// 两人都投了 b：b 是赢家，两人都猜中了多数选择，各 +10
	voting := &domain.Room{
		Code: "ABCDEF", Status: domain.StatusVoting,
		Players:         []domain.Player{{ID: "a", Score: 0}, {ID: "b", Score: 0}},
		Votes:           map[string]int{"b": 2},
		PlayerVotes:     map[string]string{"a": "b", "b": "b"},
		VotedPlayers:    []string{"a", "b"},
		VotingStartedAt: now.Add(-5 * time.Second).UnixMilli(),
		QuestionDuration: 30,
	}
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(voting, nil).Once()
	mockRooms.On("ReplacePlayers", mock.Anything, "ABCDEF", mock.MatchedBy(func(players []domain.Player) bool {
		return len(players) == 2 &&
			players[0].Score == domain.CorrectGuessPoints &&
			players[1].Score == domain.CorrectGuessPoints
	})).Return(nil).Once()
	mockRooms.On("SetStatus", mock.Anything, "ABCDEF", domain.StatusResults).Return(nil).Once()
	results := &domain.Room{Code: "ABCDEF", Status: domain.StatusResults}
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(results, nil).Once()

	svc := newGameService(mockRooms, nil, now)
	room, err := svc.ShowResults(context.Background(), "ABCDEF")

	require.NoError(t, err)
	assert.Equal(t, domain.StatusResults, room.Status)
	mockRooms.AssertExpectations(t)
}

func TestGameService_ShowResults_IdempotentWhenAlreadyResults(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	results := &domain.Room{Code: "ABCDEF", Status: domain.StatusResults}
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(results, nil).Once()

	svc := newGameService(mockRooms, nil, time.Now())
	room, err := svc.ShowResults(context.Background(), "ABCDEF")

	require.NoError(t, err)
	assert.Equal(t, results, room)
	mockRooms.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything)
	mockRooms.AssertNotCalled(t, "ReplacePlayers", mock.Anything, mock.Anything, mock.Anything)
}

func TestGameService_ShowResults_PrematureIsRejected(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	now := time.Now()

	// 还剩 1 秒且未全员投票，门槛未到
	voting := &domain.Room{
		Code: "ABCDEF", Status: domain.StatusVoting,
		Players:          []domain.Player{{ID: "a"}, {ID: "b"}},
		VotedPlayers:     []string{"a"},
		VotingStartedAt:  now.Add(-19 * time.Second).UnixMilli(),
		QuestionDuration: 20,
	}
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(voting, nil).Once()

	svc := newGameService(mockRooms, nil, now)
	_, err := svc.ShowResults(context.Background(), "ABCDEF")
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestGameService_ShowResults_NoVotes(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	now := time.Now()

	// 计时归零但无人投票：不加分，直接进入结果阶段
	voting := &domain.Room{
		Code: "ABCDEF", Status: domain.StatusVoting,
		Players:          []domain.Player{{ID: "a"}, {ID: "b"}},
		Votes:            map[string]int{},
		VotingStartedAt:  now.Add(-30 * time.Second).UnixMilli(),
		QuestionDuration: 20,
	}
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(voting, nil).Once()
	mockRooms.On("SetStatus", mock.Anything, "ABCDEF", domain.StatusResults).Return(nil).Once()
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").
		Return(&domain.Room{Code: "ABCDEF", Status: domain.StatusResults}, nil).Once()

	svc := newGameService(mockRooms, nil, now)
	_, err := svc.ShowResults(context.Background(), "ABCDEF")

	require.NoError(t, err)
	mockRooms.AssertNotCalled(t, "ReplacePlayers", mock.Anything, mock.Anything, mock.Anything)
}

func TestGameService_EndGame(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	sched := &fakeScheduler{}

	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").
		Return(&domain.Room{Code: "ABCDEF", Status: domain.StatusResults}, nil).Once()
	mockRooms.On("SetStatus", mock.Anything, "ABCDEF", domain.StatusGameOver).Return(nil).Once()
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").
		Return(&domain.Room{Code: "ABCDEF", Status: domain.StatusGameOver}, nil).Once()

	svc := newGameService(mockRooms, sched, time.Now())
	room, err := svc.EndGame(context.Background(), "ABCDEF")

	require.NoError(t, err)
	assert.Equal(t, domain.StatusGameOver, room.Status)
	assert.Len(t, sched.codes, 1)
}

func TestGameService_EndGame_IdempotentWhenAlreadyOver(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	sched := &fakeScheduler{}
	over := &domain.Room{Code: "ABCDEF", Status: domain.StatusGameOver}
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(over, nil).Once()

	svc := newGameService(mockRooms, sched, time.Now())
	room, err := svc.EndGame(context.Background(), "ABCDEF")

	require.NoError(t, err)
	assert.Equal(t, over, room)
	assert.Empty(t, sched.codes)
	mockRooms.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything)
}
