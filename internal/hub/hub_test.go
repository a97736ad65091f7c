package hub

// 白盒测试：直接驱动 handleCommand 和客户端发送通道的生命周期。

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meldateksari/SpotTheOne/internal/domain"
	"github.com/meldateksari/SpotTheOne/internal/repository"
	"github.com/meldateksari/SpotTheOne/internal/repository/mocks"
	"github.com/meldateksari/SpotTheOne/internal/service"
)

func newTestHub(mockRooms *mocks.RoomStateRepository, mockChat *mocks.ChatRepository) *Hub {
	roomService := service.NewRoomService(mockRooms, mockChat, nil)
	gameService := service.NewGameService(mockRooms, nil)
	chatService := service.NewChatService(mockRooms, mockChat)
	voiceService := service.NewVoiceService(mockRooms)
	return NewHub(mockRooms, mockChat, roomService, gameService, chatService, voiceService)
}

// readFrame 从客户端发送通道取出下一帧并反序列化。
func readFrame(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case data, ok := <-c.send:
		require.True(t, ok, "send channel closed before frame arrived")
		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &frame))
		return frame
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func TestClient_SendFrameAfterCloseDoesNotPanic(t *testing.T) {
	h := newTestHub(new(mocks.RoomStateRepository), new(mocks.ChatRepository))
	c := NewClient(h, nil, "ABCDEF", "p1")

	c.closeSend()

	// 注销后 Session 订阅流仍可能回调投递快照和关闭帧，必须静默丢弃
	assert.NotPanics(t, func() {
		c.sendFrame(frameSnapshot, map[string]interface{}{"room": &domain.Room{Code: "ABCDEF"}})
		c.sendFrame(frameRoomClosed, nil)
	})
	assert.False(t, c.trySend([]byte("late")))

	// 幂等关闭
	assert.NotPanics(t, c.closeSend)
}

func TestHub_UnregisterThenSessionCallbackDoesNotPanic(t *testing.T) {
	h := newTestHub(new(mocks.RoomStateRepository), new(mocks.ChatRepository))
	c := NewClient(h, nil, "ABCDEF", "p1")
	h.rooms["ABCDEF"] = map[*Client]bool{c: true}

	// 塞满一帧再注销：关闭不得吞掉已排队的数据
	require.True(t, c.trySend([]byte(`{"type":"snapshot"}`)))
	h.unregisterClient(c)

	// 离开协议触发的订阅事件在注销之后到达
	assert.NotPanics(t, func() {
		c.sendFrame(frameSnapshot, map[string]interface{}{"room": &domain.Room{Code: "ABCDEF"}})
	})

	// 排队的帧仍可读出，随后通道关闭
	data, ok := <-c.send
	assert.True(t, ok)
	assert.JSONEq(t, `{"type":"snapshot"}`, string(data))
	_, ok = <-c.send
	assert.False(t, ok)
}

func TestHub_HostOnlyCommandsRejectNonHost(t *testing.T) {
	room := &domain.Room{
		Code: "ABCDEF", Status: domain.StatusLobby, HostID: "host",
		Questions: []string{"Q1?"},
		Players:   []domain.Player{{ID: "host"}, {ID: "p2"}},
	}

	for _, cmdType := range []string{"start_round", "show_results", "end_game"} {
		t.Run(cmdType, func(t *testing.T) {
			mockRooms := new(mocks.RoomStateRepository)
			mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(room, nil)

			h := newTestHub(mockRooms, new(mocks.ChatRepository))
			c := NewClient(h, nil, "ABCDEF", "p2")

			raw, _ := json.Marshal(map[string]interface{}{"type": cmdType})
			h.handleCommand(HubMessage{Type: "command", Client: c, RawData: raw})

			frame := readFrame(t, c)
			assert.Equal(t, frameError, frame["type"])
			assert.Equal(t, service.ErrNotHost.Error(), frame["message"])
			mockRooms.AssertNotCalled(t, "BeginRound", mock.Anything, mock.Anything, mock.Anything)
			mockRooms.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestHub_StartRoundCommandCarriesDuration(t *testing.T) {
	room := &domain.Room{
		Code: "ABCDEF", Status: domain.StatusLobby, HostID: "host",
		Questions:        []string{"Q1?"},
		QuestionDuration: 30,
		Players:          []domain.Player{{ID: "host"}, {ID: "p2"}},
	}
	mockRooms := new(mocks.RoomStateRepository)
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(room, nil)
	mockRooms.On("BeginRound", mock.Anything, "ABCDEF", mock.MatchedBy(func(rs repository.RoundState) bool {
		return rs.Duration == 15 && rs.Round == 1 && rs.Question == "Q1?"
	})).Return(nil).Once()

	h := newTestHub(mockRooms, new(mocks.ChatRepository))
	c := NewClient(h, nil, "ABCDEF", "host")

	raw, _ := json.Marshal(map[string]interface{}{"type": "start_round", "duration": 15})
	h.handleCommand(HubMessage{Type: "command", Client: c, RawData: raw})

	mockRooms.AssertExpectations(t)
}

func TestHub_RequireHostAllowsHost(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(&domain.Room{
		Code: "ABCDEF", HostID: "host", Players: []domain.Player{{ID: "host"}},
	}, nil).Once()

	h := newTestHub(mockRooms, new(mocks.ChatRepository))
	c := NewClient(h, nil, "ABCDEF", "host")

	assert.NoError(t, h.requireHost(context.Background(), c))
}
