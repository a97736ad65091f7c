package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meldateksari/SpotTheOne/internal/domain"
	httpHandler "github.com/meldateksari/SpotTheOne/internal/handler/http"
	"github.com/meldateksari/SpotTheOne/internal/repository"
	"github.com/meldateksari/SpotTheOne/internal/repository/mocks"
	"github.com/meldateksari/SpotTheOne/internal/service"
)

// newTestRouter 用 mock 仓库搭一个最小路由。
func newTestRouter(rooms *mocks.RoomStateRepository, chat *mocks.ChatRepository, provider *mocks.QuestionProvider) *gin.Engine {
	gin.SetMode(gin.TestMode)

	questionService := service.NewQuestionService(provider)
	roomService := service.NewRoomService(rooms, chat, questionService)
	gameService := service.NewGameService(rooms, nil)

	roomHandler := httpHandler.NewRoomHandler(roomService)
	gameHandler := httpHandler.NewGameHandler(roomService, gameService)

	router := gin.New()
	api := router.Group("/api/rooms")
	api.POST("", roomHandler.CreateRoom)
	api.GET("/:code", roomHandler.GetRoom)
	api.POST("/:code/join", roomHandler.JoinRoom)
	api.POST("/:code/start", gameHandler.StartRound)
	api.POST("/:code/vote", gameHandler.CastVote)
	api.POST("/:code/results", gameHandler.ShowResults)
	return router
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestRoomHandler_CreateRoom_Created(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	mockProvider := new(mocks.QuestionProvider)
	mockProvider.On("Generate", mock.Anything, mock.Anything).Return(`["Q1?"]`, nil).Once()
	mockRooms.On("CreateRoom", mock.Anything, mock.Anything).Return(nil).Once()

	router := newTestRouter(mockRooms, new(mocks.ChatRepository), mockProvider)
	w := doJSON(router, "POST", "/api/rooms", `{"hostName":"alice","questionCount":1}`)

	require.Equal(t, http.StatusCreated, w.Code)
	var room domain.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	assert.Len(t, room.Code, 6)
	assert.Equal(t, "alice", room.Players[0].Name)
}

func TestRoomHandler_CreateRoom_MissingName(t *testing.T) {
	router := newTestRouter(new(mocks.RoomStateRepository), new(mocks.ChatRepository), new(mocks.QuestionProvider))
	w := doJSON(router, "POST", "/api/rooms", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoomHandler_GetRoom_NotFound(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	mockRooms.On("GetRoom", mock.Anything, "GONE11").Return(nil, repository.ErrRoomNotFound).Once()

	router := newTestRouter(mockRooms, new(mocks.ChatRepository), new(mocks.QuestionProvider))
	w := doJSON(router, "GET", "/api/rooms/GONE11", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoomHandler_JoinRoom_ConflictAfterStart(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(&domain.Room{
		Code: "ABCDEF", Status: domain.StatusVoting,
		Players: []domain.Player{{ID: "h"}},
	}, nil).Once()

	router := newTestRouter(mockRooms, new(mocks.ChatRepository), new(mocks.QuestionProvider))
	w := doJSON(router, "POST", "/api/rooms/ABCDEF/join", `{"name":"bob"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGameHandler_StartRound_NonHostForbidden(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(&domain.Room{
		Code: "ABCDEF", Status: domain.StatusLobby, HostID: "h",
		Players: []domain.Player{{ID: "h"}, {ID: "p2"}},
	}, nil).Once()

	router := newTestRouter(mockRooms, new(mocks.ChatRepository), new(mocks.QuestionProvider))
	w := doJSON(router, "POST", "/api/rooms/ABCDEF/start", `{"playerId":"p2"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGameHandler_StartRound_ForwardsDuration(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	lobby := &domain.Room{
		Code: "ABCDEF", Status: domain.StatusLobby, HostID: "h",
		Questions:        []string{"Q1?"},
		QuestionDuration: 30,
		Players:          []domain.Player{{ID: "h"}, {ID: "p2"}},
	}
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(lobby, nil)
	mockRooms.On("BeginRound", mock.Anything, "ABCDEF", mock.MatchedBy(func(rs repository.RoundState) bool {
		return rs.Duration == 20
	})).Return(nil).Once()

	router := newTestRouter(mockRooms, new(mocks.ChatRepository), new(mocks.QuestionProvider))
	w := doJSON(router, "POST", "/api/rooms/ABCDEF/start", `{"playerId":"h","duration":20}`)

	assert.Equal(t, http.StatusOK, w.Code)
	mockRooms.AssertExpectations(t)
}

func TestGameHandler_ShowResults_NonHostForbidden(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(&domain.Room{
		Code: "ABCDEF", Status: domain.StatusVoting, HostID: "h",
		Players:      []domain.Player{{ID: "h"}, {ID: "p2"}},
		VotedPlayers: []string{"h", "p2"},
	}, nil).Once()

	router := newTestRouter(mockRooms, new(mocks.ChatRepository), new(mocks.QuestionProvider))
	w := doJSON(router, "POST", "/api/rooms/ABCDEF/results", `{"playerId":"p2"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	mockRooms.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestGameHandler_CastVote_AlreadyVotedConflict(t *testing.T) {
	mockRooms := new(mocks.RoomStateRepository)
	mockRooms.On("GetRoom", mock.Anything, "ABCDEF").Return(&domain.Room{
		Code: "ABCDEF", Status: domain.StatusVoting,
		Players:      []domain.Player{{ID: "a"}, {ID: "b"}},
		VotedPlayers: []string{"a"},
	}, nil).Once()

	router := newTestRouter(mockRooms, new(mocks.ChatRepository), new(mocks.QuestionProvider))
	w := doJSON(router, "POST", "/api/rooms/ABCDEF/vote", `{"playerId":"a","targetId":"b"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}
