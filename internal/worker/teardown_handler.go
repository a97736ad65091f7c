package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/meldateksari/SpotTheOne/internal/domain"
	"github.com/meldateksari/SpotTheOne/internal/repository"
	"github.com/meldateksari/SpotTheOne/internal/tasks"
)

// RoomTeardownHandler 处理终局宽限期后的房间销毁。
type RoomTeardownHandler struct {
	rooms repository.RoomStateRepository
	log   *logrus.Entry
}

// NewRoomTeardownHandler 创建 RoomTeardownHandler 实例。
func NewRoomTeardownHandler(rooms repository.RoomStateRepository) *RoomTeardownHandler {
	return &RoomTeardownHandler{
		rooms: rooms,
		log:   logrus.WithField("component", "teardown_handler"),
	}
}

// ProcessTask 销毁仍处于终局状态的房间。
// 宽限期内房间又活跃起来（状态离开 gameover）则跳过销毁。
func (h *RoomTeardownHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload tasks.RoomTeardownPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("teardown: failed to unmarshal payload: %w", err)
	}
	logCtx := h.log.WithField("room", payload.Code)

	room, err := h.rooms.GetRoom(ctx, payload.Code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logCtx.Debug("Room already gone, nothing to tear down")
			return nil
		}
		return fmt.Errorf("teardown: failed to load room %s: %w", payload.Code, err)
	}
	if room.Status != domain.StatusGameOver {
		logCtx.WithField("status", room.Status).Info("Room left gameover during grace window, skipping teardown")
		return nil
	}

	if err := h.rooms.DeleteRoom(ctx, payload.Code); err != nil {
		return fmt.Errorf("teardown: failed to delete room %s: %w", payload.Code, err)
	}
	logCtx.Info("Room torn down after gameover grace")
	return nil
}
