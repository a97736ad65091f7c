package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/meldateksari/SpotTheOne/internal/repository"
)

// 超过该时长没有任何写入的房间视为被遗弃。
const staleRoomTTL = 2 * time.Hour

// RoomSweepHandler 周期性地回收被遗弃的房间。
// 它兜底两类泄漏：所有客户端都没走完离开协议的房间，
// 以及销毁任务丢失的终局房间。
type RoomSweepHandler struct {
	rooms repository.RoomStateRepository
	log   *logrus.Entry
}

// NewRoomSweepHandler 创建 RoomSweepHandler 实例。
func NewRoomSweepHandler(rooms repository.RoomStateRepository) *RoomSweepHandler {
	return &RoomSweepHandler{
		rooms: rooms,
		log:   logrus.WithField("component", "sweep_handler"),
	}
}

// ProcessTask 遍历房间索引并删除陈旧的房间。
// 单个房间的失败不中断整轮清扫。
func (h *RoomSweepHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	codes, err := h.rooms.ListRoomCodes(ctx)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-staleRoomTTL).UnixMilli()
	swept := 0
	for _, code := range codes {
		lastActive, err := h.rooms.LastActive(ctx, code)
		if err != nil {
			h.log.WithError(err).WithField("room", code).Warn("Failed to read last_active, skipping")
			continue
		}
		if lastActive == 0 {
			// 索引里有但文档没了：清掉悬挂的索引项
			if err := h.rooms.DeleteRoom(ctx, code); err != nil {
				h.log.WithError(err).WithField("room", code).Warn("Failed to prune dangling index entry")
			}
			continue
		}
		if lastActive >= cutoff {
			continue
		}
		if err := h.rooms.DeleteRoom(ctx, code); err != nil {
			h.log.WithError(err).WithField("room", code).Warn("Failed to sweep stale room")
			continue
		}
		swept++
	}

	if swept > 0 {
		h.log.WithFields(logrus.Fields{"total": len(codes), "swept": swept}).Info("Stale room sweep complete")
	}
	return nil
}
