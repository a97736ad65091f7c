package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// 任务类型名
const (
	TypeRoomTeardown = "room:teardown"
	TypeRoomSweep    = "room:sweep"
)

// RoomTeardownPayload 是延迟销毁任务的载荷。
type RoomTeardownPayload struct {
	Code string `json:"code"`
}

// NewRoomTeardownTask 创建房间销毁任务。
func NewRoomTeardownTask(code string) (*asynq.Task, error) {
	payload, err := json.Marshal(RoomTeardownPayload{Code: code})
	if err != nil {
		return nil, fmt.Errorf("tasks: failed to marshal teardown payload: %w", err)
	}
	return asynq.NewTask(TypeRoomTeardown, payload), nil
}

// NewRoomSweepTask 创建周期性的陈旧房间清扫任务。
func NewRoomSweepTask() *asynq.Task {
	return asynq.NewTask(TypeRoomSweep, nil)
}

// Scheduler 通过 asynq 客户端调度延迟任务。
type Scheduler struct {
	client *asynq.Client
}

// NewScheduler 创建 Scheduler 实例。
func NewScheduler(client *asynq.Client) *Scheduler {
	if client == nil {
		panic("asynq client cannot be nil for Scheduler")
	}
	return &Scheduler{client: client}
}

// ScheduleTeardown 在 delay 之后调度一次房间销毁。
func (s *Scheduler) ScheduleTeardown(ctx context.Context, code string, delay time.Duration) error {
	task, err := NewRoomTeardownTask(code)
	if err != nil {
		return err
	}
	_, err = s.client.EnqueueContext(ctx, task, asynq.ProcessIn(delay), asynq.Queue("default"))
	if err != nil {
		return fmt.Errorf("tasks: failed to enqueue teardown for room %s: %w", code, err)
	}
	return nil
}
