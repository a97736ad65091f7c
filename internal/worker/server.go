package worker

import (
	"context"
	"errors"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/meldateksari/SpotTheOne/internal/repository"
	"github.com/meldateksari/SpotTheOne/internal/tasks"
)

// WorkerServer 封装了 Asynq Worker Server 的启动和关闭逻辑。
// 它消费延迟的房间销毁任务和周期性的陈旧房间清扫任务。
type WorkerServer struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	log       *logrus.Entry
	rooms     repository.RoomStateRepository
}

// NewWorkerServer 创建一个新的 WorkerServer 实例
func NewWorkerServer(redisOpt asynq.RedisClientOpt, rooms repository.RoomStateRepository, logger *logrus.Logger) *WorkerServer {
	logEntry := logger.WithField("component", "worker_server")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID := ""
				if rw := task.ResultWriter(); rw != nil {
					taskID = rw.TaskID()
				}
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_id":   taskID,
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
		},
	)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})

	return &WorkerServer{
		server:    server,
		scheduler: scheduler,
		log:       logEntry,
		rooms:     rooms,
	}
}

// Start 运行 Worker Server 和周期任务调度器。
// 它应该在一个单独的 goroutine 中调用。
func (ws *WorkerServer) Start() {
	mux := asynq.NewServeMux()

	teardownHandler := NewRoomTeardownHandler(ws.rooms)
	mux.HandleFunc(tasks.TypeRoomTeardown, teardownHandler.ProcessTask)

	sweepHandler := NewRoomSweepHandler(ws.rooms)
	mux.HandleFunc(tasks.TypeRoomSweep, sweepHandler.ProcessTask)

	// 每 10 分钟清扫一次陈旧房间
	if _, err := ws.scheduler.Register("@every 10m", tasks.NewRoomSweepTask(), asynq.Queue("low")); err != nil {
		ws.log.WithError(err).Error("Failed to register room sweep schedule")
	}
	go func() {
		if err := ws.scheduler.Run(); err != nil {
			ws.log.WithError(err).Error("Scheduler stopped unexpectedly")
		}
	}()

	ws.log.Info("Worker server starting...")
	if err := ws.server.Run(mux); err != nil {
		if !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, asynq.ErrServerClosed) {
			ws.log.Fatalf("Could not run worker server: %v", err)
		} else {
			ws.log.Info("Worker server stopped.")
		}
	}
}

// Shutdown 优雅地关闭 Worker Server
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	ws.scheduler.Shutdown()
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down complete.")
}
