package service

import (
	"errors"

	"github.com/meldateksari/SpotTheOne/internal/repository"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomCodeTaken      = errors.New("room code already taken")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrPlayerNotInRoom    = errors.New("player not in room")
	ErrAlreadyVoted       = errors.New("player already voted this round")
	ErrWrongPhase         = errors.New("operation not allowed in current room status")
	ErrNotHost            = errors.New("only the host can perform this operation")
	ErrProviderFailure    = errors.New("question provider failed to produce usable questions")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInternalServer     = errors.New("internal server error")
)

// mapRepoError 将仓库层错误映射到服务层错误。
// 未识别的错误统一折叠成 ErrInternalServer，细节留在日志里。
func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return ErrRoomNotFound
	}
	if errors.Is(err, repository.ErrAlreadyExists) {
		return ErrRoomCodeTaken
	}
	return ErrInternalServer
}
