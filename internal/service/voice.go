package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/meldateksari/SpotTheOne/internal/repository"
)

// VoiceService 维护语音参与者集合。集合操作天然幂等，
// 重复的加入/退出不需要额外守卫。
type VoiceService struct {
	rooms repository.RoomStateRepository
	log   *logrus.Entry
}

// NewVoiceService 创建 VoiceService 实例。
func NewVoiceService(rooms repository.RoomStateRepository) *VoiceService {
	return &VoiceService{
		rooms: rooms,
		log:   logrus.WithField("component", "voice_service"),
	}
}

// Join 把玩家加入语音参与者集合，并记录其 PeerID 供对端建连。
func (s *VoiceService) Join(ctx context.Context, code, playerID, peerID string) error {
	room, err := s.rooms.GetRoom(ctx, code)
	if err != nil {
		return mapRepoError(err)
	}
	if !room.HasPlayer(playerID) {
		return ErrPlayerNotInRoom
	}

	if peerID != "" {
		updated := room.Players
		for i := range updated {
			if updated[i].ID == playerID {
				updated[i].PeerID = peerID
			}
		}
		if err := s.rooms.ReplacePlayers(ctx, code, updated); err != nil {
			s.log.WithError(err).WithField("room", code).Error("Failed to record peer id")
			return mapRepoError(err)
		}
	}
	if err := s.rooms.AddVoiceParticipant(ctx, code, playerID); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// Leave 把玩家移出语音参与者集合。
func (s *VoiceService) Leave(ctx context.Context, code, playerID string) error {
	if err := s.rooms.RemoveVoiceParticipant(ctx, code, playerID); err != nil {
		return mapRepoError(err)
	}
	return nil
}
