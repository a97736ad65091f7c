package repository

import (
	"context"

	"github.com/meldateksari/SpotTheOne/internal/domain"
)

// ChatRepository 定义房间下属聊天集合的契约：只追加、带顺序的实时查询。
// 追加无需任何跨写入者协调。
type ChatRepository interface {
	// AppendMessage 把消息追加到房间的聊天集合末尾。
	AppendMessage(ctx context.Context, code string, msg *domain.Message) error

	// RecentMessages 按时间顺序返回最近的 limit 条消息。
	RecentMessages(ctx context.Context, code string, limit int) ([]*domain.Message, error)

	// SubscribeMessages 建立对聊天集合的实时订阅，按提交顺序投递新消息。
	SubscribeMessages(ctx context.Context, code string) (<-chan *domain.Message, error)
}
