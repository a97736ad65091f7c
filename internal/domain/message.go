package domain

// SystemSenderID 是系统消息（如"玩家离开"）的发送者标识。
const SystemSenderID = "system"

// ReplyRef 是被回复消息的反规范化快照，随消息一起存储，
// 避免渲染时再按 id 反查。
type ReplyRef struct {
	MessageID  string `json:"messageId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
}

// Message 是房间下属只追加聊天集合中的一条消息。
type Message struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
	CreatedAt  int64  `json:"createdAt"` // unix 毫秒

	ReplyTo *ReplyRef `json:"replyTo,omitempty"`

	// 系统生成的消息携带翻译键而非最终文案，由各客户端按房间语言渲染。
	TranslationKey    string            `json:"translationKey,omitempty"`
	TranslationParams map[string]string `json:"translationParams,omitempty"`
}

// IsSystem 判断消息是否为系统消息。
func (m *Message) IsSystem() bool {
	return m.SenderID == SystemSenderID
}
