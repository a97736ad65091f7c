package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/meldateksari/SpotTheOne/internal/domain"
	"github.com/meldateksari/SpotTheOne/internal/repository"
	"github.com/meldateksari/SpotTheOne/internal/service"
	"github.com/meldateksari/SpotTheOne/internal/session"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 2048
)

// 下行帧类型
const (
	frameSnapshot   = "snapshot"
	frameChat       = "chat"
	frameRoomClosed = "room_closed"
	frameError      = "error"
)

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type    string // "register", "unregister", "command"
	Client  *Client
	RawData []byte // 仅用于 command
}

// command 是客户端上行帧的统一形状。
type command struct {
	Type     string           `json:"type"`
	TargetID string           `json:"targetId,omitempty"`
	Text     string           `json:"text,omitempty"`
	ReplyTo  *domain.ReplyRef `json:"replyTo,omitempty"`
	PeerID   string           `json:"peerId,omitempty"`
	Duration int              `json:"duration,omitempty"`
}

// Hub 维护活跃客户端集合并分发客户端命令。
// 房间快照不经过 Hub：每个客户端的 Session 直接消费订阅流。
// Hub 只为聊天流维护每房间一个的观察者并向房间内广播。
type Hub struct {
	messageChan chan HubMessage

	// map[roomCode]map[*Client]bool
	rooms   map[string]map[*Client]bool
	roomsMu sync.RWMutex

	// 每房间一个聊天观察者的取消函数
	chatWatchers map[string]context.CancelFunc

	states repository.RoomStateRepository
	chat   repository.ChatRepository

	roomService  *service.RoomService
	gameService  *service.GameService
	chatService  *service.ChatService
	voiceService *service.VoiceService
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(
	states repository.RoomStateRepository,
	chat repository.ChatRepository,
	roomService *service.RoomService,
	gameService *service.GameService,
	chatService *service.ChatService,
	voiceService *service.VoiceService,
) *Hub {
	if states == nil || roomService == nil || gameService == nil {
		panic("Hub dependencies cannot be nil")
	}
	return &Hub{
		messageChan:  make(chan HubMessage, 512),
		rooms:        make(map[string]map[*Client]bool),
		chatWatchers: make(map[string]context.CancelFunc),
		states:       states,
		chat:         chat,
		roomService:  roomService,
		gameService:  gameService,
		chatService:  chatService,
		voiceService: voiceService,
	}
}

// Run 启动 Hub 的主事件处理循环。应在单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.Type {
		case "register":
			h.registerClient(msg.Client)
		case "unregister":
			h.unregisterClient(msg.Client)
		case "command":
			// 异步处理，避免慢命令阻塞 Hub 主循环
			go h.handleCommand(msg)
		default:
			log.Warnf("Hub: Received unknown message type: %s", msg.Type)
		}
	}
	log.Info("Hub is shutting down...")
}

// registerClient 把客户端加入房间登记表并启动其 Session。
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	code := client.RoomCode()
	logCtx := logrus.WithFields(logrus.Fields{
		"room":   code,
		"player": client.PlayerID(),
		"action": "registerClient",
	})

	h.roomsMu.Lock()
	if _, ok := h.rooms[code]; !ok {
		h.rooms[code] = make(map[*Client]bool)
		h.startChatWatcher(code)
		logCtx.Info("Client list created for new room")
	}
	h.rooms[code][client] = true
	h.roomsMu.Unlock()
	logCtx.Info("Client registered to Hub")

	// Session 的回调把快照帧直接喂给该客户端的发送通道
	sess := session.New(h.states, h.roomService.LeaveRoom, code, client.PlayerID(),
		session.WithUpdateCallback(func(room *domain.Room) {
			client.sendFrame(frameSnapshot, map[string]interface{}{"room": room})
		}),
		session.WithClosedCallback(func() {
			client.sendFrame(frameRoomClosed, nil)
			h.QueueMessage(HubMessage{Type: "unregister", Client: client})
		}),
	)
	client.sess = sess

	if err := sess.Start(context.Background()); err != nil {
		logCtx.WithError(err).Error("Failed to start room session")
		client.sendFrame(frameError, map[string]interface{}{"message": "failed to load room"})
		h.QueueMessage(HubMessage{Type: "unregister", Client: client})
	}
}

// unregisterClient 把客户端移出登记表并触发一次性的离开协议。
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	code := client.RoomCode()
	logCtx := logrus.WithFields(logrus.Fields{
		"room":   code,
		"player": client.PlayerID(),
		"action": "unregisterClient",
	})

	h.roomsMu.Lock()
	if roomClients, ok := h.rooms[code]; ok {
		if _, exists := roomClients[client]; exists {
			delete(roomClients, client)
			client.closeSend()
			if len(roomClients) == 0 {
				delete(h.rooms, code)
				if cancel, ok := h.chatWatchers[code]; ok {
					cancel()
					delete(h.chatWatchers, code)
				}
				logCtx.Info("Room empty, removed from Hub")
			}
		}
	}
	h.roomsMu.Unlock()

	// 断连即离开：Session 保证协议至多执行一次
	if client.sess != nil {
		if err := client.sess.Leave(context.Background()); err != nil {
			logCtx.WithError(err).Warn("Leave protocol failed during unregister")
		}
	}
	logCtx.Info("Client unregistered from Hub")
}

// startChatWatcher 为房间启动聊天流观察者，调用方需持有 roomsMu。
func (h *Hub) startChatWatcher(code string) {
	if h.chat == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.chatWatchers[code] = cancel

	go func() {
		logCtx := logrus.WithFields(logrus.Fields{"component": "hub", "room": code})
		messages, err := h.chat.SubscribeMessages(ctx, code)
		if err != nil {
			logCtx.WithError(err).Error("Failed to subscribe to chat stream")
			return
		}
		for msg := range messages {
			payload, err := json.Marshal(map[string]interface{}{
				"type":    frameChat,
				"message": msg,
			})
			if err != nil {
				logCtx.WithError(err).Error("Failed to marshal chat frame")
				continue
			}
			h.broadcast(code, payload)
		}
	}()
}

// requireHost 用最新快照校验客户端是房间主持人。
// 主持人可能在快照之间换人，所以每次命令都重新读取。
func (h *Hub) requireHost(ctx context.Context, client *Client) error {
	room, err := h.roomService.GetRoom(ctx, client.RoomCode())
	if err != nil {
		return err
	}
	if !room.IsHost(client.PlayerID()) {
		return service.ErrNotHost
	}
	return nil
}

// handleCommand 解析并执行客户端命令。
func (h *Hub) handleCommand(msg HubMessage) {
	ctx := context.Background()
	client := msg.Client
	logCtx := logrus.WithFields(logrus.Fields{
		"room":      client.RoomCode(),
		"player":    client.PlayerID(),
		"operation": "handleCommand",
	})

	var cmd command
	if err := json.Unmarshal(msg.RawData, &cmd); err != nil {
		logCtx.WithError(err).Warn("Malformed client command")
		client.sendFrame(frameError, map[string]interface{}{"message": "malformed command"})
		return
	}

	var err error
	switch cmd.Type {
	case "vote":
		err = h.gameService.CastVote(ctx, client.RoomCode(), client.PlayerID(), cmd.TargetID)
	case "start_round":
		if err = h.requireHost(ctx, client); err == nil {
			_, err = h.gameService.StartRound(ctx, client.RoomCode(), cmd.Duration)
		}
	case "show_results":
		if err = h.requireHost(ctx, client); err == nil {
			_, err = h.gameService.ShowResults(ctx, client.RoomCode())
		}
	case "end_game":
		if err = h.requireHost(ctx, client); err == nil {
			_, err = h.gameService.EndGame(ctx, client.RoomCode())
		}
	case "chat":
		_, err = h.chatService.SendMessage(ctx, client.RoomCode(), client.PlayerID(), cmd.Text, cmd.ReplyTo)
	case "voice_join":
		err = h.voiceService.Join(ctx, client.RoomCode(), client.PlayerID(), cmd.PeerID)
	case "voice_leave":
		err = h.voiceService.Leave(ctx, client.RoomCode(), client.PlayerID())
	case "leave":
		h.QueueMessage(HubMessage{Type: "unregister", Client: client})
		client.CloseConn()
		return
	default:
		logCtx.Warnf("Unknown command type: %s", cmd.Type)
		client.sendFrame(frameError, map[string]interface{}{"message": "unknown command"})
		return
	}

	if err != nil {
		logCtx.WithError(err).WithField("command", cmd.Type).Warn("Command rejected")
		client.sendFrame(frameError, map[string]interface{}{
			"command": cmd.Type,
			"message": err.Error(),
		})
	}
}

// broadcast 将消息发送给指定房间的所有客户端。
func (h *Hub) broadcast(code string, message []byte) {
	h.roomsMu.RLock()
	roomClients, ok := h.rooms[code]
	clientsToSend := make([]*Client, 0, len(roomClients))
	if ok {
		for client := range roomClients {
			clientsToSend = append(clientsToSend, client)
		}
	}
	h.roomsMu.RUnlock()

	if len(clientsToSend) == 0 {
		return
	}
	for _, client := range clientsToSend {
		// 非阻塞发送，慢客户端或刚注销的客户端不拖累整个房间
		if !client.trySend(message) {
			logrus.WithFields(logrus.Fields{
				"room":     code,
				"receiver": client.PlayerID(),
			}).Warn("Skipping client during broadcast, send channel closed or full")
		}
	}
}

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)。
// 返回 true 如果消息成功入队，false 如果队列已满。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithField("message_type", msg.Type).Warn("Hub message channel full, dropping message")
		return false
	}
}
