package ws

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/auth"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/event"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/metrics"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/notify"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/presence"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	maxFrameSize   = 1 << 20 // 1MB，足够容纳 SDP 信令
	sendBufferSize = 256
	lookupTimeout  = 2 * time.Second
)

// ChatAccess 判断用户是否为会话参与者，joinChat 前调用。
type ChatAccess interface {
	CanJoinChat(ctx context.Context, userID, chatID string) (bool, error)
}

type Options struct {
	JWTSecret string
	// PongWait 是空闲连接的超时时间，ping 间隔取其 9/10。
	PongWait time.Duration
	// Access 为 nil 时任何会话都可以加入。
	Access ChatAccess
	// Presence 为 nil 时不记录在线状态。
	Presence presence.Tracker
	// Notifier 用于转发呼叫信令，多实例部署时经由 NATS；为 nil 时直接投递到本地 Hub。
	Notifier notify.Notifier
	// AllowedOrigins 为空时接受任意来源的握手。
	AllowedOrigins []string
	EventRate      rate.Limit
	EventBurst     int
}

// Server 是房间中继的 WebSocket 入口：握手时校验 token，之后按事件名转发。
type Server struct {
	hub      *Hub
	opts     Options
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, opts Options) *Server {
	if opts.PongWait <= 0 {
		opts.PongWait = 60 * time.Second
	}
	if opts.EventRate <= 0 {
		opts.EventRate = 20
	}
	if opts.EventBurst <= 0 {
		opts.EventBurst = 40
	}
	if opts.Notifier == nil {
		opts.Notifier = hub
	}
	s := &Server{hub: hub, opts: opts}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(s.opts.AllowedOrigins, origin)
}

// Client 是一条物理连接。rooms 只在持有 Hub.mu 时访问；announced 只由读协程访问。
type Client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	userID    string
	rooms     map[string]struct{}
	announced bool
	limiter   *rate.Limiter
}

func newClient(conn *websocket.Conn, userID string, limiter *rate.Limiter) *Client {
	return &Client{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		userID:  userID,
		rooms:   make(map[string]struct{}),
		limiter: limiter,
	}
}

// Serve 完成握手并在当前 goroutine 中运行读循环，直到连接断开。
func (s *Server) Serve(c *gin.Context) {
	claims, err := auth.ParseAccessToken(auth.BearerToken(c), s.opts.JWTSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	s.hub.sessions.Add(1)
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.hub.sessions.Done()
		log.Debug().Err(err).Msg("relay upgrade")
		return
	}
	client := newClient(conn, strconv.FormatUint(uint64(claims.UserID), 10), rate.NewLimiter(s.opts.EventRate, s.opts.EventBurst))
	s.hub.register(client)
	log.Debug().Str("conn", client.id).Str("user_id", client.userID).Msg("relay connected")

	go s.writePump(client)
	s.readPump(client)
}

func (s *Server) readPump(c *Client) {
	defer func() {
		s.hub.unregister(c)
		if c.announced && s.opts.Presence != nil {
			ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
			if err := s.opts.Presence.Disconnect(ctx, c.userID); err != nil {
				log.Warn().Err(err).Str("user_id", c.userID).Msg("presence disconnect")
			}
			cancel()
		}
		_ = c.conn.Close()
		log.Debug().Str("conn", c.id).Str("user_id", c.userID).Msg("relay disconnected")
		s.hub.sessions.Done()
	}()
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("conn", c.id).Msg("relay read")
			}
			return
		}
		if !c.limiter.Allow() {
			continue
		}
		ev, err := event.DecodeInbound(data)
		if err != nil {
			log.Debug().Err(err).Str("conn", c.id).Msg("relay skip frame")
			continue
		}
		s.dispatch(c, ev)
	}
}

func (s *Server) writePump(c *Client) {
	ticker := time.NewTicker(s.opts.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch 处理一个客户端事件。转发不等待投递结果，目标不在线时事件直接丢弃。
func (s *Server) dispatch(c *Client, ev event.Inbound) {
	metrics.RelayInboundTotal.WithLabelValues(string(ev.Name())).Inc()
	switch e := ev.(type) {
	case event.SetupEvent:
		// 个人房间由会话身份决定，客户端声明的 id 只能与之相同或留空。
		if e.UserID != "" && e.UserID != c.userID {
			s.reply(c, event.ErrorEvent{Message: "setup: user id does not match session"})
			return
		}
		if !s.hub.Join(c, notify.UserRoom(c.userID)) {
			return
		}
		if !c.announced {
			c.announced = true
			if s.opts.Presence != nil {
				ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
				if err := s.opts.Presence.Connect(ctx, c.userID); err != nil {
					log.Warn().Err(err).Str("user_id", c.userID).Msg("presence connect")
				}
				cancel()
			}
		}
		s.reply(c, event.ConnectedEvent{})
	case event.JoinChatEvent:
		if e.ChatID == "" {
			s.reply(c, event.ErrorEvent{Message: "joinChat: missing chat id"})
			return
		}
		if s.opts.Access != nil {
			ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
			ok, err := s.opts.Access.CanJoinChat(ctx, c.userID, e.ChatID)
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("user_id", c.userID).Str("chat_id", e.ChatID).Msg("relay chat access")
			}
			if err != nil || !ok {
				s.reply(c, event.ErrorEvent{Message: "joinChat: not a participant"})
				return
			}
		}
		s.hub.Join(c, notify.ChatRoom(e.ChatID))
	case event.CallUserEvent:
		if e.UserToCall == "" {
			return
		}
		s.opts.Notifier.Emit(notify.UserRoom(e.UserToCall), event.CallIncomingEvent{Signal: e.SignalData, From: c.userID})
	case event.AnswerCallEvent:
		if e.To == "" {
			return
		}
		s.opts.Notifier.Emit(notify.UserRoom(e.To), event.CallAcceptedEvent{Signal: e.Signal})
	}
}

// reply 只发给当前连接。
func (s *Server) reply(c *Client, ev event.Outbound) {
	frame, err := event.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("conn", c.id).Msg("relay encode reply")
		return
	}
	s.hub.sendTo(c, frame)
}
