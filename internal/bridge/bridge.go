// Package bridge 是客户端一侧的中继连接：登录时建立一条 WebSocket，
// 立即加入个人房间，并把服务端推送的事件落到本地 Store。断线后不自动重连。
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/event"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 10 * time.Second

var (
	ErrNotConnected     = errors.New("bridge: not connected")
	ErrAlreadyConnected = errors.New("bridge: already connected")
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "disconnected"
}

// Options 中的回调都在读协程中调用，不应阻塞，也不能在回调里调用 Logout。
type Options struct {
	// URL 是中继地址，例如 ws://localhost:8080/ws。
	URL    string
	Dialer *websocket.Dialer
	// Header 附加在握手请求上，例如跨域时的 Origin。
	Header http.Header

	OnToast func(Toast)
	// OnMessage 在别人的消息追加到当前会话时调用。
	OnMessage      func(event.ChatMessage)
	OnCallIncoming func(event.CallIncomingEvent)
	OnCallAccepted func(event.CallAcceptedEvent)
	OnStateChange  func(State)
}

type Client struct {
	opts  Options
	store *Store

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	closing bool
	done    chan struct{}

	writeMu sync.Mutex
}

func New(opts Options) *Client {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Client{opts: opts, store: NewStore()}
}

func (c *Client) Store() *Store { return c.store }

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed && c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}

// Login 建立中继连接并发送 setup(userID)。
func (c *Client) Login(ctx context.Context, userID, token string) error {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = Connecting
	c.mu.Unlock()
	c.store.reset()
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(Connecting)
	}

	u, err := url.Parse(c.opts.URL)
	if err != nil {
		c.setState(Disconnected)
		return fmt.Errorf("bridge: parse url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, resp, err := c.opts.Dialer.DialContext(ctx, u.String(), c.opts.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.setState(Disconnected)
		if resp != nil {
			return fmt.Errorf("bridge: dial: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("bridge: dial: %w", err)
	}

	c.store.setSelf(userID)
	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.closing = false
	c.done = done
	c.mu.Unlock()
	c.setState(Connected)

	go c.readLoop(conn, done)
	if err := c.send(event.SetupEvent{UserID: userID}); err != nil {
		_ = c.Logout()
		return err
	}
	return nil
}

// Logout 停止接收事件并关闭连接，本地状态一并清空。连接已经断开时同样清空。
func (c *Client) Logout() error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.closing = conn != nil
	c.conn = nil
	c.mu.Unlock()

	var err error
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = conn.Close()
	}
	if done != nil {
		<-done
	}

	c.store.reset()
	c.setState(Disconnected)
	return err
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closing := c.closing
			if !closing {
				c.conn = nil
			}
			c.mu.Unlock()
			if !closing {
				log.Warn().Err(err).Msg("bridge connection lost")
				_ = conn.Close()
				c.setState(Disconnected)
			}
			return
		}
		c.mu.Lock()
		closing := c.closing
		c.mu.Unlock()
		if closing {
			continue
		}
		ev, err := event.DecodeOutbound(data)
		if err != nil {
			log.Debug().Err(err).Msg("bridge skip frame")
			continue
		}
		c.handle(ev)
	}
}

func (c *Client) handle(ev event.Outbound) {
	switch e := ev.(type) {
	case event.ConnectedEvent:
		log.Debug().Msg("bridge joined personal room")
	case event.MessageReceivedEvent:
		appended, t := c.store.receive(e.Message)
		if appended && c.opts.OnMessage != nil {
			c.opts.OnMessage(e.Message)
		}
		if t != nil {
			c.emitToast(*t)
		}
	case event.NewApplicationEvent:
		c.emitToast(c.store.toast(event.NewApplication, e.Message))
	case event.ApplicationStatusUpdateEvent:
		c.emitToast(c.store.toast(event.ApplicationStatusUpdate, e.Message))
	case event.NotificationEvent:
		c.emitToast(c.store.toast(event.Notification, e.Message))
	case event.ErrorEvent:
		c.emitToast(c.store.toast(event.Error, e.Message))
	case event.CallIncomingEvent:
		if c.opts.OnCallIncoming != nil {
			c.opts.OnCallIncoming(e)
		}
	case event.CallAcceptedEvent:
		if c.opts.OnCallAccepted != nil {
			c.opts.OnCallAccepted(e)
		}
	}
}

func (c *Client) emitToast(t Toast) {
	if c.opts.OnToast != nil {
		c.opts.OnToast(t)
	}
}

func (c *Client) send(ev event.Inbound) error {
	frame, err := event.Encode(ev)
	if err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("bridge: send %s: %w", ev.Name(), err)
	}
	return nil
}

// OpenChat 切换到会话并加入其房间。
func (c *Client) OpenChat(chatID string) error {
	c.store.View(chatID)
	return c.JoinChat(chatID)
}

// CloseChat 只影响本地视图，房间成员关系保持到断线。
func (c *Client) CloseChat() {
	c.store.View("")
}

func (c *Client) JoinChat(chatID string) error {
	return c.send(event.JoinChatEvent{ChatID: chatID})
}

func (c *Client) CallUser(userID string, signal json.RawMessage) error {
	return c.send(event.CallUserEvent{UserToCall: userID, SignalData: signal})
}

func (c *Client) AnswerCall(to string, signal json.RawMessage) error {
	return c.send(event.AnswerCallEvent{Signal: signal, To: to})
}

// SendOptimistic 在当前会话中追加一条待确认消息并返回它。调用方随后用返回的 TempID
// 通过 REST 发送，服务端回推的 messageReceived 会原地替换这条消息。
func (c *Client) SendOptimistic(chatID, content string) event.ChatMessage {
	c.store.mu.Lock()
	self := c.store.selfID
	c.store.mu.Unlock()
	msg := event.ChatMessage{
		ChatID:    chatID,
		Sender:    event.Sender{ID: self},
		Content:   content,
		TempID:    uuid.NewString(),
		CreatedAt: time.Now(),
	}
	c.store.addPending(msg)
	return msg
}
