package bridge

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/auth"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/event"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/notify"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "bridge-secret"

type relay struct {
	hub *ws.Hub
	url string
}

func newRelay(t *testing.T) *relay {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := ws.NewHub()
	srv := ws.NewServer(hub, ws.Options{JWTSecret: testSecret})
	r := gin.New()
	r.GET("/ws", srv.Serve)
	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})
	return &relay{hub: hub, url: "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"}
}

func token(t *testing.T, userID uint) string {
	t.Helper()
	tok, err := auth.GenerateAccessToken(userID, "", testSecret, 5)
	require.NoError(t, err)
	return tok
}

// recorder 收集回调，供断言使用。
type recorder struct {
	mu       sync.Mutex
	toasts   []Toast
	incoming []event.CallIncomingEvent
	accepted []event.CallAcceptedEvent
	states   []State
}

func (r *recorder) options(url string) Options {
	return Options{
		URL: url,
		OnToast: func(t Toast) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.toasts = append(r.toasts, t)
		},
		OnCallIncoming: func(e event.CallIncomingEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.incoming = append(r.incoming, e)
		},
		OnCallAccepted: func(e event.CallAcceptedEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.accepted = append(r.accepted, e)
		},
		OnStateChange: func(s State) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, s)
		},
	}
}

func (r *recorder) toastCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.toasts)
}

func login(t *testing.T, rl *relay, userID uint, rec *recorder) *Client {
	t.Helper()
	c := New(rec.options(rl.url))
	require.NoError(t, c.Login(context.Background(), idString(userID), token(t, userID)))
	t.Cleanup(func() { _ = c.Logout() })
	require.Eventually(t, func() bool { return rl.hub.Online(notify.UserRoomID(userID)) == 1 }, time.Second, 5*time.Millisecond)
	return c
}

func idString(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func TestLoginJoinsPersonalRoom(t *testing.T) {
	rl := newRelay(t)
	rec := &recorder{}
	c := login(t, rl, 7, rec)

	assert.Equal(t, Connected, c.State())
	rec.mu.Lock()
	assert.Equal(t, []State{Connecting, Connected}, rec.states)
	rec.mu.Unlock()

	assert.ErrorIs(t, c.Login(context.Background(), "7", token(t, 7)), ErrAlreadyConnected)
}

func TestLoginRejectedToken(t *testing.T) {
	rl := newRelay(t)
	c := New(Options{URL: rl.url})

	err := c.Login(context.Background(), "7", "bogus")
	require.Error(t, err)
	assert.Equal(t, Disconnected, c.State())
	assert.ErrorIs(t, c.JoinChat("1"), ErrNotConnected)
}

func TestNotificationsBecomeToasts(t *testing.T) {
	rl := newRelay(t)
	rec := &recorder{}
	c := login(t, rl, 7, rec)

	rl.hub.Emit(notify.UserRoomID(7), event.NewApplicationEvent{Message: "Ada applied for Go Engineer", JobID: "3"})
	rl.hub.Emit(notify.UserRoomID(7), event.ApplicationStatusUpdateEvent{Message: "accepted", ApplicationID: "4", Status: "accepted"})
	rl.hub.Emit(notify.UserRoomID(7), event.NotificationEvent{Message: "interview tomorrow"})

	require.Eventually(t, func() bool { return rec.toastCount() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []Toast{
		{Kind: event.NewApplication, Message: "Ada applied for Go Engineer"},
		{Kind: event.ApplicationStatusUpdate, Message: "accepted"},
		{Kind: event.Notification, Message: "interview tomorrow"},
	}, c.Store().Toasts())
}

func TestMessagesForOtherChatsCountAsUnread(t *testing.T) {
	rl := newRelay(t)
	rec := &recorder{}
	c := login(t, rl, 7, rec)
	require.NoError(t, c.OpenChat("1"))
	require.NoError(t, c.JoinChat("2"))
	require.Eventually(t, func() bool { return rl.hub.Online(notify.ChatRoom("2")) == 1 }, time.Second, 5*time.Millisecond)

	peer := event.Sender{ID: "8", Name: "Grace"}
	rl.hub.Emit(notify.ChatRoom("1"), event.MessageReceivedEvent{Message: event.ChatMessage{ID: "10", ChatID: "1", Sender: peer, Content: "open chat"}})
	rl.hub.Emit(notify.ChatRoom("2"), event.MessageReceivedEvent{Message: event.ChatMessage{ID: "11", ChatID: "2", Sender: peer, Content: "elsewhere"}})

	require.Eventually(t, func() bool { return c.Store().Unread("2") == 1 }, time.Second, 5*time.Millisecond)
	require.Len(t, c.Store().Transcript(), 1)
	assert.Equal(t, "open chat", c.Store().Transcript()[0].Content)
	assert.Equal(t, 0, c.Store().Unread("1"))
	assert.Equal(t, []Toast{{Kind: event.MessageReceived, Message: "Grace: elsewhere", ChatID: "2"}}, c.Store().Toasts())

	require.NoError(t, c.OpenChat("2"))
	assert.Equal(t, 0, c.Store().Unread("2"))
	assert.Empty(t, c.Store().Transcript())
}

func TestOwnMessageConfirmsOptimisticCopy(t *testing.T) {
	rl := newRelay(t)
	rec := &recorder{}
	c := login(t, rl, 7, rec)
	require.NoError(t, c.OpenChat("1"))
	require.Eventually(t, func() bool { return rl.hub.Online(notify.ChatRoom("1")) == 1 }, time.Second, 5*time.Millisecond)

	pending := c.SendOptimistic("1", "hello")
	require.NotEmpty(t, pending.TempID)
	assert.Equal(t, "7", pending.Sender.ID)
	require.Len(t, c.Store().Transcript(), 1)

	self := event.Sender{ID: "7", Name: "Ada"}
	// 另一个标签页发出的消息带着未知的临时 ID，不应出现重复
	rl.hub.Emit(notify.ChatRoom("1"), event.MessageReceivedEvent{Message: event.ChatMessage{ID: "20", ChatID: "1", Sender: self, Content: "other tab", TempID: "unknown"}})
	rl.hub.Emit(notify.ChatRoom("1"), event.MessageReceivedEvent{Message: event.ChatMessage{ID: "21", ChatID: "1", Sender: self, Content: "hello", TempID: pending.TempID}})

	require.Eventually(t, func() bool {
		tr := c.Store().Transcript()
		return len(tr) == 1 && tr[0].ID == "21"
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, c.Store().Toasts())
}

func TestCallSignalingBetweenBridges(t *testing.T) {
	rl := newRelay(t)
	callerRec, calleeRec := &recorder{}, &recorder{}
	caller := login(t, rl, 1, callerRec)
	callee := login(t, rl, 2, calleeRec)

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	require.NoError(t, caller.CallUser("2", offer))
	require.Eventually(t, func() bool {
		calleeRec.mu.Lock()
		defer calleeRec.mu.Unlock()
		return len(calleeRec.incoming) == 1
	}, time.Second, 5*time.Millisecond)
	calleeRec.mu.Lock()
	incoming := calleeRec.incoming[0]
	calleeRec.mu.Unlock()
	assert.Equal(t, "1", incoming.From)
	assert.JSONEq(t, string(offer), string(incoming.Signal))

	answer := json.RawMessage(`{"type":"answer","sdp":"v=0"}`)
	require.NoError(t, callee.AnswerCall(incoming.From, answer))
	require.Eventually(t, func() bool {
		callerRec.mu.Lock()
		defer callerRec.mu.Unlock()
		return len(callerRec.accepted) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestLogoutClosesAndClears(t *testing.T) {
	rl := newRelay(t)
	rec := &recorder{}
	c := login(t, rl, 7, rec)
	rl.hub.Emit(notify.UserRoomID(7), event.NotificationEvent{Message: "hi"})
	require.Eventually(t, func() bool { return rec.toastCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Logout())
	assert.Equal(t, Disconnected, c.State())
	assert.Empty(t, c.Store().Toasts())
	assert.ErrorIs(t, c.CallUser("8", nil), ErrNotConnected)
	require.Eventually(t, func() bool { return rl.hub.Connections() == 0 }, time.Second, 5*time.Millisecond)

	// 登出后不再观察事件
	rl.hub.Emit(notify.UserRoomID(7), event.NotificationEvent{Message: "late"})
	assert.Equal(t, 1, rec.toastCount())
	assert.NoError(t, c.Logout())
}

func TestConnectionLossDoesNotReconnect(t *testing.T) {
	rl := newRelay(t)
	rec := &recorder{}
	c := login(t, rl, 7, rec)

	rl.hub.Close()

	require.Eventually(t, func() bool { return c.State() == Disconnected }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, Disconnected, c.State())
	assert.Equal(t, 0, rl.hub.Connections())
}

func TestLogoutAfterConnectionLossClearsState(t *testing.T) {
	rl := newRelay(t)
	rec := &recorder{}
	c := login(t, rl, 7, rec)
	require.NoError(t, c.OpenChat("3"))
	rl.hub.Emit(notify.UserRoomID(7), event.NotificationEvent{Message: "for 7 only"})
	require.Eventually(t, func() bool { return rec.toastCount() == 1 }, time.Second, 5*time.Millisecond)

	rl.hub.Close()
	require.Eventually(t, func() bool { return c.State() == Disconnected }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Logout())
	assert.Empty(t, c.Store().Toasts())
	assert.Empty(t, c.Store().Viewing())

	// 同一个客户端换另一个用户登录，看不到上一个会话的任何状态
	require.NoError(t, c.Login(context.Background(), "8", token(t, 8)))
	require.Eventually(t, func() bool { return rl.hub.Online(notify.UserRoomID(8)) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, Connected, c.State())
	assert.Empty(t, c.Store().Toasts())
	assert.Empty(t, c.Store().Viewing())
	assert.Empty(t, c.Store().Transcript())
}

func TestLoginStartsWithEmptyStore(t *testing.T) {
	rl := newRelay(t)
	c := New(Options{URL: rl.url})
	c.Store().View("9")
	c.Store().toast(event.Notification, "stale")

	require.NoError(t, c.Login(context.Background(), "7", token(t, 7)))
	t.Cleanup(func() { _ = c.Logout() })

	assert.Empty(t, c.Store().Toasts())
	assert.Empty(t, c.Store().Viewing())
}
