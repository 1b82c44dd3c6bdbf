package ws

import (
	"sync"
	"testing"
	"time"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/event"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/notify"

	"golang.org/x/time/rate"
)

// fakeClient 构造不带网络连接的客户端，帧直接留在 send 通道里。
func fakeClient(h *Hub, userID string) *Client {
	c := newClient(nil, userID, rate.NewLimiter(rate.Inf, 1))
	h.register(c)
	return c
}

func nextEvent(t *testing.T, c *Client) event.Outbound {
	t.Helper()
	select {
	case frame, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		ev, err := event.DecodeOutbound(frame)
		if err != nil {
			t.Fatalf("DecodeOutbound() error = %v", err)
		}
		return ev
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no frame delivered")
		return nil
	}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case frame, ok := <-c.send:
		if ok {
			t.Fatalf("unexpected frame %s", frame)
		}
	default:
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.rooms == nil || hub.clients == nil {
		t.Error("NewHub() maps are nil")
	}
}

func TestHub_Online_NonExistentRoom(t *testing.T) {
	hub := NewHub()
	if online := hub.Online("user:999"); online != 0 {
		t.Errorf("Online() for non-existent room = %d, want 0", online)
	}
}

func TestHub_EmitToEmptyRoom(t *testing.T) {
	hub := NewHub()
	c := fakeClient(hub, "1")

	if n := hub.EmitRaw("user:2", []byte(`{"event":"notification"}`)); n != 0 {
		t.Errorf("EmitRaw() to empty room = %d, want 0", n)
	}
	hub.Emit("user:2", event.NotificationEvent{Message: "nobody home"})
	assertNoFrame(t, c)
}

func TestHub_JoinIsIdempotent(t *testing.T) {
	hub := NewHub()
	c := fakeClient(hub, "1")

	hub.Join(c, "user:1")
	hub.Join(c, "user:1")

	if got := hub.Online("user:1"); got != 1 {
		t.Errorf("Online() after double join = %d, want 1", got)
	}
	hub.Emit("user:1", event.NotificationEvent{Message: "once"})
	nextEvent(t, c)
	assertNoFrame(t, c)
}

func TestHub_EmitOnlyReachesRoomMembers(t *testing.T) {
	hub := NewHub()
	alice := fakeClient(hub, "1")
	bob := fakeClient(hub, "2")
	hub.Join(alice, notify.UserRoom("1"))
	hub.Join(bob, notify.UserRoom("2"))

	hub.Emit(notify.UserRoom("1"), event.NotificationEvent{Message: "for alice"})

	if got := nextEvent(t, alice); got != (event.NotificationEvent{Message: "for alice"}) {
		t.Errorf("alice got %#v", got)
	}
	assertNoFrame(t, bob)
}

func TestHub_FanOutToEveryTab(t *testing.T) {
	hub := NewHub()
	tab1 := fakeClient(hub, "1")
	tab2 := fakeClient(hub, "1")
	hub.Join(tab1, notify.UserRoom("1"))
	hub.Join(tab2, notify.UserRoom("1"))

	if n := hub.EmitRaw(notify.UserRoom("1"), []byte(`{"event":"notification","data":{"message":"x"}}`)); n != 2 {
		t.Errorf("EmitRaw() delivered to %d connections, want 2", n)
	}
	nextEvent(t, tab1)
	nextEvent(t, tab2)
}

func TestHub_UnregisterLeavesAllRooms(t *testing.T) {
	hub := NewHub()
	c := fakeClient(hub, "1")
	other := fakeClient(hub, "2")
	hub.Join(c, "user:1")
	hub.Join(c, "chat:9")
	hub.Join(other, "chat:9")

	hub.unregister(c)
	hub.unregister(c) // 重复注销无副作用

	if hub.Online("user:1") != 0 {
		t.Errorf("Online(user:1) after unregister = %d, want 0", hub.Online("user:1"))
	}
	if hub.Online("chat:9") != 1 {
		t.Errorf("Online(chat:9) after unregister = %d, want 1", hub.Online("chat:9"))
	}
	if n := hub.EmitRaw("user:1", []byte(`{}`)); n != 0 {
		t.Errorf("EmitRaw() after disconnect delivered %d", n)
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed after unregister")
	}
	if hub.Join(c, "chat:9") {
		t.Error("Join() should refuse an unregistered connection")
	}
}

func TestHub_SlowConsumerDropped(t *testing.T) {
	hub := NewHub()
	c := fakeClient(hub, "1")
	hub.Join(c, "user:1")

	for i := 0; i < sendBufferSize; i++ {
		hub.EmitRaw("user:1", []byte(`{}`))
	}
	if n := hub.EmitRaw("user:1", []byte(`{}`)); n != 0 {
		t.Errorf("EmitRaw() to full buffer = %d, want 0", n)
	}
	if hub.Connections() != 0 {
		t.Errorf("Connections() = %d, want 0 after slow consumer drop", hub.Connections())
	}
}

func TestHub_Close(t *testing.T) {
	hub := NewHub()
	clients := []*Client{fakeClient(hub, "1"), fakeClient(hub, "2")}
	for _, c := range clients {
		hub.Join(c, notify.UserRoom(c.userID))
	}

	hub.Close()

	if hub.Connections() != 0 {
		t.Errorf("Connections() after Close = %d", hub.Connections())
	}
	for _, c := range clients {
		if _, ok := <-c.send; ok {
			t.Error("send channel should be closed")
		}
	}
}

func TestHub_Concurrent(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup
	numClients := 10

	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := fakeClient(hub, "1")
			hub.Join(c, "chat:1")
			hub.EmitRaw("chat:1", []byte(`{}`))
		}()
	}
	wg.Wait()

	if got := hub.Online("chat:1"); got != numClients {
		t.Errorf("Online() after concurrent join = %d, want %d", got, numClients)
	}
}
