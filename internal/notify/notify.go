// Package notify 是请求处理与中继之间的单向推送接口。handler 先完成写库再调用 Emit，
// Emit 没有返回值也不等待投递，推送失败不会影响已完成的写入。
package notify

import (
	"strconv"
	"sync"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/event"
)

type Notifier interface {
	Emit(room string, ev event.Outbound)
}

// UserRoom 是用户的个人房间。
func UserRoom(userID string) string { return "user:" + userID }

// ChatRoom 是会话参与者共享的房间。
func ChatRoom(chatID string) string { return "chat:" + chatID }

func UserRoomID(id uint) string { return UserRoom(strconv.FormatUint(uint64(id), 10)) }

func ChatRoomID(id uint) string { return ChatRoom(strconv.FormatUint(uint64(id), 10)) }

type Nop struct{}

func (Nop) Emit(string, event.Outbound) {}

// Emitted 是 Recorder 记录的一次推送。
type Emitted struct {
	Room  string
	Event event.Outbound
}

// Recorder 在内存中记录全部推送，测试中代替中继使用。
type Recorder struct {
	mu     sync.Mutex
	events []Emitted
}

func (r *Recorder) Emit(room string, ev event.Outbound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Emitted{Room: room, Event: ev})
}

func (r *Recorder) Events() []Emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Emitted, len(r.events))
	copy(out, r.events)
	return out
}

// To 按顺序返回推送到 room 的事件。
func (r *Recorder) To(room string) []event.Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Outbound
	for _, e := range r.events {
		if e.Room == room {
			out = append(out, e.Event)
		}
	}
	return out
}
