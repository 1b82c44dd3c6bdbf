package bridge

import (
	"fmt"
	"sync"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/event"
)

// Toast 是一条需要提示给用户的通知。
type Toast struct {
	Kind    event.Name
	Message string
	// ChatID 仅在新消息提示时设置。
	ChatID string
}

// Store 是客户端本地状态：当前打开的会话、其消息记录、各会话未读数和提示队列。
type Store struct {
	mu         sync.Mutex
	selfID     string
	viewing    string
	transcript []event.ChatMessage
	unread     map[string]int
	toasts     []Toast
}

func NewStore() *Store {
	return &Store{unread: make(map[string]int)}
}

func (s *Store) setSelf(userID string) {
	s.mu.Lock()
	s.selfID = userID
	s.mu.Unlock()
}

// View 切换当前会话，清空记录并清零该会话未读数。chatID 为空表示关闭会话。
func (s *Store) View(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewing = chatID
	s.transcript = nil
	if chatID != "" {
		delete(s.unread, chatID)
	}
}

func (s *Store) Viewing() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewing
}

// Load 用历史消息替换当前会话的记录，chatID 不是当前会话时忽略。
func (s *Store) Load(chatID string, msgs []event.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chatID != s.viewing {
		return
	}
	s.transcript = append([]event.ChatMessage(nil), msgs...)
}

// addPending 追加一条尚未被服务端确认的本地消息。
func (s *Store) addPending(msg event.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ChatID == s.viewing {
		s.transcript = append(s.transcript, msg)
	}
}

func (s *Store) Transcript() []event.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.ChatMessage, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func (s *Store) Unread(chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[chatID]
}

func (s *Store) Toasts() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Toast, len(s.toasts))
	copy(out, s.toasts)
	return out
}

// receive 处理 messageReceived。appended 表示消息被追加到当前会话，toast 为需要提示的内容（可能为 nil）。
//
// 自己发出的消息只用来确认带相同临时 ID 的本地副本，不会重复追加；
// 别人的消息在当前会话中直接追加，否则累加未读并提示。
func (s *Store) receive(msg event.ChatMessage) (appended bool, toast *Toast) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Sender.ID == s.selfID {
		if msg.TempID == "" || msg.ChatID != s.viewing {
			return false, nil
		}
		for i := range s.transcript {
			if s.transcript[i].TempID == msg.TempID {
				s.transcript[i] = msg
				break
			}
		}
		return false, nil
	}
	if msg.ChatID == s.viewing {
		s.transcript = append(s.transcript, msg)
		return true, nil
	}
	s.unread[msg.ChatID]++
	t := Toast{Kind: event.MessageReceived, Message: fmt.Sprintf("%s: %s", msg.Sender.Name, msg.Content), ChatID: msg.ChatID}
	s.toasts = append(s.toasts, t)
	return false, &t
}

func (s *Store) toast(kind event.Name, message string) Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := Toast{Kind: kind, Message: message}
	s.toasts = append(s.toasts, t)
	return t
}

// reset 在登录和登出时清空全部状态。
func (s *Store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selfID = ""
	s.viewing = ""
	s.transcript = nil
	s.unread = make(map[string]int)
	s.toasts = nil
}
