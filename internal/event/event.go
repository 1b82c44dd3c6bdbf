// Package event 定义中继的帧格式以及两个方向上允许出现的事件。
//
// 每一帧都是 JSON 对象 {"event": <name>, "data": <payload>}。客户端事件实现 Inbound，
// 服务端事件实现 Outbound，两者都由未导出的标记方法封闭。
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Name string

// 客户端 -> 服务端
const (
	Setup      Name = "setup"
	JoinChat   Name = "joinChat"
	CallUser   Name = "callUser"
	AnswerCall Name = "answerCall"
)

// 服务端 -> 客户端
const (
	Connected               Name = "connected"
	CallIncoming            Name = "callIncoming"
	CallAccepted            Name = "callAccepted"
	MessageReceived         Name = "messageReceived"
	NewApplication          Name = "newApplication"
	ApplicationStatusUpdate Name = "applicationStatusUpdate"
	Notification            Name = "notification"
	Error                   Name = "error"
)

var ErrUnknownEvent = errors.New("unknown event")

// Envelope 是两个方向共用的帧。
type Envelope struct {
	Event Name            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Event interface {
	Name() Name
	payload() any
}

// Inbound 是客户端发给中继的事件。
type Inbound interface {
	Event
	inbound()
}

// Outbound 是中继（或经由中继的 REST handler）发给客户端的事件。
type Outbound interface {
	Event
	outbound()
}

type SetupEvent struct{ UserID string }

type JoinChatEvent struct{ ChatID string }

type CallUserEvent struct {
	UserToCall string          `json:"userToCall"`
	SignalData json.RawMessage `json:"signalData,omitempty"`
	From       string          `json:"from"`
}

type AnswerCallEvent struct {
	Signal json.RawMessage `json:"signal,omitempty"`
	To     string          `json:"to"`
}

type ConnectedEvent struct{}

type CallIncomingEvent struct {
	Signal json.RawMessage `json:"signal,omitempty"`
	From   string          `json:"from"`
}

// CallAcceptedEvent 的 data 直接就是应答方的信令。
type CallAcceptedEvent struct{ Signal json.RawMessage }

type MessageReceivedEvent struct{ Message ChatMessage }

type NewApplicationEvent struct {
	Message string `json:"message"`
	JobID   string `json:"jobId"`
}

type ApplicationStatusUpdateEvent struct {
	Message       string `json:"message"`
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
}

type NotificationEvent struct {
	Message string `json:"message"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

// Sender 是随消息下发的发送者快照。
type Sender struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChatMessage 随 messageReceived 下发。TempID 原样回传发送方给本地副本分配的临时 ID。
type ChatMessage struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	TempID    string    `json:"tempId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (SetupEvent) Name() Name                   { return Setup }
func (JoinChatEvent) Name() Name                { return JoinChat }
func (CallUserEvent) Name() Name                { return CallUser }
func (AnswerCallEvent) Name() Name              { return AnswerCall }
func (ConnectedEvent) Name() Name               { return Connected }
func (CallIncomingEvent) Name() Name            { return CallIncoming }
func (CallAcceptedEvent) Name() Name            { return CallAccepted }
func (MessageReceivedEvent) Name() Name         { return MessageReceived }
func (NewApplicationEvent) Name() Name          { return NewApplication }
func (ApplicationStatusUpdateEvent) Name() Name { return ApplicationStatusUpdate }
func (NotificationEvent) Name() Name            { return Notification }
func (ErrorEvent) Name() Name                   { return Error }

func (e SetupEvent) payload() any                   { return e.UserID }
func (e JoinChatEvent) payload() any                { return e.ChatID }
func (e CallUserEvent) payload() any                { return e }
func (e AnswerCallEvent) payload() any              { return e }
func (ConnectedEvent) payload() any                 { return nil }
func (e CallIncomingEvent) payload() any            { return e }
func (e CallAcceptedEvent) payload() any            { return e.Signal }
func (e MessageReceivedEvent) payload() any         { return e.Message }
func (e NewApplicationEvent) payload() any          { return e }
func (e ApplicationStatusUpdateEvent) payload() any { return e }
func (e NotificationEvent) payload() any            { return e }
func (e ErrorEvent) payload() any                   { return e }

func (SetupEvent) inbound()      {}
func (JoinChatEvent) inbound()   {}
func (CallUserEvent) inbound()   {}
func (AnswerCallEvent) inbound() {}

func (ConnectedEvent) outbound()               {}
func (CallIncomingEvent) outbound()            {}
func (CallAcceptedEvent) outbound()            {}
func (MessageReceivedEvent) outbound()         {}
func (NewApplicationEvent) outbound()          {}
func (ApplicationStatusUpdateEvent) outbound() {}
func (NotificationEvent) outbound()            {}
func (ErrorEvent) outbound()                   {}

// Encode 把事件包装成帧。
func Encode(ev Event) ([]byte, error) {
	env := Envelope{Event: ev.Name()}
	if p := ev.payload(); p != nil {
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", ev.Name(), err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// DecodeInbound 解析客户端帧。缺失的字段取零值，只有无法解析的帧或未知事件名才返回错误。
func DecodeInbound(b []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Event {
	case Setup:
		return SetupEvent{UserID: lenientString(env.Data)}, nil
	case JoinChat:
		return JoinChatEvent{ChatID: lenientString(env.Data)}, nil
	case CallUser:
		var ev CallUserEvent
		lenientObject(env.Data, &ev)
		return ev, nil
	case AnswerCall:
		var ev AnswerCallEvent
		lenientObject(env.Data, &ev)
		return ev, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
}

// DecodeOutbound 解析服务端帧。
func DecodeOutbound(b []byte) (Outbound, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Event {
	case Connected:
		return ConnectedEvent{}, nil
	case CallIncoming:
		var ev CallIncomingEvent
		lenientObject(env.Data, &ev)
		return ev, nil
	case CallAccepted:
		return CallAcceptedEvent{Signal: env.Data}, nil
	case MessageReceived:
		var m ChatMessage
		lenientObject(env.Data, &m)
		return MessageReceivedEvent{Message: m}, nil
	case NewApplication:
		var ev NewApplicationEvent
		lenientObject(env.Data, &ev)
		return ev, nil
	case ApplicationStatusUpdate:
		var ev ApplicationStatusUpdateEvent
		lenientObject(env.Data, &ev)
		return ev, nil
	case Notification:
		var ev NotificationEvent
		lenientObject(env.Data, &ev)
		return ev, nil
	case Error:
		var ev ErrorEvent
		lenientObject(env.Data, &ev)
		return ev, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
}

// lenientString 接受 JSON 字符串或数字，其余情况返回空串。
func lenientString(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		return n.String()
	}
	return ""
}

func lenientObject(data json.RawMessage, v any) {
	if len(data) == 0 {
		return
	}
	_ = json.Unmarshal(data, v)
}
