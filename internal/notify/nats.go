package notify

import (
	"encoding/json"
	"fmt"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/event"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/metrics"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Subject 用于在 API 进程与中继进程之间传递推送。
const Subject = "relay.emit"

type wireEmit struct {
	Room  string          `json:"room"`
	Frame json.RawMessage `json:"frame"`
}

// RawEmitter 把已编码的帧投递到房间，由中继 Hub 实现。
type RawEmitter interface {
	EmitRaw(room string, frame []byte) int
}

// Publisher 经 NATS 转发推送，订阅了 Subject 的中继进程各自投递给本地连接。
// 每条推送只在发布端计入 relay_emits_total，订阅端投递时不再计数。
type Publisher struct {
	publish func(subject string, data []byte) error
	subject string
}

func NewPublisher(conn *nats.Conn) *Publisher {
	return &Publisher{publish: conn.Publish, subject: Subject}
}

func (p *Publisher) Emit(room string, ev event.Outbound) {
	data, err := marshalEmit(room, ev)
	if err != nil {
		log.Warn().Err(err).Str("room", room).Msg("notify encode")
		return
	}
	metrics.RelayEmitsTotal.WithLabelValues(string(ev.Name())).Inc()
	if err := p.publish(p.subject, data); err != nil {
		log.Warn().Err(err).Str("room", room).Str("event", string(ev.Name())).Msg("notify publish")
	}
}

// Subscribe 把 Subject 上的每条推送交给 dst。
func Subscribe(conn *nats.Conn, dst RawEmitter) (*nats.Subscription, error) {
	sub, err := conn.Subscribe(Subject, func(msg *nats.Msg) {
		deliver(dst, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", Subject, err)
	}
	return sub, nil
}

// Connect 连接 NATS，断线后在进程生命周期内持续重连。
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("jobportal-relay"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

func deliver(dst RawEmitter, data []byte) {
	var w wireEmit
	if err := json.Unmarshal(data, &w); err != nil || w.Room == "" || len(w.Frame) == 0 {
		log.Debug().Err(err).Msg("notify: skip malformed emit")
		return
	}
	dst.EmitRaw(w.Room, w.Frame)
}

func marshalEmit(room string, ev event.Outbound) ([]byte, error) {
	frame, err := event.Encode(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEmit{Room: room, Frame: frame})
}
