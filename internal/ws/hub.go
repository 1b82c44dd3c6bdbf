package ws

import (
	"context"
	"sync"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/event"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Hub 维护连接与房间的成员关系。房间在第一次加入时创建，最后一个成员离开时删除。
// 投递是尽力而为的：目标房间为空时直接丢弃，发送缓冲已满的连接会被断开。
type Hub struct {
	// sessions 统计仍在运行读循环的连接，读循环退出前会完成在线状态的清理。
	sessions sync.WaitGroup

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	metrics.RelayConnections.Inc()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked 把连接从所有房间中移除并关闭其发送通道，重复调用无副作用。
func (h *Hub) removeLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		members := h.rooms[room]
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	c.rooms = nil
	close(c.send)
	metrics.RelayConnections.Dec()
}

// Join 把连接加入房间。成员关系是集合，重复加入无副作用；已断开的连接返回 false。
func (h *Hub) Join(c *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
	return true
}

// Emit 编码事件并投递到房间内的每个连接，实现 notify.Notifier。
func (h *Hub) Emit(room string, ev event.Outbound) {
	frame, err := event.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("room", room).Msg("relay encode")
		return
	}
	metrics.RelayEmitsTotal.WithLabelValues(string(ev.Name())).Inc()
	h.EmitRaw(room, frame)
}

// EmitRaw 投递已编码的帧，返回成功入队的连接数。
func (h *Hub) EmitRaw(room string, frame []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[room]
	if len(members) == 0 {
		metrics.RelayEmptyRoomTotal.Inc()
		return 0
	}
	n := 0
	for c := range members {
		select {
		case c.send <- frame:
			n++
		default:
			log.Warn().Str("conn", c.id).Str("user_id", c.userID).Msg("relay slow consumer dropped")
			metrics.RelaySlowConsumerTotal.Inc()
			h.removeLocked(c)
		}
	}
	metrics.RelayDeliveriesTotal.Add(float64(n))
	return n
}

// sendTo 只投递给单个连接，连接已断开时返回 false。
func (h *Hub) sendTo(c *Client, frame []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		metrics.RelaySlowConsumerTotal.Inc()
		h.removeLocked(c)
		return false
	}
}

// Online 返回房间当前的连接数，房间不存在时为 0。
func (h *Hub) Online(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close 断开全部连接，写协程收到关闭的通道后会发送 close 帧。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// Shutdown 断开全部连接，并等待每个连接的读循环退出或 ctx 到期。
// 调用前应先停止接收新的握手。
func (h *Hub) Shutdown(ctx context.Context) error {
	h.Close()
	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
