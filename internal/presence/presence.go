// Package presence 记录哪些用户至少持有一条中继连接。同一用户开多个标签页只算一次，
// 最后一个标签页断开后才下线。
package presence

import (
	"context"
	"sort"
	"sync"
)

type Tracker interface {
	Connect(ctx context.Context, userID string) error
	Disconnect(ctx context.Context, userID string) error
	IsOnline(ctx context.Context, userID string) (bool, error)
	Online(ctx context.Context) ([]string, error)
}

// Local 在进程内存中计数。
type Local struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewLocal() *Local { return &Local{counts: make(map[string]int)} }

func (l *Local) Connect(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[userID]++
	return nil
}

func (l *Local) Disconnect(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts[userID] <= 1 {
		delete(l.counts, userID)
		return nil
	}
	l.counts[userID]--
	return nil
}

func (l *Local) IsOnline(_ context.Context, userID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[userID] > 0, nil
}

func (l *Local) Online(_ context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.counts))
	for id := range l.counts {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
