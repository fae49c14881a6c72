// Package lock 提供按 key 串行化的互斥原语。
// 同一个 key 的持有者互斥，不同 key 之间互不影响。
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout 表示在等待时间内未能拿到锁。
var ErrLockTimeout = errors.New("timeout waiting for lock")

// Locker 对一个 key 加锁，返回的 unlock 必须且只能调用一次。
// ctx 结束时放弃等待并返回 ctx.Err()。
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// KeyedMutex 是进程内的按 key 互斥锁，适用于单副本部署。
// 每个 key 对应一个容量为 1 的 channel，引用计数归零后回收。
type KeyedMutex struct {
	mu          sync.Mutex
	slots       map[string]*slot
	waitTimeout time.Duration // 0 表示只受 ctx 约束
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex 创建进程内锁。waitTimeout 与 ZookeeperLocker 的含义一致，
// 等待超过它返回 ErrLockTimeout；传 0 则只在 ctx 结束时放弃。
func NewKeyedMutex(waitTimeout time.Duration) *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*slot), waitTimeout: waitTimeout}
}

func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	m.mu.Unlock()

	var expired <-chan time.Time
	if m.waitTimeout > 0 {
		timer := time.NewTimer(m.waitTimeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, s)
		return nil, ctx.Err()
	case <-expired:
		m.release(key, s)
		return nil, ErrLockTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			m.release(key, s)
		})
	}, nil
}

func (m *KeyedMutex) release(key string, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}

// size 返回当前仍被引用的 key 数量。
func (m *KeyedMutex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
