package lock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestKeyedMutex_SameKeySerializes(t *testing.T) {
	m := NewKeyedMutex(0)
	var inside, maxInside int32

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			unlock, err := m.Lock(ctx, "product-1")
			if err != nil {
				return err
			}
			defer unlock()
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, m.size())
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	m := NewKeyedMutex(0)
	unlockA, err := m.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := m.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutex_ContextCancelWhileWaiting(t *testing.T) {
	m := NewKeyedMutex(0)
	unlock, err := m.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // 重复调用无副作用
	assert.Equal(t, 0, m.size())
}

func TestKeyedMutex_WaitTimeout(t *testing.T) {
	m := NewKeyedMutex(20 * time.Millisecond)
	unlock, err := m.Lock(context.Background(), "a")
	require.NoError(t, err)

	start := time.Now()
	_, err = m.Lock(context.Background(), "a")
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	// 超时的等待者不能留下引用
	unlock()
	assert.Equal(t, 0, m.size())

	// 锁空闲时不受等待时间影响
	unlock, err = m.Lock(context.Background(), "a")
	require.NoError(t, err)
	unlock()
}

// fakeZK 在内存中模拟 ZooKeeper 的节点树、顺序节点与一次性 watch。
type fakeZK struct {
	mu       sync.Mutex
	nodes    map[string]bool
	seq      int
	watchers map[string][]chan zk.Event
}

func newFakeZK() *fakeZK {
	return &fakeZK{nodes: map[string]bool{}, watchers: map[string][]chan zk.Event{}}
}

func (f *fakeZK) Exists(path string) (bool, *zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nodes[path], &zk.Stat{}, nil
}

func (f *fakeZK) ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan zk.Event, 1)
	f.watchers[path] = append(f.watchers[path], ch)
	return f.nodes[path], &zk.Stat{}, ch, nil
}

func (f *fakeZK) Create(path string, _ []byte, _ int32, _ []zk.ACL) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nodes[path] {
		return "", zk.ErrNodeExists
	}
	f.nodes[path] = true
	return path, nil
}

func (f *fakeZK) CreateProtectedEphemeralSequential(prefix string, _ []byte, _ []zk.ACL) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	dir := prefix[:strings.LastIndex(prefix, "/")]
	base := prefix[strings.LastIndex(prefix, "/")+1:]
	// 随机前缀让字符串序与序号序不一致
	guid := fmt.Sprintf("_c_%02d-", 99-f.seq)
	path := fmt.Sprintf("%s/%s%s%010d", dir, guid, base, f.seq)
	f.nodes[path] = true
	return path, nil
}

func (f *fakeZK) Children(path string) ([]string, *zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for p := range f.nodes {
		if strings.HasPrefix(p, path+"/") && !strings.Contains(p[len(path)+1:], "/") {
			out = append(out, p[len(path)+1:])
		}
	}
	return out, &zk.Stat{}, nil
}

func (f *fakeZK) Delete(path string, _ int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.nodes[path] {
		return zk.ErrNoNode
	}
	delete(f.nodes, path)
	for _, ch := range f.watchers[path] {
		ch <- zk.Event{Type: zk.EventNodeDeleted, Path: path}
	}
	delete(f.watchers, path)
	return nil
}

func TestZookeeperLocker_SerializesSameKey(t *testing.T) {
	l := newZookeeperLocker(newFakeZK(), time.Second)
	var inside, violations int32

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "product-7")
			if !assert.NoError(t, err) {
				return
			}
			if atomic.AddInt32(&inside, 1) > 1 {
				atomic.AddInt32(&violations, 1)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Zero(t, violations)
}

func TestZookeeperLocker_TimeoutRemovesOwnNode(t *testing.T) {
	conn := newFakeZK()
	l := newZookeeperLocker(conn, 30*time.Millisecond)

	unlock, err := l.Lock(context.Background(), "p")
	require.NoError(t, err)

	_, err = l.Lock(context.Background(), "p")
	assert.ErrorIs(t, err, ErrLockTimeout)

	children, _, _ := conn.Children(lockRoot + "/p")
	assert.Len(t, children, 1, "the abandoned waiter must remove its node")

	unlock()
	children, _, _ = conn.Children(lockRoot + "/p")
	assert.Empty(t, children)
}

func TestSequenceOf(t *testing.T) {
	assert.Equal(t, "0000000012", sequenceOf("_c_abc-lock-0000000012"))
	assert.Equal(t, "x", sequenceOf("x"))
}
