package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/rs/zerolog/log"
)

// lockRoot 是所有分布式锁的根节点
const lockRoot = "/nexus_mall_locks"

// zkConn 是 *zk.Conn 中分布式锁用到的方法。
type zkConn interface {
	Exists(path string) (bool, *zk.Stat, error)
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	CreateProtectedEphemeralSequential(path string, data []byte, acl []zk.ACL) (string, error)
	Children(path string) ([]string, *zk.Stat, error)
	Delete(path string, version int32) error
}

// ZookeeperLocker 基于临时顺序节点实现跨进程的按 key 互斥，
// 库存服务多副本部署时使用。会话断开时临时节点自动删除，锁随之释放。
type ZookeeperLocker struct {
	conn        zkConn
	closer      func()
	waitTimeout time.Duration
}

// NewZookeeperLocker 连接 ZooKeeper 集群。
func NewZookeeperLocker(servers []string, sessionTimeout, waitTimeout time.Duration) (*ZookeeperLocker, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect zookeeper: %w", err)
	}
	l := newZookeeperLocker(conn, waitTimeout)
	l.closer = conn.Close
	return l, nil
}

func newZookeeperLocker(conn zkConn, waitTimeout time.Duration) *ZookeeperLocker {
	if waitTimeout <= 0 {
		waitTimeout = 30 * time.Second
	}
	return &ZookeeperLocker{conn: conn, waitTimeout: waitTimeout}
}

func (l *ZookeeperLocker) Close() {
	if l.closer != nil {
		l.closer()
	}
}

func (l *ZookeeperLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockPath := lockRoot + "/" + key
	if err := l.ensurePath(lockRoot); err != nil {
		return nil, err
	}
	if err := l.ensurePath(lockPath); err != nil {
		return nil, err
	}

	// 1. 在锁路径下创建一个临时顺序节点
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(lockPath+"/lock-", nil, zk.WorldACL(zk.PermAll))
	if err != nil {
		return nil, fmt.Errorf("failed to create sequential node: %w", err)
	}

	if err := l.waitTurn(ctx, lockPath, nodePath); err != nil {
		// 放弃排队时删除自己的节点，避免阻塞后来者
		if delErr := l.conn.Delete(nodePath, -1); delErr != nil && !errors.Is(delErr, zk.ErrNoNode) {
			log.Error().Err(delErr).Str("node", nodePath).Msg("failed to delete abandoned lock node")
		}
		return nil, err
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		if err := l.conn.Delete(nodePath, -1); err != nil && !errors.Is(err, zk.ErrNoNode) {
			log.Error().Err(err).Str("node", nodePath).Msg("failed to delete lock node")
		}
	}, nil
}

func (l *ZookeeperLocker) waitTurn(ctx context.Context, lockPath, nodePath string) error {
	deadline := time.NewTimer(l.waitTimeout)
	defer deadline.Stop()

	myNodeName := strings.TrimPrefix(nodePath, lockPath+"/")
	for {
		// 2. 获取所有子节点并按序号排序
		children, _, err := l.conn.Children(lockPath)
		if err != nil {
			return fmt.Errorf("failed to get children nodes: %w", err)
		}
		sort.Slice(children, func(i, j int) bool { return sequenceOf(children[i]) < sequenceOf(children[j]) })

		// 3. 自己是最小节点则获得锁
		idx := -1
		for i, child := range children {
			if child == myNodeName {
				idx = i
				break
			}
		}
		if idx < 0 {
			return errors.New("own lock node disappeared, session may have expired")
		}
		if idx == 0 {
			return nil
		}

		// 4. 否则只监听前一个节点
		exists, _, events, err := l.conn.ExistsW(lockPath + "/" + children[idx-1])
		if err != nil {
			return fmt.Errorf("failed to watch previous node: %w", err)
		}
		if !exists {
			continue
		}

		select {
		case <-events:
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrLockTimeout
		}
	}
}

func (l *ZookeeperLocker) ensurePath(path string) error {
	exists, _, err := l.conn.Exists(path)
	if err != nil {
		return fmt.Errorf("check lock path %s: %w", path, err)
	}
	if exists {
		return nil
	}
	_, err = l.conn.Create(path, nil, 0, zk.WorldACL(zk.PermAll))
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return fmt.Errorf("create lock path %s: %w", path, err)
	}
	return nil
}

// sequenceOf 取出顺序节点名末尾的序号。
// protected 节点名带有随机 GUID 前缀，不能直接按字符串排序。
func sequenceOf(name string) string {
	if i := strings.LastIndex(name, "lock-"); i >= 0 {
		return name[i+len("lock-"):]
	}
	return name
}
