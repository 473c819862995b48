// internal/zookeeper/lock.go
package zookeeper

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
)

const (
	lockRoot = "/bazaar/locks" // 所有分布式锁的根节点
)

// Connect 建立 ZooKeeper 会话。
func Connect(servers []string) (*zk.Conn, error) {
	conn, _, err := zk.Connect(servers, 10*time.Second)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// DistributedLock 基于临时顺序节点实现的分布式锁。
// outbox 中继用它做主节点选举：持锁实例是唯一的发布者。
type DistributedLock struct {
	conn     *zk.Conn
	path     string // 锁路径，例如 /bazaar/locks/outbox-relay
	lockNode string // 成功获取锁后自己创建的节点
	timeout  time.Duration
}

// NewDistributedLock 创建一个锁实例并确保锁路径存在。
func NewDistributedLock(conn *zk.Conn, resourceID string, waitTimeout time.Duration) (*DistributedLock, error) {
	if err := ensurePath(conn, lockRoot); err != nil {
		return nil, err
	}
	lockPath := lockRoot + "/" + resourceID
	if err := ensurePath(conn, lockPath); err != nil {
		return nil, err
	}
	return &DistributedLock{conn: conn, path: lockPath, timeout: waitTimeout}, nil
}

func ensurePath(conn *zk.Conn, path string) error {
	// 逐级创建，已存在不算错误
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	cur := ""
	for _, p := range parts {
		cur += "/" + p
		if _, err := conn.Create(cur, []byte{}, 0, zk.WorldACL(zk.PermAll)); err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return fmt.Errorf("failed to create lock path node %s: %w", cur, err)
		}
	}
	return nil
}

// Lock 尝试获取锁，获取不到则阻塞等待，超时返回错误。
func (l *DistributedLock) Lock() error {
	// 1. 创建临时顺序节点
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte{}, zk.WorldACL(zk.PermAll))
	if err != nil {
		return fmt.Errorf("failed to create sequential node: %w", err)
	}
	l.lockNode = nodePath

	for {
		// 2. 取出所有竞争者并排序
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			return fmt.Errorf("failed to get children nodes: %w", err)
		}
		sort.Strings(children)

		// 3. 自己是最小节点即持锁
		myNodeName := strings.TrimPrefix(l.lockNode, l.path+"/")
		if myNodeName == children[0] {
			return nil
		}

		// 4. 监听排在自己前面的节点
		prevNodeIndex := -1
		for i, child := range children {
			if child == myNodeName {
				prevNodeIndex = i - 1
				break
			}
		}
		if prevNodeIndex < 0 {
			return errors.New("cannot find previous node, something is wrong")
		}
		prevNodePath := l.path + "/" + children[prevNodeIndex]

		_, _, eventChan, err := l.conn.ExistsW(prevNodePath)
		if err != nil {
			// 前一个节点恰好被删除，重新竞争
			if errors.Is(err, zk.ErrNoNode) {
				continue
			}
			return fmt.Errorf("failed to watch previous node: %w", err)
		}

		select {
		case event := <-eventChan:
			if event.Type == zk.EventNodeDeleted {
				continue
			}
		case <-time.After(l.timeout):
			return errors.New("timeout waiting for lock")
		}
	}
}

// Unlock 释放锁。
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && !errors.Is(err, zk.ErrNoNode) {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
	l.lockNode = ""
	return nil
}
