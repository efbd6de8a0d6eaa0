// internal/zookeeper/mutex.go
package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-zookeeper/zk"
)

const mutexRoot = "/voyago/resource_mutex" // 按资源键串行化锁表写入的根节点

// ErrMutexTimeout 表示在 context 到期前没有轮到自己。
var ErrMutexTimeout = errors.New("timeout waiting for resource mutex")

// Mutex 是一个基于临时顺序节点的跨进程互斥量。
// 锁管理器用它对同一个 resourceKey 的 "容量检查 + 插入" 做串行化，
// 避免多个实例同时通过容量检查导致超卖。
type Mutex struct {
	conn     *Conn
	path     string // 互斥量路径，例如 /voyago/resource_mutex/flight:F123
	lockNode string // 成功持有后自己创建的节点路径
}

// NewMutex 为一个资源键创建互斥量实例。
func NewMutex(conn *Conn, resourceKey string) (*Mutex, error) {
	if err := conn.EnsurePath("/voyago"); err != nil {
		return nil, err
	}
	if err := conn.EnsurePath(mutexRoot); err != nil {
		return nil, err
	}

	// "/" 在 zk 节点名里非法，资源键里如果出现就替换掉
	safeKey := strings.ReplaceAll(resourceKey, "/", "_")
	path := mutexRoot + "/" + safeKey
	if err := conn.EnsurePath(path); err != nil {
		return nil, err
	}

	return &Mutex{conn: conn, path: path}, nil
}

// Acquire 尝试获取互斥量，等到轮到自己或 ctx 到期为止。
func (m *Mutex) Acquire(ctx context.Context) error {
	// 1. 在互斥量路径下创建临时顺序节点
	nodePath, err := m.conn.conn.CreateProtectedEphemeralSequential(m.path+"/lock-", []byte{}, zk.WorldACL(zk.PermAll))
	if err != nil {
		return fmt.Errorf("failed to create sequential node: %w", err)
	}
	m.lockNode = nodePath

	for {
		// 2. 获取所有等待者并排序
		children, _, err := m.conn.conn.Children(m.path)
		if err != nil {
			m.release()
			return fmt.Errorf("failed to get children nodes: %w", err)
		}
		sort.Strings(children)

		// 3. 自己是最小节点即持有互斥量
		myNodeName := strings.TrimPrefix(m.lockNode, m.path+"/")
		if myNodeName == children[0] {
			return nil
		}

		// 4. 监听前一个节点，它消失后重新竞争
		prevNodeIndex := -1
		for i, child := range children {
			if child == myNodeName {
				prevNodeIndex = i - 1
				break
			}
		}
		if prevNodeIndex < 0 {
			m.release()
			return errors.New("cannot find previous node, something is wrong")
		}
		prevNodePath := m.path + "/" + children[prevNodeIndex]

		exists, _, eventChan, err := m.conn.conn.ExistsW(prevNodePath)
		if err != nil {
			m.release()
			return fmt.Errorf("failed to watch previous node: %w", err)
		}
		if !exists {
			continue
		}

		select {
		case event := <-eventChan:
			if event.Type == zk.EventNodeDeleted {
				continue
			}
		case <-ctx.Done():
			m.release()
			return ErrMutexTimeout
		}
	}
}

// Release 释放互斥量；未持有时是 no-op。
func (m *Mutex) Release() error {
	return m.release()
}

func (m *Mutex) release() error {
	if m.lockNode == "" {
		return nil
	}
	err := m.conn.conn.Delete(m.lockNode, -1)
	m.lockNode = ""
	if err != nil && err != zk.ErrNoNode {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
	return nil
}
