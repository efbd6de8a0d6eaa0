// internal/zookeeper/conn.go
package zookeeper

import (
	"fmt"
	"time"

	"github.com/go-zookeeper/zk"
)

// Conn 封装了 ZooKeeper 连接，负责建连和公共节点的惰性创建。
type Conn struct {
	conn *zk.Conn
}

// Connect 建立到 ZooKeeper 集群的连接。
func Connect(servers []string) (*Conn, error) {
	conn, _, err := zk.Connect(servers, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper: %w", err)
	}
	return &Conn{conn: conn}, nil
}

// EnsurePath 确保一条持久节点路径存在，已存在时是 no-op。
func (c *Conn) EnsurePath(path string) error {
	exists, _, err := c.conn.Exists(path)
	if err != nil {
		return fmt.Errorf("failed to check path %s: %w", path, err)
	}
	if exists {
		return nil
	}
	_, err = c.conn.Create(path, []byte{}, 0, zk.WorldACL(zk.PermAll))
	if err != nil && err != zk.ErrNodeExists {
		return fmt.Errorf("failed to create path %s: %w", path, err)
	}
	return nil
}

// Close 关闭连接；所有临时节点随会话消失。
func (c *Conn) Close() {
	c.conn.Close()
}
