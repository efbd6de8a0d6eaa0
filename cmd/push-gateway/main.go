package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voyago/internal/pkg/bootstrap"
	"voyago/internal/pkg/config"
	"voyago/internal/pkg/mq"
	pkgredis "voyago/internal/pkg/redis"
	"voyago/internal/pkg/session"
)

var (
	sessionMgr *session.Manager
	nodeID     = "push-gateway-" + uuid.New().String()[:8]
	upgrader   = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool { // 简化处理，允许所有跨域
			return true
		},
	}
)

// Hub 维护所有活跃的连接，并负责消息广播
type Hub struct {
	clients    map[string]*Client // 使用UserID作为Key
	register   chan *Client
	unregister chan *Client
	lock       sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.lock.Lock()
			h.clients[client.userID] = client
			h.lock.Unlock()
			log.Printf("Client %s registered on node %s", client.userID, nodeID)
		case client := <-h.unregister:
			h.lock.Lock()
			if _, ok := h.clients[client.userID]; ok {
				delete(h.clients, client.userID)
				close(client.send)
			}
			h.lock.Unlock()
			log.Printf("Client %s unregistered.", client.userID)
		}
	}
}

// pushTo 把消息投给指定用户的连接，用户不在本节点时丢弃。
func (h *Hub) pushTo(userID string, message []byte) {
	h.lock.RLock()
	client, ok := h.clients[userID]
	h.lock.RUnlock()
	if !ok {
		return
	}
	select {
	case client.send <- message:
	default:
		// 发送缓冲满说明连接已经不健康，踢掉
		h.unregister <- client
	}
}

// Client 是一个WebSocket连接的代表
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		if err := sessionMgr.RemoveUserGateway(context.Background(), c.userID); err != nil {
			log.Printf("Failed to remove session for user %s: %v", c.userID, err)
		}
	}()
	c.conn.SetReadLimit(512)
	for {
		// 只消费心跳等控制消息，推送是单向的
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func serveWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	// 1. 从URL参数获取UserID
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userID is required", http.StatusBadRequest)
		return
	}

	// 2. HTTP升级为WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	// 3. 创建客户端实例并注册到Hub
	client := &Client{hub: hub, conn: conn, send: make(chan []byte, 256), userID: userID}
	client.hub.register <- client

	// 4. 在Redis中设置会话信息
	err = sessionMgr.SetUserGateway(context.Background(), userID, nodeID)
	if err != nil {
		log.Printf("Failed to set session for user %s: %v", userID, err)
		conn.Close()
		return
	}

	// 5. 启动读写goroutine
	go client.writePump()
	go client.readPump()
}

// consumeNotifications 订阅通知主题，把属于本节点在线用户的消息推下去。
func consumeNotifications(ctx context.Context, hub *Hub) {
	cfg := config.GetCurrentConfig()
	reader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.NotifyTopic, "push-gateway-"+nodeID)
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Failed to read notification: %v", err)
			time.Sleep(time.Second)
			continue
		}

		var event struct {
			UserID string `json:"userId"`
		}
		if err := json.Unmarshal(msg.Value, &event); err != nil || event.UserID == "" {
			continue
		}

		// 只推给会话登记在本节点的用户
		gateway, err := sessionMgr.GetUserGateway(ctx, event.UserID)
		if err != nil || gateway != nodeID {
			continue
		}
		hub.pushTo(event.UserID, msg.Value)
	}
}

func main() {
	bootstrap.Init("push-gateway")
	cfg := config.GetCurrentConfig()

	redisClient, err := pkgredis.NewClient(cfg.Infra.Redis.Addr)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	sessionMgr = session.NewManager(redisClient)

	hub := newHub()
	go hub.run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go consumeNotifications(ctx, hub)

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, w, r)
	})

	server := &http.Server{Addr: ":8088"}
	go func() {
		log.Printf("Push Gateway (%s) started on :8088", nodeID)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
}
