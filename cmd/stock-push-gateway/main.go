// cmd/stock-push-gateway/main.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockpile/internal/pkg/bootstrap"
	"stockpile/internal/pkg/logger"
	"stockpile/internal/pkg/mq"
	"stockpile/internal/service/inventory/domain"
)

const serviceName = "stock-push-gateway"

var (
	nodeID   = serviceName + "-" + uuid.New().String()[:8]
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool { // 简化处理，允许所有跨域
			return true
		},
	}
)

// Hub 维护所有活跃的连接，按 productId 分组广播库存变动。
type Hub struct {
	clients    map[string]map[*Client]struct{} // productId -> 订阅它的连接
	register   chan *Client
	unregister chan *Client
	broadcast  chan *domain.StockChanged
	lock       sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *domain.StockChanged, 256),
	}
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.lock.Lock()
			for _, productID := range client.products {
				if h.clients[productID] == nil {
					h.clients[productID] = make(map[*Client]struct{})
				}
				h.clients[productID][client] = struct{}{}
			}
			h.lock.Unlock()
			logger.Logger.Info().Str("node", nodeID).Strs("products", client.products).Msg("dashboard client subscribed")
		case client := <-h.unregister:
			h.lock.Lock()
			for _, productID := range client.products {
				if set, ok := h.clients[productID]; ok {
					if _, ok := set[client]; ok {
						delete(set, client)
						if len(set) == 0 {
							delete(h.clients, productID)
						}
					}
				}
			}
			h.lock.Unlock()
			close(client.send)
		case event := <-h.broadcast:
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			h.lock.RLock()
			for client := range h.clients[event.ProductID] {
				select {
				case client.send <- payload:
				default:
					// 慢消费者不拖垮广播，丢弃本条
				}
			}
			h.lock.RUnlock()
		}
	}
}

// Client 是一个订阅了若干商品的 WebSocket 连接。
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	products []string
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
	}()
	c.conn.SetReadLimit(512)
	for {
		// 只消费心跳和关闭帧，看板不上行业务数据
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func serveWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	products := r.URL.Query()["productId"]
	if len(products) == 0 {
		http.Error(w, "at least one productId is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{hub: hub, conn: conn, send: make(chan []byte, 256), products: products}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// consumeStockEvents 消费库存变动事件并交给 Hub 广播。
// 每个网关节点用独立的 groupID，同一条事件到达所有节点。
func consumeStockEvents(ctx context.Context, hub *Hub, brokers []string, topic string) {
	reader := mq.NewKafkaReader(brokers, topic, nodeID)
	defer reader.Close()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Logger.Error().Err(err).Msg("⚠️ failed to fetch stock event")
			continue
		}

		msgCtx := mq.ExtractTraceContext(ctx, msg.Headers)
		var event domain.StockChanged
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Ctx(msgCtx).Warn().Err(err).Msg("dropping malformed stock event")
		} else {
			hub.broadcast <- &event
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(msgCtx).Error().Err(err).Msg("⚠️ failed to commit stock event offset")
		}
	}
}

func main() {
	bootstrap.Init()
	cfg := bootstrap.GetCurrentConfig()

	hub := newHub()
	gwCtx, stop := context.WithCancel(context.Background())

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8088,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("/metrics", promhttp.Handler())
			appCtx.Mux.HandleFunc("/ws/stock", func(w http.ResponseWriter, r *http.Request) {
				serveWs(hub, w, r)
			})

			go hub.run(gwCtx)
			go consumeStockEvents(gwCtx, hub, cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.StockEventsTopic)
		},
		OnShutdown: func(ctx context.Context) {
			stop()
		},
	})
}
