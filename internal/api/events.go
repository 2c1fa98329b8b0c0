package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/filswan/go-swan-lib/logs"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lagrangedao/go-computing-market/internal/metrics"
	"github.com/lagrangedao/go-computing-market/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	clientBuffer = 64
)

var upgrade = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event is one committed market operation as streamed to subscribers.
type Event struct {
	Id         string             `json:"id"`
	RequestId  string             `json:"request_id,omitempty"`
	Action     string             `json:"action"`
	Attributes []models.Attribute `json:"attributes"`
	Transfers  []models.Transfer  `json:"transfers,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

// EventHub fans committed operations out to websocket subscribers. A subscriber
// that cannot keep up is dropped rather than slowing down the market.
type EventHub struct {
	mu      sync.RWMutex
	clients map[*WsClient]struct{}
	closed  bool
}

func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[*WsClient]struct{})}
}

func (h *EventHub) Publish(resp *models.Response, requestID string, at time.Time) {
	data, err := json.Marshal(Event{
		Id:         uuid.NewString(),
		RequestId:  requestID,
		Action:     resp.Action,
		Attributes: resp.Attributes,
		Transfers:  resp.Transfers,
		Timestamp:  at.UTC(),
	})
	if err != nil {
		logs.GetLogger().Errorf("Failed marshal event %s, error: %v", resp.Action, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.send(data) {
			go h.remove(client)
		}
	}
}

// Count returns the number of connected subscribers.
func (h *EventHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Subscribe upgrades the request to a websocket that receives every event.
func (h *EventHub) Subscribe(c *gin.Context) {
	conn, err := upgrade.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logs.GetLogger().Errorf("Failed upgrade event subscriber, error: %v", err)
		return
	}

	client := NewWsClient(conn)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		client.Close()
		return
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	metrics.EventSubscribers.Inc()

	go client.writePump()
	go func() {
		client.readPump()
		h.remove(client)
	}()
}

func (h *EventHub) remove(client *WsClient) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if ok {
		metrics.EventSubscribers.Dec()
		client.Close()
	}
}

// Close disconnects every subscriber and refuses new ones.
func (h *EventHub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WsClient]struct{})
	h.closed = true
	h.mu.Unlock()

	for client := range clients {
		metrics.EventSubscribers.Dec()
		client.Close()
	}
}

type WsClient struct {
	client    *websocket.Conn
	message   chan []byte
	stopCh    chan struct{}
	closeOnce sync.Once
}

func NewWsClient(client *websocket.Conn) *WsClient {
	return &WsClient{
		client:  client,
		message: make(chan []byte, clientBuffer),
		stopCh:  make(chan struct{}),
	}
}

func (ws *WsClient) Close() {
	ws.closeOnce.Do(func() {
		close(ws.stopCh)
		ws.client.Close()
	})
}

// send queues data without blocking; false means the client is stuck or gone.
func (ws *WsClient) send(data []byte) bool {
	select {
	case <-ws.stopCh:
		return false
	default:
	}
	select {
	case ws.message <- data:
		return true
	default:
		return false
	}
}

func (ws *WsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case data := <-ws.message:
			ws.client.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.client.WriteMessage(websocket.TextMessage, data); err != nil {
				logs.GetLogger().Warnf("event subscriber write failed, error: %v", err)
				ws.Close()
				return
			}
		case <-ticker.C:
			if err := ws.client.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				ws.Close()
				return
			}
		case <-ws.stopCh:
			return
		}
	}
}

// readPump drains control frames until the peer goes away.
func (ws *WsClient) readPump() {
	ws.client.SetReadDeadline(time.Now().Add(pongWait))
	ws.client.SetPongHandler(func(string) error {
		return ws.client.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.client.ReadMessage(); err != nil {
			return
		}
	}
}
