package websocket

import (
	"bytes"
	"log"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"remitta/internal/models"
	"remitta/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// sync.Pool для JSON буферов - убирает аллокации при каждом Broadcast
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// ============ Типизированные сообщения (без map[string]interface{}) ============

// OrderUpdateMessage - сообщение об изменении статуса заявки.
// Отправляется после commit каждой операции координатора.
type OrderUpdateMessage struct {
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	OrderID    int       `json:"order_id"`
	Code       string    `json:"code"`
	ExchangeID int       `json:"exchange_id"`
	OrderType  string    `json:"order_type"`
	Status     string    `json:"status"`
	Amount     string    `json:"amount"`
}

// BalanceUpdateMessage - сообщение об изменении баланса обменника.
// Отправляется только когда операция реально меняла баланс.
type BalanceUpdateMessage struct {
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	ExchangeID int       `json:"exchange_id"`
	Balance    string    `json:"balance"`
}

// Hub управляет всеми активными WebSocket соединениями
//
// Назначение:
// Центральный менеджер для broadcast сообщений всем подключенным дашбордам.
// Обеспечивает real-time обновления статусов заявок и балансов без polling.
//
// Типы сообщений:
// - orderUpdate: изменение статуса заявки
// - balanceUpdate: изменение баланса обменника
//
// Использование:
// 1. Создать hub: hub := NewHub()
// 2. Запустить в горутине: go hub.Run()
// 3. Отправлять сообщения: hub.BroadcastOrderStatus(order, balance)
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Broadcast канал для отправки сообщений всем клиентам
	broadcast chan []byte

	// Регистрация нового клиента
	register chan *Client

	// Отмена регистрации клиента
	unregister chan *Client

	// Mutex для потокобезопасного доступа к clients
	mu sync.RWMutex
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run запускает главный цикл Hub
//
// Должен запускаться в отдельной горутине: go hub.Run()
// Обрабатывает регистрацию, отмену регистрации и broadcast.
// При broadcast список клиентов копируется под коротким RLock,
// отправка идет без блокировки, медленные клиенты удаляются под Write Lock.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("Client connected. Total clients: %d", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("Client disconnected. Total clients: %d", total)

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			// Отправляем БЕЗ блокировки, чтобы не тормозить register/unregister
			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Клиент не успевает обрабатывать сообщения - помечаем для удаления
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				total := len(h.clients)
				h.mu.Unlock()
				log.Printf("Removed %d slow clients. Total clients: %d", len(toRemove), total)
			}
		}
	}
}

// Broadcast отправляет сообщение всем подключенным клиентам.
// Использует sync.Pool для буферов сериализации.
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		log.Printf("Error marshaling broadcast message: %v", err)
		jsonBufferPool.Put(buf)
		return
	}

	// Убираем trailing newline от Encode
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	// Копируем данные (буфер вернётся в пул)
	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	h.broadcast <- msgCopy
}

// BroadcastOrderStatus отправляет обновление заявки подключенным дашбордам.
// Если balance != nil, операция меняла баланс обменника и следом уходит
// отдельное balanceUpdate сообщение.
func (h *Hub) BroadcastOrderStatus(order *models.Order, balance *decimal.Decimal) {
	now := time.Now()
	h.Broadcast(&OrderUpdateMessage{
		Type:       "orderUpdate",
		Timestamp:  now,
		OrderID:    order.ID,
		Code:       order.Code,
		ExchangeID: order.ExchangeID,
		OrderType:  order.Type,
		Status:     order.Status,
		Amount:     utils.FormatMoney(order.Amount),
	})

	if balance != nil {
		h.Broadcast(&BalanceUpdateMessage{
			Type:       "balanceUpdate",
			Timestamp:  now,
			ExchangeID: order.ExchangeID,
			Balance:    utils.FormatMoney(*balance),
		})
	}
}
