package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"remitta/internal/models"
	"remitta/internal/service"
)

// OrderHandler отвечает за жизненный цикл заявок на перевод
//
// Endpoints:
// - POST /api/v1/orders                            - подача новой заявки
// - GET /api/v1/orders                             - список заявок с фильтрами
// - GET /api/v1/orders/{id}                        - конкретная заявка
// - POST /api/v1/orders/{id}/review                - взять на рассмотрение
// - POST /api/v1/orders/{id}/approve               - одобрить
// - POST /api/v1/orders/{id}/complete              - завершить
// - POST /api/v1/orders/{id}/reject                - отклонить
// - POST /api/v1/orders/{id}/cancellation-request  - запросить отмену
// - POST /api/v1/orders/{id}/cancellation          - разрешить запрос отмены
type OrderHandler struct {
	orderService *service.OrderService
}

// NewOrderHandler создает новый OrderHandler с внедрением зависимостей
func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

// CreateOrderRequest структура запроса на создание заявки
type CreateOrderRequest struct {
	ExchangeID    int    `json:"exchange_id"`
	Type          string `json:"type"`   // INCOMING или OUTGOING
	Amount        string `json:"amount"` // десятичная строка, "150.500"
	SenderName    string `json:"sender_name"`
	RecipientName string `json:"recipient_name"`
	BankName      string `json:"bank_name,omitempty"`
	WalletAlias   string `json:"wallet_alias,omitempty"`
	Mobile        string `json:"mobile,omitempty"`
}

// CompleteOrderRequest структура запроса на завершение заявки
type CompleteOrderRequest struct {
	// Фактически полученная сумма для INCOMING. Если пусто,
	// используется заявленная сумма.
	ActualAmount string `json:"actual_amount,omitempty"`
}

// RejectOrderRequest структура запроса на отклонение заявки
type RejectOrderRequest struct {
	Reason string `json:"reason"`
}

// CancellationRequest структура запроса на разрешение отмены
type CancellationRequest struct {
	Action string `json:"action"` // approve или reject
	Reason string `json:"reason,omitempty"`
}

// Ответы расчетных операций: success плюс поля результата координатора
// на верхнем уровне (встраивание разворачивает их при сериализации)
type approveResponse struct {
	Success bool `json:"success"`
	*service.ApproveResult
}

type completeResponse struct {
	Success bool `json:"success"`
	*service.CompleteResult
}

type rejectResponse struct {
	Success bool `json:"success"`
	*service.RejectResult
}

type cancellationResponse struct {
	Success bool `json:"success"`
	*service.CancellationResult
}

// CreateOrder подает новую заявку на перевод
// POST /api/v1/orders
//
// Request Body:
//
//	{
//	  "exchange_id": 3,
//	  "type": "OUTGOING",
//	  "amount": "100",
//	  "sender_name": "...",
//	  "recipient_name": "...",
//	  "bank_name": "..."
//	}
//
// Response:
// - 201 Created: заявка создана в статусе SUBMITTED
// - 400 Bad Request: невалидные параметры
// - 404 Not Found: обменник не найден
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_amount", "Amount must be a decimal string", err.Error())
		return
	}

	order, err := h.orderService.CreateOrder(r.Context(), &service.CreateOrderInput{
		ExchangeID:    req.ExchangeID,
		Type:          req.Type,
		Amount:        amount,
		SenderName:    req.SenderName,
		RecipientName: req.RecipientName,
		BankName:      req.BankName,
		WalletAlias:   req.WalletAlias,
		Mobile:        req.Mobile,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	noStore(w)
	respondWithJSON(w, http.StatusCreated, order)
}

// GetOrders возвращает список заявок
// GET /api/v1/orders
//
// Query Parameters:
// - code: точный поиск по номеру заявки (остальные фильтры игнорируются)
// - status: фильтр по статусу (SUBMITTED, PENDING_REVIEW, ...)
// - exchange_id: фильтр по обменнику
// - limit: максимум записей (default 100, max 500)
//
// Response:
// - 200 OK: массив заявок
// - 404 Not Found: заявка с указанным номером не найдена
func (h *OrderHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if code := query.Get("code"); code != "" {
		order, err := h.orderService.GetOrderByCode(r.Context(), code)
		if err != nil {
			h.handleServiceError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, []*models.Order{order})
		return
	}

	status := query.Get("status")

	exchangeID := 0
	if raw := query.Get("exchange_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid_exchange_id", "exchange_id must be a number", "")
			return
		}
		exchangeID = id
	}

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid_limit", "limit must be a number", "")
			return
		}
		limit = n
	}

	orders, err := h.orderService.ListOrders(r.Context(), status, exchangeID, limit)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

// GetOrder возвращает конкретную заявку по ID
// GET /api/v1/orders/{id}
//
// Response:
// - 200 OK: данные заявки
// - 404 Not Found: заявка не найдена
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, order)
}

// TakeForReview берет заявку на рассмотрение
// POST /api/v1/orders/{id}/review
//
// Response:
// - 200 OK: заявка в статусе PENDING_REVIEW
// - 400 Bad Request: переход из текущего статуса недопустим
// - 404 Not Found: заявка не найдена
func (h *OrderHandler) TakeForReview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	order, err := h.orderService.TakeForReview(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	noStore(w)
	respondWithJSON(w, http.StatusOK, order)
}

// ApproveOrder одобряет заявку
// POST /api/v1/orders/{id}/approve
//
// Для OUTGOING атомарно списывает amount + commission с баланса
// и переводит заявку сразу в PROCESSING.
// Для INCOMING только переводит в APPROVED.
//
// Response:
// - 200 OK: {success, new_status, balance_updated, new_balance}
// - 400 Bad Request: недопустимый переход или недостаточный баланс
// - 404 Not Found: заявка не найдена
// - 409 Conflict: конкурентная операция, можно повторить
func (h *OrderHandler) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	result, err := h.orderService.Approve(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	noStore(w)
	respondWithJSON(w, http.StatusOK, approveResponse{Success: true, ApproveResult: result})
}

// CompleteOrder завершает заявку
// POST /api/v1/orders/{id}/complete
//
// Request Body (опционально):
//
//	{"actual_amount": "95.5"}
//
// Для INCOMING зачисляет actual_amount - commission на баланс.
// Комиссия при этом не пересчитывается.
//
// Response:
// - 200 OK: {success, final_amount, amount_changed, ...}
// - 400 Bad Request: недопустимый переход или невалидная сумма
// - 404 Not Found: заявка не найдена
// - 409 Conflict: конкурентная операция, можно повторить
func (h *OrderHandler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var actualAmount *decimal.Decimal
	if r.Body != nil && r.ContentLength != 0 {
		var req CompleteOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
			return
		}
		if req.ActualAmount != "" {
			amount, err := decimal.NewFromString(req.ActualAmount)
			if err != nil {
				respondWithError(w, http.StatusBadRequest, "invalid_amount", "actual_amount must be a decimal string", err.Error())
				return
			}
			actualAmount = &amount
		}
	}

	result, err := h.orderService.Complete(r.Context(), id, actualAmount)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	noStore(w)
	respondWithJSON(w, http.StatusOK, completeResponse{Success: true, CompleteResult: result})
}

// RejectOrder отклоняет заявку
// POST /api/v1/orders/{id}/reject
//
// Request Body:
//
//	{"reason": "документы не прошли проверку"}
//
// Если OUTGOING уже в PROCESSING, списанная сумма возвращается на баланс.
//
// Response:
// - 200 OK: {success, balance_restored, new_balance}
// - 400 Bad Request: причина не указана или переход недопустим
// - 404 Not Found: заявка не найдена
// - 409 Conflict: конкурентная операция, можно повторить
func (h *OrderHandler) RejectOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var req RejectOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}

	result, err := h.orderService.Reject(r.Context(), id, req.Reason)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	noStore(w)
	respondWithJSON(w, http.StatusOK, rejectResponse{Success: true, RejectResult: result})
}

// RequestCancellation запрашивает отмену заявки
// POST /api/v1/orders/{id}/cancellation-request
//
// Ставит флаг cancellation_requested, статус не меняет. Решение
// принимает администратор через /cancellation.
//
// Response:
// - 202 Accepted: запрос зарегистрирован
// - 400 Bad Request: заявка в терминальном статусе или запрос уже есть
// - 404 Not Found: заявка не найдена
func (h *OrderHandler) RequestCancellation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	if err := h.orderService.RequestCancellation(r.Context(), id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	noStore(w)
	respondWithJSON(w, http.StatusAccepted, SuccessResponse{Message: "cancellation requested"})
}

// HandleCancellation разрешает запрос на отмену
// POST /api/v1/orders/{id}/cancellation
//
// Request Body:
//
//	{"action": "approve", "reason": "по просьбе отправителя"}
//
// action=approve переводит заявку в CANCELLED (с возвратом средств
// для OUTGOING в PROCESSING), action=reject снимает флаг запроса.
//
// Response:
// - 200 OK: {success, action, balance_restored, ...}
// - 400 Bad Request: нет запроса на отмену или переход недопустим
// - 404 Not Found: заявка не найдена
// - 409 Conflict: конкурентная операция, можно повторить
func (h *OrderHandler) HandleCancellation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var req CancellationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}

	result, err := h.orderService.HandleCancellationRequest(r.Context(), id, req.Action, req.Reason)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	noStore(w)
	respondWithJSON(w, http.StatusOK, cancellationResponse{Success: true, CancellationResult: result})
}

// ============ Helper методы ============

// orderID извлекает и валидирует ID заявки из пути
func (h *OrderHandler) orderID(w http.ResponseWriter, r *http.Request) (int, bool) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "invalid_id", "Invalid order ID", "ID must be a positive number")
		return 0, false
	}
	return id, true
}

// handleServiceError обрабатывает ошибки от сервиса и возвращает соответствующий HTTP статус
func (h *OrderHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		respondWithError(w, http.StatusNotFound, "order_not_found", "Order not found", "")

	case errors.Is(err, service.ErrExchangeNotFound):
		respondWithError(w, http.StatusNotFound, "exchange_not_found", "Exchange not found", "")

	case errors.Is(err, service.ErrInvalidTransition):
		respondWithError(w, http.StatusBadRequest, "invalid_transition", "Status transition is not allowed", err.Error())

	case errors.Is(err, service.ErrInsufficientBalance):
		respondWithError(w, http.StatusBadRequest, "insufficient_balance", "Exchange balance is insufficient", err.Error())

	case errors.Is(err, service.ErrValidation):
		respondWithError(w, http.StatusBadRequest, "validation_failed", "Validation failed", err.Error())

	case errors.Is(err, service.ErrNoCancellationRequest):
		respondWithError(w, http.StatusBadRequest, "no_cancellation_request", "Order has no pending cancellation request", "")

	case errors.Is(err, service.ErrCancellationPending):
		respondWithError(w, http.StatusBadRequest, "cancellation_pending", "Cancellation request is already pending", "")

	case errors.Is(err, service.ErrConcurrencyConflict):
		respondWithError(w, http.StatusConflict, "concurrency_conflict", "Operation conflicted with a concurrent one, retry", "")

	default:
		// Детали внутренних ошибок в лог, клиенту generic сообщение
		log.Printf("order handler: internal error: %v", err)
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error", "")
	}
}
