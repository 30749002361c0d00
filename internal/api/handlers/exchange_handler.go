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
	"remitta/pkg/utils"
)

// ExchangeHandler отвечает за управление обменными пунктами
//
// Endpoints:
// - POST /api/v1/exchanges                    - регистрация обменника
// - GET /api/v1/exchanges                     - список обменников
// - GET /api/v1/exchanges/{id}                - конкретный обменник
// - GET /api/v1/exchanges/{id}/balance        - текущий баланс
// - PATCH /api/v1/exchanges/{id}/commission   - настройка комиссий
type ExchangeHandler struct {
	exchangeService *service.ExchangeService
}

// NewExchangeHandler создает новый ExchangeHandler с внедрением зависимостей
func NewExchangeHandler(exchangeService *service.ExchangeService) *ExchangeHandler {
	return &ExchangeHandler{
		exchangeService: exchangeService,
	}
}

// CommissionConfigRequest настройка комиссии одного направления
type CommissionConfigRequest struct {
	Type  string `json:"type"`  // FIXED или PERCENTAGE
	Value string `json:"value"` // десятичная строка
}

// CreateExchangeRequest структура запроса на регистрацию обменника
type CreateExchangeRequest struct {
	Name        string                  `json:"name"`
	OwnerEmail  string                  `json:"owner_email,omitempty"`
	Balance     string                  `json:"balance,omitempty"` // начальный баланс
	IncomingFee CommissionConfigRequest `json:"incoming_fee"`
	OutgoingFee CommissionConfigRequest `json:"outgoing_fee"`
}

// UpdateCommissionRequest структура запроса на изменение комиссий
type UpdateCommissionRequest struct {
	IncomingFee CommissionConfigRequest `json:"incoming_fee"`
	OutgoingFee CommissionConfigRequest `json:"outgoing_fee"`
}

// BalanceResponse структура ответа с балансом обменника
type BalanceResponse struct {
	ExchangeID int    `json:"exchange_id"`
	Balance    string `json:"balance"`
}

// CreateExchange регистрирует обменный пункт
// POST /api/v1/exchanges
//
// Request Body:
//
//	{
//	  "name": "Exchange A",
//	  "balance": "1000",
//	  "incoming_fee": {"type": "PERCENTAGE", "value": "2.5"},
//	  "outgoing_fee": {"type": "FIXED", "value": "11"}
//	}
//
// Response:
// - 201 Created: обменник создан
// - 400 Bad Request: невалидные параметры
func (h *ExchangeHandler) CreateExchange(w http.ResponseWriter, r *http.Request) {
	var req CreateExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}

	balance := decimal.Zero
	if req.Balance != "" {
		b, err := decimal.NewFromString(req.Balance)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid_balance", "Balance must be a decimal string", err.Error())
			return
		}
		balance = b
	}

	incoming, err := h.feeFromRequest(req.IncomingFee)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_fee", "Invalid incoming fee", err.Error())
		return
	}
	outgoing, err := h.feeFromRequest(req.OutgoingFee)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_fee", "Invalid outgoing fee", err.Error())
		return
	}

	exchange, err := h.exchangeService.CreateExchange(r.Context(), &service.CreateExchangeInput{
		Name:        req.Name,
		OwnerEmail:  req.OwnerEmail,
		Balance:     balance,
		IncomingFee: incoming,
		OutgoingFee: outgoing,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	noStore(w)
	respondWithJSON(w, http.StatusCreated, exchange)
}

// GetExchanges возвращает список всех обменников
// GET /api/v1/exchanges
//
// Response:
// - 200 OK: массив обменников
func (h *ExchangeHandler) GetExchanges(w http.ResponseWriter, r *http.Request) {
	exchanges, err := h.exchangeService.ListExchanges(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, exchanges)
}

// GetExchange возвращает конкретный обменник по ID
// GET /api/v1/exchanges/{id}
//
// Response:
// - 200 OK: данные обменника
// - 404 Not Found: обменник не найден
func (h *ExchangeHandler) GetExchange(w http.ResponseWriter, r *http.Request) {
	id, ok := h.exchangeID(w, r)
	if !ok {
		return
	}

	exchange, err := h.exchangeService.GetExchange(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, exchange)
}

// GetExchangeBalance возвращает текущий баланс обменника
// GET /api/v1/exchanges/{id}/balance
//
// Баланс может быть отрицательным (долг обменника перед центром).
//
// Response:
// - 200 OK: {exchange_id, balance}
// - 404 Not Found: обменник не найден
func (h *ExchangeHandler) GetExchangeBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.exchangeID(w, r)
	if !ok {
		return
	}

	exchange, err := h.exchangeService.GetExchange(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, BalanceResponse{
		ExchangeID: exchange.ID,
		Balance:    utils.FormatMoney(exchange.Balance),
	})
}

// UpdateCommission изменяет настройку комиссий обменника
// PATCH /api/v1/exchanges/{id}/commission
//
// Изменение действует только на новые заявки. Комиссии уже созданных
// заявок зафиксированы и не пересчитываются.
//
// Response:
// - 200 OK: обновленный обменник
// - 400 Bad Request: невалидная настройка
// - 404 Not Found: обменник не найден
func (h *ExchangeHandler) UpdateCommission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.exchangeID(w, r)
	if !ok {
		return
	}

	var req UpdateCommissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}

	incoming, err := h.feeFromRequest(req.IncomingFee)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_fee", "Invalid incoming fee", err.Error())
		return
	}
	outgoing, err := h.feeFromRequest(req.OutgoingFee)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_fee", "Invalid outgoing fee", err.Error())
		return
	}

	if err := h.exchangeService.UpdateCommission(r.Context(), id, incoming, outgoing); err != nil {
		h.handleServiceError(w, err)
		return
	}

	exchange, err := h.exchangeService.GetExchange(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	noStore(w)
	respondWithJSON(w, http.StatusOK, exchange)
}

// ============ Helper методы ============

// exchangeID извлекает и валидирует ID обменника из пути
func (h *ExchangeHandler) exchangeID(w http.ResponseWriter, r *http.Request) (int, bool) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "invalid_id", "Invalid exchange ID", "ID must be a positive number")
		return 0, false
	}
	return id, true
}

// feeFromRequest конвертирует настройку комиссии из запроса в модель
func (h *ExchangeHandler) feeFromRequest(req CommissionConfigRequest) (models.CommissionConfig, error) {
	value := decimal.Zero
	if req.Value != "" {
		v, err := decimal.NewFromString(req.Value)
		if err != nil {
			return models.CommissionConfig{}, err
		}
		value = v
	}
	return models.CommissionConfig{
		Type:  req.Type,
		Value: value,
	}, nil
}

// handleServiceError обрабатывает ошибки от сервиса и возвращает соответствующий HTTP статус
func (h *ExchangeHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrExchangeNotFound):
		respondWithError(w, http.StatusNotFound, "exchange_not_found", "Exchange not found", "")

	case errors.Is(err, service.ErrExchangeNameRequired):
		respondWithError(w, http.StatusBadRequest, "name_required", "Exchange name is required", "")

	case errors.Is(err, service.ErrInvalidFeeType):
		respondWithError(w, http.StatusBadRequest, "invalid_fee_type", "Fee type must be FIXED or PERCENTAGE", "")

	case errors.Is(err, service.ErrInvalidFeeValue):
		respondWithError(w, http.StatusBadRequest, "invalid_fee_value", "Fee value must be non-negative", "")

	case errors.Is(err, service.ErrPercentageTooHigh):
		respondWithError(w, http.StatusBadRequest, "percentage_too_high", "Percentage fee cannot exceed 100", "")

	default:
		log.Printf("exchange handler: internal error: %v", err)
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error", "")
	}
}
