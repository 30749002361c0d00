package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"remitta/internal/events"
	"remitta/internal/ledger"
	"remitta/internal/models"
	"remitta/internal/repository"
	"remitta/pkg/retry"
	"remitta/pkg/utils"
)

// Ошибки сервиса заявок
var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrExchangeNotFound      = errors.New("exchange not found")
	ErrInvalidTransition     = errors.New("status transition is not allowed")
	ErrInsufficientBalance   = errors.New("insufficient exchange balance")
	ErrValidation            = errors.New("validation failed")
	ErrNoCancellationRequest = errors.New("order has no pending cancellation request")
	ErrCancellationPending   = errors.New("cancellation request is already pending")
	ErrConcurrencyConflict   = errors.New("operation conflicted with a concurrent one")
)

// StatusBroadcaster рассылает обновления заявок подключенным дашбордам
type StatusBroadcaster interface {
	BroadcastOrderStatus(order *models.Order, balance *decimal.Decimal)
}

// OrderService - координатор жизненного цикла заявок.
//
// Каждая административная операция (approve / complete / reject /
// handle-cancellation) выполняется как одна атомарная транзакция:
// захват строк заявки и обменника FOR UPDATE, проверка перехода по
// state machine, расчет изменения баланса, мутация, commit. Любая
// ошибка откатывает транзакцию целиком - баланс и статус не меняются.
//
// Повторное применение операции блокируется проверкой статуса:
// заявка, уже ушедшая из исходного статуса, дает ErrInvalidTransition,
// а не повторную мутацию баланса.
type OrderService struct {
	tx           *repository.TxManager
	orderRepo    *repository.OrderRepository
	exchangeRepo *repository.ExchangeRepository
	seqRepo      *repository.SequenceRepository
	publisher    events.Publisher
	broadcaster  StatusBroadcaster // может быть nil
	retryCfg     retry.Config
	logger       *zap.SugaredLogger
}

// NewOrderService создает координатор заявок
func NewOrderService(
	tx *repository.TxManager,
	orderRepo *repository.OrderRepository,
	exchangeRepo *repository.ExchangeRepository,
	seqRepo *repository.SequenceRepository,
	publisher events.Publisher,
	logger *zap.SugaredLogger,
) *OrderService {
	cfg := retry.DefaultConfig()
	cfg.RetryIf = repository.IsRetryable

	return &OrderService{
		tx:           tx,
		orderRepo:    orderRepo,
		exchangeRepo: exchangeRepo,
		seqRepo:      seqRepo,
		publisher:    publisher,
		retryCfg:     cfg,
		logger:       logger,
	}
}

// SetBroadcaster подключает websocket hub.
// Вызывается после инициализации hub.
func (s *OrderService) SetBroadcaster(b StatusBroadcaster) {
	s.broadcaster = b
}

// ConfigureRetry переопределяет политику повторов координатора
// значениями из конфигурации
func (s *OrderService) ConfigureRetry(maxRetries int, backoff time.Duration) {
	s.retryCfg.MaxRetries = maxRetries
	s.retryCfg.InitialDelay = backoff
}

// CreateOrderInput - параметры создания заявки
type CreateOrderInput struct {
	ExchangeID    int
	Type          string
	Amount        decimal.Decimal
	SenderName    string
	RecipientName string
	BankName      string
	WalletAlias   string
	Mobile        string
}

// CreateOrder создает заявку в статусе SUBMITTED.
//
// Комиссия вычисляется из текущей настройки обменника и фиксируется
// в заявке навсегда - последующие изменения настройки или фактической
// суммы входящего перевода ее не пересчитывают.
func (s *OrderService) CreateOrder(ctx context.Context, input *CreateOrderInput) (*models.Order, error) {
	if !models.IsValidOrderType(input.Type) {
		return nil, fmt.Errorf("%w: unknown order type %q", ErrValidation, input.Type)
	}
	if err := utils.ValidateAmount(input.Amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	for field, value := range map[string]string{
		"sender_name":    input.SenderName,
		"recipient_name": input.RecipientName,
		"bank_name":      input.BankName,
		"wallet_alias":   input.WalletAlias,
		"mobile":         input.Mobile,
	} {
		if err := utils.ValidateCounterparty(field, value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	exchange, err := s.exchangeRepo.GetByID(ctx, input.ExchangeID)
	if err != nil {
		if errors.Is(err, repository.ErrExchangeNotFound) {
			return nil, ErrExchangeNotFound
		}
		return nil, err
	}

	commission := ledger.Commission(input.Amount, exchange.FeeFor(input.Type))
	now := time.Now()

	order := &models.Order{
		Code:          s.nextOrderCode(ctx, now),
		ExchangeID:    exchange.ID,
		Type:          input.Type,
		Status:        models.StatusSubmitted,
		Amount:        input.Amount,
		Commission:    commission,
		NetAmount:     ledger.NetAmount(input.Type, input.Amount, commission),
		SenderName:    input.SenderName,
		RecipientName: input.RecipientName,
		BankName:      input.BankName,
		WalletAlias:   input.WalletAlias,
		Mobile:        input.Mobile,
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		if !repository.IsUniqueViolation(err) {
			return nil, err
		}
		// Fallback-номер может совпасть с уже выданным счетчиком номером
		// того же месяца. Одна повторная попытка со свежим суффиксом.
		collided := order.Code
		order.Code = fallbackOrderCode(time.Now())
		s.logger.Warnw("order code collision, retrying with fallback code",
			"collided_code", collided, "retry_code", order.Code)
		if err := s.orderRepo.Create(ctx, order); err != nil {
			return nil, err
		}
	}

	OrdersCreatedTotal.WithLabelValues(order.Type).Inc()
	s.notifyStatusChange(order, nil)

	return order, nil
}

// GetOrder возвращает заявку по ID
func (s *OrderService) GetOrder(ctx context.Context, orderID int) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// GetOrderByCode возвращает заявку по человекочитаемому номеру
func (s *OrderService) GetOrderByCode(ctx context.Context, code string) (*models.Order, error) {
	if err := utils.ValidateOrderCode(code); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	order, err := s.orderRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// ListOrders возвращает заявки с фильтрами
func (s *OrderService) ListOrders(ctx context.Context, status string, exchangeID, limit int) ([]*models.Order, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.orderRepo.List(ctx, status, exchangeID, limit)
}

// TakeForReview берет заявку на рассмотрение: SUBMITTED → PENDING_REVIEW
func (s *OrderService) TakeForReview(ctx context.Context, orderID int) (*models.Order, error) {
	var updated *models.Order

	err := s.runCoordinated(ctx, "take_for_review", func(tx *sql.Tx) error {
		locked, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if err := s.checkTransition("take_for_review", locked.Order.Status, models.StatusPendingReview); err != nil {
			return err
		}

		if err := s.orderRepo.UpdateStatus(ctx, tx, orderID, models.StatusPendingReview, time.Now()); err != nil {
			return err
		}

		locked.Order.Status = models.StatusPendingReview
		updated = &locked.Order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyStatusChange(updated, nil)
	return updated, nil
}

// RequestCancellation выставляет флаг запроса на отмену от имени
// владеющего обменника. Запрос разрешает или отклоняет администратор
// через HandleCancellationRequest.
func (s *OrderService) RequestCancellation(ctx context.Context, orderID int) error {
	return s.runCoordinated(ctx, "request_cancellation", func(tx *sql.Tx) error {
		locked, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if !ledger.CanTransition(locked.Order.Status, models.StatusCancelled) {
			InvalidTransitionsTotal.WithLabelValues("request_cancellation").Inc()
			return fmt.Errorf("%w: order %s cannot be cancelled from status %s",
				ErrInvalidTransition, locked.Order.Code, locked.Order.Status)
		}
		if locked.Order.CancellationRequested {
			return ErrCancellationPending
		}

		return s.orderRepo.SetCancellationRequested(ctx, tx, orderID)
	})
}

// runCoordinated выполняет операцию координатора с bounded retry.
// Повторяются только конфликты блокировок и кратковременные сбои
// хранилища; детерминированные бизнес-ошибки отдаются сразу.
func (s *OrderService) runCoordinated(ctx context.Context, operation string, fn func(tx *sql.Tx) error) error {
	start := time.Now()

	err := retry.Do(ctx, s.retryCfg, func() error {
		return s.tx.WithinTx(ctx, fn)
	})

	CoordinatorDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil && errors.Is(err, repository.ErrConcurrencyConflict) {
		ConcurrencyConflictsTotal.Inc()
		return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
	}
	return err
}

// lockOrder захватывает заявку с обменником и маппит ошибку отсутствия
func (s *OrderService) lockOrder(ctx context.Context, tx *sql.Tx, orderID int) (*models.LockedOrder, error) {
	locked, err := s.orderRepo.LockForSettlement(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return locked, nil
}

// checkTransition валидирует переход по state machine до любых мутаций
func (s *OrderService) checkTransition(operation, from, to string) error {
	if !ledger.CanTransition(from, to) {
		InvalidTransitionsTotal.WithLabelValues(operation).Inc()
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// notifyStatusChange публикует событие и рассылает обновление дашбордам.
// Вызывается строго после commit - сбой уведомления не влияет на расчет.
func (s *OrderService) notifyStatusChange(order *models.Order, balance *decimal.Decimal) {
	event := events.OrderEvent{
		OrderID:    order.ID,
		Code:       order.Code,
		ExchangeID: order.ExchangeID,
		Type:       order.Type,
		Status:     order.Status,
		Amount:     order.Amount.String(),
		OccurredAt: time.Now(),
	}
	if balance != nil {
		event.Balance = balance.String()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
			s.logger.Errorw("failed to publish order event",
				"order_id", order.ID, "status", order.Status, "error", err)
		}
	}()

	if s.broadcaster != nil {
		s.broadcaster.BroadcastOrderStatus(order, balance)
	}
}
