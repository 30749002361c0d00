package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"remitta/internal/ledger"
	"remitta/internal/models"
	"remitta/pkg/utils"
)

// settlement.go - четыре расчетные операции координатора
//
// Общая дисциплина каждой операции:
//  1. транзакция, захват заявки и обменника FOR UPDATE
//  2. проверка перехода по state machine (до любых мутаций)
//  3. расчет дельты баланса чистыми функциями ledger
//  4. мутация статуса/полей заявки и баланса обменника
//  5. commit; любая ошибка на любом шаге - полный откат
//
// Денежная мутация по одному расчетному событию применяется ровно один
// раз: повторный вызов находит заявку уже вне исходного статуса и
// получает ErrInvalidTransition без каких-либо изменений.

// Действия по запросу на отмену
const (
	CancellationApprove = "approve"
	CancellationReject  = "reject"
)

// ApproveResult - результат одобрения заявки
type ApproveResult struct {
	NewStatus      string          `json:"new_status"`
	BalanceUpdated bool            `json:"balance_updated"`
	NewBalance     decimal.Decimal `json:"new_balance"`
}

// CompleteResult - результат завершения заявки
type CompleteResult struct {
	FinalAmount    decimal.Decimal `json:"final_amount"`
	AmountChanged  bool            `json:"amount_changed"`
	BalanceUpdated bool            `json:"balance_updated"`
	OldBalance     decimal.Decimal `json:"old_balance"`
	NewBalance     decimal.Decimal `json:"new_balance"`
	CreditAmount   decimal.Decimal `json:"credit_amount"`
}

// RejectResult - результат отклонения заявки
type RejectResult struct {
	BalanceRestored bool            `json:"balance_restored"`
	NewBalance      decimal.Decimal `json:"new_balance"`
}

// CancellationResult - результат разрешения запроса на отмену
type CancellationResult struct {
	Action          string          `json:"action"`
	BalanceRestored bool            `json:"balance_restored"`
	OldBalance      decimal.Decimal `json:"old_balance"`
	NewBalance      decimal.Decimal `json:"new_balance"`
}

// Approve одобряет заявку из статуса PENDING_REVIEW.
//
// OUTGOING: требует баланса не меньше amount + commission, атомарно
// списывает эту сумму и переводит заявку сразу в PROCESSING - отдельного
// подтверждения для исходящих нет, одобрение и запуск слиты.
//
// INCOMING: только переход в APPROVED, баланс не трогается до момента
// завершения - администратор позже подтверждает фактическую сумму.
func (s *OrderService) Approve(ctx context.Context, orderID int) (*ApproveResult, error) {
	var result *ApproveResult
	var updated *models.Order
	var newBalance *decimal.Decimal

	err := s.runCoordinated(ctx, "approve", func(tx *sql.Tx) error {
		locked, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		order, exchange := &locked.Order, &locked.Exchange

		if err := s.checkTransition("approve", order.Status, models.StatusApproved); err != nil {
			return err
		}

		now := time.Now()

		if order.Type == models.OrderTypeOutgoing {
			cost := ledger.OutgoingNet(order.Amount, order.Commission)
			if exchange.Balance.LessThan(cost) {
				InsufficientBalanceTotal.Inc()
				return fmt.Errorf("%w: required %s, available %s",
					ErrInsufficientBalance, cost, exchange.Balance)
			}

			balance := ledger.ApplyOutgoing(exchange.Balance, order.Amount, order.Commission)
			if err := s.exchangeRepo.UpdateBalance(ctx, tx, exchange.ID, balance); err != nil {
				return err
			}
			if err := s.orderRepo.UpdateStatus(ctx, tx, orderID, models.StatusProcessing, now); err != nil {
				return err
			}

			order.Status = models.StatusProcessing
			result = &ApproveResult{
				NewStatus:      models.StatusProcessing,
				BalanceUpdated: true,
				NewBalance:     balance,
			}
			newBalance = &balance
		} else {
			if err := s.orderRepo.UpdateStatus(ctx, tx, orderID, models.StatusApproved, now); err != nil {
				return err
			}

			order.Status = models.StatusApproved
			result = &ApproveResult{
				NewStatus:      models.StatusApproved,
				BalanceUpdated: false,
				NewBalance:     exchange.Balance,
			}
			newBalance = nil
		}

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.BalanceUpdated {
		SettlementsTotal.WithLabelValues("approve", updated.Type).Inc()
	}
	s.notifyStatusChange(updated, newBalance)
	s.logger.Infow("order approved",
		"order_id", orderID, "code", updated.Code, "type", updated.Type,
		"new_status", result.NewStatus, "balance_updated", result.BalanceUpdated)

	return result, nil
}

// Complete завершает заявку.
//
// OUTGOING (из PROCESSING): только отметка COMPLETED, средства были
// списаны при одобрении, баланс не меняется.
//
// INCOMING (из APPROVED): опциональный override фактически полученной
// суммы. Если он задан, amount и net_amount заявки перезаписываются,
// комиссия НЕ пересчитывается - остается зафиксированной с момента
// создания. Баланс пополняется на actualAmount − commission.
func (s *OrderService) Complete(ctx context.Context, orderID int, actualAmount *decimal.Decimal) (*CompleteResult, error) {
	if actualAmount != nil {
		if err := utils.ValidateAmount(*actualAmount); err != nil {
			return nil, fmt.Errorf("%w: actual amount: %v", ErrValidation, err)
		}
	}

	var result *CompleteResult
	var updated *models.Order
	var newBalance *decimal.Decimal

	err := s.runCoordinated(ctx, "complete", func(tx *sql.Tx) error {
		locked, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		order, exchange := &locked.Order, &locked.Exchange

		// Исходная точка завершения зависит от типа: OUTGOING завершается
		// из PROCESSING (обычное ребро графа), INCOMING - из APPROVED,
		// минуя PROCESSING: фаза "средства списаны" у входящих отсутствует.
		if !ledger.CanComplete(order.Type, order.Status) {
			InvalidTransitionsTotal.WithLabelValues("complete").Inc()
			return fmt.Errorf("%w: %s order in status %s cannot be completed",
				ErrInvalidTransition, order.Type, order.Status)
		}

		now := time.Now()

		if order.Type == models.OrderTypeOutgoing {
			if err := s.orderRepo.UpdateStatus(ctx, tx, orderID, models.StatusCompleted, now); err != nil {
				return err
			}

			order.Status = models.StatusCompleted
			result = &CompleteResult{
				FinalAmount:    order.Amount,
				AmountChanged:  false,
				BalanceUpdated: false,
				OldBalance:     exchange.Balance,
				NewBalance:     exchange.Balance,
				CreditAmount:   decimal.Zero,
			}
			newBalance = nil
			updated = order
			return nil
		}

		// INCOMING: зачисление фактической суммы
		finalAmount := order.Amount
		amountChanged := false
		if actualAmount != nil && !actualAmount.Equal(order.Amount) {
			finalAmount = *actualAmount
			amountChanged = true

			net := ledger.IncomingNet(finalAmount, order.Commission)
			if err := s.orderRepo.UpdateAmounts(ctx, tx, orderID, finalAmount, net); err != nil {
				return err
			}
			order.Amount = finalAmount
			order.NetAmount = net
		}

		oldBalance := exchange.Balance
		balance := ledger.ApplyIncoming(oldBalance, finalAmount, order.Commission)
		if err := s.exchangeRepo.UpdateBalance(ctx, tx, exchange.ID, balance); err != nil {
			return err
		}
		if err := s.orderRepo.UpdateStatus(ctx, tx, orderID, models.StatusCompleted, now); err != nil {
			return err
		}

		order.Status = models.StatusCompleted
		result = &CompleteResult{
			FinalAmount:    finalAmount,
			AmountChanged:  amountChanged,
			BalanceUpdated: true,
			OldBalance:     oldBalance,
			NewBalance:     balance,
			CreditAmount:   ledger.IncomingNet(finalAmount, order.Commission),
		}
		newBalance = &balance
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.BalanceUpdated {
		SettlementsTotal.WithLabelValues("complete", updated.Type).Inc()
	}
	s.notifyStatusChange(updated, newBalance)
	s.logger.Infow("order completed",
		"order_id", orderID, "code", updated.Code, "type", updated.Type,
		"final_amount", result.FinalAmount, "credit", result.CreditAmount)

	return result, nil
}

// Reject отклоняет заявку с обязательной причиной.
//
// Если по исходящей заявке средства уже были списаны (статус PROCESSING),
// списание откатывается: баланс восстанавливается на amount + commission.
// До PROCESSING списания не было - баланс не меняется.
func (s *OrderService) Reject(ctx context.Context, orderID int, reason string) (*RejectResult, error) {
	if err := utils.ValidateReason(reason); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var result *RejectResult
	var updated *models.Order
	var newBalance *decimal.Decimal

	err := s.runCoordinated(ctx, "reject", func(tx *sql.Tx) error {
		locked, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		order, exchange := &locked.Order, &locked.Exchange

		// Отклонение допустимо и после списания средств по исходящей
		// заявке (PROCESSING), тогда списание откатывается ниже
		if !ledger.CanReject(order.Type, order.Status) {
			InvalidTransitionsTotal.WithLabelValues("reject").Inc()
			return fmt.Errorf("%w: %s order in status %s cannot be rejected",
				ErrInvalidTransition, order.Type, order.Status)
		}

		restored := false
		balance := exchange.Balance
		if ledger.IsSettledOutgoing(order.Type, order.Status) {
			balance = ledger.Restore(balance, order.Type, order.Amount, order.Commission)
			if err := s.exchangeRepo.UpdateBalance(ctx, tx, exchange.ID, balance); err != nil {
				return err
			}
			restored = true
		}

		if err := s.orderRepo.SetRejected(ctx, tx, orderID, reason); err != nil {
			return err
		}

		order.Status = models.StatusRejected
		order.RejectionReason = reason
		result = &RejectResult{
			BalanceRestored: restored,
			NewBalance:      balance,
		}
		if restored {
			newBalance = &balance
		} else {
			newBalance = nil
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.BalanceRestored {
		ReversalsTotal.WithLabelValues("reject").Inc()
	}
	s.notifyStatusChange(updated, newBalance)
	s.logger.Infow("order rejected",
		"order_id", orderID, "code", updated.Code,
		"balance_restored", result.BalanceRestored)

	return result, nil
}

// HandleCancellationRequest разрешает висящий запрос на отмену.
//
// Требует выставленного флага cancellation_requested, иначе отдельная
// ошибка ErrNoCancellationRequest.
//
// approve: проверяет переход в CANCELLED; если по исходящей заявке
// средства уже списаны - восстанавливает баланс (зеркально Reject);
// снимает флаг, фиксирует необязательную причину.
//
// reject: требует непустую причину; только снимает флаг, статус и
// баланс не меняются.
func (s *OrderService) HandleCancellationRequest(ctx context.Context, orderID int, action, reason string) (*CancellationResult, error) {
	switch action {
	case CancellationApprove:
		if err := utils.ValidateOptionalReason(reason); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	case CancellationReject:
		if err := utils.ValidateReason(reason); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown cancellation action %q", ErrValidation, action)
	}

	var result *CancellationResult
	var updated *models.Order
	var newBalance *decimal.Decimal

	err := s.runCoordinated(ctx, "handle_cancellation", func(tx *sql.Tx) error {
		locked, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		order, exchange := &locked.Order, &locked.Exchange

		if !order.CancellationRequested {
			return ErrNoCancellationRequest
		}

		if action == CancellationReject {
			if err := s.orderRepo.ClearCancellationRequest(ctx, tx, orderID); err != nil {
				return err
			}

			order.CancellationRequested = false
			result = &CancellationResult{
				Action:          action,
				BalanceRestored: false,
				OldBalance:      exchange.Balance,
				NewBalance:      exchange.Balance,
			}
			newBalance = nil
			updated = order
			return nil
		}

		if err := s.checkTransition("handle_cancellation", order.Status, models.StatusCancelled); err != nil {
			return err
		}

		restored := false
		oldBalance := exchange.Balance
		balance := oldBalance
		if ledger.IsSettledOutgoing(order.Type, order.Status) {
			balance = ledger.Restore(balance, order.Type, order.Amount, order.Commission)
			if err := s.exchangeRepo.UpdateBalance(ctx, tx, exchange.ID, balance); err != nil {
				return err
			}
			restored = true
		}

		if err := s.orderRepo.SetCancelled(ctx, tx, orderID, reason); err != nil {
			return err
		}

		order.Status = models.StatusCancelled
		order.CancellationRequested = false
		order.CancellationReason = reason
		result = &CancellationResult{
			Action:          action,
			BalanceRestored: restored,
			OldBalance:      oldBalance,
			NewBalance:      balance,
		}
		if restored {
			newBalance = &balance
		} else {
			newBalance = nil
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.BalanceRestored {
		ReversalsTotal.WithLabelValues("cancellation").Inc()
	}
	if action == CancellationApprove {
		s.notifyStatusChange(updated, newBalance)
	}
	s.logger.Infow("cancellation request handled",
		"order_id", orderID, "code", updated.Code, "action", action,
		"balance_restored", result.BalanceRestored)

	return result, nil
}
