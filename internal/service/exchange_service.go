package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"remitta/internal/models"
	"remitta/internal/repository"
)

// Ошибки сервиса обменников
var (
	ErrExchangeNameRequired = errors.New("exchange name is required")
	ErrInvalidFeeType       = errors.New("fee type must be FIXED or PERCENTAGE")
	ErrInvalidFeeValue      = errors.New("fee value must be non-negative")
	ErrPercentageTooHigh    = errors.New("percentage fee cannot exceed 100")
)

// ExchangeService - управление обменными пунктами и их настройками комиссий.
// Баланс обменника сервис не мутирует: это исключительная зона
// координатора заявок.
type ExchangeService struct {
	exchangeRepo *repository.ExchangeRepository
	logger       *zap.SugaredLogger
}

// NewExchangeService создает новый экземпляр сервиса
func NewExchangeService(exchangeRepo *repository.ExchangeRepository, logger *zap.SugaredLogger) *ExchangeService {
	return &ExchangeService{
		exchangeRepo: exchangeRepo,
		logger:       logger,
	}
}

// CreateExchangeInput - параметры регистрации обменника
type CreateExchangeInput struct {
	Name        string
	OwnerEmail  string
	Balance     decimal.Decimal
	IncomingFee models.CommissionConfig
	OutgoingFee models.CommissionConfig
}

// CreateExchange регистрирует обменный пункт
func (s *ExchangeService) CreateExchange(ctx context.Context, input *CreateExchangeInput) (*models.Exchange, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("%w", ErrExchangeNameRequired)
	}
	if err := validateFee(input.IncomingFee); err != nil {
		return nil, err
	}
	if err := validateFee(input.OutgoingFee); err != nil {
		return nil, err
	}

	exchange := &models.Exchange{
		Name:        input.Name,
		OwnerEmail:  input.OwnerEmail,
		Balance:     input.Balance,
		IncomingFee: input.IncomingFee,
		OutgoingFee: input.OutgoingFee,
	}

	if err := s.exchangeRepo.Create(ctx, exchange); err != nil {
		return nil, err
	}

	s.logger.Infow("exchange registered", "exchange_id", exchange.ID, "name", exchange.Name)
	return exchange, nil
}

// GetExchange возвращает обменник по ID
func (s *ExchangeService) GetExchange(ctx context.Context, id int) (*models.Exchange, error) {
	exchange, err := s.exchangeRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrExchangeNotFound) {
			return nil, ErrExchangeNotFound
		}
		return nil, err
	}
	return exchange, nil
}

// ListExchanges возвращает все обменники
func (s *ExchangeService) ListExchanges(ctx context.Context) ([]*models.Exchange, error) {
	return s.exchangeRepo.GetAll(ctx)
}

// UpdateCommission обновляет настройки комиссий.
// Комиссии уже созданных заявок зафиксированы и не пересчитываются.
func (s *ExchangeService) UpdateCommission(ctx context.Context, id int, incoming, outgoing models.CommissionConfig) error {
	if err := validateFee(incoming); err != nil {
		return err
	}
	if err := validateFee(outgoing); err != nil {
		return err
	}

	if err := s.exchangeRepo.UpdateCommission(ctx, id, incoming, outgoing); err != nil {
		if errors.Is(err, repository.ErrExchangeNotFound) {
			return ErrExchangeNotFound
		}
		return err
	}

	s.logger.Infow("commission config updated", "exchange_id", id)
	return nil
}

func validateFee(cfg models.CommissionConfig) error {
	if !models.IsValidFeeType(cfg.Type) {
		return fmt.Errorf("%w: got %q", ErrInvalidFeeType, cfg.Type)
	}
	if cfg.Value.IsNegative() {
		return ErrInvalidFeeValue
	}
	if cfg.Type == models.FeeTypePercentage && cfg.Value.GreaterThan(decimal.NewFromInt(100)) {
		return ErrPercentageTooHigh
	}
	return nil
}
