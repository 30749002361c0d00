package ledger

import (
	"github.com/shopspring/decimal"

	"remitta/internal/models"
)

// calculator.go - расчет комиссий и изменений баланса
//
// Все функции чистые, без побочных эффектов. Денежные величины -
// точные десятичные числа (decimal), float здесь запрещен:
// двоичное округление накапливает расхождения на валютных суммах.

var oneHundred = decimal.NewFromInt(100)

// Commission вычисляет комиссию по заявке из настройки обменника.
// FIXED - фиксированная сумма, PERCENTAGE - процент от суммы заявки.
func Commission(amount decimal.Decimal, cfg models.CommissionConfig) decimal.Decimal {
	if cfg.Type == models.FeeTypePercentage {
		return amount.Mul(cfg.Value).Div(oneHundred)
	}
	return cfg.Value
}

// OutgoingNet - полная стоимость исходящего перевода для обменника
func OutgoingNet(amount, commission decimal.Decimal) decimal.Decimal {
	return amount.Add(commission)
}

// IncomingNet - сумма зачисления по входящему переводу после комиссии
func IncomingNet(amount, commission decimal.Decimal) decimal.Decimal {
	return amount.Sub(commission)
}

// NetAmount возвращает net-сумму заявки в зависимости от ее типа
func NetAmount(orderType string, amount, commission decimal.Decimal) decimal.Decimal {
	if orderType == models.OrderTypeIncoming {
		return IncomingNet(amount, commission)
	}
	return OutgoingNet(amount, commission)
}

// ApplyOutgoing списывает стоимость исходящего перевода с баланса
func ApplyOutgoing(balance, amount, commission decimal.Decimal) decimal.Decimal {
	return balance.Sub(OutgoingNet(amount, commission))
}

// ApplyIncoming зачисляет входящий перевод на баланс
func ApplyIncoming(balance, amount, commission decimal.Decimal) decimal.Decimal {
	return balance.Add(IncomingNet(amount, commission))
}

// Restore - симметричный откат проведенного изменения баланса.
// Для исходящей заявки возвращает списанное, для входящей снимает
// зачисленное. Откат входящего зачисления сейчас ни одним обработчиком
// не используется, функция существует для симметрии.
func Restore(balance decimal.Decimal, orderType string, amount, commission decimal.Decimal) decimal.Decimal {
	if orderType == models.OrderTypeIncoming {
		return balance.Sub(IncomingNet(amount, commission))
	}
	return balance.Add(OutgoingNet(amount, commission))
}
