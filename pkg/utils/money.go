package utils

import "github.com/shopspring/decimal"

// money.go - форматирование денежных величин для отображения
//
// Округление до 3 знаков (round half-up) - исключительно презентационное.
// В хранилище и расчетах значения живут с полной точностью: округлять
// до записи в ledger нельзя.

// DisplayPrecision - количество знаков после запятой при отображении
const DisplayPrecision = 3

// FormatMoney форматирует сумму для ответов API и интерфейса
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(DisplayPrecision)
}
