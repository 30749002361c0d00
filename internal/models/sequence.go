package models

// OrderSequence - счетчик номеров заявок для одного календарного месяца.
// Создается при первом обращении, далее только инкрементируется.
// Пропуски в нумерации допустимы (fallback-коды), дубликаты - нет.
type OrderSequence struct {
	Year      int `json:"year" db:"year"`
	Month     int `json:"month" db:"month"`
	LastValue int `json:"last_value" db:"last_value"`
}
