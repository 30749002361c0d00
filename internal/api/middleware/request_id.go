package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

// RequestIDKey - ключ для request ID в context запроса
const RequestIDKey contextKey = "request_id"

// RequestID - middleware для сквозного идентификатора запроса
//
// Назначение:
// Присваивает каждому запросу уникальный идентификатор для корреляции
// логов между сервисами. Если клиент прислал X-Request-ID, используем его,
// иначе генерируем новый UUID.
//
// Идентификатор кладется в context запроса и возвращается клиенту
// в заголовке X-Request-ID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID извлекает request ID из context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
