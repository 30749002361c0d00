package middleware

import (
	"net/http"
	"strings"

	"remitta/pkg/crypto"
)

// AdminAuth - middleware для защиты операторских endpoints
//
// Назначение:
// Проверяет Bearer токен оператора против bcrypt хеша из конфигурации.
// Защищает операции жизненного цикла заявок (review, approve, complete,
// reject, cancellation) от неавторизованного доступа.
//
// Конфигурация:
// - ADMIN_TOKEN_HASH: bcrypt хеш операторского токена
// - Если хеш не задан, защищенные endpoints недоступны (503)
//
// Безопасность:
// - bcrypt сравнение устойчиво к timing attacks
// - Сам токен нигде не хранится и не логируется
func AdminAuth(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash == "" {
				http.Error(w, "Operator endpoints disabled. Set ADMIN_TOKEN_HASH.", http.StatusServiceUnavailable)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="operator"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if err := crypto.VerifyToken(token, tokenHash); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="operator"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
