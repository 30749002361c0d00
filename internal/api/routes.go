package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"remitta/internal/api/handlers"
	"remitta/internal/api/middleware"
	"remitta/internal/service"
	"remitta/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	OrderService    *service.OrderService
	ExchangeService *service.ExchangeService
	Hub             *websocket.Hub

	// bcrypt хеш операторского токена для защищенных endpoints
	AdminTokenHash string
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Назначение:
// Центральное место для определения всех API endpoints.
// Регистрирует handlers для каждого маршрута.
// Применяет middleware к группам маршрутов.
// Организует версионирование API (v1).
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /orders/
//	│   ├── POST / - подача заявки
//	│   ├── GET / - список заявок
//	│   ├── GET /{id} - получить заявку
//	│   ├── POST /{id}/review - взять на рассмотрение *
//	│   ├── POST /{id}/approve - одобрить *
//	│   ├── POST /{id}/complete - завершить *
//	│   ├── POST /{id}/reject - отклонить *
//	│   ├── POST /{id}/cancellation-request - запросить отмену
//	│   └── POST /{id}/cancellation - разрешить запрос отмены *
//	└── /exchanges/
//	    ├── POST / - регистрация обменника *
//	    ├── GET / - список обменников
//	    ├── GET /{id} - получить обменник
//	    ├── GET /{id}/balance - текущий баланс
//	    └── PATCH /{id}/commission - настройка комиссий *
//
// /ws/stream - WebSocket для real-time обновлений
// /metrics - Prometheus метрики
// /health - health check
//
// * - требует операторский токен (AdminAuth)
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. RequestID (для всех маршрутов)
// 4. CORS (для всех маршрутов)
// 5. AdminAuth (только для операторских маршрутов)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.RequestID)
	router.Use(middleware.CORS)

	// Создание handlers с внедрением зависимостей
	var orderHandler *handlers.OrderHandler
	if deps != nil && deps.OrderService != nil {
		orderHandler = handlers.NewOrderHandler(deps.OrderService)
	}

	var exchangeHandler *handlers.ExchangeHandler
	if deps != nil && deps.ExchangeService != nil {
		exchangeHandler = handlers.NewExchangeHandler(deps.ExchangeService)
	}

	var admin func(http.Handler) http.Handler
	if deps != nil {
		admin = middleware.AdminAuth(deps.AdminTokenHash)
	} else {
		admin = middleware.AdminAuth("")
	}

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Order routes
	if orderHandler != nil {
		api.HandleFunc("/orders", orderHandler.CreateOrder).Methods("POST")
		api.HandleFunc("/orders", orderHandler.GetOrders).Methods("GET")
		api.HandleFunc("/orders/{id}", orderHandler.GetOrder).Methods("GET")
		api.HandleFunc("/orders/{id}/cancellation-request", orderHandler.RequestCancellation).Methods("POST")

		// Операторские endpoints жизненного цикла
		api.Handle("/orders/{id}/review", admin(http.HandlerFunc(orderHandler.TakeForReview))).Methods("POST")
		api.Handle("/orders/{id}/approve", admin(http.HandlerFunc(orderHandler.ApproveOrder))).Methods("POST")
		api.Handle("/orders/{id}/complete", admin(http.HandlerFunc(orderHandler.CompleteOrder))).Methods("POST")
		api.Handle("/orders/{id}/reject", admin(http.HandlerFunc(orderHandler.RejectOrder))).Methods("POST")
		api.Handle("/orders/{id}/cancellation", admin(http.HandlerFunc(orderHandler.HandleCancellation))).Methods("POST")
	}

	// Exchange routes
	if exchangeHandler != nil {
		api.Handle("/exchanges", admin(http.HandlerFunc(exchangeHandler.CreateExchange))).Methods("POST")
		api.HandleFunc("/exchanges", exchangeHandler.GetExchanges).Methods("GET")
		api.HandleFunc("/exchanges/{id}", exchangeHandler.GetExchange).Methods("GET")
		api.HandleFunc("/exchanges/{id}/balance", exchangeHandler.GetExchangeBalance).Methods("GET")
		api.Handle("/exchanges/{id}/commission", admin(http.HandlerFunc(exchangeHandler.UpdateCommission))).Methods("PATCH")
	}

	// WebSocket route
	if deps != nil && deps.Hub != nil {
		hub := deps.Hub
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(hub, w, r)
		})
	}

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
