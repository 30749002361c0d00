package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"remitta/internal/api"
	"remitta/internal/config"
	"remitta/internal/events"
	"remitta/internal/repository"
	"remitta/internal/service"
	"remitta/internal/websocket"
	"remitta/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// .env удобен для локальной разработки, в production переменные
	// приходят из окружения
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Структурированный логгер
	zapLogger, err := utils.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()
	logger := zapLogger.Sugar()

	// Инициализация базы данных
	db, err := repository.Connect(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	logger.Infow("Connected to database", "dsn", cfg.Database.DSNWithoutPassword())

	// Миграции схемы
	if err := repository.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Транзакционный менеджер координатора
	txManager := repository.NewTxManager(db, cfg.Coordinator.LockTimeout, cfg.Coordinator.StatementTimeout)

	// Инициализация репозиториев
	orderRepo := repository.NewOrderRepository(db)
	exchangeRepo := repository.NewExchangeRepository(db)
	seqRepo := repository.NewSequenceRepository(db)

	// Публикация событий заявок
	var publisher events.Publisher
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		logger.Infow("Kafka publisher enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	} else {
		publisher = events.NopPublisher{}
	}
	defer publisher.Close()

	// Инициализация сервисов
	orderService := service.NewOrderService(txManager, orderRepo, exchangeRepo, seqRepo, publisher, logger)
	orderService.ConfigureRetry(cfg.Coordinator.MaxRetries, cfg.Coordinator.RetryBackoff)

	exchangeService := service.NewExchangeService(exchangeRepo, logger)

	// WebSocket hub для real-time обновлений дашборда
	hub := websocket.NewHub()
	go hub.Run()
	orderService.SetBroadcaster(hub)

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		OrderService:    orderService,
		ExchangeService: exchangeService,
		Hub:             hub,
		AdminTokenHash:  cfg.Security.AdminTokenHash,
	}

	// Настройка HTTP роутера
	router := api.SetupRoutes(deps)

	// HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		logger.Infow("Starting server", "addr", server.Addr)
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server failed: %v", err)
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server failed: %v", err)
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
