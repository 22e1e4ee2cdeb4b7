package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"petlink-go/internal/config"
	"petlink-go/internal/events"
	"petlink-go/internal/handlers/apiserver"
	appKafka "petlink-go/internal/kafka"
	"petlink-go/internal/logging"
	"petlink-go/internal/middleware"
	"petlink-go/internal/rabbitmq"
	appRedis "petlink-go/internal/redis"
	"petlink-go/internal/services"
	"petlink-go/internal/storage"
)

func main() {
	// 1. 加载配置 (.env 可选)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("警告: 读取 .env 失败: %v", err)
	}
	cfg, err := config.LoadConfig(os.Getenv("PETLINK_CONFIG"))
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	log.Println("API 服务器配置加载成功。")

	// 2. 结构化日志
	logger := logging.New(cfg.LogLevel).With("service", "apiserver", "version", cfg.AppVersion)
	slog.SetDefault(logger)

	// 3. 初始化数据库连接并迁移
	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
	}
	if err := storage.AutoMigrateTables(db); err != nil {
		log.Fatalf("无法迁移数据库表: %v", err)
	}
	log.Println("API 服务器数据库连接并迁移成功。")

	// 4. Redis 和令牌黑名单
	redisClient, err := appRedis.NewClient(context.Background(), cfg.Redis)
	if err != nil {
		log.Fatalf("无法连接到 Redis: %v", err)
	}
	defer redisClient.Close()
	tokenBlacklist := appRedis.NewTokenBlacklist(redisClient)

	// 5. Repositories
	userRepo := storage.NewGormUserRepository(db)
	relationRepo := storage.NewGormFriendRelationRepository(db)
	messageRepo := storage.NewGormMessageRepository(db)

	// 6. 事件发布
	publisher, err := newEventPublisher(cfg)
	if err != nil {
		log.Fatalf("无法初始化事件发布: %v", err)
	}
	defer publisher.Close()

	// 7. Services 和 Handlers
	friendService := services.NewFriendRelationService(userRepo, relationRepo, publisher)
	messageService := services.NewMessageService(db, userRepo, messageRepo, publisher)

	friendHandler := apiserver.NewFriendRelationHandler(friendService)
	messageHandler := apiserver.NewMessageHandler(messageService, middleware.NewMessageRateLimiter(cfg.RateLimit))

	// 8. 路由
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.RequestLogger(logger))
	apiRouter.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecretKey, tokenBlacklist))
	apiserver.RegisterRoutes(apiRouter, friendHandler, messageHandler)

	// 9. CORS
	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.APIServer.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.APIServer.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.APIServer.CORS.AllowedHeaders),
		handlers.ExposedHeaders(cfg.APIServer.CORS.ExposedHeaders),
		handlers.MaxAge(cfg.APIServer.CORS.MaxAge),
	}
	if cfg.APIServer.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}

	serverAddr := fmt.Sprintf("%s:%s", cfg.APIServer.Host, cfg.APIServer.Port)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      handlers.CORS(corsOptions...)(r),
		ReadTimeout:  cfg.APIServer.ReadTimeout,
		WriteTimeout: cfg.APIServer.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// 10. 启动并优雅关闭
	go func() {
		log.Printf("API 服务器启动于 %s (事件驱动: %s)", serverAddr, cfg.Events.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API 服务器启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("收到关闭信号，正在关闭 API 服务器...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Printf("API 服务器强制关闭: %v", err)
	}
	log.Println("API 服务器已成功关闭")
}

// newEventPublisher 根据 EVENTS.DRIVER 选择事件总线。
func newEventPublisher(cfg config.Config) (events.Publisher, error) {
	switch cfg.Events.Driver {
	case "kafka":
		producer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		log.Printf("Kafka 事件发布已启用，topic: %s", cfg.Kafka.EventsTopic)
		return appKafka.NewEventPublisher(producer, cfg.Kafka.EventsTopic, cfg.Kafka.PublishTimeout), nil
	case "rabbitmq":
		bus, err := rabbitmq.Dial(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return bus, nil
	case "none", "":
		log.Println("事件发布已禁用。")
		return events.NopPublisher{}, nil
	default:
		return nil, fmt.Errorf("不支持的事件驱动: %s", cfg.Events.Driver)
	}
}
