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
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"petlink-go/internal/config"
	"petlink-go/internal/handlers/inboxserver"
	appKafka "petlink-go/internal/kafka"
	"petlink-go/internal/logging"
	"petlink-go/internal/rabbitmq"
	appRedis "petlink-go/internal/redis"
	"petlink-go/internal/websocket"
)

func main() {
	// 1. 加载配置
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("警告: 读取 .env 失败: %v", err)
	}
	cfg, err := config.LoadConfig(os.Getenv("PETLINK_CONFIG"))
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	slog.SetDefault(logging.New(cfg.LogLevel).With("service", "inboxserver"))
	log.Println("Inbox 服务器配置加载成功。")

	// 2. Redis 令牌黑名单
	redisClient, err := appRedis.NewClient(context.Background(), cfg.Redis)
	if err != nil {
		log.Fatalf("无法连接到 Redis: %v", err)
	}
	defer redisClient.Close()
	tokenBlacklist := appRedis.NewTokenBlacklist(redisClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. 启动 Hub
	hub := websocket.NewHub()
	go hub.Run(ctx)

	// 4. 订阅事件总线，把事件推给在线的接收者
	var wg sync.WaitGroup
	stopConsumer, err := startConsumer(ctx, &wg, cfg, hub)
	if err != nil {
		log.Fatalf("无法启动事件消费者: %v", err)
	}

	// 5. HTTP 服务器
	wsHandler := inboxserver.NewWebSocketHandler(hub, tokenBlacklist, cfg)
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.InboxServer.WebSocketPath, wsHandler.ServeWS)
	mux.HandleFunc("/healthz", wsHandler.Health)

	serverAddr := fmt.Sprintf("%s:%s", cfg.InboxServer.Host, cfg.InboxServer.Port)
	httpServer := &http.Server{Addr: serverAddr, Handler: mux}
	go func() {
		log.Printf("Inbox 服务器启动于 %s, WebSocket 路径: %s", serverAddr, cfg.InboxServer.WebSocketPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Inbox 服务器启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Inbox 服务器准备关闭...")

	// 先停止接受新连接，再停止 hub 和消费者
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		log.Printf("Inbox 服务器关闭失败: %v", err)
	}

	cancel()
	<-hub.Done()
	wg.Wait()
	stopConsumer()
	log.Println("Inbox 服务器已优雅关闭。")
}

// startConsumer 根据 EVENTS.DRIVER 启动消费 goroutine，返回释放连接的函数。
func startConsumer(ctx context.Context, wg *sync.WaitGroup, cfg config.Config, hub *websocket.Hub) (func(), error) {
	switch cfg.Events.Driver {
	case "kafka":
		consumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("Kafka 事件消费者启动，topic: %s, GroupID: %s", cfg.Kafka.EventsTopic, cfg.Kafka.ConsumerGroup)
			err := consumer.Consume(ctx, []string{cfg.Kafka.EventsTopic}, cfg.Kafka.ConsumerGroup, appKafka.EventHandler(hub.Handler()))
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Kafka 事件消费者错误: %v", err)
			}
		}()
		return consumer.Close, nil

	case "rabbitmq":
		bus, err := rabbitmq.Dial(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bus.Consume(ctx, cfg.AppName+"-inbox", hub.Handler()); err != nil {
				log.Printf("RabbitMQ 事件消费者错误: %v", err)
			}
		}()
		return bus.Close, nil

	case "none", "":
		log.Println("事件总线已禁用，收件箱推送不会收到任何事件。")
		return func() {}, nil

	default:
		return nil, fmt.Errorf("不支持的事件驱动: %s", cfg.Events.Driver)
	}
}
