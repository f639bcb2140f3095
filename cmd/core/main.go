package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/go-redis/redis/v8"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"gopkg.in/yaml.v3"

	http_adapter "github.com/THEAllStarsolver/ReWear/internal/app/core/adapter/in/http"
	memory_adapter "github.com/THEAllStarsolver/ReWear/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/THEAllStarsolver/ReWear/internal/app/core/adapter/out/mysql"
	redis_adapter "github.com/THEAllStarsolver/ReWear/internal/app/core/adapter/out/redis"
	"github.com/THEAllStarsolver/ReWear/internal/app/core/usecase"
	"github.com/THEAllStarsolver/ReWear/pkg/auth"
	"github.com/THEAllStarsolver/ReWear/pkg/journal"
	"github.com/THEAllStarsolver/ReWear/pkg/mysql"
	"github.com/THEAllStarsolver/ReWear/pkg/pubsub"
)

// 後端等級，由設定檔選擇
const (
	BackendMemory = "memory" // Level 1: Mutex + Journal
	BackendMySQL  = "mysql"  // Level 0: MySQL 悲觀鎖交易
	BackendRedis  = "redis"  // Level 2: Redis 樂觀 WATCH 交易
)

type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	GRPC struct {
		Addr string `yaml:"addr"`
	} `yaml:"grpc"`
	Backend     string       `yaml:"backend"`
	JournalPath string       `yaml:"journal_path"`
	AuthSecret  string       `yaml:"auth_secret"`
	MySQL       mysql.Config `yaml:"mysql"`
	Redis       struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`
}

func main() {
	// 1. 載入設定
	cfg := loadConfig()

	// 2. 事件發布中心，所有 Ledger adapter 共用
	hub := pubsub.NewHub()

	// 3. 依設定初始化 Ledger adapter (Driven Adapter)
	var exchange usecase.Exchange
	switch cfg.Backend {
	case BackendMySQL:
		dbClient, err := mysql.NewClient(cfg.MySQL)
		if err != nil {
			log.Fatalf("Failed to connect to MySQL: %v", err)
		}
		defer dbClient.Close()
		log.Println("Connected to MySQL successfully")

		sqlExchange := mysql_adapter.NewSQLExchange(dbClient, hub)
		if err := sqlExchange.Migrate(); err != nil {
			log.Fatalf("Failed to migrate schema: %v", err)
		}
		exchange = sqlExchange
	case BackendRedis:
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		log.Println("Connected to Redis successfully")

		exchange = redis_adapter.NewRedisExchange(rdb, hub)
	case BackendMemory:
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			log.Fatalf("Failed to open journal: %v", err)
		}
		defer j.Close()

		mutexExchange, err := memory_adapter.NewMutexExchange(j, hub)
		if err != nil {
			log.Fatalf("Failed to init MutexExchange: %v", err)
		}
		exchange = mutexExchange
	default:
		log.Fatalf("Invalid backend: %q", cfg.Backend)
	}

	// 4. 初始化 UseCase
	coreUseCase := usecase.NewCoreUseCase(exchange)

	// 5. 初始化 HTTP Adapter (Driving Adapter)
	verifier := auth.NewVerifier(cfg.AuthSecret)
	apiServer := http_adapter.NewServer(coreUseCase, verifier, hub)

	router := gin.Default()
	apiServer.RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}
	go func() {
		log.Printf("Starting HTTP server on %s", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to serve http: %v", err)
		}
	}()

	// 6. gRPC health server (K8s probe 用)
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer) // 方便 gRPC Client 測試

	go func() {
		log.Printf("Starting gRPC health server on %s", cfg.GRPC.Addr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("failed to serve grpc: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	grpcServer.GracefulStop()
	log.Println("Server exited")
}

func loadConfig() Config {
	var cfg Config
	cfgData, err := os.ReadFile("config/config.yaml")
	if err != nil {
		log.Printf("No config file, using defaults: %v", err)
	} else if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}

	// 補全預設配置 (如果 yaml 沒寫)
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.GRPC.Addr == "" {
		cfg.GRPC.Addr = ":50051"
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendMemory
	}
	if cfg.JournalPath == "" {
		cfg.JournalPath = "exchange.journal"
	}
	if cfg.AuthSecret == "" {
		log.Println("auth_secret not set, using insecure dev secret")
		cfg.AuthSecret = "rewear-dev-secret"
	}
	cfg.MySQL.ApplyDefaults()
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	return cfg
}
