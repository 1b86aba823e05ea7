package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/mbeoliero/beatdm/internal/config"
	"github.com/mbeoliero/beatdm/internal/gateway"
	"github.com/mbeoliero/beatdm/internal/handler"
	"github.com/mbeoliero/beatdm/internal/repository"
	"github.com/mbeoliero/beatdm/internal/router"
	"github.com/mbeoliero/beatdm/internal/service"
	"github.com/mbeoliero/beatdm/pkg/constant"
	"github.com/mbeoliero/beatdm/pkg/idgen"
	"github.com/mbeoliero/kit/log"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	machineId := flag.Uint("machine-id", 1, "id generator machine id, unique per instance")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.CtxError(ctx, "failed to load config: %v", err)
		panic(err)
	}

	log.CtxInfo(ctx, "config loaded: mode=%s", cfg.Server.Mode)

	// Initialize Redis key prefix
	constant.InitRedisKeyPrefix(cfg.Redis.KeyPrefix)
	log.CtxInfo(ctx, "redis key prefix: %s", constant.GetRedisKeyPrefix())

	gen, err := idgen.NewSonyflakeGenerator(uint16(*machineId))
	if err != nil {
		log.CtxError(ctx, "failed to initialize id generator: %v", err)
		panic(err)
	}
	idgen.SetDefaultGenerator(gen)

	// Initialize repositories
	repos, err := repository.NewRepositories(cfg)
	if err != nil {
		log.CtxError(ctx, "failed to initialize repositories: %v", err)
		panic(err)
	}
	defer repos.Close()

	// Check database connection
	if err := repos.CheckConnection(ctx); err != nil {
		log.CtxError(ctx, "database connection check failed: %v", err)
		panic(err)
	}
	log.CtxInfo(ctx, "database connection established")

	if err := repos.Migrate(ctx); err != nil {
		log.CtxError(ctx, "chat store migration failed: %v", err)
		panic(err)
	}

	// Initialize services
	msgService := service.NewMessageService(repos)
	convService := service.NewConversationService(repos)

	// The fan-out server exists before any request arrives
	wsServer := gateway.NewWsServer(cfg, repos.Redis)
	msgService.SetPusher(wsServer)
	wsServer.Run(ctx)
	log.CtxInfo(ctx, "websocket server started: path=%s", cfg.WebSocket.Path)

	// Initialize handlers
	handlers := &router.Handlers{
		Message:  handler.NewMessageHandler(msgService, convService),
		Presence: handler.NewPresenceHandler(wsServer),
	}

	// Create Hertz server
	h := server.Default(
		server.WithHostPorts(fmt.Sprintf(":%d", cfg.Server.HTTPPort)),
		server.WithExitWaitTime(5*time.Second),
	)

	// Setup routes
	router.SetupRouter(h.Engine, cfg, handlers, wsServer)

	log.CtxInfo(ctx, "server starting on port %d", cfg.Server.HTTPPort)

	// Start server in goroutine
	go func() {
		h.Spin()
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.CtxInfo(ctx, "shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		log.CtxError(ctx, "server shutdown error: %v", err)
	}
	cancel()

	log.CtxInfo(ctx, "server stopped")
}
