package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/container"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/messaging"
	"go.uber.org/zap"
)

// The audit consumer reads the Redis streams written by the server. It takes
// the same flags and SERVICE_* variables as the server; only the Redis
// address and log format matter here.
func main() {
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		hooks.OnStart(func() {
			run(options)
		})
	})

	cli.Run()
}

func run(options *container.Options) {
	if !options.UseRedis() {
		options.RedisAddr = "localhost:6379"
	}

	injector := do.New()
	do.ProvideValue(injector, options)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.ConsumerGroupPackage(injector)

	logger := do.MustInvoke[*zap.Logger](injector)
	group := do.MustInvoke[*messaging.ConsumerGroup](injector)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := group.Start(ctx); err != nil {
		logger.Fatal("failed to start consumer group", zap.Error(err))
	}

	logger.Info("audit consumers running",
		zap.String("group", container.AuditConsumerGroup),
		zap.String("redis", options.RedisAddr),
		zap.Strings("topics", group.Topics()),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	if err := injector.Shutdown(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
}
