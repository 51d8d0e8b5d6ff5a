package app

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/openshelf/library-service/pkg/kafka"
	"github.com/openshelf/library-service/pkg/logger"
	"github.com/openshelf/library-service/pkg/postgres"
	"github.com/openshelf/library-service/stats/config"
	"github.com/openshelf/library-service/stats/internal/handler"
	"github.com/openshelf/library-service/stats/internal/repository"
	"github.com/openshelf/library-service/stats/internal/server"
	"github.com/openshelf/library-service/stats/internal/service"
	"github.com/openshelf/library-service/stats/migrations"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func Run(cfg *config.Config) {
	log := logger.NewLogger(cfg.Log, "stats")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := postgres.Migrate(&cfg.Database, migrations.MigrationFiles); err != nil {
		log.Fatal("db migrate", zap.Error(err))
	}
	pool, err := postgres.NewPGXPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal("db init", zap.Error(err))
	}
	repo, err := repository.NewRepository(pool, log)
	if err != nil {
		log.Fatal("repo", zap.Error(err))
	}
	svc := service.NewService(repo, log)

	consumer, err := kafka.NewConsumer(cfg.Kafka, kafka.StatsConsumerGroup)
	if err != nil {
		log.Fatal("kafka.NewConsumer", zap.Error(err))
	}

	h := handler.New(svc, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		kafka.Consume(ctx, consumer, handler.NewConsumer(svc.Record, log), log, kafka.LoanEventsTopic)
		return nil
	})
	g.Go(func() error {
		if err := srv.Run(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		return srv.Stop(closeCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("stats shutdown", zap.Error(err))
	}
	if err := consumer.Close(); err != nil {
		log.Error("consumer.Close", zap.Error(err))
	}
	pool.Close()
	log.Info("Graceful shutdown finished")
}
