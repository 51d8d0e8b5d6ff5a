package service

import (
	"context"

	"github.com/openshelf/library-service/pkg/kafka"
	"github.com/openshelf/library-service/stats/internal/model"
	"github.com/openshelf/library-service/stats/internal/repository"
	"go.uber.org/zap"
)

type Service struct {
	log  *zap.Logger
	repo repository.Repository
}

func NewService(repo repository.Repository, log *zap.Logger) *Service {
	return &Service{
		log:  log,
		repo: repo,
	}
}

func (s *Service) Record(ctx context.Context, event kafka.EventLoan) error {
	return s.repo.SaveEvent(ctx, event)
}

func (s *Service) GetStats(ctx context.Context) (model.StatsInfo, error) {
	return s.repo.GetStats(ctx)
}
