package handler

import (
	"context"

	"github.com/openshelf/library-service/stats/internal/model"
	"github.com/openshelf/library-service/stats/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type StatsService interface {
	GetStats(ctx context.Context) (model.StatsInfo, error)
}

var _ StatsService = (*service.Service)(nil)
