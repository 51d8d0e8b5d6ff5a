package service

import (
	"context"
	"strconv"

	"github.com/openshelf/library-service/library/internal/model"
	"github.com/openshelf/library-service/library/internal/repository"
)

// Defaults apply when a settings key is absent or unparsable.
const (
	DefaultMaxBooksPerUser   = 3
	DefaultIssueDurationDays = 14
	DefaultFinePerDay        = 2.0
)

// PolicyProvider supplies the workflow settings. Current is consulted at
// the moment of each transition, never cached, so policy changes apply
// prospectively only.
type PolicyProvider interface {
	Current(ctx context.Context) (model.Policy, error)
}

type settingsPolicy struct {
	repo repository.Repository
}

func NewPolicyProvider(repo repository.Repository) PolicyProvider {
	return &settingsPolicy{repo: repo}
}

func (p *settingsPolicy) Current(ctx context.Context) (model.Policy, error) {
	settings, err := p.repo.GetSettings(ctx)
	if err != nil {
		return model.Policy{}, err
	}
	pol := model.Policy{
		MaxBooksPerUser:   DefaultMaxBooksPerUser,
		IssueDurationDays: DefaultIssueDurationDays,
		FinePerDay:        DefaultFinePerDay,
	}
	if v, ok := settings[model.SettingMaxBooksPerUser]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pol.MaxBooksPerUser = n
		}
	}
	if v, ok := settings[model.SettingIssueDurationDays]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pol.IssueDurationDays = n
		}
	}
	if v, ok := settings[model.SettingFinePerDay]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			pol.FinePerDay = f
		}
	}
	return pol, nil
}
