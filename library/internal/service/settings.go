package service

import (
	"context"
	"strconv"

	"github.com/openshelf/library-service/library/internal/errs"
	"github.com/openshelf/library-service/library/internal/model"
)

func (s *Service) Settings(ctx context.Context) (map[string]string, error) {
	return s.repo.GetSettings(ctx)
}

// UpdateSetting validates the value against the key's type before
// persisting. Changes apply to subsequent transitions only.
func (s *Service) UpdateSetting(ctx context.Context, key, value string) error {
	switch key {
	case model.SettingMaxBooksPerUser, model.SettingIssueDurationDays:
		if n, err := strconv.Atoi(value); err != nil || n <= 0 {
			return errs.ErrBadSetting
		}
	case model.SettingFinePerDay:
		if f, err := strconv.ParseFloat(value, 64); err != nil || f < 0 {
			return errs.ErrBadSetting
		}
	default:
		return errs.ErrBadSetting
	}
	return s.repo.SetSetting(ctx, key, value)
}
