package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/openshelf/library-service/library/internal/errs"
	"github.com/openshelf/library-service/library/internal/model"
	"github.com/openshelf/library-service/pkg/auth"
)

func (s *Service) Register(ctx context.Context, req model.RegisterRequest) (model.Member, error) {
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return model.Member{}, err
	}
	return s.repo.CreateMember(ctx, model.Member{
		MemberUid:    uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         auth.RoleStudent,
		Status:       model.MemberActive,
		Phone:        req.Phone,
		Address:      req.Address,
	})
}

func (s *Service) Authorize(ctx context.Context, req model.AuthRequest) (model.AuthResponse, error) {
	member, err := s.repo.GetMemberByEmail(ctx, req.Email)
	if err != nil {
		return model.AuthResponse{}, errs.ErrInvalidCredentials
	}
	if !auth.CheckPassword(member.PasswordHash, req.Password) {
		return model.AuthResponse{}, errs.ErrInvalidCredentials
	}
	token, expiresAt, err := auth.NewToken(member.Email, member.Role, member.Email)
	if err != nil {
		return model.AuthResponse{}, err
	}
	return model.AuthResponse{
		AccessToken: token,
		ExpiresIn:   int(time.Until(expiresAt).Seconds()),
	}, nil
}

func (s *Service) GetMember(ctx context.Context, memberUid string) (model.Member, error) {
	return s.repo.GetMember(ctx, memberUid)
}

func (s *Service) ListMembers(ctx context.Context) ([]model.Member, error) {
	return s.repo.ListMembers(ctx)
}

func (s *Service) SetMemberStatus(ctx context.Context, memberUid string, status model.MemberStatus) error {
	return s.repo.SetMemberStatus(ctx, memberUid, status)
}
