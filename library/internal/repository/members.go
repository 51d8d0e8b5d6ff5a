package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/openshelf/library-service/library/internal/errs"
	"github.com/openshelf/library-service/library/internal/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const memberColumns = `id, member_uid, name, email, password_hash, role, status, phone, address, created_at`

func (r *repository) CreateMember(ctx context.Context, m model.Member) (model.Member, error) {
	q, args, err := qb.Insert(membersTableName).
		Columns("member_uid", "name", "email", "password_hash", "role", "status", "phone", "address").
		Values(m.MemberUid, m.Name, m.Email, m.PasswordHash, m.Role, m.Status, m.Phone, m.Address).
		Suffix("returning " + memberColumns).
		ToSql()
	if err != nil {
		return model.Member{}, err
	}
	var res model.Member
	if err := sqlx.GetContext(ctx, r.ext, &res, q, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return model.Member{}, errs.ErrEmailTaken
		}
		r.log.Error("CreateMember", zap.String("q", q), zap.String("email", m.Email))
		return model.Member{}, err
	}
	return res, nil
}

func (r *repository) GetMember(ctx context.Context, memberUid string) (model.Member, error) {
	return r.getMemberBy(ctx, sq.Eq{"member_uid": memberUid})
}

func (r *repository) GetMemberByID(ctx context.Context, id int) (model.Member, error) {
	return r.getMemberBy(ctx, sq.Eq{"id": id})
}

func (r *repository) GetMemberByEmail(ctx context.Context, email string) (model.Member, error) {
	return r.getMemberBy(ctx, sq.Eq{"email": email})
}

func (r *repository) getMemberBy(ctx context.Context, pred sq.Eq) (model.Member, error) {
	q, args, err := qb.Select(memberColumns).
		From(membersTableName).
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Member{}, err
	}
	var m model.Member
	if err := sqlx.GetContext(ctx, r.ext, &m, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Member{}, errs.ErrNotFound
		}
		return model.Member{}, err
	}
	return m, nil
}

func (r *repository) ListMembers(ctx context.Context) ([]model.Member, error) {
	q, args, err := qb.Select(memberColumns).
		From(membersTableName).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, err
	}
	var members []model.Member
	if err := sqlx.SelectContext(ctx, r.ext, &members, q, args...); err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repository) SetMemberStatus(ctx context.Context, memberUid string, status model.MemberStatus) error {
	q, args, err := qb.Update(membersTableName).
		Set("status", status).
		Where(sq.Eq{"member_uid": memberUid}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.ext.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.ErrNotFound
	}
	return nil
}
