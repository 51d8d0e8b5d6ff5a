package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openshelf/library-service/pkg/kafka"
	"github.com/openshelf/library-service/stats/internal/model"
	"go.uber.org/zap"
)

type Repository interface {
	GetStats(ctx context.Context) (model.StatsInfo, error)
	SaveEvent(ctx context.Context, event kafka.EventLoan) error
}

type repository struct {
	db  *pgxpool.Pool
	log *zap.Logger
}

func NewRepository(db *pgxpool.Pool, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

func (r *repository) SaveEvent(ctx context.Context, event kafka.EventLoan) error {
	q := `insert into events (timestamp, event_type, loan_uid, member_uid, book_uid, fine)
	values (@timestamp, @event_type, @loan_uid, @member_uid, @book_uid, @fine)`
	args := pgx.NamedArgs{
		"timestamp":  event.Timestamp,
		"event_type": event.EventType,
		"loan_uid":   event.LoanUid,
		"member_uid": event.MemberUid,
		"book_uid":   event.BookUid,
		"fine":       event.Fine,
	}
	_, err := r.db.Exec(ctx, q, args)
	return err
}

func (r *repository) GetStats(ctx context.Context) (model.StatsInfo, error) {
	const q = `
	select member_uid, max(timestamp) as last_updated,
	       count(distinct loan_uid) as cnt_total,
	       count(*) filter (where event_type = 'LOAN_ISSUED') as cnt_issued,
	       count(*) filter (where event_type = 'LOAN_RETURNED') as cnt_returned,
	       coalesce(sum(fine) filter (where event_type = 'LOAN_RETURNED'), 0) as fines_total
	from events
	group by member_uid
	order by member_uid
`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return model.StatsInfo{}, err
	}
	defer rows.Close()
	stats, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Stats])
	if err != nil {
		return model.StatsInfo{}, fmt.Errorf("pgx.CollectRows: %w", err)
	}
	return model.StatsInfo{Data: stats}, nil
}
