package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type settingRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

func (r *repository) GetSettings(ctx context.Context) (map[string]string, error) {
	q, args, err := qb.Select("key", "value").
		From(settingsTableName).
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows []settingRow
	if err := sqlx.SelectContext(ctx, r.ext, &rows, q, args...); err != nil {
		return nil, err
	}
	settings := make(map[string]string, len(rows))
	for _, row := range rows {
		settings[row.Key] = row.Value
	}
	return settings, nil
}

func (r *repository) SetSetting(ctx context.Context, key, value string) error {
	q := `insert into settings (key, value) values ($1, $2)
	on conflict (key) do update set value = excluded.value`
	_, err := r.ext.ExecContext(ctx, q, key, value)
	return err
}
