package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"klinerelay/internal/application/port"
	"klinerelay/internal/domain/model"
	"klinerelay/internal/infrastructure/storage"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS latest_state (
  kind TEXT PRIMARY KEY,
  payload JSONB NOT NULL,
  updated_at BIGINT NOT NULL
);
`)
	return err
}

func (r *Repo) upsert(ctx context.Context, kind, payload string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO latest_state(kind, payload, updated_at)
		VALUES($1, $2, $3)
		ON CONFLICT(kind) DO UPDATE SET
		payload=EXCLUDED.payload, updated_at=EXCLUDED.updated_at
	`, kind, payload, time.Now().UnixMilli())
	return err
}

func (r *Repo) SaveTick(ctx context.Context, tick model.Tick) error {
	payload, err := storage.EncodeTick(tick)
	if err != nil {
		return err
	}
	return r.upsert(ctx, storage.KindTick, payload)
}

func (r *Repo) SaveDecision(ctx context.Context, d model.Decision) error {
	payload, err := storage.EncodeDecision(d)
	if err != nil {
		return err
	}
	return r.upsert(ctx, storage.KindDecision, payload)
}

func (r *Repo) LoadLatest(ctx context.Context) (*model.Tick, *model.Decision, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT kind, payload::text FROM latest_state`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var records []storage.LatestRecord
	for rows.Next() {
		var rec storage.LatestRecord
		if err := rows.Scan(&rec.Kind, &rec.Payload); err != nil {
			return nil, nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return storage.DecodeLatest(records)
}

var _ port.StateRepository = (*Repo)(nil)
