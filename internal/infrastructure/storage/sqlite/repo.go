package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"klinerelay/internal/application/port"
	"klinerelay/internal/domain/model"
	"klinerelay/internal/infrastructure/storage"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

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
  payload TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);
`)
	return err
}

func (r *Repo) upsert(ctx context.Context, kind, payload string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO latest_state(kind, payload, updated_at)
		VALUES(?, ?, ?)
		ON CONFLICT(kind) DO UPDATE SET
		payload=excluded.payload, updated_at=excluded.updated_at
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
	rows, err := r.db.QueryContext(ctx, `SELECT kind, payload FROM latest_state`)
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
