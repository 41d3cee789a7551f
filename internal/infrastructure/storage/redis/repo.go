package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"klinerelay/internal/application/port"
	"klinerelay/internal/domain/model"
	"klinerelay/internal/infrastructure/storage"

	"github.com/redis/go-redis/v9"
)

// Repo 在 Hash 中保存最新 Tick / Decision，同时通过 Pub/Sub 广播
type Repo struct {
	rdb          *redis.Client
	ttl          time.Duration
	keyLatest    string // prefix + ":latest"
	tickChan     string
	decisionChan string
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, tickChan, decisionChan string) *Repo {
	if strings.TrimSpace(prefix) == "" {
		prefix = "klinerelay"
	}
	if strings.TrimSpace(tickChan) == "" {
		tickChan = prefix + ":market"
	}
	if strings.TrimSpace(decisionChan) == "" {
		decisionChan = prefix + ":decision"
	}
	return &Repo{
		rdb:          rdb,
		ttl:          ttl,
		keyLatest:    prefix + ":latest",
		tickChan:     tickChan,
		decisionChan: decisionChan,
	}
}

func (r *Repo) Close() error { return r.rdb.Close() }

func (r *Repo) TickChannel() string     { return r.tickChan }
func (r *Repo) DecisionChannel() string { return r.decisionChan }

func (r *Repo) hset(ctx context.Context, field, payload string) error {
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, r.keyLatest, field, payload)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyLatest, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Repo) SaveTick(ctx context.Context, tick model.Tick) error {
	payload, err := storage.EncodeTick(tick)
	if err != nil {
		return err
	}
	return r.hset(ctx, storage.KindTick, payload)
}

func (r *Repo) SaveDecision(ctx context.Context, d model.Decision) error {
	payload, err := storage.EncodeDecision(d)
	if err != nil {
		return err
	}
	return r.hset(ctx, storage.KindDecision, payload)
}

func (r *Repo) LoadLatest(ctx context.Context) (*model.Tick, *model.Decision, error) {
	vals, err := r.rdb.HMGet(ctx, r.keyLatest, storage.KindTick, storage.KindDecision).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, err
	}
	kinds := []string{storage.KindTick, storage.KindDecision}
	var records []storage.LatestRecord
	for i, v := range vals {
		s, ok := v.(string)
		if !ok || i >= len(kinds) {
			continue
		}
		records = append(records, storage.LatestRecord{Kind: kinds[i], Payload: s})
	}
	return storage.DecodeLatest(records)
}

// PublishTick PUBLISH <tick channel> json
func (r *Repo) PublishTick(ctx context.Context, tick model.Tick) error {
	payload, err := storage.EncodeTick(tick)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.tickChan, payload).Err()
}

// PublishDecision PUBLISH <decision channel> json
func (r *Repo) PublishDecision(ctx context.Context, d model.Decision) error {
	payload, err := storage.EncodeDecision(d)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.decisionChan, payload).Err()
}

var (
	_ port.StateRepository = (*Repo)(nil)
	_ port.Broadcaster     = (*Repo)(nil)
)
