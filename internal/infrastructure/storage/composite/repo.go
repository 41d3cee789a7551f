package composite

import (
	"context"
	"errors"

	"klinerelay/internal/application/port"
	"klinerelay/internal/domain/model"
)

type Repo struct {
	repos []port.StateRepository
}

func New(repos ...port.StateRepository) *Repo {
	// nil repos are allowed; filter in constructor for safety
	out := make([]port.StateRepository, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

func (r *Repo) Len() int { return len(r.repos) }

func (r *Repo) SaveTick(ctx context.Context, tick model.Tick) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.SaveTick(ctx, tick); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) SaveDecision(ctx context.Context, d model.Decision) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.SaveDecision(ctx, d); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LoadLatest 按顺序取每种数据第一个非空的结果
func (r *Repo) LoadLatest(ctx context.Context) (*model.Tick, *model.Decision, error) {
	var (
		tick     *model.Tick
		decision *model.Decision
		errs     []error
	)
	for _, repo := range r.repos {
		t, d, err := repo.LoadLatest(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if tick == nil {
			tick = t
		}
		if decision == nil {
			decision = d
		}
		if tick != nil && decision != nil {
			break
		}
	}
	if tick == nil && decision == nil && len(errs) > 0 {
		return nil, nil, errors.Join(errs...)
	}
	return tick, decision, nil
}

// Close 关闭所有仓储，返回合并后的错误
func (r *Repo) Close() error {
	var errs []error
	for _, repo := range r.repos {
		if err := repo.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ port.StateRepository = (*Repo)(nil)
