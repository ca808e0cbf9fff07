package activity

import (
	"context"
	"fmt"
	"strings"

	"crmapi/store"
)

var (
	ErrInvalidType     = fmt.Errorf("activity: %w: type must be one of call, email, meeting, task", store.ErrInvalidInput)
	ErrSubjectRequired = fmt.Errorf("activity: %w: subject is required", store.ErrInvalidInput)
)

type Service struct {
	pool store.TxBeginner
	repo Repository
}

func NewService(pool store.TxBeginner, repo Repository) *Service {
	if repo == nil {
		repo = NewRepository()
	}
	return &Service{pool: pool, repo: repo}
}

func (s *Service) Create(ctx context.Context, params CreateParams) (View, error) {
	params.Subject = strings.TrimSpace(params.Subject)
	if !params.Type.Valid() {
		return View{}, ErrInvalidType
	}
	if params.Subject == "" {
		return View{}, ErrSubjectRequired
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return View{}, fmt.Errorf("activity: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	id, err := s.repo.Create(ctx, tx, params)
	if err != nil {
		return View{}, err
	}
	view, err := s.repo.Get(ctx, tx, id)
	if err != nil {
		return View{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return View{}, fmt.Errorf("activity: commit tx: %w", err)
	}
	return view, nil
}

func (s *Service) Get(ctx context.Context, id int64) (View, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return View{}, fmt.Errorf("activity: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	view, err := s.repo.Get(ctx, tx, id)
	if err != nil {
		return View{}, err
	}
	return view, tx.Commit(ctx)
}

func (s *Service) List(ctx context.Context, filter Filter) ([]View, int, error) {
	if filter.Type != nil && !filter.Type.Valid() {
		return nil, 0, ErrInvalidType
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("activity: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	list, total, err := s.repo.List(ctx, tx, filter)
	if err != nil {
		return nil, 0, err
	}
	return list, total, tx.Commit(ctx)
}

// Update applies the fields present in params and returns the refreshed view.
// An empty patch returns the current view unchanged.
func (s *Service) Update(ctx context.Context, id int64, params UpdateParams) (View, error) {
	if params.Type.Set && (params.Type.Null || !params.Type.Value.Valid()) {
		return View{}, ErrInvalidType
	}
	if params.Subject.Set {
		params.Subject.Value = strings.TrimSpace(params.Subject.Value)
		if params.Subject.Null || params.Subject.Value == "" {
			return View{}, ErrSubjectRequired
		}
	}
	if params.Done.Set && params.Done.Null {
		return View{}, fmt.Errorf("activity: %w: done cannot be null", store.ErrInvalidInput)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return View{}, fmt.Errorf("activity: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.Update(ctx, tx, id, params); err != nil {
		return View{}, err
	}
	view, err := s.repo.Get(ctx, tx, id)
	if err != nil {
		return View{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return View{}, fmt.Errorf("activity: commit tx: %w", err)
	}
	return view, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("activity: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.Delete(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("activity: commit tx: %w", err)
	}
	return nil
}
