package company

import (
	"context"
	"fmt"
	"strings"

	"crmapi/store"
)

const detailActivityLimit = 20

var (
	ErrNameRequired = fmt.Errorf("company: %w: name is required", store.ErrInvalidInput)
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

// Create inserts a company whose name is not yet in use.
func (s *Service) Create(ctx context.Context, params CreateParams) (Company, error) {
	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		return Company{}, ErrNameRequired
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Company{}, fmt.Errorf("company: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	taken, err := s.repo.NameTaken(ctx, tx, params.Name, 0)
	if err != nil {
		return Company{}, err
	}
	if taken {
		return Company{}, ErrDuplicateName
	}

	c, err := s.repo.Create(ctx, tx, params)
	if err != nil {
		return Company{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Company{}, fmt.Errorf("company: commit tx: %w", err)
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Company, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Company{}, fmt.Errorf("company: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := s.repo.Get(ctx, tx, id)
	if err != nil {
		return Company{}, err
	}
	return c, tx.Commit(ctx)
}

// Detail assembles the company with its contacts, deals and up to 20
// activities reachable through either, latest due date first.
func (s *Service) Detail(ctx context.Context, id int64) (Detail, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Detail{}, fmt.Errorf("company: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := s.repo.Get(ctx, tx, id)
	if err != nil {
		return Detail{}, err
	}
	contacts, err := s.repo.Contacts(ctx, tx, id)
	if err != nil {
		return Detail{}, err
	}
	deals, err := s.repo.Deals(ctx, tx, id)
	if err != nil {
		return Detail{}, err
	}
	acts, err := s.repo.Activities(ctx, tx, id, detailActivityLimit)
	if err != nil {
		return Detail{}, err
	}

	detail := Detail{Company: c, Contacts: contacts, Deals: deals, Activities: acts}
	return detail, tx.Commit(ctx)
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Company, int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("company: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	list, total, err := s.repo.List(ctx, tx, filter)
	if err != nil {
		return nil, 0, err
	}
	return list, total, tx.Commit(ctx)
}

func (s *Service) Update(ctx context.Context, id int64, params UpdateParams) (Company, error) {
	if params.Name.Set {
		params.Name.Value = strings.TrimSpace(params.Name.Value)
		if params.Name.Null || params.Name.Value == "" {
			return Company{}, ErrNameRequired
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Company{}, fmt.Errorf("company: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if params.Name.Set {
		taken, err := s.repo.NameTaken(ctx, tx, params.Name.Value, id)
		if err != nil {
			return Company{}, err
		}
		if taken {
			return Company{}, ErrDuplicateName
		}
	}

	c, err := s.repo.Update(ctx, tx, id, params)
	if err != nil {
		return Company{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Company{}, fmt.Errorf("company: commit tx: %w", err)
	}
	return c, nil
}

// Delete removes the company. Contacts lose their company link; deals keep
// the dangling company id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("company: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.Delete(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("company: commit tx: %w", err)
	}
	return nil
}
