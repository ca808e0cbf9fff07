package contact

import (
	"context"
	"fmt"
	"strings"

	"crmapi/optional"
	"crmapi/store"
)

const detailActivityLimit = 20

var (
	ErrNameRequired = fmt.Errorf("contact: %w: first_name and last_name are required", store.ErrInvalidInput)
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

// Create inserts a contact. A non-null email must not belong to another
// contact; a blank email is stored as null.
func (s *Service) Create(ctx context.Context, params CreateParams) (View, error) {
	params.FirstName = strings.TrimSpace(params.FirstName)
	params.LastName = strings.TrimSpace(params.LastName)
	if params.FirstName == "" || params.LastName == "" {
		return View{}, ErrNameRequired
	}
	params.Email = normalizeEmail(params.Email)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return View{}, fmt.Errorf("contact: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if params.Email != nil {
		taken, err := s.repo.EmailTaken(ctx, tx, *params.Email, 0)
		if err != nil {
			return View{}, err
		}
		if taken {
			return View{}, ErrDuplicateEmail
		}
	}

	id, err := s.repo.Create(ctx, tx, params)
	if err != nil {
		return View{}, err
	}
	view, err := s.repo.Get(ctx, tx, id)
	if err != nil {
		return View{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return View{}, fmt.Errorf("contact: commit tx: %w", err)
	}
	return view, nil
}

func (s *Service) Get(ctx context.Context, id int64) (View, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return View{}, fmt.Errorf("contact: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	view, err := s.repo.Get(ctx, tx, id)
	if err != nil {
		return View{}, err
	}
	return view, tx.Commit(ctx)
}

// Detail returns the contact with its company, every deal it is the primary
// contact of, and its latest activities.
func (s *Service) Detail(ctx context.Context, id int64) (Detail, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Detail{}, fmt.Errorf("contact: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	view, err := s.repo.Get(ctx, tx, id)
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

	return Detail{View: view, Deals: deals, Activities: acts}, tx.Commit(ctx)
}

func (s *Service) List(ctx context.Context, filter Filter) ([]View, int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("contact: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	list, total, err := s.repo.List(ctx, tx, filter)
	if err != nil {
		return nil, 0, err
	}
	return list, total, tx.Commit(ctx)
}

func (s *Service) Update(ctx context.Context, id int64, params UpdateParams) (View, error) {
	if err := requireName(&params.FirstName); err != nil {
		return View{}, err
	}
	if err := requireName(&params.LastName); err != nil {
		return View{}, err
	}
	if params.Email.Set && !params.Email.Null {
		if e := normalizeEmail(&params.Email.Value); e == nil {
			params.Email.Null = true
		} else {
			params.Email.Value = *e
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return View{}, fmt.Errorf("contact: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if params.Email.Set && !params.Email.Null {
		taken, err := s.repo.EmailTaken(ctx, tx, params.Email.Value, id)
		if err != nil {
			return View{}, err
		}
		if taken {
			return View{}, ErrDuplicateEmail
		}
	}

	if err := s.repo.Update(ctx, tx, id, params); err != nil {
		return View{}, err
	}
	view, err := s.repo.Get(ctx, tx, id)
	if err != nil {
		return View{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return View{}, fmt.Errorf("contact: commit tx: %w", err)
	}
	return view, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("contact: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.Delete(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("contact: commit tx: %w", err)
	}
	return nil
}

// requireName trims a present name and rejects it when null or blank.
func requireName(f *optional.Field[string]) error {
	if !f.Set {
		return nil
	}
	f.Value = strings.TrimSpace(f.Value)
	if f.Null || f.Value == "" {
		return ErrNameRequired
	}
	return nil
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	e := strings.TrimSpace(*email)
	if e == "" {
		return nil
	}
	return &e
}
