package deal

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"crmapi/store"
)

const (
	detailActivityLimit = 20
	// ActivityFeedLimit caps the per-deal activity feed.
	ActivityFeedLimit = 30
)

var (
	ErrInvalidStage    = fmt.Errorf("deal: %w: stage must be one of prospecting, qualified, proposal, won, lost", store.ErrInvalidInput)
	ErrTitleRequired   = fmt.Errorf("deal: %w: title is required", store.ErrInvalidInput)
	ErrInvalidCurrency = fmt.Errorf("deal: %w: currency must be a 3-letter code", store.ErrInvalidInput)
	ErrUnknownCompany  = fmt.Errorf("deal: %w: company does not exist", store.ErrInvalidInput)
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
	params.Title = strings.TrimSpace(params.Title)
	if params.Title == "" {
		return View{}, ErrTitleRequired
	}
	if params.Stage == "" {
		params.Stage = StageProspecting
	}
	if !params.Stage.Valid() {
		return View{}, ErrInvalidStage
	}
	currency, err := normalizeCurrency(params.Currency)
	if err != nil {
		return View{}, err
	}
	params.Currency = currency

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return View{}, fmt.Errorf("deal: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.requireCompany(ctx, tx, params.CompanyID); err != nil {
		return View{}, err
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
		return View{}, fmt.Errorf("deal: commit tx: %w", err)
	}
	return view, nil
}

func (s *Service) Get(ctx context.Context, id int64) (View, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return View{}, fmt.Errorf("deal: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	view, err := s.repo.Get(ctx, tx, id)
	if err != nil {
		return View{}, err
	}
	return view, tx.Commit(ctx)
}

// Detail returns the deal with its company, contact and the latest activities.
func (s *Service) Detail(ctx context.Context, id int64) (Detail, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Detail{}, fmt.Errorf("deal: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	view, err := s.repo.Get(ctx, tx, id)
	if err != nil {
		return Detail{}, err
	}
	acts, err := s.repo.Activities(ctx, tx, id, detailActivityLimit)
	if err != nil {
		return Detail{}, err
	}

	return Detail{View: view, Activities: acts}, tx.Commit(ctx)
}

// Activities returns the deal's activity feed, latest due date first. The
// deal must exist.
func (s *Service) Activities(ctx context.Context, id int64) (Detail, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Detail{}, fmt.Errorf("deal: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	view, err := s.repo.Get(ctx, tx, id)
	if err != nil {
		return Detail{}, err
	}
	acts, err := s.repo.Activities(ctx, tx, id, ActivityFeedLimit)
	if err != nil {
		return Detail{}, err
	}
	return Detail{View: view, Activities: acts}, tx.Commit(ctx)
}

func (s *Service) List(ctx context.Context, filter Filter) ([]View, int, error) {
	if filter.Stage != nil && !filter.Stage.Valid() {
		return nil, 0, ErrInvalidStage
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("deal: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	list, total, err := s.repo.List(ctx, tx, filter)
	if err != nil {
		return nil, 0, err
	}
	return list, total, tx.Commit(ctx)
}

// Update applies the fields present in params and returns the refreshed view.
// An empty patch returns the current view and does not touch updated_at.
func (s *Service) Update(ctx context.Context, id int64, params UpdateParams) (View, error) {
	if params.Title.Set {
		params.Title.Value = strings.TrimSpace(params.Title.Value)
		if params.Title.Null || params.Title.Value == "" {
			return View{}, ErrTitleRequired
		}
	}
	if params.Stage.Set && (params.Stage.Null || !params.Stage.Value.Valid()) {
		return View{}, ErrInvalidStage
	}
	if params.Currency.Set {
		if params.Currency.Null {
			return View{}, ErrInvalidCurrency
		}
		currency, err := normalizeCurrency(params.Currency.Value)
		if err != nil {
			return View{}, err
		}
		params.Currency.Value = currency
	}
	if params.Amount.Set && params.Amount.Null {
		return View{}, fmt.Errorf("deal: %w: amount cannot be null", store.ErrInvalidInput)
	}
	if params.CompanyID.Set && params.CompanyID.Null {
		return View{}, ErrUnknownCompany
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return View{}, fmt.Errorf("deal: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if params.CompanyID.Set {
		if err := s.requireCompany(ctx, tx, params.CompanyID.Value); err != nil {
			return View{}, err
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
		return View{}, fmt.Errorf("deal: commit tx: %w", err)
	}
	return view, nil
}

// SetStage moves a deal to any stage. The stage is validated before the
// transaction opens.
func (s *Service) SetStage(ctx context.Context, id int64, stage Stage) (View, error) {
	if !stage.Valid() {
		return View{}, ErrInvalidStage
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return View{}, fmt.Errorf("deal: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.SetStage(ctx, tx, id, stage); err != nil {
		return View{}, err
	}
	view, err := s.repo.Get(ctx, tx, id)
	if err != nil {
		return View{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return View{}, fmt.Errorf("deal: commit tx: %w", err)
	}
	return view, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("deal: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.Delete(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("deal: commit tx: %w", err)
	}
	return nil
}

func (s *Service) requireCompany(ctx context.Context, tx pgx.Tx, companyID int64) error {
	if companyID <= 0 {
		return ErrUnknownCompany
	}
	ok, err := s.repo.CompanyExists(ctx, tx, companyID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownCompany
	}
	return nil
}

func normalizeCurrency(c string) (string, error) {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return DefaultCurrency, nil
	}
	if len(c) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return c, nil
}
