package deal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"crmapi/activity"
	"crmapi/store"
)

var (
	ErrNotFound = fmt.Errorf("deal: %w", store.ErrNotFound)
)

// Repository is the data access used by Service. Every method runs on the
// caller's transaction.
type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, params CreateParams) (int64, error)
	Get(ctx context.Context, tx pgx.Tx, id int64) (View, error)
	List(ctx context.Context, tx pgx.Tx, filter Filter) ([]View, int, error)
	Update(ctx context.Context, tx pgx.Tx, id int64, params UpdateParams) error
	SetStage(ctx context.Context, tx pgx.Tx, id int64, stage Stage) error
	Delete(ctx context.Context, tx pgx.Tx, id int64) error
	CompanyExists(ctx context.Context, tx pgx.Tx, companyID int64) (bool, error)
	Activities(ctx context.Context, tx pgx.Tx, dealID int64, limit int) ([]activity.Summary, error)
}

type PGRepository struct{}

func NewRepository() *PGRepository {
	return &PGRepository{}
}

const viewSelect = `
	SELECT d.id, d.title, d.amount::float8, d.currency, d.stage::text, d.close_date,
	       d.company_id, d.contact_id, d.owner_user_id, d.created_at, d.updated_at,
	       co.name, co.city, co.country, c.first_name || ' ' || c.last_name
	FROM deals d
	LEFT JOIN companies co ON co.id = d.company_id
	LEFT JOIN contacts c ON c.id = d.contact_id`

func (r *PGRepository) Create(ctx context.Context, tx pgx.Tx, params CreateParams) (int64, error) {
	const query = `
		INSERT INTO deals (title, amount, currency, stage, close_date, company_id, contact_id, owner_user_id)
		VALUES ($1, $2, $3, $4::deal_stage, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := tx.QueryRow(ctx, query,
		params.Title,
		params.Amount,
		params.Currency,
		string(params.Stage),
		dateArg(params.CloseDate),
		params.CompanyID,
		params.ContactID,
		params.OwnerUserID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("deal: create: %w", store.Classify(err))
	}
	return id, nil
}

func (r *PGRepository) Get(ctx context.Context, tx pgx.Tx, id int64) (View, error) {
	view, err := scanView(tx.QueryRow(ctx, viewSelect+` WHERE d.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return View{}, ErrNotFound
		}
		return View{}, fmt.Errorf("deal: get: %w", err)
	}
	return view, nil
}

func (r *PGRepository) List(ctx context.Context, tx pgx.Tx, filter Filter) ([]View, int, error) {
	var w store.Where
	if filter.Stage != nil {
		w.And("d.stage::text = " + w.Arg(string(*filter.Stage)))
	}
	if filter.CompanyID != nil {
		w.And("d.company_id = " + w.Arg(*filter.CompanyID))
	}
	if filter.ContactID != nil {
		w.And("d.contact_id = " + w.Arg(*filter.ContactID))
	}
	if filter.OwnerUserID != nil {
		w.And("d.owner_user_id = " + w.Arg(*filter.OwnerUserID))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		w.And("d.title ILIKE " + w.Arg(store.Contains(search)))
	}

	query := viewSelect + w.SQL() + ` ORDER BY d.created_at DESC, d.id DESC` + filter.Page.SQL()
	rows, err := tx.Query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("deal: query list: %w", err)
	}
	defer rows.Close()

	list := []View{}
	for rows.Next() {
		view, err := scanView(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("deal: scan list: %w", err)
		}
		list = append(list, view)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("deal: iterate list: %w", err)
	}

	var total int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM deals d`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("deal: count list: %w", err)
	}

	return list, total, nil
}

func (r *PGRepository) Update(ctx context.Context, tx pgx.Tx, id int64, params UpdateParams) error {
	var a store.Assignments
	if params.Title.Set {
		a.Set("title", params.Title.Value)
	}
	if params.Amount.Set {
		a.Set("amount", params.Amount.Value)
	}
	if params.Currency.Set {
		a.Set("currency", params.Currency.Value)
	}
	if params.Stage.Set {
		a.Set("stage", string(params.Stage.Value))
	}
	if params.CloseDate.Set {
		if params.CloseDate.Null {
			a.Set("close_date", nil)
		} else {
			a.Set("close_date", params.CloseDate.Value.Time)
		}
	}
	if params.CompanyID.Set {
		a.Set("company_id", params.CompanyID.Value)
	}
	if params.ContactID.Set {
		a.Set("contact_id", params.ContactID.Arg())
	}
	if params.OwnerUserID.Set {
		a.Set("owner_user_id", params.OwnerUserID.Arg())
	}
	if a.Empty() {
		return nil
	}
	a.SetRaw("updated_at = now()")

	query, args := a.UpdateSQL("deals", id)
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deal: update: %w", store.Classify(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) SetStage(ctx context.Context, tx pgx.Tx, id int64, stage Stage) error {
	tag, err := tx.Exec(ctx, `UPDATE deals SET stage = $2::deal_stage, updated_at = now() WHERE id = $1`, id, string(stage))
	if err != nil {
		return fmt.Errorf("deal: set stage: %w", store.Classify(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) Delete(ctx context.Context, tx pgx.Tx, id int64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM deals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deal: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) CompanyExists(ctx context.Context, tx pgx.Tx, companyID int64) (bool, error) {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM companies WHERE id = $1)`, companyID).Scan(&exists); err != nil {
		return false, fmt.Errorf("deal: check company: %w", err)
	}
	return exists, nil
}

func (r *PGRepository) Activities(ctx context.Context, tx pgx.Tx, dealID int64, limit int) ([]activity.Summary, error) {
	return activity.RecentByDeal(ctx, tx, dealID, limit)
}

// SummariesByCompany lists every deal recorded against a company.
func SummariesByCompany(ctx context.Context, q store.Querier, companyID int64) ([]Summary, error) {
	return querySummaries(ctx, q, `company_id`, companyID)
}

// SummariesByContact lists every deal whose primary contact is contactID.
func SummariesByContact(ctx context.Context, q store.Querier, contactID int64) ([]Summary, error) {
	return querySummaries(ctx, q, `contact_id`, contactID)
}

func querySummaries(ctx context.Context, q store.Querier, column string, id int64) ([]Summary, error) {
	query := `SELECT id, title, stage::text, amount::float8, currency, close_date FROM deals WHERE ` + column + ` = $1 ORDER BY id`
	rows, err := q.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("deal: query summaries: %w", err)
	}
	defer rows.Close()

	list := []Summary{}
	for rows.Next() {
		var (
			s     Summary
			stage string
		)
		if err := rows.Scan(&s.ID, &s.Title, &stage, &s.Amount, &s.Currency, &s.CloseDate); err != nil {
			return nil, fmt.Errorf("deal: scan summary: %w", err)
		}
		s.Stage = Stage(stage)
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("deal: iterate summaries: %w", err)
	}
	return list, nil
}

// TotalsByStage groups deals by stage in pipeline order. Stages without deals
// are omitted.
func TotalsByStage(ctx context.Context, q store.Querier, ownerUserID *int64) ([]StageTotal, error) {
	const query = `
		SELECT stage::text, COUNT(*), COALESCE(SUM(amount), 0)::float8
		FROM deals
		WHERE ($1::bigint IS NULL OR owner_user_id = $1)
		GROUP BY stage
		ORDER BY stage
	`

	rows, err := q.Query(ctx, query, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("deal: query stage totals: %w", err)
	}
	defer rows.Close()

	list := []StageTotal{}
	for rows.Next() {
		var (
			t     StageTotal
			stage string
		)
		if err := rows.Scan(&stage, &t.Count, &t.TotalAmount); err != nil {
			return nil, fmt.Errorf("deal: scan stage total: %w", err)
		}
		t.Stage = Stage(stage)
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("deal: iterate stage totals: %w", err)
	}
	return list, nil
}

func scanView(row pgx.Row) (View, error) {
	var (
		v     View
		stage string
	)
	err := row.Scan(
		&v.ID,
		&v.Title,
		&v.Amount,
		&v.Currency,
		&stage,
		&v.CloseDate,
		&v.CompanyID,
		&v.ContactID,
		&v.OwnerUserID,
		&v.CreatedAt,
		&v.UpdatedAt,
		&v.CompanyName,
		&v.CompanyCity,
		&v.CompanyCountry,
		&v.ContactName,
	)
	if err != nil {
		return View{}, err
	}
	v.Stage = Stage(stage)
	return v, nil
}

func dateArg(d *Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}
