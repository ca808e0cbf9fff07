package company

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"crmapi/activity"
	"crmapi/contact"
	"crmapi/deal"
	"crmapi/store"
)

var (
	ErrNotFound      = fmt.Errorf("company: %w", store.ErrNotFound)
	ErrDuplicateName = fmt.Errorf("company: %w: name already exists", store.ErrConflict)
)

const nameConstraint = "companies_name_key"

// Repository is the data access used by Service. Every method runs on the
// caller's transaction.
type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, params CreateParams) (Company, error)
	Get(ctx context.Context, tx pgx.Tx, id int64) (Company, error)
	List(ctx context.Context, tx pgx.Tx, filter Filter) ([]Company, int, error)
	Update(ctx context.Context, tx pgx.Tx, id int64, params UpdateParams) (Company, error)
	Delete(ctx context.Context, tx pgx.Tx, id int64) error
	// NameTaken reports whether a company other than excludeID uses name.
	NameTaken(ctx context.Context, tx pgx.Tx, name string, excludeID int64) (bool, error)
	Contacts(ctx context.Context, tx pgx.Tx, companyID int64) ([]contact.Summary, error)
	Deals(ctx context.Context, tx pgx.Tx, companyID int64) ([]deal.Summary, error)
	Activities(ctx context.Context, tx pgx.Tx, companyID int64, limit int) ([]activity.Summary, error)
}

type PGRepository struct{}

func NewRepository() *PGRepository {
	return &PGRepository{}
}

const columns = `id, name, industry, website, phone, country, city, address, owner_user_id, created_at, updated_at`

func (r *PGRepository) Create(ctx context.Context, tx pgx.Tx, params CreateParams) (Company, error) {
	query := `
		INSERT INTO companies (name, industry, website, phone, country, city, address, owner_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + columns

	c, err := scanCompany(tx.QueryRow(ctx, query,
		params.Name,
		params.Industry,
		params.Website,
		params.Phone,
		params.Country,
		params.City,
		params.Address,
		params.OwnerUserID,
	))
	if err != nil {
		if store.IsUniqueViolation(err, nameConstraint) {
			return Company{}, ErrDuplicateName
		}
		return Company{}, fmt.Errorf("company: create: %w", store.Classify(err))
	}
	return c, nil
}

func (r *PGRepository) Get(ctx context.Context, tx pgx.Tx, id int64) (Company, error) {
	c, err := scanCompany(tx.QueryRow(ctx, `SELECT `+columns+` FROM companies WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrNotFound
		}
		return Company{}, fmt.Errorf("company: get: %w", err)
	}
	return c, nil
}

func (r *PGRepository) List(ctx context.Context, tx pgx.Tx, filter Filter) ([]Company, int, error) {
	var w store.Where
	if search := strings.TrimSpace(filter.Search); search != "" {
		w.And("name ILIKE " + w.Arg(store.Contains(search)))
	}
	if city := strings.TrimSpace(filter.City); city != "" {
		w.And("city ILIKE " + w.Arg(store.Contains(city)))
	}
	if industry := strings.TrimSpace(filter.Industry); industry != "" {
		w.And("industry ILIKE " + w.Arg(store.Contains(industry)))
	}
	if filter.OwnerUserID != nil {
		w.And("owner_user_id = " + w.Arg(*filter.OwnerUserID))
	}

	query := `SELECT ` + columns + ` FROM companies` + w.SQL() + ` ORDER BY created_at DESC, id DESC` + filter.Page.SQL()
	rows, err := tx.Query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("company: query list: %w", err)
	}
	defer rows.Close()

	list := []Company{}
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("company: scan list: %w", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("company: iterate list: %w", err)
	}

	var total int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM companies`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("company: count list: %w", err)
	}

	return list, total, nil
}

// Update applies present fields and bumps updated_at. With nothing to apply
// it returns the stored row untouched.
func (r *PGRepository) Update(ctx context.Context, tx pgx.Tx, id int64, params UpdateParams) (Company, error) {
	var a store.Assignments
	if params.Name.Set {
		a.Set("name", params.Name.Value)
	}
	if params.Industry.Set {
		a.Set("industry", params.Industry.Arg())
	}
	if params.Website.Set {
		a.Set("website", params.Website.Arg())
	}
	if params.Phone.Set {
		a.Set("phone", params.Phone.Arg())
	}
	if params.Country.Set {
		a.Set("country", params.Country.Arg())
	}
	if params.City.Set {
		a.Set("city", params.City.Arg())
	}
	if params.Address.Set {
		a.Set("address", params.Address.Arg())
	}
	if params.OwnerUserID.Set {
		a.Set("owner_user_id", params.OwnerUserID.Arg())
	}
	if a.Empty() {
		return r.Get(ctx, tx, id)
	}
	a.SetRaw("updated_at = now()")

	query, args := a.UpdateSQL("companies", id)
	c, err := scanCompany(tx.QueryRow(ctx, query+` RETURNING `+columns, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrNotFound
		}
		if store.IsUniqueViolation(err, nameConstraint) {
			return Company{}, ErrDuplicateName
		}
		return Company{}, fmt.Errorf("company: update: %w", store.Classify(err))
	}
	return c, nil
}

func (r *PGRepository) Delete(ctx context.Context, tx pgx.Tx, id int64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("company: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) NameTaken(ctx context.Context, tx pgx.Tx, name string, excludeID int64) (bool, error) {
	var taken bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM companies WHERE name = $1 AND id <> $2)`, name, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("company: check name: %w", err)
	}
	return taken, nil
}

func (r *PGRepository) Contacts(ctx context.Context, tx pgx.Tx, companyID int64) ([]contact.Summary, error) {
	return contact.SummariesByCompany(ctx, tx, companyID)
}

func (r *PGRepository) Deals(ctx context.Context, tx pgx.Tx, companyID int64) ([]deal.Summary, error) {
	return deal.SummariesByCompany(ctx, tx, companyID)
}

func (r *PGRepository) Activities(ctx context.Context, tx pgx.Tx, companyID int64, limit int) ([]activity.Summary, error) {
	return activity.RecentByCompany(ctx, tx, companyID, limit)
}

func scanCompany(row pgx.Row) (Company, error) {
	var c Company
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Industry,
		&c.Website,
		&c.Phone,
		&c.Country,
		&c.City,
		&c.Address,
		&c.OwnerUserID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return Company{}, err
	}
	return c, nil
}
