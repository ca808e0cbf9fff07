package contact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"crmapi/activity"
	"crmapi/deal"
	"crmapi/store"
)

var (
	ErrNotFound       = fmt.Errorf("contact: %w", store.ErrNotFound)
	ErrDuplicateEmail = fmt.Errorf("contact: %w: email already exists", store.ErrConflict)
)

const emailConstraint = "contacts_email_key"

// Repository is the data access used by Service. Every method runs on the
// caller's transaction.
type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, params CreateParams) (int64, error)
	Get(ctx context.Context, tx pgx.Tx, id int64) (View, error)
	List(ctx context.Context, tx pgx.Tx, filter Filter) ([]View, int, error)
	Update(ctx context.Context, tx pgx.Tx, id int64, params UpdateParams) error
	Delete(ctx context.Context, tx pgx.Tx, id int64) error
	// EmailTaken reports whether another contact than excludeID uses email.
	EmailTaken(ctx context.Context, tx pgx.Tx, email string, excludeID int64) (bool, error)
	Deals(ctx context.Context, tx pgx.Tx, contactID int64) ([]deal.Summary, error)
	Activities(ctx context.Context, tx pgx.Tx, contactID int64, limit int) ([]activity.Summary, error)
}

type PGRepository struct{}

func NewRepository() *PGRepository {
	return &PGRepository{}
}

const viewSelect = `
	SELECT c.id, c.first_name, c.last_name, c.email, c.phone, c.position, c.company_id,
	       c.owner_user_id, c.tags, c.created_at, c.updated_at, co.name, co.industry
	FROM contacts c
	LEFT JOIN companies co ON co.id = c.company_id`

func (r *PGRepository) Create(ctx context.Context, tx pgx.Tx, params CreateParams) (int64, error) {
	const query = `
		INSERT INTO contacts (first_name, last_name, email, phone, position, company_id, owner_user_id, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := tx.QueryRow(ctx, query,
		params.FirstName,
		params.LastName,
		params.Email,
		params.Phone,
		params.Position,
		params.CompanyID,
		params.OwnerUserID,
		tagsArg(params.Tags),
	).Scan(&id)
	if err != nil {
		if store.IsUniqueViolation(err, emailConstraint) {
			return 0, ErrDuplicateEmail
		}
		return 0, fmt.Errorf("contact: create: %w", store.Classify(err))
	}
	return id, nil
}

func (r *PGRepository) Get(ctx context.Context, tx pgx.Tx, id int64) (View, error) {
	view, err := scanView(tx.QueryRow(ctx, viewSelect+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return View{}, ErrNotFound
		}
		return View{}, fmt.Errorf("contact: get: %w", err)
	}
	return view, nil
}

func (r *PGRepository) List(ctx context.Context, tx pgx.Tx, filter Filter) ([]View, int, error) {
	var w store.Where
	if search := strings.TrimSpace(filter.Search); search != "" {
		p := w.Arg(store.Contains(search))
		w.And("(c.first_name ILIKE " + p + " OR c.last_name ILIKE " + p + " OR c.email ILIKE " + p + ")")
	}
	if filter.CompanyID != nil {
		w.And("c.company_id = " + w.Arg(*filter.CompanyID))
	}
	if filter.OwnerUserID != nil {
		w.And("c.owner_user_id = " + w.Arg(*filter.OwnerUserID))
	}

	query := viewSelect + w.SQL() + ` ORDER BY c.created_at DESC, c.id DESC` + filter.Page.SQL()
	rows, err := tx.Query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("contact: query list: %w", err)
	}
	defer rows.Close()

	list := []View{}
	for rows.Next() {
		view, err := scanView(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("contact: scan list: %w", err)
		}
		list = append(list, view)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("contact: iterate list: %w", err)
	}

	var total int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM contacts c`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("contact: count list: %w", err)
	}

	return list, total, nil
}

func (r *PGRepository) Update(ctx context.Context, tx pgx.Tx, id int64, params UpdateParams) error {
	var a store.Assignments
	if params.FirstName.Set {
		a.Set("first_name", params.FirstName.Value)
	}
	if params.LastName.Set {
		a.Set("last_name", params.LastName.Value)
	}
	if params.Email.Set {
		a.Set("email", params.Email.Arg())
	}
	if params.Phone.Set {
		a.Set("phone", params.Phone.Arg())
	}
	if params.Position.Set {
		a.Set("position", params.Position.Arg())
	}
	if params.CompanyID.Set {
		a.Set("company_id", params.CompanyID.Arg())
	}
	if params.OwnerUserID.Set {
		a.Set("owner_user_id", params.OwnerUserID.Arg())
	}
	if params.Tags.Set {
		a.Set("tags", tagsArg(params.Tags.Value))
	}
	if a.Empty() {
		return nil
	}
	a.SetRaw("updated_at = now()")

	query, args := a.UpdateSQL("contacts", id)
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		if store.IsUniqueViolation(err, emailConstraint) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("contact: update: %w", store.Classify(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) Delete(ctx context.Context, tx pgx.Tx, id int64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("contact: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) EmailTaken(ctx context.Context, tx pgx.Tx, email string, excludeID int64) (bool, error) {
	var taken bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM contacts WHERE email = $1 AND id <> $2)`, email, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("contact: check email: %w", err)
	}
	return taken, nil
}

func (r *PGRepository) Deals(ctx context.Context, tx pgx.Tx, contactID int64) ([]deal.Summary, error) {
	return deal.SummariesByContact(ctx, tx, contactID)
}

func (r *PGRepository) Activities(ctx context.Context, tx pgx.Tx, contactID int64, limit int) ([]activity.Summary, error) {
	return activity.RecentByContact(ctx, tx, contactID, limit)
}

// SummariesByCompany lists the contacts employed by a company.
func SummariesByCompany(ctx context.Context, q store.Querier, companyID int64) ([]Summary, error) {
	rows, err := q.Query(ctx, `
		SELECT id, first_name, last_name, position, email, phone
		FROM contacts
		WHERE company_id = $1
		ORDER BY id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("contact: query summaries: %w", err)
	}
	defer rows.Close()

	list := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.FirstName, &s.LastName, &s.Position, &s.Email, &s.Phone); err != nil {
			return nil, fmt.Errorf("contact: scan summary: %w", err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contact: iterate summaries: %w", err)
	}
	return list, nil
}

func scanView(row pgx.Row) (View, error) {
	var (
		v    View
		tags []byte
	)
	err := row.Scan(
		&v.ID,
		&v.FirstName,
		&v.LastName,
		&v.Email,
		&v.Phone,
		&v.Position,
		&v.CompanyID,
		&v.OwnerUserID,
		&tags,
		&v.CreatedAt,
		&v.UpdatedAt,
		&v.CompanyName,
		&v.CompanyIndustry,
	)
	if err != nil {
		return View{}, err
	}
	if tags != nil {
		v.Tags = json.RawMessage(tags)
	}
	return v, nil
}

// tagsArg maps absent or JSON-null tags to SQL NULL.
func tagsArg(tags json.RawMessage) any {
	if len(tags) == 0 || string(tags) == "null" {
		return nil
	}
	return string(tags)
}
