package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"crmapi/store"
)

var (
	ErrNotFound = fmt.Errorf("activity: %w", store.ErrNotFound)
)

// Repository is the data access used by Service. Every method runs on the
// caller's transaction.
type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, params CreateParams) (int64, error)
	Get(ctx context.Context, tx pgx.Tx, id int64) (View, error)
	List(ctx context.Context, tx pgx.Tx, filter Filter) ([]View, int, error)
	Update(ctx context.Context, tx pgx.Tx, id int64, params UpdateParams) error
	Delete(ctx context.Context, tx pgx.Tx, id int64) error
}

type PGRepository struct{}

func NewRepository() *PGRepository {
	return &PGRepository{}
}

const viewSelect = `
	SELECT a.id, a.type::text, a.subject, a.notes, a.due_date, a.done,
	       a.deal_id, a.contact_id, a.owner_user_id, a.created_at,
	       c.first_name || ' ' || c.last_name, d.title, d.company_id, co.name
	FROM activities a
	LEFT JOIN contacts c ON c.id = a.contact_id
	LEFT JOIN deals d ON d.id = a.deal_id
	LEFT JOIN companies co ON co.id = d.company_id`

const summarySelect = `
	SELECT a.id, a.type::text, a.subject, a.due_date, a.done, a.deal_id, a.contact_id,
	       c.first_name || ' ' || c.last_name, d.title
	FROM activities a
	LEFT JOIN contacts c ON c.id = a.contact_id
	LEFT JOIN deals d ON d.id = a.deal_id`

func (r *PGRepository) Create(ctx context.Context, tx pgx.Tx, params CreateParams) (int64, error) {
	const query = `
		INSERT INTO activities (type, subject, notes, due_date, done, deal_id, contact_id, owner_user_id)
		VALUES ($1::activity_type, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := tx.QueryRow(ctx, query,
		string(params.Type),
		params.Subject,
		params.Notes,
		params.DueDate,
		params.Done,
		params.DealID,
		params.ContactID,
		params.OwnerUserID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("activity: create: %w", store.Classify(err))
	}
	return id, nil
}

func (r *PGRepository) Get(ctx context.Context, tx pgx.Tx, id int64) (View, error) {
	view, err := scanView(tx.QueryRow(ctx, viewSelect+` WHERE a.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return View{}, ErrNotFound
		}
		return View{}, fmt.Errorf("activity: get: %w", err)
	}
	return view, nil
}

func (r *PGRepository) List(ctx context.Context, tx pgx.Tx, filter Filter) ([]View, int, error) {
	var w store.Where
	if filter.DueFrom != nil {
		w.And("a.due_date >= " + w.Arg(*filter.DueFrom))
	}
	if filter.DueTo != nil {
		w.And("a.due_date <= " + w.Arg(*filter.DueTo))
	}
	if filter.OwnerUserID != nil {
		w.And("a.owner_user_id = " + w.Arg(*filter.OwnerUserID))
	}
	if filter.DealID != nil {
		w.And("a.deal_id = " + w.Arg(*filter.DealID))
	}
	if filter.ContactID != nil {
		w.And("a.contact_id = " + w.Arg(*filter.ContactID))
	}
	if filter.Type != nil {
		w.And("a.type::text = " + w.Arg(string(*filter.Type)))
	}
	if filter.Done != nil {
		w.And("a.done = " + w.Arg(*filter.Done))
	}

	query := viewSelect + w.SQL() + ` ORDER BY a.due_date ASC NULLS LAST, a.id ASC` + filter.Page.SQL()
	rows, err := tx.Query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("activity: query list: %w", err)
	}
	defer rows.Close()

	list := []View{}
	for rows.Next() {
		view, err := scanView(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("activity: scan list: %w", err)
		}
		list = append(list, view)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("activity: iterate list: %w", err)
	}

	var total int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM activities a`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("activity: count list: %w", err)
	}

	return list, total, nil
}

func (r *PGRepository) Update(ctx context.Context, tx pgx.Tx, id int64, params UpdateParams) error {
	var a store.Assignments
	if params.Type.Set {
		a.Set("type", string(params.Type.Value))
	}
	if params.Subject.Set {
		a.Set("subject", params.Subject.Value)
	}
	if params.Notes.Set {
		a.Set("notes", params.Notes.Arg())
	}
	if params.DueDate.Set {
		a.Set("due_date", params.DueDate.Arg())
	}
	if params.Done.Set {
		a.Set("done", params.Done.Value)
	}
	if params.DealID.Set {
		a.Set("deal_id", params.DealID.Arg())
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

	query, args := a.UpdateSQL("activities", id)
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("activity: update: %w", store.Classify(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) Delete(ctx context.Context, tx pgx.Tx, id int64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM activities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("activity: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecentByDeal returns up to limit activities of a deal, latest due date first.
func RecentByDeal(ctx context.Context, q store.Querier, dealID int64, limit int) ([]Summary, error) {
	return querySummaries(ctx, q, summarySelect+` WHERE a.deal_id = $1`, dealID, limit)
}

// RecentByContact returns up to limit activities directly linked to a contact.
func RecentByContact(ctx context.Context, q store.Querier, contactID int64, limit int) ([]Summary, error) {
	return querySummaries(ctx, q, summarySelect+` WHERE a.contact_id = $1`, contactID, limit)
}

// RecentByCompany returns up to limit activities reachable from a company
// through one of its deals or one of its contacts. An activity reachable both
// ways appears once.
func RecentByCompany(ctx context.Context, q store.Querier, companyID int64, limit int) ([]Summary, error) {
	const where = `
	WHERE a.deal_id IN (SELECT id FROM deals WHERE company_id = $1)
	   OR a.contact_id IN (SELECT id FROM contacts WHERE company_id = $1)`
	return querySummaries(ctx, q, summarySelect+where, companyID, limit)
}

func querySummaries(ctx context.Context, q store.Querier, query string, id int64, limit int) ([]Summary, error) {
	query += fmt.Sprintf(` ORDER BY a.due_date DESC NULLS LAST, a.id DESC LIMIT %d`, limit)
	rows, err := q.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("activity: query summaries: %w", err)
	}
	defer rows.Close()

	list := []Summary{}
	for rows.Next() {
		var (
			s   Summary
			typ string
		)
		if err := rows.Scan(&s.ID, &typ, &s.Subject, &s.DueDate, &s.Done, &s.DealID, &s.ContactID, &s.ContactName, &s.DealTitle); err != nil {
			return nil, fmt.Errorf("activity: scan summary: %w", err)
		}
		s.Type = Type(typ)
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("activity: iterate summaries: %w", err)
	}
	return list, nil
}

// ListUpcoming returns activities due within [from, to], earliest first,
// optionally restricted to one owner.
func ListUpcoming(ctx context.Context, q store.Querier, from, to time.Time, ownerUserID *int64) ([]Upcoming, error) {
	const query = `
		SELECT a.id, a.type::text, a.subject, a.due_date, a.deal_id, a.contact_id, d.company_id,
		       c.first_name || ' ' || c.last_name
		FROM activities a
		LEFT JOIN deals d ON d.id = a.deal_id
		LEFT JOIN contacts c ON c.id = a.contact_id
		WHERE a.due_date IS NOT NULL
		  AND a.due_date >= $1
		  AND a.due_date <= $2
		  AND ($3::bigint IS NULL OR a.owner_user_id = $3)
		ORDER BY a.due_date ASC, a.id ASC
	`

	rows, err := q.Query(ctx, query, from, to, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("activity: query upcoming: %w", err)
	}
	defer rows.Close()

	list := []Upcoming{}
	for rows.Next() {
		var (
			u   Upcoming
			typ string
		)
		if err := rows.Scan(&u.ID, &typ, &u.Subject, &u.DueDate, &u.DealID, &u.ContactID, &u.CompanyID, &u.ContactName); err != nil {
			return nil, fmt.Errorf("activity: scan upcoming: %w", err)
		}
		u.Type = Type(typ)
		list = append(list, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("activity: iterate upcoming: %w", err)
	}
	return list, nil
}

func scanView(row pgx.Row) (View, error) {
	var (
		v   View
		typ string
	)
	err := row.Scan(
		&v.ID,
		&typ,
		&v.Subject,
		&v.Notes,
		&v.DueDate,
		&v.Done,
		&v.DealID,
		&v.ContactID,
		&v.OwnerUserID,
		&v.CreatedAt,
		&v.ContactName,
		&v.DealTitle,
		&v.CompanyID,
		&v.CompanyName,
	)
	if err != nil {
		return View{}, err
	}
	v.Type = Type(typ)
	return v, nil
}
