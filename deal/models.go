package deal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"crmapi/activity"
	"crmapi/optional"
	"crmapi/store"
)

// Stage is a pipeline position. Stages are listed in pipeline order.
type Stage string

const (
	StageProspecting Stage = "prospecting"
	StageQualified   Stage = "qualified"
	StageProposal    Stage = "proposal"
	StageWon         Stage = "won"
	StageLost        Stage = "lost"
)

// Stages returns every stage in pipeline order.
func Stages() []Stage {
	return []Stage{StageProspecting, StageQualified, StageProposal, StageWon, StageLost}
}

func (s Stage) Valid() bool {
	switch s {
	case StageProspecting, StageQualified, StageProposal, StageWon, StageLost:
		return true
	default:
		return false
	}
}

// Probability is the weight applied to a stage's amount when computing the
// expected pipeline value.
func (s Stage) Probability() float64 {
	switch s {
	case StageProspecting:
		return 0.2
	case StageQualified:
		return 0.4
	case StageProposal:
		return 0.7
	case StageWon:
		return 1.0
	default:
		return 0
	}
}

const DefaultCurrency = "EUR"

// Deal mirrors the deals table. CompanyID may reference a company that no
// longer exists.
type Deal struct {
	ID          int64
	Title       string
	Amount      float64
	Currency    string
	Stage       Stage
	CloseDate   *time.Time
	CompanyID   int64
	ContactID   *int64
	OwnerUserID *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// View is a deal with the names of its company and contact resolved.
type View struct {
	Deal
	CompanyName    *string
	CompanyCity    *string
	CompanyCountry *string
	ContactName    *string
}

// Detail is a deal with its most recent activities.
type Detail struct {
	View
	Activities []activity.Summary
}

// Summary is the compact shape embedded in company and contact detail views.
type Summary struct {
	ID        int64
	Title     string
	Stage     Stage
	Amount    float64
	Currency  string
	CloseDate *time.Time
}

// StageTotal aggregates deals sharing a stage.
type StageTotal struct {
	Stage       Stage
	Count       int
	TotalAmount float64
}

type Filter struct {
	Stage       *Stage
	CompanyID   *int64
	ContactID   *int64
	OwnerUserID *int64
	Search      string
	Page        store.Page
}

// Date is a calendar day carried as YYYY-MM-DD on the wire.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("deal: close_date must be YYYY-MM-DD: %w", err)
	}
	d.Time = t
	return nil
}

type CreateParams struct {
	Title       string  `json:"title"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Stage       Stage   `json:"stage"`
	CloseDate   *Date   `json:"close_date"`
	CompanyID   int64   `json:"company_id"`
	ContactID   *int64  `json:"contact_id"`
	OwnerUserID *int64  `json:"owner_user_id"`
}

type UpdateParams struct {
	Title       optional.Field[string]  `json:"title"`
	Amount      optional.Field[float64] `json:"amount"`
	Currency    optional.Field[string]  `json:"currency"`
	Stage       optional.Field[Stage]   `json:"stage"`
	CloseDate   optional.Field[Date]    `json:"close_date"`
	CompanyID   optional.Field[int64]   `json:"company_id"`
	ContactID   optional.Field[int64]   `json:"contact_id"`
	OwnerUserID optional.Field[int64]   `json:"owner_user_id"`
}
