package contact

import (
	"encoding/json"
	"time"

	"crmapi/activity"
	"crmapi/deal"
	"crmapi/optional"
	"crmapi/store"
)

// Contact mirrors the contacts table. Tags is stored and returned verbatim.
type Contact struct {
	ID          int64
	FirstName   string
	LastName    string
	Email       *string
	Phone       *string
	Position    *string
	CompanyID   *int64
	OwnerUserID *int64
	Tags        json.RawMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FullName is the display name used wherever a contact is enriched into
// another record.
func (c Contact) FullName() string {
	return c.FirstName + " " + c.LastName
}

// View is a contact with its company's name and industry resolved.
type View struct {
	Contact
	CompanyName     *string
	CompanyIndustry *string
}

type Detail struct {
	View
	Deals      []deal.Summary
	Activities []activity.Summary
}

// Summary is the compact shape embedded in company detail views.
type Summary struct {
	ID        int64
	FirstName string
	LastName  string
	Position  *string
	Email     *string
	Phone     *string
}

type Filter struct {
	Search      string
	CompanyID   *int64
	OwnerUserID *int64
	Page        store.Page
}

type CreateParams struct {
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	Email       *string         `json:"email"`
	Phone       *string         `json:"phone"`
	Position    *string         `json:"position"`
	CompanyID   *int64          `json:"company_id"`
	OwnerUserID *int64          `json:"owner_user_id"`
	Tags        json.RawMessage `json:"tags"`
}

type UpdateParams struct {
	FirstName   optional.Field[string]          `json:"first_name"`
	LastName    optional.Field[string]          `json:"last_name"`
	Email       optional.Field[string]          `json:"email"`
	Phone       optional.Field[string]          `json:"phone"`
	Position    optional.Field[string]          `json:"position"`
	CompanyID   optional.Field[int64]           `json:"company_id"`
	OwnerUserID optional.Field[int64]           `json:"owner_user_id"`
	Tags        optional.Field[json.RawMessage] `json:"tags"`
}
