package company

import (
	"time"

	"crmapi/activity"
	"crmapi/contact"
	"crmapi/deal"
	"crmapi/optional"
	"crmapi/store"
)

// Company mirrors the companies table.
type Company struct {
	ID          int64
	Name        string
	Industry    *string
	Website     *string
	Phone       *string
	Country     *string
	City        *string
	Address     *string
	OwnerUserID *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Detail is a company with every contact and deal attached to it and the
// latest activities reachable through either.
type Detail struct {
	Company
	Contacts   []contact.Summary
	Deals      []deal.Summary
	Activities []activity.Summary
}

type Filter struct {
	Search      string
	City        string
	Industry    string
	OwnerUserID *int64
	Page        store.Page
}

type CreateParams struct {
	Name        string  `json:"name"`
	Industry    *string `json:"industry"`
	Website     *string `json:"website"`
	Phone       *string `json:"phone"`
	Country     *string `json:"country"`
	City        *string `json:"city"`
	Address     *string `json:"address"`
	OwnerUserID *int64  `json:"owner_user_id"`
}

type UpdateParams struct {
	Name        optional.Field[string] `json:"name"`
	Industry    optional.Field[string] `json:"industry"`
	Website     optional.Field[string] `json:"website"`
	Phone       optional.Field[string] `json:"phone"`
	Country     optional.Field[string] `json:"country"`
	City        optional.Field[string] `json:"city"`
	Address     optional.Field[string] `json:"address"`
	OwnerUserID optional.Field[int64]  `json:"owner_user_id"`
}
