package activity

import (
	"encoding/json"
	"fmt"
	"time"

	"crmapi/optional"
	"crmapi/store"
)

type Type string

const (
	TypeCall    Type = "call"
	TypeEmail   Type = "email"
	TypeMeeting Type = "meeting"
	TypeTask    Type = "task"
)

func (t Type) Valid() bool {
	switch t {
	case TypeCall, TypeEmail, TypeMeeting, TypeTask:
		return true
	default:
		return false
	}
}

// Activity mirrors the activities table. Activities never carry an
// updated_at; patches leave created_at untouched.
type Activity struct {
	ID          int64
	Type        Type
	Subject     string
	Notes       *string
	DueDate     *time.Time
	Done        bool
	DealID      *int64
	ContactID   *int64
	OwnerUserID *int64
	CreatedAt   time.Time
}

// View is an activity enriched with the names of what it links to. The
// company is resolved through the deal; every name is nil when its link does
// not resolve.
type View struct {
	Activity
	ContactName *string
	DealTitle   *string
	CompanyID   *int64
	CompanyName *string
}

// Summary is the compact shape embedded in company, contact and deal detail views.
type Summary struct {
	ID          int64
	Type        Type
	Subject     string
	DueDate     *time.Time
	Done        bool
	DealID      *int64
	ContactID   *int64
	ContactName *string
	DealTitle   *string
}

// Upcoming is a scheduled activity as shown on the dashboard.
type Upcoming struct {
	ID          int64
	Type        Type
	Subject     string
	DueDate     time.Time
	DealID      *int64
	ContactID   *int64
	CompanyID   *int64
	ContactName *string
}

// Filter narrows List. Nil fields do not filter; due bounds are inclusive.
type Filter struct {
	DueFrom     *time.Time
	DueTo       *time.Time
	OwnerUserID *int64
	DealID      *int64
	ContactID   *int64
	Type        *Type
	Done        *bool
	Page        store.Page
}

type CreateParams struct {
	Type        Type       `json:"type"`
	Subject     string     `json:"subject"`
	Notes       *string    `json:"notes"`
	DueDate     *time.Time `json:"due_date"`
	Done        bool       `json:"done"`
	DealID      *int64     `json:"deal_id"`
	ContactID   *int64     `json:"contact_id"`
	OwnerUserID *int64     `json:"owner_user_id"`
}

type UpdateParams struct {
	Type        optional.Field[Type]      `json:"type"`
	Subject     optional.Field[string]    `json:"subject"`
	Notes       optional.Field[string]    `json:"notes"`
	DueDate     optional.Field[time.Time] `json:"due_date"`
	Done        optional.Field[bool]      `json:"done"`
	DealID      optional.Field[int64]     `json:"deal_id"`
	ContactID   optional.Field[int64]     `json:"contact_id"`
	OwnerUserID optional.Field[int64]     `json:"owner_user_id"`
}

// timestampLayouts are tried in order. Layouts without a zone are read as UTC,
// which is what an HTML datetime-local input sends.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// ParseTimestamp reads an RFC 3339 timestamp or a zoneless one taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("activity: %w: %q is not a timestamp", store.ErrInvalidInput, s)
}

func decodeTimestamp(raw []byte) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("activity: %w: due_date must be a string", store.ErrInvalidInput)
	}
	return ParseTimestamp(s)
}

func (p *CreateParams) UnmarshalJSON(data []byte) error {
	type plain CreateParams
	aux := struct {
		*plain
		DueDate optional.Field[json.RawMessage] `json:"due_date"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.DueDate = nil
	if aux.DueDate.Set && !aux.DueDate.Null {
		t, err := decodeTimestamp(aux.DueDate.Value)
		if err != nil {
			return err
		}
		p.DueDate = &t
	}
	return nil
}

func (p *UpdateParams) UnmarshalJSON(data []byte) error {
	type plain UpdateParams
	aux := struct {
		*plain
		DueDate optional.Field[json.RawMessage] `json:"due_date"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.DueDate = optional.Field[time.Time]{Set: aux.DueDate.Set, Null: aux.DueDate.Null}
	if aux.DueDate.Set && !aux.DueDate.Null {
		t, err := decodeTimestamp(aux.DueDate.Value)
		if err != nil {
			return err
		}
		p.DueDate.Value = t
	}
	return nil
}
