package main

import (
	"encoding/json"
	"time"

	"crmapi/activity"
	"crmapi/auth"
	"crmapi/company"
	"crmapi/contact"
	"crmapi/dashboard"
	"crmapi/deal"
)

const dateLayout = "2006-01-02"

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

type companyResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Industry    *string   `json:"industry"`
	Website     *string   `json:"website"`
	Phone       *string   `json:"phone"`
	Country     *string   `json:"country"`
	City        *string   `json:"city"`
	Address     *string   `json:"address"`
	OwnerUserID *int64    `json:"owner_user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newCompanyResponse(c company.Company) companyResponse {
	return companyResponse{
		ID:          c.ID,
		Name:        c.Name,
		Industry:    c.Industry,
		Website:     c.Website,
		Phone:       c.Phone,
		Country:     c.Country,
		City:        c.City,
		Address:     c.Address,
		OwnerUserID: c.OwnerUserID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type companyDetailResponse struct {
	companyResponse
	Contacts   []contactSummaryResponse  `json:"contacts"`
	Deals      []dealSummaryResponse     `json:"deals"`
	Activities []activitySummaryResponse `json:"activities"`
}

func newCompanyDetailResponse(d company.Detail) companyDetailResponse {
	resp := companyDetailResponse{
		companyResponse: newCompanyResponse(d.Company),
		Contacts:        make([]contactSummaryResponse, 0, len(d.Contacts)),
		Deals:           newDealSummaries(d.Deals),
		Activities:      newActivitySummaries(d.Activities),
	}
	for _, c := range d.Contacts {
		resp.Contacts = append(resp.Contacts, contactSummaryResponse{
			ID:        c.ID,
			FirstName: c.FirstName,
			LastName:  c.LastName,
			JobTitle:  c.Position,
			Email:     c.Email,
			Phone:     c.Phone,
		})
	}
	return resp
}

type contactSummaryResponse struct {
	ID        int64   `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	JobTitle  *string `json:"job_title"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
}

type contactResponse struct {
	ID          int64           `json:"id"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	Email       *string         `json:"email"`
	Phone       *string         `json:"phone"`
	Position    *string         `json:"position"`
	CompanyID   *int64          `json:"company_id"`
	OwnerUserID *int64          `json:"owner_user_id"`
	Tags        json.RawMessage `json:"tags"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompanyName *string         `json:"company_name"`
}

func newContactResponse(v contact.View) contactResponse {
	tags := v.Tags
	if len(tags) == 0 {
		tags = json.RawMessage("null")
	}
	return contactResponse{
		ID:          v.ID,
		FirstName:   v.FirstName,
		LastName:    v.LastName,
		Email:       v.Email,
		Phone:       v.Phone,
		Position:    v.Position,
		CompanyID:   v.CompanyID,
		OwnerUserID: v.OwnerUserID,
		Tags:        tags,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
		CompanyName: v.CompanyName,
	}
}

type contactDetailResponse struct {
	contactResponse
	CompanyIndustry *string                   `json:"company_industry"`
	Deals           []dealSummaryResponse     `json:"deals"`
	Activities      []activitySummaryResponse `json:"activities"`
}

func newContactDetailResponse(d contact.Detail) contactDetailResponse {
	return contactDetailResponse{
		contactResponse: newContactResponse(d.View),
		CompanyIndustry: d.CompanyIndustry,
		Deals:           newDealSummaries(d.Deals),
		Activities:      newActivitySummaries(d.Activities),
	}
}

type dealResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Stage       string    `json:"stage"`
	CloseDate   *string   `json:"close_date"`
	CompanyID   int64     `json:"company_id"`
	ContactID   *int64    `json:"contact_id"`
	OwnerUserID *int64    `json:"owner_user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CompanyName *string   `json:"company_name"`
	ContactName *string   `json:"contact_name"`
}

func newDealResponse(v deal.View) dealResponse {
	return dealResponse{
		ID:          v.ID,
		Title:       v.Title,
		Amount:      v.Amount,
		Currency:    v.Currency,
		Stage:       string(v.Stage),
		CloseDate:   formatDate(v.CloseDate),
		CompanyID:   v.CompanyID,
		ContactID:   v.ContactID,
		OwnerUserID: v.OwnerUserID,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
		CompanyName: v.CompanyName,
		ContactName: v.ContactName,
	}
}

type dealDetailResponse struct {
	dealResponse
	CompanyCity    *string                   `json:"company_city"`
	CompanyCountry *string                   `json:"company_country"`
	Activities     []activitySummaryResponse `json:"activities"`
}

func newDealDetailResponse(d deal.Detail) dealDetailResponse {
	return dealDetailResponse{
		dealResponse:   newDealResponse(d.View),
		CompanyCity:    d.CompanyCity,
		CompanyCountry: d.CompanyCountry,
		Activities:     newActivitySummaries(d.Activities),
	}
}

type dealSummaryResponse struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Stage     string  `json:"stage"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	CloseDate *string `json:"close_date"`
}

func newDealSummaries(in []deal.Summary) []dealSummaryResponse {
	out := make([]dealSummaryResponse, 0, len(in))
	for _, d := range in {
		out = append(out, dealSummaryResponse{
			ID:        d.ID,
			Title:     d.Title,
			Stage:     string(d.Stage),
			Amount:    d.Amount,
			Currency:  d.Currency,
			CloseDate: formatDate(d.CloseDate),
		})
	}
	return out
}

type activityResponse struct {
	ID          int64      `json:"id"`
	Type        string     `json:"type"`
	Subject     string     `json:"subject"`
	Notes       *string    `json:"notes"`
	DueDate     *time.Time `json:"due_date"`
	Done        bool       `json:"done"`
	DealID      *int64     `json:"deal_id"`
	ContactID   *int64     `json:"contact_id"`
	OwnerUserID *int64     `json:"owner_user_id"`
	CreatedAt   time.Time  `json:"created_at"`
	ContactName *string    `json:"contact_name"`
	DealTitle   *string    `json:"deal_title"`
	CompanyID   *int64     `json:"company_id"`
	CompanyName *string    `json:"company_name"`
}

func newActivityResponse(v activity.View) activityResponse {
	return activityResponse{
		ID:          v.ID,
		Type:        string(v.Type),
		Subject:     v.Subject,
		Notes:       v.Notes,
		DueDate:     v.DueDate,
		Done:        v.Done,
		DealID:      v.DealID,
		ContactID:   v.ContactID,
		OwnerUserID: v.OwnerUserID,
		CreatedAt:   v.CreatedAt,
		ContactName: v.ContactName,
		DealTitle:   v.DealTitle,
		CompanyID:   v.CompanyID,
		CompanyName: v.CompanyName,
	}
}

type activitySummaryResponse struct {
	ID          int64      `json:"id"`
	Type        string     `json:"type"`
	Subject     string     `json:"subject"`
	DueDate     *time.Time `json:"due_date"`
	Done        bool       `json:"done"`
	DealID      *int64     `json:"deal_id"`
	ContactID   *int64     `json:"contact_id"`
	ContactName *string    `json:"contact_name"`
	DealTitle   *string    `json:"deal_title"`
}

func newActivitySummaries(in []activity.Summary) []activitySummaryResponse {
	out := make([]activitySummaryResponse, 0, len(in))
	for _, a := range in {
		out = append(out, activitySummaryResponse{
			ID:          a.ID,
			Type:        string(a.Type),
			Subject:     a.Subject,
			DueDate:     a.DueDate,
			Done:        a.Done,
			DealID:      a.DealID,
			ContactID:   a.ContactID,
			ContactName: a.ContactName,
			DealTitle:   a.DealTitle,
		})
	}
	return out
}

type stageTotalResponse struct {
	Stage       string  `json:"stage"`
	Count       int     `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

type upcomingActivityResponse struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Subject     string    `json:"subject"`
	DueDate     time.Time `json:"due_date"`
	DealID      *int64    `json:"deal_id"`
	ContactID   *int64    `json:"contact_id"`
	CompanyID   *int64    `json:"company_id"`
	ContactName *string   `json:"contact_name"`
}

type dashboardResponse struct {
	DealsByStage          []stageTotalResponse       `json:"deals_by_stage"`
	TotalPipelineValue    float64                    `json:"total_pipeline_value"`
	ExpectedPipelineValue float64                    `json:"expected_pipeline_value"`
	UpcomingActivities    []upcomingActivityResponse `json:"upcoming_activities"`
}

func newDashboardResponse(s dashboard.Summary) dashboardResponse {
	resp := dashboardResponse{
		DealsByStage:          make([]stageTotalResponse, 0, len(s.DealsByStage)),
		TotalPipelineValue:    s.TotalPipelineValue,
		ExpectedPipelineValue: s.ExpectedPipelineValue,
		UpcomingActivities:    make([]upcomingActivityResponse, 0, len(s.UpcomingActivities)),
	}
	for _, t := range s.DealsByStage {
		resp.DealsByStage = append(resp.DealsByStage, stageTotalResponse{
			Stage:       string(t.Stage),
			Count:       t.Count,
			TotalAmount: t.TotalAmount,
		})
	}
	for _, a := range s.UpcomingActivities {
		resp.UpcomingActivities = append(resp.UpcomingActivities, upcomingActivityResponse{
			ID:          a.ID,
			Type:        string(a.Type),
			Subject:     a.Subject,
			DueDate:     a.DueDate,
			DealID:      a.DealID,
			ContactID:   a.ContactID,
			CompanyID:   a.CompanyID,
			ContactName: a.ContactName,
		})
	}
	return resp
}

type userResponse struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login"`
}

func newUserResponse(u auth.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        userResponse `json:"user"`
}

func mapSlice[T, R any](in []T, f func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
