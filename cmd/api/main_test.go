package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"crmapi/activity"
	"crmapi/auth"
	"crmapi/company"
	"crmapi/config"
	"crmapi/contact"
	"crmapi/dashboard"
	"crmapi/deal"
	"crmapi/store"
)

type stubCompanyService struct {
	company    company.Company
	detail     company.Detail
	list       []company.Company
	total      int
	err        error
	lastFilter company.Filter
	lastUpdate company.UpdateParams
	deletedID  int64
}

func (s *stubCompanyService) Create(_ context.Context, p company.CreateParams) (company.Company, error) {
	if s.err != nil {
		return company.Company{}, s.err
	}
	c := s.company
	c.Name = p.Name
	return c, nil
}

func (s *stubCompanyService) Get(_ context.Context, _ int64) (company.Company, error) {
	return s.company, s.err
}

func (s *stubCompanyService) Detail(_ context.Context, _ int64) (company.Detail, error) {
	return s.detail, s.err
}

func (s *stubCompanyService) List(_ context.Context, f company.Filter) ([]company.Company, int, error) {
	s.lastFilter = f
	return s.list, s.total, s.err
}

func (s *stubCompanyService) Update(_ context.Context, _ int64, p company.UpdateParams) (company.Company, error) {
	s.lastUpdate = p
	return s.company, s.err
}

func (s *stubCompanyService) Delete(_ context.Context, id int64) error {
	s.deletedID = id
	return s.err
}

type stubContactService struct {
	view       contact.View
	detail     contact.Detail
	err        error
	lastFilter contact.Filter
}

func (s *stubContactService) Create(_ context.Context, _ contact.CreateParams) (contact.View, error) {
	return s.view, s.err
}

func (s *stubContactService) Get(_ context.Context, _ int64) (contact.View, error) {
	return s.view, s.err
}

func (s *stubContactService) Detail(_ context.Context, _ int64) (contact.Detail, error) {
	return s.detail, s.err
}

func (s *stubContactService) List(_ context.Context, f contact.Filter) ([]contact.View, int, error) {
	s.lastFilter = f
	if s.err != nil {
		return nil, 0, s.err
	}
	return []contact.View{s.view}, 1, nil
}

func (s *stubContactService) Update(_ context.Context, _ int64, _ contact.UpdateParams) (contact.View, error) {
	return s.view, s.err
}

func (s *stubContactService) Delete(_ context.Context, _ int64) error {
	return s.err
}

type stubDealService struct {
	view       deal.View
	detail     deal.Detail
	pages      [][]deal.View
	total      int
	err        error
	lastFilter deal.Filter
	lastStage  deal.Stage
	listCalls  int
}

func (s *stubDealService) Create(_ context.Context, _ deal.CreateParams) (deal.View, error) {
	return s.view, s.err
}

func (s *stubDealService) Get(_ context.Context, _ int64) (deal.View, error) {
	return s.view, s.err
}

func (s *stubDealService) Detail(_ context.Context, _ int64) (deal.Detail, error) {
	return s.detail, s.err
}

func (s *stubDealService) Activities(_ context.Context, _ int64) (deal.Detail, error) {
	return s.detail, s.err
}

func (s *stubDealService) List(_ context.Context, f deal.Filter) ([]deal.View, int, error) {
	s.lastFilter = f
	if s.err != nil {
		return nil, 0, s.err
	}
	if s.listCalls >= len(s.pages) {
		return []deal.View{}, s.total, nil
	}
	page := s.pages[s.listCalls]
	s.listCalls++
	return page, s.total, nil
}

func (s *stubDealService) Update(_ context.Context, _ int64, _ deal.UpdateParams) (deal.View, error) {
	return s.view, s.err
}

func (s *stubDealService) SetStage(_ context.Context, _ int64, st deal.Stage) (deal.View, error) {
	s.lastStage = st
	if s.err != nil {
		return deal.View{}, s.err
	}
	if !st.Valid() {
		return deal.View{}, deal.ErrInvalidStage
	}
	v := s.view
	v.Stage = st
	return v, nil
}

func (s *stubDealService) Delete(_ context.Context, _ int64) error {
	return s.err
}

type stubActivityService struct {
	view       activity.View
	err        error
	lastFilter activity.Filter
	lastCreate activity.CreateParams
	lastUpdate activity.UpdateParams
}

func (s *stubActivityService) Create(_ context.Context, p activity.CreateParams) (activity.View, error) {
	s.lastCreate = p
	return s.view, s.err
}

func (s *stubActivityService) Get(_ context.Context, _ int64) (activity.View, error) {
	return s.view, s.err
}

func (s *stubActivityService) List(_ context.Context, f activity.Filter) ([]activity.View, int, error) {
	s.lastFilter = f
	if s.err != nil {
		return nil, 0, s.err
	}
	return []activity.View{s.view}, 1, nil
}

func (s *stubActivityService) Update(_ context.Context, _ int64, p activity.UpdateParams) (activity.View, error) {
	s.lastUpdate = p
	return s.view, s.err
}

func (s *stubActivityService) Delete(_ context.Context, _ int64) error {
	return s.err
}

type stubDashboardService struct {
	summary    dashboard.Summary
	lastParams dashboard.Params
}

func (s *stubDashboardService) Summary(_ context.Context, p dashboard.Params) (dashboard.Summary, error) {
	s.lastParams = p
	return s.summary, nil
}

type stubUserService struct {
	user     auth.User
	tokenFor map[string]int64
	err      error
}

func (s *stubUserService) Register(_ context.Context, req auth.RegisterRequest) (*auth.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u := s.user
	u.Email = req.Email
	return &u, nil
}

func (s *stubUserService) Login(_ context.Context, _ auth.LoginRequest) (auth.LoginResult, error) {
	if s.err != nil {
		return auth.LoginResult{}, s.err
	}
	return auth.LoginResult{Token: "tok", ExpiresAt: time.Unix(0, 0).UTC(), User: s.user}, nil
}

func (s *stubUserService) GetUserByID(_ context.Context, id int64) (*auth.User, error) {
	if id != s.user.ID {
		return nil, auth.ErrUserNotFound
	}
	u := s.user
	return &u, nil
}

func (s *stubUserService) ListUsers(_ context.Context, _ auth.ListFilter) ([]auth.User, int, error) {
	return []auth.User{s.user}, 1, nil
}

func (s *stubUserService) VerifyToken(token string) (int64, auth.Role, error) {
	id, ok := s.tokenFor[token]
	if !ok {
		return 0, "", auth.ErrInvalidToken
	}
	return id, auth.RoleSeller, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestServer() *Server {
	return &Server{
		logger:           zap.NewNop(),
		companyService:   &stubCompanyService{},
		contactService:   &stubContactService{},
		dealService:      &stubDealService{},
		activityService:  &stubActivityService{},
		dashboardService: &stubDashboardService{},
		userService:      &stubUserService{},
		db:               stubPinger{},
		allowedOrigins:   []string{"http://localhost:4200"},
	}
}

func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error
}

func TestHandleRoot(t *testing.T) {
	rec := serve(newTestServer(), http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "CRM API up & running") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected a request id header")
	}

	if rec := serve(newTestServer(), http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown path, got %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	server := newTestServer()
	if rec := serve(server, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	server.db = stubPinger{err: errors.New("down")}
	if rec := serve(server, http.MethodGet, "/healthz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHandleCompanies_ListParsesFilters(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := &stubCompanyService{
		list:  []company.Company{{ID: 7, Name: "Acme", CreatedAt: now, UpdatedAt: now}},
		total: 12,
	}
	server := newTestServer()
	server.companyService = svc

	rec := serve(server, http.MethodGet, "/companies?search=ac&city=Madrid&owner_user_id=3&skip=10&limit=9999", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp listResponse[companyResponse]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 12 || len(resp.Items) != 1 || resp.Items[0].Name != "Acme" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if svc.lastFilter.Search != "ac" || svc.lastFilter.City != "Madrid" {
		t.Fatalf("unexpected filter: %+v", svc.lastFilter)
	}
	if svc.lastFilter.OwnerUserID == nil || *svc.lastFilter.OwnerUserID != 3 {
		t.Fatalf("expected owner filter 3, got %v", svc.lastFilter.OwnerUserID)
	}
	if svc.lastFilter.Page.Offset != 10 || svc.lastFilter.Page.Limit != store.MaxLimit {
		t.Fatalf("expected capped page, got %+v", svc.lastFilter.Page)
	}
}

func TestHandleCompanies_EmptyListIsArray(t *testing.T) {
	server := newTestServer()
	server.companyService = &stubCompanyService{}

	rec := serve(server, http.MethodGet, "/companies", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Fatalf("expected empty items array, got %s", rec.Body.String())
	}
}

func TestHandleCompanies_BadQuery(t *testing.T) {
	for _, target := range []string{"/companies?owner_user_id=abc", "/companies?limit=0", "/companies?skip=-1"} {
		rec := serve(newTestServer(), http.MethodGet, target, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestCollectionsAcceptTrailingSlash(t *testing.T) {
	cases := []struct {
		method string
		target string
		body   string
		want   int
	}{
		{http.MethodGet, "/companies/", "", http.StatusOK},
		{http.MethodPost, "/companies/", `{"name":"Acme"}`, http.StatusCreated},
		{http.MethodGet, "/contacts/", "", http.StatusOK},
		{http.MethodPost, "/contacts/", `{"first_name":"Ana","last_name":"Diaz"}`, http.StatusCreated},
		{http.MethodGet, "/deals/", "", http.StatusOK},
		{http.MethodPost, "/deals/", `{"title":"Renewal","company_id":1}`, http.StatusCreated},
		{http.MethodGet, "/activities/", "", http.StatusOK},
		{http.MethodPost, "/activities/", `{"type":"call","subject":"Intro"}`, http.StatusCreated},
		{http.MethodGet, "/users/", "", http.StatusOK},
		{http.MethodDelete, "/deals/", "", http.StatusMethodNotAllowed},
	}

	for _, tc := range cases {
		rec := serve(newTestServer(), tc.method, tc.target, tc.body)
		if rec.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d: %s", tc.method, tc.target, tc.want, rec.Code, rec.Body.String())
		}
	}
}

func TestHandleCompanies_StatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		method string
		target string
		body   string
		err    error
		want   int
	}{
		{"create", http.MethodPost, "/companies", `{"name":"Acme"}`, nil, http.StatusCreated},
		{"create conflict", http.MethodPost, "/companies", `{"name":"Acme"}`, company.ErrDuplicateName, http.StatusConflict},
		{"create bad json", http.MethodPost, "/companies", `{"name":`, nil, http.StatusBadRequest},
		{"create empty body", http.MethodPost, "/companies", "", nil, http.StatusBadRequest},
		{"get missing", http.MethodGet, "/companies/5", "", company.ErrNotFound, http.StatusNotFound},
		{"get bad id", http.MethodGet, "/companies/abc", "", nil, http.StatusBadRequest},
		{"detail", http.MethodGet, "/companies/5/detail", "", nil, http.StatusOK},
		{"detail missing", http.MethodGet, "/companies/5/detail", "", company.ErrNotFound, http.StatusNotFound},
		{"unknown subresource", http.MethodGet, "/companies/5/other", "", nil, http.StatusNotFound},
		{"patch invalid", http.MethodPatch, "/companies/5", `{"name":null}`, company.ErrNameRequired, http.StatusBadRequest},
		{"delete", http.MethodDelete, "/companies/5", "", nil, http.StatusNoContent},
		{"delete missing", http.MethodDelete, "/companies/5", "", company.ErrNotFound, http.StatusNotFound},
		{"wrong method", http.MethodPost, "/companies/5", "", nil, http.StatusMethodNotAllowed},
		{"wrong method collection", http.MethodDelete, "/companies", "", nil, http.StatusMethodNotAllowed},
		{"internal", http.MethodGet, "/companies/5", "", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := newTestServer()
			server.companyService = &stubCompanyService{err: tc.err}
			rec := serve(server, tc.method, tc.target, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("expected status %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
			if tc.want >= 400 && decodeError(t, rec) == "" {
				t.Fatal("expected error message")
			}
		})
	}
}

func TestHandleCompany_InternalErrorIsNotLeaked(t *testing.T) {
	server := newTestServer()
	server.companyService = &stubCompanyService{err: fmt.Errorf("company: get: %w", errors.New("password=secret"))}

	rec := serve(server, http.MethodGet, "/companies/1", "")
	if msg := decodeError(t, rec); strings.Contains(msg, "secret") {
		t.Fatalf("internal error leaked: %s", msg)
	}
}

func TestHandleCompany_PatchPassesPresence(t *testing.T) {
	svc := &stubCompanyService{company: company.Company{ID: 5, Name: "Acme"}}
	server := newTestServer()
	server.companyService = svc

	rec := serve(server, http.MethodPatch, "/companies/5", `{"city":null,"industry":"Retail"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !svc.lastUpdate.City.Set || !svc.lastUpdate.City.Null {
		t.Fatalf("expected city to be set to null, got %+v", svc.lastUpdate.City)
	}
	if !svc.lastUpdate.Industry.Set || svc.lastUpdate.Industry.Value != "Retail" {
		t.Fatalf("expected industry Retail, got %+v", svc.lastUpdate.Industry)
	}
	if svc.lastUpdate.Name.Set {
		t.Fatal("expected name untouched")
	}
}

func TestHandleCompanyDetail_Shape(t *testing.T) {
	due := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	position := "CTO"
	server := newTestServer()
	server.companyService = &stubCompanyService{detail: company.Detail{
		Company:    company.Company{ID: 1, Name: "Acme"},
		Contacts:   []contact.Summary{{ID: 2, FirstName: "Ana", LastName: "Diaz", Position: &position}},
		Activities: []activity.Summary{{ID: 4, Type: activity.TypeCall, Subject: "Intro", DueDate: &due}},
	}}

	rec := serve(server, http.MethodGet, "/companies/1/detail", "")
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["name"] != "Acme" {
		t.Fatalf("expected flat company fields, got %v", body)
	}
	contacts := body["contacts"].([]any)
	if contacts[0].(map[string]any)["job_title"] != "CTO" {
		t.Fatalf("expected job_title CTO, got %v", contacts[0])
	}
	if deals, ok := body["deals"].([]any); !ok || len(deals) != 0 {
		t.Fatalf("expected empty deals array, got %v", body["deals"])
	}
}

func TestHandleContacts(t *testing.T) {
	companyName := "Acme"
	industry := "Retail"
	svc := &stubContactService{
		view: contact.View{Contact: contact.Contact{ID: 2, FirstName: "Ana", LastName: "Diaz"}, CompanyName: &companyName},
	}
	server := newTestServer()
	server.contactService = svc

	rec := serve(server, http.MethodGet, "/contacts?search=ana&company_id=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"company_name":"Acme"`) || !strings.Contains(rec.Body.String(), `"tags":null`) {
		t.Fatalf("unexpected list body %s", rec.Body.String())
	}
	if svc.lastFilter.CompanyID == nil || *svc.lastFilter.CompanyID != 1 || svc.lastFilter.Search != "ana" {
		t.Fatalf("unexpected filter %+v", svc.lastFilter)
	}

	svc.detail = contact.Detail{View: contact.View{Contact: svc.view.Contact, CompanyName: &companyName, CompanyIndustry: &industry}}
	rec = serve(server, http.MethodGet, "/contacts/2/detail", "")
	var detail contactDetailResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.CompanyIndustry == nil || *detail.CompanyIndustry != industry || detail.Deals == nil {
		t.Fatalf("unexpected detail %+v", detail)
	}

	svc.err = contact.ErrDuplicateEmail
	if rec := serve(server, http.MethodPost, "/contacts", `{"first_name":"A","last_name":"B","email":"a@b.c"}`); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	svc.err = contact.ErrNotFound
	if rec := serve(server, http.MethodDelete, "/contacts/2", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleDealStage(t *testing.T) {
	svc := &stubDealService{view: deal.View{Deal: deal.Deal{ID: 9, Title: "Big", Stage: deal.StageProspecting}}}
	server := newTestServer()
	server.dealService = svc

	rec := serve(server, http.MethodPatch, "/deals/9/stage?stage=won", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp dealResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Stage != "won" {
		t.Fatalf("expected stage won, got %s", resp.Stage)
	}

	rec = serve(server, http.MethodPatch, "/deals/9/stage", `{"stage":"qualified"}`)
	if rec.Code != http.StatusOK || svc.lastStage != deal.StageQualified {
		t.Fatalf("expected body stage to apply, got %d %s", rec.Code, svc.lastStage)
	}

	if rec := serve(server, http.MethodPatch, "/deals/9/stage?stage=closed", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid stage, got %d", rec.Code)
	}
	if rec := serve(server, http.MethodPatch, "/deals/9/stage", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing stage, got %d", rec.Code)
	}
	if rec := serve(server, http.MethodGet, "/deals/9/stage", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleDeal_NotFoundAndDetail(t *testing.T) {
	city := "Lisbon"
	server := newTestServer()
	server.dealService = &stubDealService{err: deal.ErrNotFound}
	if rec := serve(server, http.MethodGet, "/deals/1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := serve(server, http.MethodGet, "/deals/1/activities", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for activities of missing deal, got %d", rec.Code)
	}

	server.dealService = &stubDealService{detail: deal.Detail{View: deal.View{
		Deal:        deal.Deal{ID: 1, Title: "Big", Stage: deal.StageWon, Currency: "EUR"},
		CompanyCity: &city,
	}}}
	rec := serve(server, http.MethodGet, "/deals/1/detail", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp dealDetailResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.CompanyCity == nil || *resp.CompanyCity != city || resp.Activities == nil {
		t.Fatalf("unexpected detail: %+v", resp)
	}

	rec = serve(server, http.MethodGet, "/deals/1/activities", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty activity feed array, got %s", rec.Body.String())
	}
}

func TestHandleDealExport(t *testing.T) {
	svc := &stubDealService{
		pages: [][]deal.View{
			{{Deal: deal.Deal{ID: 1, Title: "A", Stage: deal.StageWon, Currency: "EUR"}}},
			{{Deal: deal.Deal{ID: 2, Title: "B", Stage: deal.StageLost, Currency: "EUR"}}},
		},
		total: 2,
	}
	server := newTestServer()
	server.dealService = svc

	rec := serve(server, http.MethodGet, "/deals/export?stage=won", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Fatalf("unexpected content type %q", ct)
	}
	if svc.listCalls != 2 {
		t.Fatalf("expected export to page through all deals, got %d calls", svc.listCalls)
	}
	if svc.lastFilter.Stage == nil || *svc.lastFilter.Stage != deal.StageWon {
		t.Fatalf("expected stage filter to carry over, got %v", svc.lastFilter.Stage)
	}
	if !strings.HasPrefix(rec.Body.String(), "PK") {
		t.Fatal("expected a zip container")
	}
}

func TestHandleActivities_ParsesFilters(t *testing.T) {
	svc := &stubActivityService{view: activity.View{Activity: activity.Activity{ID: 1, Type: activity.TypeTask, Subject: "Follow up"}}}
	server := newTestServer()
	server.activityService = svc

	rec := serve(server, http.MethodGet, "/activities?due_from=2026-01-01&due_to=2026-01-31T23:59:59Z&done=false&type=task", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	f := svc.lastFilter
	if f.DueFrom == nil || !f.DueFrom.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected due_from %v", f.DueFrom)
	}
	if f.DueTo == nil || f.DueTo.Day() != 31 {
		t.Fatalf("unexpected due_to %v", f.DueTo)
	}
	if f.Done == nil || *f.Done {
		t.Fatalf("unexpected done %v", f.Done)
	}
	if f.Type == nil || *f.Type != activity.TypeTask {
		t.Fatalf("unexpected type %v", f.Type)
	}

	if rec := serve(server, http.MethodGet, "/activities?due_from=yesterday", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}
	if rec := serve(server, http.MethodGet, "/activities?done=maybe", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad bool, got %d", rec.Code)
	}
}

func TestHandleActivities_ZonelessTimestamps(t *testing.T) {
	svc := &stubActivityService{}
	server := newTestServer()
	server.activityService = svc
	want := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	rec := serve(server, http.MethodPost, "/activities", `{"type":"meeting","subject":"Demo","due_date":"2025-06-01T10:00:00"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastCreate.DueDate == nil || !svc.lastCreate.DueDate.Equal(want) {
		t.Fatalf("expected due date %s, got %v", want, svc.lastCreate.DueDate)
	}

	rec = serve(server, http.MethodPatch, "/activities/3", `{"due_date":"2025-06-01T10:00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !svc.lastUpdate.DueDate.Set || !svc.lastUpdate.DueDate.Value.Equal(want) {
		t.Fatalf("expected patched due date %s, got %+v", want, svc.lastUpdate.DueDate)
	}

	rec = serve(server, http.MethodGet, "/activities?due_from=2025-06-01T10:00:00&due_to=2025-06-02", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastFilter.DueFrom == nil || !svc.lastFilter.DueFrom.Equal(want) {
		t.Fatalf("expected due_from %s, got %v", want, svc.lastFilter.DueFrom)
	}

	rec = serve(server, http.MethodPost, "/activities", `{"type":"call","subject":"x","due_date":"next week"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unreadable due date, got %d", rec.Code)
	}
}

func TestHandleActivity_CreateInvalidType(t *testing.T) {
	server := newTestServer()
	server.activityService = &stubActivityService{err: activity.ErrInvalidType}

	rec := serve(server, http.MethodPost, "/activities", `{"type":"fax","subject":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleDashboardSummary(t *testing.T) {
	svc := &stubDashboardService{summary: dashboard.Summary{
		DealsByStage:          []deal.StageTotal{{Stage: deal.StageWon, Count: 2, TotalAmount: 300}},
		TotalPipelineValue:    300,
		ExpectedPipelineValue: 300,
	}}
	server := newTestServer()
	server.dashboardService = svc

	rec := serve(server, http.MethodGet, "/dashboard/summary?owner_user_id=4&days_ahead=14", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp dashboardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.DealsByStage) != 1 || resp.DealsByStage[0].Stage != "won" || resp.UpcomingActivities == nil {
		t.Fatalf("unexpected summary: %+v", resp)
	}
	if svc.lastParams.DaysAhead == nil || *svc.lastParams.DaysAhead != 14 || *svc.lastParams.OwnerUserID != 4 {
		t.Fatalf("unexpected params %+v", svc.lastParams)
	}

	if rec := serve(server, http.MethodGet, "/dashboard/summary?days_ahead=-1", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleUsersAndAuth(t *testing.T) {
	users := &stubUserService{
		user:     auth.User{ID: 3, Name: "Ada", Email: "ada@example.com", Role: auth.RoleSeller, HashedPassword: "hash"},
		tokenFor: map[string]int64{"good": 3},
	}
	server := newTestServer()
	server.userService = users

	rec := serve(server, http.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com","password":"longenough"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "hash") {
		t.Fatalf("password hash leaked: %s", rec.Body.String())
	}

	rec = serve(server, http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"longenough"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"access_token":"tok"`) {
		t.Fatalf("unexpected login response %d %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":3`) {
		t.Fatalf("unexpected me response %d %s", rec.Code, rec.Body.String())
	}

	if rec := serve(server, http.MethodGet, "/auth/me", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}

	if rec := serve(server, http.MethodGet, "/users/99", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	users.err = auth.ErrInvalidCredentials
	if rec := serve(server, http.MethodPost, "/auth/login", `{"email":"x","password":"y"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	users.err = auth.ErrDuplicateEmail
	if rec := serve(server, http.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com","password":"longenough"}`); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodOptions, "/companies", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected preflight 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:4200" {
		t.Fatalf("unexpected allow origin %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("expected no CORS headers for a foreign origin")
	}
}

type panickingCompanies struct{ stubCompanyService }

func (panickingCompanies) Get(context.Context, int64) (company.Company, error) {
	panic("kaboom")
}

func TestRecoverPanics(t *testing.T) {
	server := newTestServer()
	server.companyService = &panickingCompanies{}

	rec := serve(server, http.MethodGet, "/companies/1", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestWarnInsecureConfig(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cfg := &config.Config{}

	cfg.Auth.JWTSecret = config.DevJWTSecret
	warnInsecureConfig(cfg, zap.New(core))
	if logs.Len() != 1 {
		t.Fatalf("expected one warning for the development secret, got %d", logs.Len())
	}

	cfg.Auth.JWTSecret = "rotated"
	warnInsecureConfig(cfg, zap.New(core))
	if logs.Len() != 1 {
		t.Fatalf("expected no warning for a configured secret, got %d", logs.Len())
	}
}
