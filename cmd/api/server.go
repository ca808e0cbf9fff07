package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"crmapi/activity"
	"crmapi/auth"
	"crmapi/company"
	"crmapi/contact"
	"crmapi/dashboard"
	"crmapi/deal"
)

type companyService interface {
	Create(ctx context.Context, params company.CreateParams) (company.Company, error)
	Get(ctx context.Context, id int64) (company.Company, error)
	Detail(ctx context.Context, id int64) (company.Detail, error)
	List(ctx context.Context, filter company.Filter) ([]company.Company, int, error)
	Update(ctx context.Context, id int64, params company.UpdateParams) (company.Company, error)
	Delete(ctx context.Context, id int64) error
}

type contactService interface {
	Create(ctx context.Context, params contact.CreateParams) (contact.View, error)
	Get(ctx context.Context, id int64) (contact.View, error)
	Detail(ctx context.Context, id int64) (contact.Detail, error)
	List(ctx context.Context, filter contact.Filter) ([]contact.View, int, error)
	Update(ctx context.Context, id int64, params contact.UpdateParams) (contact.View, error)
	Delete(ctx context.Context, id int64) error
}

type dealService interface {
	Create(ctx context.Context, params deal.CreateParams) (deal.View, error)
	Get(ctx context.Context, id int64) (deal.View, error)
	Detail(ctx context.Context, id int64) (deal.Detail, error)
	Activities(ctx context.Context, id int64) (deal.Detail, error)
	List(ctx context.Context, filter deal.Filter) ([]deal.View, int, error)
	Update(ctx context.Context, id int64, params deal.UpdateParams) (deal.View, error)
	SetStage(ctx context.Context, id int64, stage deal.Stage) (deal.View, error)
	Delete(ctx context.Context, id int64) error
}

type activityService interface {
	Create(ctx context.Context, params activity.CreateParams) (activity.View, error)
	Get(ctx context.Context, id int64) (activity.View, error)
	List(ctx context.Context, filter activity.Filter) ([]activity.View, int, error)
	Update(ctx context.Context, id int64, params activity.UpdateParams) (activity.View, error)
	Delete(ctx context.Context, id int64) error
}

type dashboardService interface {
	Summary(ctx context.Context, params dashboard.Params) (dashboard.Summary, error)
}

type userService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	GetUserByID(ctx context.Context, userID int64) (*auth.User, error)
	ListUsers(ctx context.Context, filter auth.ListFilter) ([]auth.User, int, error)
	VerifyToken(token string) (int64, auth.Role, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the services behind the HTTP API.
type Server struct {
	logger           *zap.Logger
	companyService   companyService
	contactService   contactService
	dealService      dealService
	activityService  activityService
	dashboardService dashboardService
	userService      userService
	db               pinger
	allowedOrigins   []string
}

// Handler builds the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/companies", s.handleCompanies)
	mux.HandleFunc("/companies/", s.handleCompany)
	mux.HandleFunc("/contacts", s.handleContacts)
	mux.HandleFunc("/contacts/", s.handleContact)
	mux.HandleFunc("/deals", s.handleDeals)
	mux.HandleFunc("/deals/", s.handleDeal)
	mux.HandleFunc("/activities", s.handleActivities)
	mux.HandleFunc("/activities/", s.handleActivity)
	mux.HandleFunc("/dashboard/summary", s.handleDashboardSummary)
	mux.HandleFunc("/users", s.handleUsers)
	mux.HandleFunc("/users/", s.handleUser)
	mux.HandleFunc("/auth/login", s.handleLogin)
	mux.HandleFunc("/auth/me", s.handleMe)

	var h http.Handler = mux
	h = s.cors(h)
	h = s.recoverPanics(h)
	h = s.logRequests(h)
	h = withRequestID(h)
	return h
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		notFound(w)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "CRM API up & running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
