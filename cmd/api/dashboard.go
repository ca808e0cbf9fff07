package main

import (
	"net/http"

	"crmapi/dashboard"
)

func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	q := newQuery(r)
	params := dashboard.Params{
		OwnerUserID: q.int64Ptr("owner_user_id"),
		DaysAhead:   q.intPtr("days_ahead"),
	}
	if params.DaysAhead != nil && *params.DaysAhead < 0 {
		q.fail("days_ahead", q.get("days_ahead"), "a non-negative integer")
	}
	if q.err != nil {
		s.writeError(w, r, q.err)
		return
	}

	summary, err := s.dashboardService.Summary(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDashboardResponse(summary))
}
