package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"crmapi/deal"
	"crmapi/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func dealFilter(q *query) deal.Filter {
	f := deal.Filter{
		CompanyID:   q.int64Ptr("company_id"),
		ContactID:   q.int64Ptr("contact_id"),
		OwnerUserID: q.int64Ptr("owner_user_id"),
		Search:      q.get("search"),
		Page:        q.page(),
	}
	if raw := q.get("stage"); raw != "" {
		st := deal.Stage(raw)
		f.Stage = &st
	}
	return f
}

func (s *Server) handleDeals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := newQuery(r)
		filter := dealFilter(q)
		if q.err != nil {
			s.writeError(w, r, q.err)
			return
		}
		items, total, err := s.dealService.List(r.Context(), filter)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse[dealResponse]{Items: mapSlice(items, newDealResponse), Total: total})
	case http.MethodPost:
		var params deal.CreateParams
		if err := decodeJSON(r, &params); err != nil {
			s.writeError(w, r, err)
			return
		}
		created, err := s.dealService.Create(r.Context(), params)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newDealResponse(created))
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleDeal serves /deals/export and everything under /deals/{id}.
func (s *Server) handleDeal(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/deals/")
	switch strings.Trim(rest, "/") {
	case "":
		s.handleDeals(w, r)
		return
	case "export":
		s.handleDealExport(w, r)
		return
	}

	id, sub, err := pathID(rest)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	switch sub {
	case "":
		s.handleDealItem(w, r, id)
	case "detail":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		detail, err := s.dealService.Detail(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newDealDetailResponse(detail))
	case "activities":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		feed, err := s.dealService.Activities(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newActivitySummaries(feed.Activities))
	case "stage":
		if r.Method != http.MethodPatch && r.Method != http.MethodPut {
			methodNotAllowed(w, http.MethodPatch, http.MethodPut)
			return
		}
		s.handleDealStage(w, r, id)
	default:
		notFound(w)
	}
}

func (s *Server) handleDealItem(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet:
		v, err := s.dealService.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newDealResponse(v))
	case http.MethodPatch, http.MethodPut:
		var params deal.UpdateParams
		if err := decodeJSON(r, &params); err != nil {
			s.writeError(w, r, err)
			return
		}
		v, err := s.dealService.Update(r.Context(), id, params)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newDealResponse(v))
	case http.MethodDelete:
		if err := s.dealService.Delete(r.Context(), id); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodPut, http.MethodDelete)
	}
}

// handleDealStage takes the stage from the query string, falling back to a
// {"stage": "..."} body.
func (s *Server) handleDealStage(w http.ResponseWriter, r *http.Request, id int64) {
	stage := strings.TrimSpace(r.URL.Query().Get("stage"))
	if stage == "" {
		var body struct {
			Stage string `json:"stage"`
		}
		if err := decodeJSON(r, &body); err != nil && !errors.Is(err, errEmptyBody) {
			s.writeError(w, r, err)
			return
		}
		stage = strings.TrimSpace(body.Stage)
	}
	if stage == "" {
		s.writeError(w, r, deal.ErrInvalidStage)
		return
	}

	v, err := s.dealService.SetStage(r.Context(), id, deal.Stage(stage))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDealResponse(v))
}

// handleDealExport streams every deal matching the list filters as an xlsx
// workbook. skip/limit are ignored.
func (s *Server) handleDealExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	q := newQuery(r)
	filter := dealFilter(q)
	if q.err != nil {
		s.writeError(w, r, q.err)
		return
	}

	var all []deal.View
	filter.Page = store.Page{Limit: store.MaxLimit}
	for {
		items, total, err := s.dealService.List(r.Context(), filter)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		all = append(all, items...)
		if len(items) == 0 || len(all) >= total {
			break
		}
		filter.Page.Offset += len(items)
	}

	data, err := deal.ExportWorkbook(all)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name := "deals-" + time.Now().UTC().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
