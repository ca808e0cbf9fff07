package main

import (
	"net/http"
	"strings"

	"crmapi/company"
)

func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := newQuery(r)
		filter := company.Filter{
			Search:      q.get("search"),
			City:        q.get("city"),
			Industry:    q.get("industry"),
			OwnerUserID: q.int64Ptr("owner_user_id"),
			Page:        q.page(),
		}
		if q.err != nil {
			s.writeError(w, r, q.err)
			return
		}
		items, total, err := s.companyService.List(r.Context(), filter)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse[companyResponse]{Items: mapSlice(items, newCompanyResponse), Total: total})
	case http.MethodPost:
		var params company.CreateParams
		if err := decodeJSON(r, &params); err != nil {
			s.writeError(w, r, err)
			return
		}
		created, err := s.companyService.Create(r.Context(), params)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newCompanyResponse(created))
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleCompany serves /companies/{id} and /companies/{id}/detail.
func (s *Server) handleCompany(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/companies/")
	if strings.Trim(rest, "/") == "" {
		s.handleCompanies(w, r)
		return
	}

	id, sub, err := pathID(rest)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	switch sub {
	case "":
	case "detail":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		detail, err := s.companyService.Detail(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newCompanyDetailResponse(detail))
		return
	default:
		notFound(w)
		return
	}

	switch r.Method {
	case http.MethodGet:
		c, err := s.companyService.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newCompanyResponse(c))
	case http.MethodPatch, http.MethodPut:
		var params company.UpdateParams
		if err := decodeJSON(r, &params); err != nil {
			s.writeError(w, r, err)
			return
		}
		c, err := s.companyService.Update(r.Context(), id, params)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newCompanyResponse(c))
	case http.MethodDelete:
		if err := s.companyService.Delete(r.Context(), id); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodPut, http.MethodDelete)
	}
}
