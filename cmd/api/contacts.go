package main

import (
	"net/http"
	"strings"

	"crmapi/contact"
)

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := newQuery(r)
		filter := contact.Filter{
			Search:      q.get("search"),
			CompanyID:   q.int64Ptr("company_id"),
			OwnerUserID: q.int64Ptr("owner_user_id"),
			Page:        q.page(),
		}
		if q.err != nil {
			s.writeError(w, r, q.err)
			return
		}
		items, total, err := s.contactService.List(r.Context(), filter)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse[contactResponse]{Items: mapSlice(items, newContactResponse), Total: total})
	case http.MethodPost:
		var params contact.CreateParams
		if err := decodeJSON(r, &params); err != nil {
			s.writeError(w, r, err)
			return
		}
		created, err := s.contactService.Create(r.Context(), params)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newContactResponse(created))
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/contacts/")
	if strings.Trim(rest, "/") == "" {
		s.handleContacts(w, r)
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
		detail, err := s.contactService.Detail(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newContactDetailResponse(detail))
		return
	default:
		notFound(w)
		return
	}

	switch r.Method {
	case http.MethodGet:
		v, err := s.contactService.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newContactResponse(v))
	case http.MethodPatch, http.MethodPut:
		var params contact.UpdateParams
		if err := decodeJSON(r, &params); err != nil {
			s.writeError(w, r, err)
			return
		}
		v, err := s.contactService.Update(r.Context(), id, params)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newContactResponse(v))
	case http.MethodDelete:
		if err := s.contactService.Delete(r.Context(), id); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodPut, http.MethodDelete)
	}
}
