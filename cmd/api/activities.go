package main

import (
	"net/http"
	"strings"

	"crmapi/activity"
)

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := newQuery(r)
		filter := activity.Filter{
			DueFrom:     q.timePtr("due_from"),
			DueTo:       q.timePtr("due_to"),
			OwnerUserID: q.int64Ptr("owner_user_id"),
			DealID:      q.int64Ptr("deal_id"),
			ContactID:   q.int64Ptr("contact_id"),
			Done:        q.boolPtr("done"),
			Page:        q.page(),
		}
		if raw := q.get("type"); raw != "" {
			t := activity.Type(raw)
			filter.Type = &t
		}
		if q.err != nil {
			s.writeError(w, r, q.err)
			return
		}
		items, total, err := s.activityService.List(r.Context(), filter)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse[activityResponse]{Items: mapSlice(items, newActivityResponse), Total: total})
	case http.MethodPost:
		var params activity.CreateParams
		if err := decodeJSON(r, &params); err != nil {
			s.writeError(w, r, err)
			return
		}
		created, err := s.activityService.Create(r.Context(), params)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newActivityResponse(created))
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/activities/")
	if strings.Trim(rest, "/") == "" {
		s.handleActivities(w, r)
		return
	}

	id, sub, err := pathID(rest)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sub != "" {
		notFound(w)
		return
	}

	switch r.Method {
	case http.MethodGet:
		v, err := s.activityService.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newActivityResponse(v))
	case http.MethodPatch, http.MethodPut:
		var params activity.UpdateParams
		if err := decodeJSON(r, &params); err != nil {
			s.writeError(w, r, err)
			return
		}
		v, err := s.activityService.Update(r.Context(), id, params)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newActivityResponse(v))
	case http.MethodDelete:
		if err := s.activityService.Delete(r.Context(), id); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodPut, http.MethodDelete)
	}
}
