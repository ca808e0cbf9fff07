package main

import (
	"net/http"
	"strings"

	"crmapi/auth"
)

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := newQuery(r)
		filter := auth.ListFilter{Search: q.get("search"), Page: q.page()}
		if raw := q.get("role"); raw != "" {
			role := auth.Role(raw)
			filter.Role = &role
		}
		if q.err != nil {
			s.writeError(w, r, q.err)
			return
		}
		users, total, err := s.userService.ListUsers(r.Context(), filter)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse[userResponse]{Items: mapSlice(users, newUserResponse), Total: total})
	case http.MethodPost:
		var req auth.RegisterRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		user, err := s.userService.Register(r.Context(), req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newUserResponse(*user))
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/users/")
	if strings.Trim(rest, "/") == "" {
		s.handleUsers(w, r)
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
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	user, err := s.userService.GetUserByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(*user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req auth.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.userService.Login(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: res.Token,
		TokenType:   "bearer",
		ExpiresAt:   res.ExpiresAt,
		User:        newUserResponse(res.User),
	})
}

// handleMe resolves the bearer token to its user.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
		return
	}
	userID, _, err := s.userService.VerifyToken(token)
	if err != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		s.writeError(w, r, err)
		return
	}
	user, err := s.userService.GetUserByID(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(*user))
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
