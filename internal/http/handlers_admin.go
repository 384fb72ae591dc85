package http

import (
	"net/http"

	"paylog/internal/auth"
	"paylog/internal/log"
)

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Set("authenticated", s.authenticated(r)).Write(w)
}

// handleLogin accepts {password, confirmPassword}. The confirmation is only
// read when no credential has been set yet.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		ErrorFor(err).Write(w)
		return
	}

	created, err := s.admin.Login(r.Context(), p.Get("password"), p.Get("confirmPassword"))
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Admin login failed",
			log.FieldComponent, log.ComponentAuth,
			log.FieldOperation, log.OpLogin,
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldError, err)
		ErrorFor(err).Write(w)
		return
	}

	token, err := s.sessions.Create()
	if err != nil {
		s.writeError(w, r, "Session creation failed", err)
		return
	}
	s.setSessionCookie(w, token)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Admin logged in",
		log.FieldComponent, log.ComponentAuth,
		log.FieldOperation, log.OpLogin,
		"password_created", created)
	NewJSONResponse().Set("created", created).Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(auth.CookieName); err == nil {
		s.sessions.Delete(c.Value)
	}
	s.clearSessionCookie(w)
	NewJSONResponse().Write(w)
}

// handleChangePassword accepts {currentPassword, newPassword, confirmPassword}.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	err := s.admin.ChangePassword(r.Context(), p.Get("currentPassword"), p.Get("newPassword"), p.Get("confirmPassword"))
	if err != nil {
		s.writeError(w, r, "Password change failed", err)
		return
	}
	NewJSONResponse().Write(w)
}
