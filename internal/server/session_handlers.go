package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/terraconstructs/classgrid/internal/authz"
	"github.com/terraconstructs/classgrid/internal/session"
)

// sessionView is the consumer-facing snapshot. The credential never leaves
// the process.
type sessionView struct {
	State        string   `json:"state"`
	Provisional  bool     `json:"provisional"`
	Seq          uint64   `json:"seq"`
	DisplayName  string   `json:"displayName,omitempty"`
	Role         string   `json:"role,omitempty"`
	IdentityID   string   `json:"identityId,omitempty"`
	RoleResolved bool     `json:"roleResolved"`
	Actions      []string `json:"actions,omitempty"`
}

func newSessionView(snap session.Snapshot, gate *authz.Gate) sessionView {
	v := sessionView{
		State:       snap.State.String(),
		Provisional: snap.Provisional,
		Seq:         snap.Seq,
	}
	if s := snap.Session; s != nil {
		v.DisplayName = s.DisplayName
		v.Role = s.Role
		v.IdentityID = s.IdentityID
		v.RoleResolved = s.RoleResolved()
		if gate != nil {
			v.Actions = gate.Actions(s)
		}
	}
	return v
}

// loginRequest carries a session obtained outside the provider event path.
type loginRequest struct {
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	Credential  string `json:"credential"`
	IdentityID  string `json:"identityId"`
}

func (l loginRequest) session() session.Session {
	return session.Session{
		DisplayName: l.DisplayName,
		Role:        l.Role,
		Credential:  l.Credential,
		IdentityID:  l.IdentityID,
	}
}

func decodeLogin(w http.ResponseWriter, r *http.Request) (loginRequest, error) {
	var req loginRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	err := dec.Decode(&req)
	return req, err
}

// HandleSession returns the current session snapshot.
func HandleSession(sessions SessionService, gate *authz.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, newSessionView(sessions.Current(), gate))
	}
}

// HandleLogin installs a complete session directly.
func HandleLogin(sessions SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeLogin(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		s := req.session()
		if err := s.ValidateComplete(); err != nil {
			writeSessionError(w, err)
			return
		}
		if err := sessions.Login(r.Context(), s); err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionView(sessions.Current(), nil))
	}
}

// HandleRegister upserts the caller's profile and then installs the session.
func HandleRegister(registrar Registrar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeLogin(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		s := req.session()
		if err := s.ValidateComplete(); err != nil {
			writeSessionError(w, err)
			return
		}
		if err := registrar.Register(r.Context(), s); err != nil {
			writeSessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}
}

// HandleLogout signs out. It succeeds even when the provider cannot be
// reached.
func HandleLogout(sessions SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := sessions.Logout(r.Context()); err != nil {
			writeSessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidSession):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrProfileUnreachable):
		writeError(w, http.StatusBadGateway, "profile store unavailable")
	case errors.Is(err, session.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "session service stopped")
	default:
		log.Printf("server: session request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
