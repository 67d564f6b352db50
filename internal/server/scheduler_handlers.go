package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/terraconstructs/classgrid/internal/authz"
	"github.com/terraconstructs/classgrid/internal/client"
)

// MountScheduler mounts the role-gated scheduling routes.
func MountScheduler(r chi.Router, sessions SessionService, gate *authz.Gate, sched Scheduler) {
	r.Route("/api", func(r chi.Router) {
		r.With(RequireAction(sessions, gate, authz.ScheduleSubmit)).
			Post("/parameters", handleSubmitParameters(sched))
		r.With(RequireAction(sessions, gate, authz.TimetableRead)).
			Get("/timetables/pending", handleListPending(sched))
		r.With(RequireAction(sessions, gate, authz.TimetableReview)).
			Post("/timetables/{id}/approve", handleApprove(sched))
		r.With(RequireAction(sessions, gate, authz.TimetableReview)).
			Post("/timetables/{id}/reject", handleReject(sched))
		r.With(RequireAction(sessions, gate, authz.TimetableSelect)).
			Post("/timetables/select", handleSelect(sched))
	})
}

// RequireAction rejects requests unless the current session's role grants
// action. A session with an unresolved role is forbidden.
func RequireAction(sessions SessionService, gate *authz.Gate, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := sessions.Current().Session
			if s == nil {
				writeError(w, http.StatusUnauthorized, "not signed in")
				return
			}
			if !s.RoleResolved() {
				writeError(w, http.StatusForbidden, "role unresolved")
				return
			}
			if !gate.Allow(s, action) {
				writeError(w, http.StatusForbidden, "role "+s.Role+" may not "+action)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleSubmitParameters(sched Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params json.RawMessage
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&params); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		out, err := sched.SubmitParameters(r.Context(), params)
		writeUpstream(w, out, err)
	}
}

func handleListPending(sched Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := sched.ListPending(r.Context())
		writeUpstream(w, out, err)
	}
}

func handleApprove(sched Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := sched.Approve(r.Context(), chi.URLParam(r, "id"))
		writeUpstream(w, out, err)
	}
}

func handleReject(sched Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Comment string `json:"comment"`
		}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}
		out, err := sched.Reject(r.Context(), chi.URLParam(r, "id"), body.Comment)
		writeUpstream(w, out, err)
	}
}

func handleSelect(sched Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil || body.ID == "" {
			writeError(w, http.StatusBadRequest, "timetable id is required")
			return
		}
		out, err := sched.SelectTimetable(r.Context(), body.ID)
		writeUpstream(w, out, err)
	}
}

func writeUpstream(w http.ResponseWriter, out json.RawMessage, err error) {
	var statusErr *client.StatusError
	switch {
	case err == nil:
		if out == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out)
	case errors.Is(err, client.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "not signed in")
	case errors.As(err, &statusErr):
		writeError(w, statusErr.StatusCode, statusErr.Body)
	default:
		log.Printf("server: scheduler request failed: %v", err)
		writeError(w, http.StatusBadGateway, "scheduler unavailable")
	}
}
