package authz

import (
	_ "embed"
	"fmt"
	"log"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/terraconstructs/classgrid/internal/session"
)

//go:embed model.conf
var casbinModelContent string

const rolePrefix = "role:"

// Gate decides whether a session may perform an action based on its role.
// A session whose role is unresolved is denied everything; no role is ever
// assumed.
type Gate struct {
	enforcer casbin.IEnforcer
}

// NewGate creates a Gate from policy, a map of role to granted actions. A nil
// policy uses DefaultPolicy.
func NewGate(policy map[string][]string) (*Gate, error) {
	if policy == nil {
		policy = DefaultPolicy
	}

	m, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	for role, actions := range policy {
		role = strings.TrimSpace(role)
		if role == "" {
			return nil, fmt.Errorf("policy grants actions to an empty role")
		}
		for _, act := range actions {
			if _, err := enforcer.AddPolicy(rolePrefix+role, act); err != nil {
				return nil, fmt.Errorf("add policy %s %s: %w", role, act, err)
			}
		}
	}

	return &Gate{enforcer: enforcer}, nil
}

// Allow reports whether s may perform action.
func (g *Gate) Allow(s *session.Session, action string) bool {
	if s == nil || !s.RoleResolved() {
		return false
	}
	ok, err := g.enforcer.Enforce(rolePrefix+s.Role, action)
	if err != nil {
		log.Printf("authz: enforce %s %s: %v", s.Role, action, err)
		return false
	}
	return ok
}

// Actions lists the known actions s is allowed to perform.
func (g *Gate) Actions(s *session.Session) []string {
	var out []string
	for _, act := range []string{ScheduleSubmit, TimetableRead, TimetableReview, TimetableSelect} {
		if g.Allow(s, act) {
			out = append(out, act)
		}
	}
	return out
}
