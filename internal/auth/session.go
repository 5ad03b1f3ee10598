package auth

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"bioboost/internal/models"
	"bioboost/pkg/websocket"
)

const defaultUsername = "student"

// Session is the authenticated caller as seen by the rest of the service.
type Session struct {
	UserID          uuid.UUID   `json:"user_id"`
	Username        string      `json:"username"`
	Role            models.Role `json:"role"`
	TeacherVerified bool        `json:"teacher_verified"`
}

func (s Session) IsTeacher() bool {
	return s.Role == models.RoleTeacher
}

func (s Session) DisplayName() string {
	if s.Username == "" {
		return "Set username"
	}
	return s.Username
}

func sessionFromProfile(p *models.Profile) Session {
	return Session{
		UserID:          p.ID,
		Username:        p.Username,
		Role:            p.Role,
		TeacherVerified: p.TeacherVerified,
	}
}

type sessionKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// SessionState holds a session and folds profile changes into it. Changes
// may arrive duplicated or out of order, so each field keeps the highest
// sequence number it has applied and ignores anything older.
type SessionState struct {
	mu      sync.Mutex
	session Session
	applied map[string]uint64
}

func NewSessionState(s Session) *SessionState {
	return &SessionState{session: s, applied: make(map[string]uint64)}
}

// Apply folds one change and reports whether the session changed.
func (st *SessionState) Apply(c websocket.Change) bool {
	if c.Table != profilesTable || c.RecordID != st.userID() {
		return false
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if c.Seq <= st.applied[c.Field] {
		return false
	}

	next := st.session
	switch c.Field {
	case fieldRole:
		v, ok := c.Value.(string)
		if !ok {
			return false
		}
		next.Role = models.Role(v)
	case fieldTeacherVerified:
		v, ok := c.Value.(bool)
		if !ok {
			return false
		}
		next.TeacherVerified = v
	case fieldUsername:
		v, ok := c.Value.(string)
		if !ok {
			return false
		}
		next.Username = v
	default:
		return false
	}

	st.applied[c.Field] = c.Seq
	changed := next != st.session
	st.session = next
	return changed
}

func (st *SessionState) Snapshot() Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.session
}

func (st *SessionState) userID() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.session.UserID.String()
}
