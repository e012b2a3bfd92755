package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the authenticated principal as the backend profile endpoint
// reports it. Role flags are not mutually exclusive; an account can act as
// both a volunteer and an organization.
type User struct {
	ID             int64    `json:"id,omitempty"`
	Username       string   `json:"username"`
	Email          string   `json:"email"`
	IsVolunteer    bool     `json:"is_volunteer"`
	IsOrganization bool     `json:"is_organization"`
	Phone          string   `json:"phone,omitempty"`
	Address        string   `json:"address,omitempty"`
	Bio            string   `json:"bio,omitempty"`
	Skills         []string `json:"skills,omitempty"`
	Interests      []string `json:"interests,omitempty"`
}

// HasSkill reports whether the profile lists the given skill,
// case-insensitively.
func (u *User) HasSkill(skill string) bool {
	for _, s := range u.Skills {
		if strings.EqualFold(s, skill) {
			return true
		}
	}
	return false
}

// TokenPair is the body of a successful POST token/ response. Refresh may
// be empty; only Access is ever persisted.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// RegisterUserMessage is the payload for POST register/. It mirrors the
// backend's account serializer; the backend owns final validation.
type RegisterUserMessage struct {
	Username       string   `json:"username"`
	Email          string   `json:"email"`
	Password       string   `json:"password"`
	IsVolunteer    bool     `json:"is_volunteer"`
	IsOrganization bool     `json:"is_organization"`
	Phone          string   `json:"phone,omitempty"`
	Address        string   `json:"address,omitempty"`
	Bio            string   `json:"bio,omitempty"`
	Skills         []string `json:"skills,omitempty"`
	Interests      []string `json:"interests,omitempty"`
}

func (e RegisterUserMessage) Type() string { return "session.register" }

// ProfileMessage is the payload for PUT profile/.
type ProfileMessage struct {
	Email     string   `json:"email,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Address   string   `json:"address,omitempty"`
	Bio       string   `json:"bio,omitempty"`
	Skills    []string `json:"skills,omitempty"`
	Interests []string `json:"interests,omitempty"`
}

func (e ProfileMessage) Type() string { return "session.profile.update" }

// credentialKey is the fixed slot every persistent TokenStore writes under.
const credentialKey = "bridge.access_token"

// Credential is the locally persisted bearer token row.
type Credential struct {
	bun.BaseModel `bun:"table:credentials,alias:crd"`
	Key           string    `bun:"key,pk" json:"key"`
	Token         string    `bun:"token,notnull" json:"token"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// SessionEvent is a locally persisted audit row for session transitions.
type SessionEvent struct {
	bun.BaseModel `bun:"table:session_events,alias:sev"`
	ID            uuid.UUID      `bun:"id,pk,type:uuid" json:"id"`
	EventType     string         `bun:"event_type,notnull" json:"event_type"`
	ActorID       string         `bun:"actor_id" json:"actor_id,omitempty"`
	Username      string         `bun:"username" json:"username,omitempty"`
	Metadata      map[string]any `bun:"metadata,type:jsonb" json:"metadata,omitempty"`
	OccurredAt    time.Time      `bun:"occurred_at,notnull" json:"occurred_at"`
}
