package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the tournament-side role of a profile
type UserRole = string

const (
	// RoleOrganizer can create and run events
	RoleOrganizer UserRole = "organizer"
	// RoleAdmin can additionally manage organizers and global settings
	RoleAdmin UserRole = "admin"
)

// Profile is the application-level user record, keyed by the identity
// provider's subject via AuthID. The controller only ever holds a read-only
// cached copy inside AuthState.
type Profile struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	DisplayName   string     `bun:"display_name,notnull" json:"display_name,omitempty"`
	Role          UserRole   `bun:"role,notnull" json:"role,omitempty"`
	IsActive      bool       `bun:"is_active" json:"is_active,omitempty"`
	AuthID        string     `bun:"auth_id,nullzero,unique" json:"auth_id,omitempty"`
	PasswordSet   bool       `bun:"password_set" json:"password_set,omitempty"`
	LastLogin     *time.Time `bun:"last_login,nullzero" json:"last_login,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EnsureRole defaults the role for records created before roles existed.
func (p *Profile) EnsureRole() {
	if p.Role == "" {
		p.Role = RoleOrganizer
	}
}

// IsAdmin reports whether the profile carries the admin role.
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}
