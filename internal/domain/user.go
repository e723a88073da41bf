package domain

import "time"

// Auth providers. Externally-provisioned identities carry no password hash
// and cannot log in with credentials.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// User is a stored identity. Sensitive columns never serialize.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	ProfileImage string `json:"profile_image,omitempty"`

	RoleID string `json:"role_id"`
	// Role is populated by reads that join the roles table.
	Role *Role `json:"role,omitempty"`

	IsActive      bool `json:"is_active"`
	EmailVerified bool `json:"email_verified"`

	VerificationToken   string     `json:"-"`
	VerificationExpires *time.Time `json:"-"`

	// Reset tokens are selector.secret pairs. The selector is stored in the
	// clear for lookup; only a SHA-256 of the secret is stored.
	ResetSelector   string     `json:"-"`
	ResetSecretHash string     `json:"-"`
	ResetExpires    *time.Time `json:"-"`

	Provider string `json:"provider"`
	OAuthID  string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RefreshToken is a ledger row. Only the SHA-256 of the opaque token is
// stored; a revoked row stays in place so reuse is detectable as replay.
type RefreshToken struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	TokenHash string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Expired reports whether the ledger row is past its expiry.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Revoked reports whether the ledger row has been rotated or revoked.
func (t *RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Session is the cached snapshot of an authenticated identity. It carries
// everything the request path needs so the hot path can skip postgres.
type Session struct {
	UserID      string      `json:"user_id"`
	Email       string      `json:"email"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	RoleName    string      `json:"role_name"`
	Permissions Permissions `json:"permissions"`
	IsActive    bool        `json:"is_active"`
}

// NewSession builds a session snapshot from a user with its role populated.
func NewSession(u *User) *Session {
	s := &Session{
		UserID:    u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsActive:  u.IsActive,
	}
	if u.Role != nil {
		s.RoleName = u.Role.Name
		s.Permissions = u.Role.Permissions
	}
	return s
}

// Can reports whether the session's role grants the action on the module.
func (s *Session) Can(module, action string) bool {
	return s.Permissions.Can(module, action)
}
