package models

import "time"

// Role is the account role reported by the backend.
type Role string

const (
	RoleUser      Role = "user"
	RoleCreator   Role = "creator"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// User is the account identity returned by /auth/me and the auth endpoints.
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"displayName,omitempty"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	Role          Role      `json:"role,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Name returns the display name, falling back to the username.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Permissions is derived from account flags; it is never sent by the server.
type Permissions struct {
	CanUpload         bool `json:"canUpload"`
	CanComment        bool `json:"canComment"`
	CanCreatePlaylist bool `json:"canCreatePlaylist"`
	CanModerate       bool `json:"canModerate"`
	IsAdmin           bool `json:"isAdmin"`
}

// PermissionsFor derives the permission set of u.
//
// Uploading and commenting require a verified email. Any signed-in user may create playlists.
func PermissionsFor(u *User) Permissions {
	if u == nil {
		return Permissions{}
	}
	admin := u.Role == RoleAdmin
	return Permissions{
		CanUpload:         u.EmailVerified,
		CanComment:        u.EmailVerified,
		CanCreatePlaylist: true,
		CanModerate:       admin || u.Role == RoleModerator,
		IsAdmin:           admin,
	}
}

// Session is the client's view of who is signed in. Only User and IsAuthenticated are persisted.
type Session struct {
	User            *User       `json:"user,omitempty"`
	IsAuthenticated bool        `json:"isAuthenticated"`
	Permissions     Permissions `json:"permissions"`
}

// NewSession builds an authenticated session for u.
func NewSession(u User) Session {
	return Session{User: &u, IsAuthenticated: true, Permissions: PermissionsFor(&u)}
}

// AuthResponse is the payload of register, login and refresh.
type AuthResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Credentials are the login form fields. Login accepts an email or a username.
type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Registration is the sign-up form.
type Registration struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

// PasswordReset completes a forgot-password flow.
type PasswordReset struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// PasswordChange is sent by a signed-in user.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}
