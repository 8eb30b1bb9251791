package services

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/vidx/internal/api"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

// AuthService talks to the /auth endpoints and keeps the client's token pair in sync.
type AuthService struct {
	client *api.Client
	logger *log.Logger
}

func NewAuthService(client *api.Client, logger *log.Logger) *AuthService {
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}
	return &AuthService{client: client, logger: shared.WithLogger(logger, "service", "auth")}
}

// Register creates an account and stores the returned token pair.
func (s *AuthService) Register(ctx context.Context, r models.Registration) (*models.AuthResponse, error) {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	if err := ValidateRegistration(r); err != nil {
		return nil, err
	}
	return s.authenticate(ctx, "/auth/register", r)
}

// Login exchanges credentials for a token pair.
func (s *AuthService) Login(ctx context.Context, c models.Credentials) (*models.AuthResponse, error) {
	c.Login = strings.TrimSpace(c.Login)
	if err := ValidateCredentials(c); err != nil {
		return nil, err
	}
	return s.authenticate(ctx, "/auth/login", c)
}

func (s *AuthService) authenticate(ctx context.Context, path string, body any) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := s.client.Post(ctx, path, body, &resp, api.SkipAuth(), api.WithTimeout(api.TimeoutAuth)); err != nil {
		return nil, err
	}
	if err := s.client.SetTokens(ctx, api.NewToken(resp.AccessToken, resp.RefreshToken)); err != nil {
		return nil, err
	}
	s.logger.Info("signed in", "user", resp.User.Username)
	return &resp, nil
}

// Logout revokes the refresh token server-side when possible and always clears local tokens.
func (s *AuthService) Logout(ctx context.Context) error {
	tok, _ := s.client.Token(ctx)
	if tok != nil && tok.RefreshToken != "" {
		body := map[string]string{"refreshToken": tok.RefreshToken}
		if err := s.client.Post(ctx, "/auth/logout", body, nil, api.SkipAuth(), api.WithTimeout(api.TimeoutAuth)); err != nil {
			s.logger.Warn("server-side logout failed", "err", err)
		}
	}
	return s.client.ClearTokens(ctx)
}

// Refresh rotates the token pair.
func (s *AuthService) Refresh(ctx context.Context) (*oauth2.Token, error) {
	return s.client.Refresh(ctx)
}

// Me returns the signed-in user.
func (s *AuthService) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := s.client.Get(ctx, "/auth/me", nil, &user, api.WithTimeout(api.TimeoutAuth)); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if err := requireID("token", token); err != nil {
		return err
	}
	return s.client.Post(ctx, "/auth/verify-email", map[string]string{"token": token}, nil, api.WithTimeout(api.TimeoutAuth))
}

func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	return s.client.Post(ctx, "/auth/resend-verification", map[string]string{"email": email}, nil, api.WithTimeout(api.TimeoutAuth))
}

func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	return s.client.Post(ctx, "/auth/forgot-password", map[string]string{"email": email}, nil, api.SkipAuth(), api.WithTimeout(api.TimeoutAuth))
}

func (s *AuthService) ResetPassword(ctx context.Context, r models.PasswordReset) error {
	if err := ValidatePasswordReset(r); err != nil {
		return err
	}
	return s.client.Post(ctx, "/auth/reset-password", r, nil, api.SkipAuth(), api.WithTimeout(api.TimeoutAuth))
}

func (s *AuthService) ChangePassword(ctx context.Context, c models.PasswordChange) error {
	if err := ValidatePasswordChange(c); err != nil {
		return err
	}
	return s.client.Post(ctx, "/auth/change-password", c, nil, api.WithTimeout(api.TimeoutAuth))
}

// AccessTokenExpired reports whether the held access token is already past its decoded expiry.
func (s *AuthService) AccessTokenExpired(ctx context.Context) bool {
	return s.client.AccessTokenExpired(ctx)
}

// HasTokens reports whether a token pair is held.
func (s *AuthService) HasTokens(ctx context.Context) bool {
	tok, err := s.client.Token(ctx)
	return err == nil && tok != nil && tok.AccessToken != ""
}
