package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

func (r *Runner) writeUser(cmd *cli.Command, u *models.User) error {
	return r.emit(cmd, u, func() error {
		r.writePlain("%s (@%s)\n", u.Name(), u.Username)
		r.writePlain("   ID: %s\n", u.ID)
		r.writePlain("   Email: %s", u.Email)
		if !u.EmailVerified {
			r.writePlain(" (unverified)")
		}
		r.writePlain("\n")
		if u.Role != "" {
			r.writePlain("   Role: %s\n", u.Role)
		}
		return nil
	})
}

// AuthRegister creates an account. The new session is persisted like a login.
func (r *Runner) AuthRegister(ctx context.Context, cmd *cli.Command) error {
	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	reg := models.Registration{
		Username:    cmd.String("username"),
		Email:       cmd.String("email"),
		Password:    cmd.String("password"),
		DisplayName: cmd.String("display-name"),
	}
	r.logger.Info("registering", "username", reg.Username)
	if err := c.Auth.Register(ctx, reg); err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	s := c.Auth.Session()
	if !cmd.Bool("json") {
		r.writePlain("✓ Account created\n")
		if !s.User.EmailVerified {
			r.writePlain("Check your inbox, then run 'vidx auth verify <token>'\n")
		}
	}
	return r.writeUser(cmd, s.User)
}

// AuthLogin signs in and saves the token pair and session to the local database.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	creds := models.Credentials{Login: cmd.String("login"), Password: cmd.String("password")}
	r.logger.Info("signing in", "login", creds.Login)
	if err := c.Auth.Login(ctx, creds); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if !cmd.Bool("json") {
		r.writePlain("✓ Signed in\n")
	}
	return r.writeUser(cmd, c.Auth.Session().User)
}

// AuthLogout ends the session on the server and locally.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	if !c.Auth.IsAuthenticated() {
		return r.writePlain("Not signed in\n")
	}
	if err := c.Auth.Logout(ctx); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	return r.writePlain("✓ Signed out\n")
}

// AuthMe reloads the current user from the server.
func (r *Runner) AuthMe(ctx context.Context, cmd *cli.Command) error {
	c, err := r.authed(ctx)
	if err != nil {
		return err
	}
	if err := c.Auth.Reload(ctx); err != nil {
		return err
	}
	return r.writeUser(cmd, c.Auth.Session().User)
}

// AuthRefresh rotates the token pair.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	c, err := r.authed(ctx)
	if err != nil {
		return err
	}
	if err := c.Auth.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	return r.writePlain("✓ Tokens refreshed\n")
}

// AuthVerify confirms an email address.
func (r *Runner) AuthVerify(ctx context.Context, cmd *cli.Command) error {
	token := cmd.StringArg("token")
	if token == "" {
		return fmt.Errorf("%w: verification token", shared.ErrMissingArgument)
	}
	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	if err := c.AuthService.VerifyEmail(ctx, token); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	if c.Auth.IsAuthenticated() {
		if err := c.Auth.Reload(ctx); err != nil {
			r.logger.Warn("failed to reload user", "error", err)
		}
	}
	return r.writePlain("✓ Email verified\n")
}

// AuthResend requests a new verification email.
func (r *Runner) AuthResend(ctx context.Context, cmd *cli.Command) error {
	email := cmd.StringArg("email")
	if email == "" {
		return fmt.Errorf("%w: email", shared.ErrMissingArgument)
	}
	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	if err := c.AuthService.ResendVerification(ctx, email); err != nil {
		return err
	}
	return r.writePlain("✓ Verification email sent to %s\n", email)
}

// AuthForgot starts the password reset flow.
func (r *Runner) AuthForgot(ctx context.Context, cmd *cli.Command) error {
	email := cmd.StringArg("email")
	if email == "" {
		return fmt.Errorf("%w: email", shared.ErrMissingArgument)
	}
	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	if err := c.AuthService.ForgotPassword(ctx, email); err != nil {
		return err
	}
	return r.writePlain("✓ If %s has an account, a reset link is on its way\n", email)
}

// AuthReset completes the password reset flow.
func (r *Runner) AuthReset(ctx context.Context, cmd *cli.Command) error {
	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	reset := models.PasswordReset{Token: cmd.String("token"), Password: cmd.String("password")}
	if err := c.AuthService.ResetPassword(ctx, reset); err != nil {
		return fmt.Errorf("password reset failed: %w", err)
	}
	return r.writePlain("✓ Password updated, sign in with 'vidx auth login'\n")
}
