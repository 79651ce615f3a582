package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/flame/internal/ir"
	"github.com/roach88/flame/internal/state"
)

// CredentialOptions holds the flags shared by login and register.
type CredentialOptions struct {
	*RootOptions
	Email    string
	Password string
}

func addCredentialFlags(cmd *cobra.Command, opts *CredentialOptions) {
	cmd.Flags().StringVar(&opts.Email, "email", "", "account email (default: auth.email)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password (default: auth.password)")
}

// credentials resolves flags over configuration.
func (o *CredentialOptions) credentials(s *session) ir.Credentials {
	c := ir.Credentials{Email: s.cfg.Auth.Email, Password: s.cfg.Auth.Password}
	if o.Email != "" {
		c.Email = o.Email
	}
	if o.Password != "" {
		c.Password = o.Password
	}
	return c
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Long: `Ask the backend who the session belongs to.

With auth.email configured the session logs in first, so this doubles as a
credentials check.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if err := s.authenticate(ctx); err != nil {
					return err
				}
				if err := s.run(ctx, ir.GetUser{}); err != nil {
					return err
				}
				return s.finish(state.SliceUser)
			})
		},
	}
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CredentialOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and show the resulting user",
		Example: `  flame login --email ada@example.com --password secret
  FLAME_AUTH_PASSWORD=secret flame login --email ada@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				creds := opts.credentials(s)
				if creds.Email == "" {
					return NewExitError(ExitCommandError, "--email is required")
				}
				if err := s.run(ctx, ir.LoginUser{Credentials: creds}); err != nil {
					return err
				}
				return s.finish(state.SliceUser)
			})
		},
	}
	addCredentialFlags(cmd, opts)
	return cmd
}

// RegisterOptions holds flags for the register command.
type RegisterOptions struct {
	CredentialOptions
	Retype string
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{CredentialOptions: CredentialOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Long: `Register a new account. The backend logs the new account in and
creates its "My Data" collection.

--retype must repeat the password; a mismatch is reported without
contacting the backend.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				creds := opts.credentials(s)
				if creds.Email == "" {
					return NewExitError(ExitCommandError, "--email is required")
				}
				if opts.Retype != creds.Password {
					if err := s.run(ctx, ir.SetRetypeError{}); err != nil {
						return err
					}
					return s.finish()
				}
				if err := s.run(ctx, ir.RegisterUser{Credentials: creds}); err != nil {
					return err
				}
				return s.finish(state.SliceUser)
			})
		},
	}
	addCredentialFlags(cmd, &opts.CredentialOptions)
	cmd.Flags().StringVar(&opts.Retype, "retype", "", "the password again")
	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log in with the configured credentials, then end the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if err := s.authenticate(ctx); err != nil {
					return err
				}
				if err := s.run(ctx, ir.LogoutUser{}); err != nil {
					return err
				}
				return s.finish(state.SliceUser)
			})
		},
	}
}
