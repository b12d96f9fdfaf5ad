package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nfrund/chorus/internal/database"
	"github.com/nfrund/chorus/internal/domain"
	"github.com/spf13/cobra"
)

var (
	authEmail    string
	authPassword string

	// newAuth is replaced in tests.
	newAuth = func() domain.AuthRepository { return database.NewAuthStore(cfg) }
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and cache the session token",
	Long: `Sign in with email and password. The password is read from standard
input when --password is not given.

Examples:
  chorus login --email ada@example.com
  echo "$PASSWORD" | chorus login --email ada@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		auth := newAuth()
		return issueToken(cmd, auth, auth.SignIn)
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		auth := newAuth()
		return issueToken(cmd, auth, auth.SignUp)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the cached session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := tokens().Clear(); err != nil {
			return fmt.Errorf("clear token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	},
}

func issueToken(cmd *cobra.Command, auth domain.AuthRepository, signIn func(context.Context, domain.Credentials) (string, error)) error {
	ctx := cmd.Context()
	password := authPassword
	if password == "" {
		var err error
		if password, err = readPassword(cmd.InOrStdin()); err != nil {
			return err
		}
	}

	token, err := signIn(ctx, domain.Credentials{Email: authEmail, Password: password})
	if err != nil {
		return err
	}
	identity, err := auth.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	if err := tokens().Save(token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", identity.Email, identity.UserID)
	return nil
}

// readPassword takes the first line of r.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, signupCmd} {
		c.Flags().StringVarP(&authEmail, "email", "e", "", "Account email")
		c.Flags().StringVarP(&authPassword, "password", "p", "", "Account password (read from stdin when empty)")
		_ = c.MarkFlagRequired("email")
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(logoutCmd)
}
