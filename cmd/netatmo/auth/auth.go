// Package authcmd provides the auth command for obtaining and managing
// Netatmo credentials.
package authcmd

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cgtobi/netatmo-api-go/cmd/netatmo/internal/cli"
)

const loginLongDesc = `Authenticate against the Netatmo API and store the credential.

By default the resource-owner password grant is used: the command asks for
your Netatmo account password (hidden on a terminal, first line when piped).

Pass --redirect-url to switch to the authorization-code flow: the command
prints the consent URL to open in a browser. After approving, re-run with
--code and the code from the callback query.

Credentials are stored next to the config file and refreshed tokens are
written back automatically.

Examples:
  netatmo auth login --username user@example.com
  echo "$PASSWORD" | netatmo auth login --username user@example.com
  netatmo auth login --redirect-url https://example.com/callback
  netatmo auth login --redirect-url https://example.com/callback --code CODE`

// NewAuthCmd creates the auth command tree.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage Netatmo authentication",
	}

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newLogoutCmd())

	return cmd
}

func newLoginCmd() *cobra.Command {
	var (
		username    string
		authCode    string
		redirectURL string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store the credential",
		Long:  loginLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cli.NewSession(cmd, redirectURL)
			if err != nil {
				return err
			}

			switch {
			case authCode != "":
				if err := sess.Manager.ExchangeCode(cmd.Context(), authCode); err != nil {
					return err
				}
			case redirectURL != "":
				return printConsentURL(sess)
			default:
				if err := loginPassword(cmd, sess, username); err != nil {
					return err
				}
			}

			if err := sess.Store.Save(sess.Manager.Credential()); err != nil {
				return fmt.Errorf("saving credential: %w", err)
			}

			cred := sess.Manager.Credential()
			fmt.Println("✓ Successfully logged in")
			fmt.Printf("  Token expires: %s\n", cred.ExpiresAt.Local().Format("2006-01-02 15:04:05 MST"))
			fmt.Printf("  Stored in: %s\n", sess.Store.Path())

			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Netatmo account email (prompted if not provided)")
	cmd.Flags().StringVar(&authCode, "code", "", "Authorization code from the consent callback")
	cmd.Flags().StringVar(&redirectURL, "redirect-url", "", "Redirect URL registered for the app (enables the authorization-code flow)")

	return cmd
}

// printConsentURL starts the authorization-code flow by handing the user
// the URL to approve.
func printConsentURL(sess *cli.Session) error {
	state, err := randomState()
	if err != nil {
		return err
	}

	fmt.Println("Open this URL in a browser and approve the requested scopes:")
	fmt.Printf("\n  %s\n\n", sess.Manager.AuthorizationURL(state))
	fmt.Println("Then re-run with --code and the code from the callback query.")

	return nil
}

func loginPassword(cmd *cobra.Command, sess *cli.Session, username string) error {
	if username == "" {
		fmt.Print("Username: ")
		if _, err := fmt.Scanln(&username); err != nil {
			return fmt.Errorf("reading username: %w", err)
		}
	}

	password, err := readPassword()
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}

	return sess.Manager.Authenticate(cmd.Context(), username, password)
}

// readPassword reads the password from stdin. If stdin is a pipe, it reads
// the first line. Otherwise, it prompts interactively with hidden input.
func readPassword() (string, error) {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return "", fmt.Errorf("checking stdin: %w", err)
	}

	// Piped input
	if (fi.Mode() & os.ModeCharDevice) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			return strings.TrimSpace(scanner.Text()), nil
		}
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return "", errors.New("no input received on stdin")
	}

	// Interactive terminal
	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println() // newline after hidden input
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	return string(passwordBytes), nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cli.NewSession(cmd, "")
			if err != nil {
				return err
			}

			fmt.Printf("Client ID: %s\n", sess.Config.ClientID)
			fmt.Printf("Scopes:    %s\n", strings.Join(sess.Config.Scopes, ", "))

			cred := sess.Manager.Credential()
			if cred == nil {
				fmt.Println("\nNot logged in")
				return nil
			}

			expiry := cred.ExpiresAt.Local()
			fmt.Printf("\nToken expires: %s\n", expiry.Format("2006-01-02 15:04:05 MST"))

			now := time.Now()
			if now.Before(cred.ExpiresAt) {
				fmt.Printf("✓  Valid for %s\n", cred.ExpiresAt.Sub(now).Round(time.Second))
			} else if cred.HasRefreshToken() {
				fmt.Printf("⚠  Expired %s ago - will refresh on the next request\n", now.Sub(cred.ExpiresAt).Round(time.Second))
			} else {
				fmt.Println("⚠  Expired with no refresh token - log in again")
			}

			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cli.NewSession(cmd, "")
			if err != nil {
				return err
			}

			if sess.Manager.Credential() == nil {
				fmt.Println("Not logged in")
				return nil
			}

			if err := sess.Store.Remove(); err != nil {
				return err
			}

			fmt.Println("✓ Successfully logged out")
			return nil
		},
	}
}
