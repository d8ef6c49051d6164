package cmd

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/ignite/internal/auth"
	"github.com/felixgeelhaar/ignite/internal/errors"
	"github.com/felixgeelhaar/ignite/internal/session"
	"github.com/felixgeelhaar/ignite/internal/transport"
	"github.com/felixgeelhaar/ignite/internal/tui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the session",
	Long: `Manage the session with the Ignite API.

Subcommands:
  register  Create an account and sign in
  login     Sign in with e-mail and password
  logout    Sign out and remove stored credentials
  status    Show the current session

Examples:
  ignite auth login --email ana@example.com
  ignite auth status -o json
  ignite auth logout`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in",
	Long: `Sign in with e-mail and password. The session is stored so later
commands run signed in.

Missing values are prompted for on a terminal. Use --password-stdin to pipe
the password in scripts.

Examples:
  ignite auth login --email ana@example.com
  echo "$PASSWORD" | ignite auth login --email ana@example.com --password-stdin`,
	RunE: withApp(runAuthLogin),
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	Long:  `Sign out and remove the stored session. Signing out twice is not an error.`,
	RunE:  withApp(runAuthLogout),
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	RunE:  withApp(runAuthStatus),
}

var authRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	Long: `Create an account with name, e-mail and password, then sign in with
the same credentials.

Examples:
  ignite auth register --name Ana --email ana@example.com`,
	RunE: withApp(runAuthRegister),
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authRegisterCmd)

	authLoginCmd.Flags().String("email", "", "e-mail address")
	authLoginCmd.Flags().String("password", "", "password (prefer the prompt or --password-stdin)")
	authLoginCmd.Flags().Bool("password-stdin", false, "read the password from stdin")

	authRegisterCmd.Flags().String("name", "", "display name")
	authRegisterCmd.Flags().String("email", "", "e-mail address")
	authRegisterCmd.Flags().String("password", "", "password (prefer the prompt or --password-stdin)")
	authRegisterCmd.Flags().Bool("password-stdin", false, "read the password from stdin")

	rootCmd.AddCommand(authCmd)
}

// sessionResult is the machine-readable view of a session.
type sessionResult struct {
	State     string            `json:"state" yaml:"state"`
	User      *auth.UserProfile `json:"user,omitempty" yaml:"user,omitempty"`
	ExpiresAt *time.Time        `json:"access_token_expires_at,omitempty" yaml:"access_token_expires_at,omitempty"`
	Store     string            `json:"store" yaml:"store"`

	view tui.StatusView
}

func (r sessionResult) Text() string {
	return tui.RenderStatus(r.view, tui.DefaultStyles())
}

func newSessionResult(snap auth.Snapshot, store string, now time.Time) sessionResult {
	r := sessionResult{
		State: snap.State.String(),
		Store: store,
		view:  tui.StatusView{Session: snap, StoreType: store, Now: now},
	}
	if snap.Authenticated() {
		profile := snap.Profile
		r.User = &profile
		if exp, ok := auth.AccessExpiry(snap.Tokens.AccessToken); ok {
			r.ExpiresAt = &exp
		}
	}
	return r
}

// signedInResult is printed after login and register.
type signedInResult struct {
	User auth.UserProfile `json:"user" yaml:"user"`
}

func (r signedInResult) Text() string {
	return tui.RenderNotice(tui.DefaultStyles().Success, "✓", fmt.Sprintf("Signed in as %s <%s>", r.User.Name, r.User.Email))
}

func runAuthLogin(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	password, err := passwordFromFlags(cmd)
	if err != nil {
		return err
	}

	if email == "" || password == "" {
		if !tui.ShouldPrompt() {
			return errors.NewInvalidInputError("--email and a password are required when not running on a terminal")
		}
		creds, err := tui.PromptForCredentials(tui.Credentials{Email: email, Password: password})
		if err != nil {
			return err
		}
		email, password = creds.Email, creds.Password
	}

	res, err := a.session.SignIn(ctx, email, password)
	if err != nil {
		return signInError(err)
	}
	reportSignIn(cmd, res)
	return a.out.Format(signedInResult{User: res.Profile})
}

func runAuthRegister(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	password, err := passwordFromFlags(cmd)
	if err != nil {
		return err
	}

	if name == "" || email == "" || password == "" {
		if !tui.ShouldPrompt() {
			return errors.NewInvalidInputError("--name, --email and a password are required when not running on a terminal")
		}
		in, err := tui.PromptForSignUp(tui.SignUpInput{Name: name, Email: email, Password: password}, session.MinPasswordLength)
		if err != nil {
			return err
		}
		name, email, password = in.Name, in.Email, in.Password
	}

	res, err := a.session.SignUp(ctx, name, email, password)
	if err != nil {
		return signInError(err)
	}
	reportSignIn(cmd, res)
	return a.out.Format(signedInResult{User: res.Profile})
}

func runAuthLogout(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	profile, signedIn := a.session.Profile()
	a.session.SignOut(ctx)

	if !signedIn {
		return a.out.Format("Not signed in.")
	}
	return a.out.Format(fmt.Sprintf("Signed out %s.", profile.Email))
}

func runAuthStatus(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	return a.out.Format(newSessionResult(a.session.Snapshot(), a.cfg.Store.Type, time.Now()))
}

// signInError turns a client error response into a sign-in failure that
// carries the server's message verbatim.
func signInError(err error) error {
	var authErr *auth.AuthError
	if !stderrors.As(err, &authErr) || authErr.Code != auth.ErrTransport {
		return err
	}
	if status := transport.StatusCode(err); status < 400 || status >= 500 {
		return err
	}
	return errors.NewSignInFailedError(authErr.Message, nil)
}

// reportSignIn prints the persist warning of a sign-in, if any, to stderr.
func reportSignIn(cmd *cobra.Command, res *session.SignInResult) {
	if res.Warning == nil {
		return
	}
	var cause error = res.Warning
	if w, ok := res.Warning.(*session.PersistWarning); ok {
		cause = w.Cause
	}
	fmt.Fprintln(cmd.ErrOrStderr(), tui.RenderNotice(tui.DefaultStyles().Warning, "!", errors.NewPersistWarning(cause).Error()))
}

// passwordFromFlags returns --password, or the first line of stdin with
// --password-stdin.
func passwordFromFlags(cmd *cobra.Command) (string, error) {
	fromStdin, _ := cmd.Flags().GetBool("password-stdin")
	password, _ := cmd.Flags().GetString("password")

	if !fromStdin {
		return password, nil
	}
	if password != "" {
		return "", errors.NewInvalidInputError("--password and --password-stdin are mutually exclusive")
	}
	return readPassword(cmd.InOrStdin())
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.NewInvalidInputError("cannot read the password from stdin")
	}
	return strings.TrimRight(line, "\r\n"), nil
}
