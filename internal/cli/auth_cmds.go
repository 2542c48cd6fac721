package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskmaster/internal/client"
)

func password(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("TASKMASTER_PASSWORD")
}

type SignupCmd struct {
	email    string
	password string
}

func (c *SignupCmd) Name() string     { return "signup" }
func (c *SignupCmd) Synopsis() string { return "Create an account" }
func (c *SignupCmd) Usage() string    { return "taskctl signup -email <email> [-password <password>]" }
func (c *SignupCmd) NeedsAuth() bool  { return false }

func (c *SignupCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "")
	fs.StringVar(&c.password, "password", "", "")
}

func (c *SignupCmd) Run(ctx context.Context, env *Env, args []string) int {
	pw := password(c.password)
	if c.email == "" || pw == "" {
		fmt.Fprintf(env.Err, "error: email and password required\nusage: %s\n", c.Usage())
		return UserError
	}

	u, err := env.Client.SignUp(ctx, c.email, pw)
	if err != nil {
		return env.fail(err)
	}
	fmt.Fprintf(env.Out, "created account %s\n", u.Email)
	return Success
}

type LoginCmd struct {
	email        string
	password     string
	refreshToken string
	provider     string
}

func (c *LoginCmd) Name() string     { return "login" }
func (c *LoginCmd) Synopsis() string { return "Sign in and store the session" }
func (c *LoginCmd) Usage() string {
	return "taskctl login -email <email> [-password <password>] | -provider <google|github> | -refresh-token <token>"
}
func (c *LoginCmd) NeedsAuth() bool { return false }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "")
	fs.StringVar(&c.password, "password", "", "")
	fs.StringVar(&c.refreshToken, "refresh-token", "", "")
	fs.StringVar(&c.provider, "provider", "", "")
}

func (c *LoginCmd) Run(ctx context.Context, env *Env, args []string) int {
	if c.provider != "" {
		providers, err := env.Client.Providers(ctx)
		if err != nil {
			return env.fail(err)
		}
		if !contains(providers, c.provider) {
			fmt.Fprintf(env.Err, "error: provider not enabled: %s (available: %s)\n", c.provider, strings.Join(providers, ", "))
			return UserError
		}
		fmt.Fprintf(env.Out, "open this URL to sign in:\n\n  %s\n\nthen run: taskctl login -refresh-token <refresh_token>\n", env.Client.LoginURL(c.provider))
		return Success
	}

	var (
		s   client.Session
		err error
	)
	switch {
	case c.refreshToken != "":
		s, err = env.Client.Refresh(ctx, c.refreshToken)
	case c.email != "" && password(c.password) != "":
		s, err = env.Client.SignIn(ctx, c.email, password(c.password))
	default:
		fmt.Fprintf(env.Err, "error: credentials required\nusage: %s\n", c.Usage())
		return UserError
	}
	if err != nil {
		return env.fail(err)
	}

	if err := env.Config.SaveToken(s.Token()); err != nil {
		return env.fail(err)
	}

	if s.User.Email != "" {
		fmt.Fprintf(env.Out, "logged in as %s\n", s.User.Email)
	} else {
		fmt.Fprintln(env.Out, "logged in")
	}
	return Success
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type LogoutCmd struct{}

func (c *LogoutCmd) Name() string                 { return "logout" }
func (c *LogoutCmd) Synopsis() string             { return "Revoke and forget the stored session" }
func (c *LogoutCmd) Usage() string                { return "taskctl logout" }
func (c *LogoutCmd) NeedsAuth() bool              { return false }
func (c *LogoutCmd) RegisterFlags(*flag.FlagSet) {}

func (c *LogoutCmd) Run(ctx context.Context, env *Env, args []string) int {
	tok, err := env.Config.LoadToken()
	if err == nil && tok.RefreshToken != "" {
		if err := env.Client.SignOut(ctx, tok.RefreshToken); err != nil {
			env.Logger.Warn("server sign out failed", zap.Error(err))
		}
	}

	if err := env.Config.RemoveToken(); err != nil {
		return env.fail(err)
	}
	fmt.Fprintln(env.Out, "logged out")
	return Success
}

type WhoamiCmd struct{}

func (c *WhoamiCmd) Name() string                 { return "whoami" }
func (c *WhoamiCmd) Synopsis() string             { return "Show the signed-in user" }
func (c *WhoamiCmd) Usage() string                { return "taskctl whoami" }
func (c *WhoamiCmd) NeedsAuth() bool              { return true }
func (c *WhoamiCmd) RegisterFlags(*flag.FlagSet) {}

func (c *WhoamiCmd) Run(ctx context.Context, env *Env, args []string) int {
	u, err := env.Client.Me(ctx)
	if err != nil {
		return env.fail(err)
	}
	fmt.Fprintf(env.Out, "%s (%s)\n", u.Email, u.ID)
	return Success
}
